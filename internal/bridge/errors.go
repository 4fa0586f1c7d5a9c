package bridge

import (
	"errors"
	"fmt"
)

// ErrBindFailed identifies a startup bind failure. Start reports it by
// returning false; hosts that need an error value wrap this sentinel. The
// bridge is left in StateError and must not be reused.
var ErrBindFailed = errors.New("bridge: socket server failed to bind")

// contractViolation reports a programming-contract violation: an illegal state
// machine transition, handle initialization failure, or similar invariant break.
// These are not runtime errors to recover from; they are fatal aborts.
func contractViolation(format string, args ...any) {
	panic(fmt.Sprintf("bridge: programming contract violation: "+format, args...))
}
