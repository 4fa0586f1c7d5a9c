package bridge

import "context"

// Server is a reusable WebSocket-style multiplexer. It is an external
// collaborator: out of scope for this package beyond the shape of the
// interface it must satisfy.
type Server interface {
	Start(ctx context.Context, host string, port int) error
	Stop() error
	TerminateConnections()
	Send(sessionID int, message string) error
	AcceptSession(sessionID int)
	DeclineSession(sessionID int)
	Port() int
}

// ServerDelegate is the callback surface a Server invokes on session
// lifecycle events and target metadata queries. Bridge implements this
// interface via bridgeDelegate.
type ServerDelegate interface {
	StartSession(sessionID int, targetID string)
	MessageReceived(sessionID int, message string)
	EndSession(sessionID int)
	GetTargetIds() []string
	GetTargetTitle(targetID string) string
	GetTargetUrl(targetID string) string
}

// ServerFactory constructs a Server bound to the given delegate. Bridge calls
// this once, on the I/O thread, during Start.
type ServerFactory func(delegate ServerDelegate) Server
