package bridge

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// newTargetID mints a fresh RFC 4122 version 4 UUID, lowercase hex with the
// standard 8-4-4-4-12 grouping. Stable for the bridge's lifetime.
func newTargetID() string {
	return uuid.New().String()
}

// humanReadableProcessName is the TargetTitle fallback used when no script
// name was configured.
func humanReadableProcessName() string {
	exe, err := os.Executable()
	if err != nil {
		return "go"
	}
	return filepath.Base(exe)
}
