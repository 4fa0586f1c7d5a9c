package bridge

import "sync"

// sessionTable maps session id to engine-side session handle. Mutations
// happen only inside DispatchMessages (serialized by its reentry guard), but
// empty() is read from whatever goroutine is parked in WaitForFrontendEvent
// or WaitForDisconnect while a wake-up goroutine runs a concurrent drain, so
// the map itself is guarded by a mutex.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[int]SessionHandle
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[int]SessionHandle)}
}

// attach creates the engine-side session via agent and inserts its handle.
// The agent call runs outside the lock; Connect may call back into the bridge.
func (t *sessionTable) attach(sessionID int, agent Agent, writer SessionWriter) (SessionHandle, error) {
	handle, err := agent.Connect(sessionID, writer)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.sessions[sessionID] = handle
	t.mu.Unlock()
	return handle, nil
}

// end erases sessionID. Erasing an absent key is a no-op.
func (t *sessionTable) end(sessionID int) {
	t.mu.Lock()
	delete(t.sessions, sessionID)
	t.mu.Unlock()
}

func (t *sessionTable) get(sessionID int) (SessionHandle, bool) {
	t.mu.Lock()
	handle, ok := t.sessions[sessionID]
	t.mu.Unlock()
	return handle, ok
}

func (t *sessionTable) empty() bool {
	t.mu.Lock()
	n := len(t.sessions)
	t.mu.Unlock()
	return n == 0
}
