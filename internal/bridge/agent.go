package bridge

// SessionHandle is the engine-side handle for one attached debugger session.
type SessionHandle interface {
	// Dispatch hands an inbound protocol payload to the engine's inspector session.
	Dispatch(payload Payload)
}

// SessionWriter lets an engine-side session emit outbound traffic without
// holding a reference to the full Bridge. Bridge implements this interface.
type SessionWriter interface {
	Write(sessionID int, payload Payload)
}

// Agent is the embedding scripting engine's inspector API. It is an external
// collaborator: the bridge only ever calls inward into it, never the reverse.
type Agent interface {
	// Connect creates a new engine-side session for sessionID. writer is what
	// the returned session must use to emit outbound traffic for that session.
	Connect(sessionID int, writer SessionWriter) (SessionHandle, error)

	// ResumeStartup notifies the engine that the resume trigger was observed
	// and wait-for-connect mode has ended. It does not itself unblock Start;
	// the bridge posts its own startup semaphore independently.
	ResumeStartup()

	// RunForegroundTask schedules task to run on the engine's own foreground
	// runner. The engine is expected to call task() from that context.
	RunForegroundTask(task func())

	// RequestInterrupt asks the engine to call callback at its next
	// interrupt-safe point, even while running native code.
	RequestInterrupt(callback func())
}
