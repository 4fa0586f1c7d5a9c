package bridge

// DispatchMessages drains the incoming queue on the engine thread. It is
// called from three triggers — the engine-wake async signal, a scheduled
// foreground task, and an engine-interrupt callback — all fired together by
// PostIncomingMessage, so whichever path becomes active first runs the
// drain; the others become no-ops through the reentry guard below.
func (b *Bridge) DispatchMessages() {
	if !b.dispatching.CompareAndSwap(false, true) {
		return
	}
	defer b.dispatching.Store(false)

	for {
		if b.drainBuf.Empty() {
			b.drainBuf = b.qp.swapIncoming()
		}
		if b.drainBuf.Empty() {
			break
		}

		for {
			entry, ok := b.drainBuf.Pop()
			if !ok {
				break
			}
			b.handleIncoming(entry)
		}
	}

	// A ShutDown bridge with no sessions left is done. Normally the last
	// EndSession entry performs this transition, but that entry may have
	// been drained before Stop moved the state to ShutDown.
	if b.sessions.empty() && b.getState() == StateShutDown {
		b.setState(StateDone)
	}

	b.qp.notifyDrained()
}

func (b *Bridge) handleIncoming(entry incomingEntry) {
	switch entry.action {
	case ActionStartSession:
		b.attach(entry.sessionID)
		b.enqueueOutgoing(outgoingEntry{action: ActionAcceptSession, sessionID: entry.sessionID})

	case ActionStartSessionUnconditionally:
		// The I/O delegate already called server.AcceptSession directly
		// because it runs on the I/O thread; no outbound entry here.
		b.attach(entry.sessionID)

	case ActionEndSession:
		b.sessions.end(entry.sessionID)
		if !b.sessions.empty() {
			// Other sessions remain open; no state transition.
		} else if b.getState() == StateShutDown {
			b.setState(StateDone)
		} else {
			b.setState(StateAccepting)
		}

	case ActionSendMessageIn:
		if handle, ok := b.sessions.get(entry.sessionID); ok {
			handle.Dispatch(entry.payload)
		}
		// Absent session: benign race with EndSession, silently dropped.
	}
}

func (b *Bridge) attach(sessionID int) {
	if _, err := b.sessions.attach(sessionID, b.agent, b); err != nil {
		contractViolation("agent failed to connect session %d: %v", sessionID, err)
	}
}
