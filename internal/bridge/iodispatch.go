package bridge

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// runIOThread is the I/O thread's startup sequence and event loop.
func (b *Bridge) runIOThread() {
	defer close(b.ioThreadDone)

	resolvedPath := b.resolveScriptPath()

	delegate := &bridgeDelegate{
		bridge:     b,
		targetID:   b.targetID,
		scriptPath: resolvedPath,
		scriptName: scriptNameOf(b.cfg.ScriptPath),
	}
	delegate.waiting.Store(b.cfg.WaitForConnect)

	server := b.newServer(delegate)

	if err := server.Start(context.Background(), b.cfg.Host, b.cfg.Port); err != nil {
		b.log.Error(err, "socket server failed to bind")
		b.setState(StateError)
		b.postStartupOnce()
		return
	}

	b.server = server
	b.setPort(server.Port())
	b.setState(StateAccepting)

	if !b.cfg.WaitForConnect {
		b.postStartupOnce()
	}

	for {
		<-b.ioWake.Wait()
		if b.drainOutgoing() {
			return
		}
	}
}

// drainOutgoing swaps the outgoing queue until it is empty, translating each
// entry into a server call. It reports whether Kill was processed, in which
// case the I/O thread's event loop must exit.
func (b *Bridge) drainOutgoing() (shouldExit bool) {
	for {
		batch := b.qp.swapOutgoing()
		if batch.Empty() {
			return shouldExit
		}

		for {
			entry, ok := batch.Pop()
			if !ok {
				break
			}

			switch entry.action {
			case ActionKill:
				b.server.TerminateConnections()
				_ = b.server.Stop()
				shouldExit = true
			case ActionStop:
				_ = b.server.Stop()
			case ActionSendMessageOut:
				_ = b.server.Send(entry.sessionID, entry.payload.UTF8())
			case ActionAcceptSession:
				b.server.AcceptSession(entry.sessionID)
			case ActionDeclineSession:
				b.server.DeclineSession(entry.sessionID)
			}
		}
	}
}

func scriptNameOf(scriptPath string) string {
	if scriptPath == "" {
		return ""
	}
	return filepath.Base(scriptPath)
}

// resumeTrigger is the literal substring (with surrounding quotes) that, in
// wait-for-connect mode, ends the wait. This match is textual, not
// JSON-aware: a message containing the phrase inside an unrelated string
// literal would also resume. That is a known, accepted limitation, preserved
// here rather than "fixed" with JSON parsing the bridge otherwise never does.
const resumeTrigger = `"Runtime.runIfWaitingForDebugger"`

// bridgeDelegate implements ServerDelegate, translating server callbacks
// (which run on the I/O thread) into incoming-queue entries via
// PostIncomingMessage.
type bridgeDelegate struct {
	bridge     *Bridge
	targetID   string
	scriptPath string
	scriptName string
	waiting    atomic.Bool
}

func (d *bridgeDelegate) StartSession(sessionID int, targetID string) {
	if d.waiting.Load() {
		// Accept directly so the socket can receive protocol frames without
		// the engine needing to round-trip first.
		d.bridge.server.AcceptSession(sessionID)
		d.bridge.PostIncomingMessage(ActionStartSessionUnconditionally, sessionID, "")
		return
	}
	d.bridge.PostIncomingMessage(ActionStartSession, sessionID, "")
}

func (d *bridgeDelegate) MessageReceived(sessionID int, message string) {
	if d.waiting.Load() && strings.Contains(message, resumeTrigger) {
		d.waiting.Store(false)
		d.bridge.agent.ResumeStartup()
		d.bridge.postStartupOnce()
	}
	d.bridge.PostIncomingMessage(ActionSendMessageIn, sessionID, message)
}

func (d *bridgeDelegate) EndSession(sessionID int) {
	d.bridge.PostIncomingMessage(ActionEndSession, sessionID, "")
}

func (d *bridgeDelegate) GetTargetIds() []string {
	return []string{d.targetID}
}

func (d *bridgeDelegate) GetTargetTitle(targetID string) string {
	if d.scriptName != "" {
		return d.scriptName
	}
	return humanReadableProcessName()
}

func (d *bridgeDelegate) GetTargetUrl(targetID string) string {
	if d.scriptPath == "" {
		return ""
	}
	return "file://" + d.scriptPath
}

var _ ServerDelegate = (*bridgeDelegate)(nil)
