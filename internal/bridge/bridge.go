package bridge

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/microsoft/inspectorbridge/pkg/concurrency"
	"github.com/microsoft/inspectorbridge/pkg/container"
)

// Config is the bridge's construction-time configuration.
type Config struct {
	Host string
	Port int

	// ScriptPath, if set, is resolved to an absolute path and exposed as the
	// target's URL; its base name becomes the target's title.
	ScriptPath string

	// WaitForConnect blocks Start until a front-end issues the resume command.
	WaitForConnect bool
}

// Bridge is the debugger-transport bridge. One instance per engine.
type Bridge struct {
	cfg       Config
	targetID  string
	agent     Agent
	newServer ServerFactory
	log       logr.Logger

	qp *queuePair

	stateMu sync.Mutex
	state   State
	port    int

	sessions    *sessionTable
	dispatching atomic.Bool
	drainBuf    *container.RingBuffer[incomingEntry]

	startupSem  *concurrency.Semaphore
	startupOnce sync.Once

	ioWake       *concurrency.AutoResetEvent
	ioThreadDone chan struct{}

	engineWake     *concurrency.AutoResetEvent
	engineWakeStop chan struct{}
	engineWakeDone chan struct{}

	server  Server
	started atomic.Bool
}

// New constructs a bridge. The I/O thread is not started until Start is called.
func New(cfg Config, agent Agent, serverFactory ServerFactory, log logr.Logger) *Bridge {
	b := &Bridge{
		cfg:            cfg,
		targetID:       newTargetID(),
		agent:          agent,
		newServer:      serverFactory,
		log:            log.WithName("bridge"),
		qp:             newQueuePair(),
		state:          StateNew,
		port:           -1,
		sessions:       newSessionTable(),
		drainBuf:       container.NewRingBuffer[incomingEntry](),
		startupSem:     concurrency.NewSemaphore(),
		ioWake:         concurrency.NewAutoResetEvent(false),
		ioThreadDone:   make(chan struct{}),
		engineWake:     concurrency.NewAutoResetEvent(false),
		engineWakeStop: make(chan struct{}),
		engineWakeDone: make(chan struct{}),
	}
	return b
}

// GetTargetIds always returns exactly one id: the target generated at construction.
func (b *Bridge) GetTargetIds() []string {
	return []string{b.targetID}
}

// IsStarted reports whether Start has been called on this bridge.
func (b *Bridge) IsStarted() bool {
	return b.started.Load()
}

// Port returns the actual bound port after Start returns true, or -1 before.
func (b *Bridge) Port() int {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.port
}

func (b *Bridge) setPort(port int) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.port = port
}

func (b *Bridge) getState() State {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.state
}

func (b *Bridge) setState(s State) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.state = s
}

// Start spawns the I/O thread and parks until it either binds successfully or
// fails. It returns false exactly when the bridge has entered StateError.
func (b *Bridge) Start() bool {
	if !b.started.CompareAndSwap(false, true) {
		contractViolation("Start called more than once")
	}

	go b.runEngineWakeLoop()
	go b.runIOThread()

	waiter := b.startupSem.Wait()
	<-waiter.Chan

	if b.getState() == StateError {
		return false
	}

	if b.cfg.WaitForConnect {
		// The engine has not begun pumping its own event loop yet (it was
		// parked right here), so drive the drain once ourselves to process
		// whatever StartSessionUnconditionally/SendMessage entries arrived
		// while we waited for the resume trigger.
		b.DispatchMessages()
	}

	return true
}

// postStartupOnce posts the startup semaphore at most once across the
// bridge's lifetime, regardless of which path (bind failure, immediate
// ready, or resume trigger) reaches it first.
func (b *Bridge) postStartupOnce() {
	b.startupOnce.Do(func() {
		b.startupSem.Signal()
	})
}

// Stop enqueues Kill, waits for the I/O thread to process it and exit, then
// flushes any terminal EndSession entries.
func (b *Bridge) Stop() {
	b.enqueueOutgoing(outgoingEntry{action: ActionKill})

	<-b.ioThreadDone

	close(b.engineWakeStop)
	<-b.engineWakeDone

	b.setState(StateShutDown)
	b.DispatchMessages()
}

// WaitForDisconnect blocks until every session has ended and the bridge has
// reached StateDone.
func (b *Bridge) WaitForDisconnect() {
	if b.sessions.empty() {
		b.setState(StateDone)
		return
	}

	b.enqueueOutgoing(outgoingEntry{action: ActionStop})
	b.setState(StateShutDown)

	for b.WaitForFrontendEvent() {
		b.DispatchMessages()
	}
}

// WaitForFrontendEvent is called by the engine on natural pause points. It
// returns false immediately ("resume") if no sessions are attached.
// Otherwise it clears the dispatching guard (permitting reentrant drains
// while paused) and blocks until either queue has activity.
func (b *Bridge) WaitForFrontendEvent() bool {
	if b.sessions.empty() {
		return false
	}

	b.dispatching.Store(false)
	b.qp.waitForActivity()
	return true
}

// Write enqueues an outbound message for sessionID. This is the API a
// per-session SessionHandle uses to emit outbound traffic; Bridge implements
// SessionWriter via this method.
func (b *Bridge) Write(sessionID int, payload Payload) {
	b.enqueueOutgoing(outgoingEntry{action: ActionSendMessageOut, sessionID: sessionID, payload: payload})
}

// enqueueOutgoing appends to the outgoing queue and signals the I/O wake-up
// unconditionally. Unconditional signalling (rather than only on
// was_empty) is safe because AutoResetEvent coalesces bursts and the I/O
// drain loop always swaps-until-empty; it trades one redundant wake for
// simplicity.
func (b *Bridge) enqueueOutgoing(e outgoingEntry) {
	b.qp.appendOutgoing(e)
	b.ioWake.Set()
}

// PostIncomingMessage converts a UTF-8 payload to UTF-16, appends it to the
// incoming queue, and — if the queue was empty — fires all three engine-side
// wake-ups. The reentry guard on DispatchMessages makes redundant wake-ups
// harmless; whichever of the three paths runs first drains the queue.
func (b *Bridge) PostIncomingMessage(action IncomingAction, sessionID int, message string) {
	payload := NewPayloadFromUTF8(message)
	wasEmpty := b.qp.appendIncoming(incomingEntry{action: action, sessionID: sessionID, payload: payload})

	if wasEmpty {
		if b.agent != nil {
			b.agent.RunForegroundTask(func() { b.DispatchMessages() })
			b.agent.RequestInterrupt(func() { b.DispatchMessages() })
		}
		b.engineWake.Set()
	}
}

// runEngineWakeLoop stands in for the engine's own async-handle callback: a
// real embedder instead wires its event loop directly to PostIncomingMessage's
// foreground-task/interrupt hooks and never needs this goroutine.
func (b *Bridge) runEngineWakeLoop() {
	defer close(b.engineWakeDone)
	for {
		select {
		case <-b.engineWake.Wait():
			b.DispatchMessages()
		case <-b.engineWakeStop:
			return
		}
	}
}

// resolveScriptPath resolves cfg.ScriptPath to an absolute path, or returns
// "" when no script path was configured.
func (b *Bridge) resolveScriptPath() string {
	if b.cfg.ScriptPath == "" {
		return ""
	}
	abs, err := filepath.Abs(b.cfg.ScriptPath)
	if err != nil {
		return b.cfg.ScriptPath
	}
	return abs
}
