/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWaitTimeout  = 5 * time.Second
	testPollInterval = 10 * time.Millisecond
)

// fakeServer records every Server call in order and lets tests drive the
// ServerDelegate the bridge hands to the factory.
type fakeServer struct {
	mu       sync.Mutex
	calls    []string
	open     map[int]bool
	bindErr  error
	port     int
	delegate ServerDelegate
}

func newFakeServer(port int) *fakeServer {
	return &fakeServer{port: port, open: map[int]bool{}}
}

func (f *fakeServer) factory() ServerFactory {
	return func(delegate ServerDelegate) Server {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.delegate = delegate
		return f
	}
}

func (f *fakeServer) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeServer) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeServer) countCalls(call string) int {
	n := 0
	for _, c := range f.recorded() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeServer) getDelegate() ServerDelegate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delegate
}

func (f *fakeServer) Start(ctx context.Context, host string, port int) error {
	return f.bindErr
}

func (f *fakeServer) Stop() error {
	f.record("Stop")
	return nil
}

// TerminateConnections reports EndSession for every open session, the way a
// real socket server does when it force-closes its connections.
func (f *fakeServer) TerminateConnections() {
	f.record("TerminateConnections")

	f.mu.Lock()
	openIDs := make([]int, 0, len(f.open))
	for id := range f.open {
		openIDs = append(openIDs, id)
	}
	delegate := f.delegate
	f.mu.Unlock()

	for _, id := range openIDs {
		delegate.EndSession(id)
	}
}

func (f *fakeServer) Send(sessionID int, message string) error {
	f.record(fmt.Sprintf("Send(%d,%s)", sessionID, message))
	return nil
}

func (f *fakeServer) AcceptSession(sessionID int) {
	f.record(fmt.Sprintf("AcceptSession(%d)", sessionID))
	f.mu.Lock()
	f.open[sessionID] = true
	f.mu.Unlock()
}

func (f *fakeServer) DeclineSession(sessionID int) {
	f.record(fmt.Sprintf("DeclineSession(%d)", sessionID))
}

func (f *fakeServer) Port() int {
	return f.port
}

// sessionEnded mirrors what the real server would do when a front-end
// disconnects: forget the session and notify the delegate.
func (f *fakeServer) sessionEnded(sessionID int) {
	f.mu.Lock()
	delete(f.open, sessionID)
	delegate := f.delegate
	f.mu.Unlock()
	delegate.EndSession(sessionID)
}

var _ Server = (*fakeServer)(nil)

// fakeAgent records inbound dispatches per session. Foreground-task and
// interrupt wake-ups are deliberately no-ops: the bridge's own async wake
// path must be sufficient to drive every drain.
type fakeAgent struct {
	mu         sync.Mutex
	dispatched map[int][]string
	resumed    atomic.Int32
	connectErr error
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{dispatched: map[int][]string{}}
}

func (a *fakeAgent) Connect(sessionID int, writer SessionWriter) (SessionHandle, error) {
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	return &fakeEngineSession{agent: a, sessionID: sessionID}, nil
}

func (a *fakeAgent) ResumeStartup()                   { a.resumed.Add(1) }
func (a *fakeAgent) RunForegroundTask(task func())    {}
func (a *fakeAgent) RequestInterrupt(callback func()) {}

func (a *fakeAgent) messagesFor(sessionID int) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.dispatched[sessionID]...)
}

var _ Agent = (*fakeAgent)(nil)

type fakeEngineSession struct {
	agent     *fakeAgent
	sessionID int
}

func (s *fakeEngineSession) Dispatch(payload Payload) {
	s.agent.mu.Lock()
	defer s.agent.mu.Unlock()
	s.agent.dispatched[s.sessionID] = append(s.agent.dispatched[s.sessionID], payload.UTF8())
}

func newTestBridge(t *testing.T, cfg Config) (*Bridge, *fakeServer, *fakeAgent) {
	t.Helper()
	srv := newFakeServer(9230)
	agent := newFakeAgent()
	b := New(cfg, agent, srv.factory(), logr.Discard())
	return b, srv, agent
}

func TestBridgePortBeforeAndAfterStart(t *testing.T) {
	t.Parallel()

	b, srv, _ := newTestBridge(t, Config{Host: "127.0.0.1", Port: 9229})
	assert.Equal(t, -1, b.Port())
	assert.False(t, b.IsStarted())

	require.True(t, b.Start())
	defer b.Stop()

	assert.True(t, b.IsStarted())
	assert.Equal(t, srv.port, b.Port())
}

func TestBridgeStartBindFailure(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(0)
	srv.bindErr = errors.New("address already in use")
	b := New(Config{Host: "127.0.0.1", Port: 9229}, newFakeAgent(), srv.factory(), logr.Discard())

	assert.False(t, b.Start())
	assert.Equal(t, StateError, b.getState())
	assert.Equal(t, -1, b.Port())
}

func TestBridgePlainSession(t *testing.T) {
	t.Parallel()

	b, srv, agent := newTestBridge(t, Config{Host: "127.0.0.1", Port: 0})
	require.True(t, b.Start())
	targetID := b.GetTargetIds()[0]

	srv.getDelegate().StartSession(7, targetID)
	require.Eventually(t, func() bool {
		return srv.countCalls("AcceptSession(7)") == 1
	}, testWaitTimeout, testPollInterval, "session 7 was never accepted")

	srv.getDelegate().MessageReceived(7, `{"id":1}`)
	require.Eventually(t, func() bool {
		messages := agent.messagesFor(7)
		return len(messages) == 1 && messages[0] == `{"id":1}`
	}, testWaitTimeout, testPollInterval, "message was never dispatched to the engine")

	srv.sessionEnded(7)

	b.Stop()
	assert.Equal(t, StateDone, b.getState())
	assert.True(t, b.sessions.empty())
}

func TestBridgeWaitForConnect(t *testing.T) {
	t.Parallel()

	b, srv, agent := newTestBridge(t, Config{Host: "127.0.0.1", Port: 0, WaitForConnect: true})

	startResult := make(chan bool, 1)
	go func() { startResult <- b.Start() }()

	// Start must stay parked until the resume command arrives.
	select {
	case <-startResult:
		t.Fatal("Start returned before the resume trigger was seen")
	case <-time.After(100 * time.Millisecond):
	}

	require.Eventually(t, func() bool {
		return srv.getDelegate() != nil
	}, testWaitTimeout, testPollInterval, "server factory was never invoked")

	targetID := b.GetTargetIds()[0]
	srv.getDelegate().StartSession(3, targetID)

	// Wait mode accepts on the I/O thread directly, before the engine runs.
	require.Eventually(t, func() bool {
		return srv.countCalls("AcceptSession(3)") == 1
	}, testWaitTimeout, testPollInterval, "wait-mode session was not accepted directly")

	srv.getDelegate().MessageReceived(3, `{"id":1,"method":"Runtime.runIfWaitingForDebugger"}`)

	select {
	case ok := <-startResult:
		require.True(t, ok)
	case <-time.After(testWaitTimeout):
		t.Fatal("Start did not return after the resume trigger")
	}

	assert.Equal(t, int32(1), agent.resumed.Load())

	// The direct accept must be the only one: no second AcceptSession may be
	// written outbound for an unconditional start.
	require.Eventually(t, func() bool {
		return len(agent.messagesFor(3)) == 1
	}, testWaitTimeout, testPollInterval, "resume message was not dispatched")
	assert.Equal(t, 1, srv.countCalls("AcceptSession(3)"))

	srv.sessionEnded(3)
	b.Stop()
}

func TestBridgeOutboundOrderingAcrossSessions(t *testing.T) {
	t.Parallel()

	b, srv, _ := newTestBridge(t, Config{Host: "127.0.0.1", Port: 0})
	require.True(t, b.Start())
	targetID := b.GetTargetIds()[0]

	srv.getDelegate().StartSession(1, targetID)
	srv.getDelegate().StartSession(2, targetID)
	require.Eventually(t, func() bool {
		return srv.countCalls("AcceptSession(1)") == 1 && srv.countCalls("AcceptSession(2)") == 1
	}, testWaitTimeout, testPollInterval, "sessions were never accepted")

	b.Write(1, NewPayloadFromUTF8("A"))
	b.Write(2, NewPayloadFromUTF8("B"))
	b.Write(1, NewPayloadFromUTF8("C"))

	require.Eventually(t, func() bool {
		return srv.countCalls("Send(1,C)") == 1
	}, testWaitTimeout, testPollInterval, "last outbound message never reached the server")

	var sends []string
	for _, call := range srv.recorded() {
		if call == "Send(1,A)" || call == "Send(2,B)" || call == "Send(1,C)" {
			sends = append(sends, call)
		}
	}
	assert.Equal(t, []string{"Send(1,A)", "Send(2,B)", "Send(1,C)"}, sends)

	srv.sessionEnded(1)
	srv.sessionEnded(2)
	b.Stop()
}

func TestBridgeStopDuringActiveSession(t *testing.T) {
	t.Parallel()

	b, srv, _ := newTestBridge(t, Config{Host: "127.0.0.1", Port: 0})
	require.True(t, b.Start())

	srv.getDelegate().StartSession(5, b.GetTargetIds()[0])
	require.Eventually(t, func() bool {
		return srv.countCalls("AcceptSession(5)") == 1
	}, testWaitTimeout, testPollInterval, "session was never accepted")

	b.Stop()

	// Kill must terminate connections before stopping the server, and the
	// terminal EndSession must have been flushed.
	calls := srv.recorded()
	termIdx, stopIdx := -1, -1
	for i, call := range calls {
		switch call {
		case "TerminateConnections":
			termIdx = i
		case "Stop":
			stopIdx = i
		}
	}
	require.GreaterOrEqual(t, termIdx, 0, "TerminateConnections was never called")
	require.GreaterOrEqual(t, stopIdx, 0, "Stop was never called")
	assert.Less(t, termIdx, stopIdx)

	assert.Equal(t, StateDone, b.getState())
	assert.True(t, b.sessions.empty())
}

func TestBridgeWaitForDisconnect(t *testing.T) {
	t.Parallel()

	t.Run("no sessions", func(t *testing.T) {
		t.Parallel()

		b, _, _ := newTestBridge(t, Config{Host: "127.0.0.1", Port: 0})
		require.True(t, b.Start())

		b.WaitForDisconnect()
		assert.Equal(t, StateDone, b.getState())

		b.Stop()
	})

	t.Run("with open session", func(t *testing.T) {
		t.Parallel()

		b, srv, _ := newTestBridge(t, Config{Host: "127.0.0.1", Port: 0})
		require.True(t, b.Start())

		srv.getDelegate().StartSession(1, b.GetTargetIds()[0])
		require.Eventually(t, func() bool {
			return srv.countCalls("AcceptSession(1)") == 1
		}, testWaitTimeout, testPollInterval, "session was never accepted")

		go func() {
			time.Sleep(50 * time.Millisecond)
			srv.sessionEnded(1)
		}()

		b.WaitForDisconnect()
		assert.Equal(t, StateDone, b.getState())
		assert.Equal(t, 1, srv.countCalls("Stop"), "WaitForDisconnect must write a Stop outbound")

		b.Stop()
	})
}

func TestBridgeUnknownSessionSendIsDropped(t *testing.T) {
	t.Parallel()

	b, srv, agent := newTestBridge(t, Config{Host: "127.0.0.1", Port: 0})
	require.True(t, b.Start())
	targetID := b.GetTargetIds()[0]

	srv.getDelegate().StartSession(8, targetID)
	require.Eventually(t, func() bool {
		return srv.countCalls("AcceptSession(8)") == 1
	}, testWaitTimeout, testPollInterval, "session was never accepted")

	// Session 99 does not exist. The queue is a single FIFO, so once the
	// sentinel message on session 8 has been dispatched, the message for 99
	// has already been processed (and dropped).
	srv.getDelegate().MessageReceived(99, "x")
	srv.getDelegate().MessageReceived(8, "sentinel")

	require.Eventually(t, func() bool {
		messages := agent.messagesFor(8)
		return len(messages) == 1 && messages[0] == "sentinel"
	}, testWaitTimeout, testPollInterval, "sentinel message was never dispatched")
	assert.Empty(t, agent.messagesFor(99))

	srv.sessionEnded(8)
	b.Stop()
}

func TestBridgeMessageAfterEndSessionIsDropped(t *testing.T) {
	t.Parallel()

	b, srv, agent := newTestBridge(t, Config{Host: "127.0.0.1", Port: 0})
	require.True(t, b.Start())
	targetID := b.GetTargetIds()[0]

	srv.getDelegate().StartSession(4, targetID)
	srv.getDelegate().StartSession(6, targetID)
	require.Eventually(t, func() bool {
		return srv.countCalls("AcceptSession(4)") == 1 && srv.countCalls("AcceptSession(6)") == 1
	}, testWaitTimeout, testPollInterval, "sessions were never accepted")

	srv.sessionEnded(4)
	srv.getDelegate().MessageReceived(4, "late")
	srv.getDelegate().MessageReceived(6, "sentinel")

	require.Eventually(t, func() bool {
		return len(agent.messagesFor(6)) == 1
	}, testWaitTimeout, testPollInterval, "sentinel message was never dispatched")
	assert.Empty(t, agent.messagesFor(4))

	srv.sessionEnded(6)
	b.Stop()
}

func TestBridgeTargetIDStable(t *testing.T) {
	t.Parallel()

	b, _, _ := newTestBridge(t, Config{})
	ids := b.GetTargetIds()
	require.Len(t, ids, 1)
	assert.Equal(t, ids, b.GetTargetIds())
}

func TestWaitForFrontendEventWithoutSessions(t *testing.T) {
	t.Parallel()

	b, _, _ := newTestBridge(t, Config{})

	done := make(chan bool, 1)
	go func() { done <- b.WaitForFrontendEvent() }()

	select {
	case stayPaused := <-done:
		assert.False(t, stayPaused)
	case <-time.After(testWaitTimeout):
		t.Fatal("WaitForFrontendEvent blocked with an empty session table")
	}
}
