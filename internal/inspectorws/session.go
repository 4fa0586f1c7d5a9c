/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package inspectorws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/microsoft/inspectorbridge/pkg/concurrency"
)

const closeGracePeriod = 2 * time.Second

// session is one front-end WebSocket connection. Between creation and
// resolve it is pending: the connection is upgraded but no frames are read
// until the engine (or the wait-mode fast path) accepts it.
type session struct {
	id     int
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn

	// outbound feeds the write pump. Unbounded so Send never blocks the
	// caller on a slow front-end.
	outbound *concurrency.UnboundedChan[string]

	decision    chan bool
	resolveOnce sync.Once
	closeOnce   sync.Once
}

// newSession derives a per-session context from serverCtx so that closing
// the session (or terminating the server) releases its write pump and
// outbound buffer goroutine.
func newSession(serverCtx context.Context, id int, conn *websocket.Conn) *session {
	ctx, cancel := context.WithCancel(serverCtx)
	return &session{
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		conn:     conn,
		outbound: concurrency.NewUnboundedChan[string](ctx),
		decision: make(chan bool, 1),
	}
}

// resolve records the accept/decline decision. Only the first call counts.
func (sess *session) resolve(accepted bool) {
	sess.resolveOnce.Do(func() {
		sess.decision <- accepted
	})
}

// awaitDecision blocks until the session is accepted or declined. A server
// shutdown before either counts as a decline.
func (sess *session) awaitDecision() bool {
	select {
	case accepted := <-sess.decision:
		return accepted
	case <-sess.ctx.Done():
		return false
	}
}

// enqueue hands a text frame to the write pump.
func (sess *session) enqueue(message string) error {
	select {
	case sess.outbound.In <- message:
		return nil
	case <-sess.ctx.Done():
		return fmt.Errorf("session %d is shutting down", sess.id)
	}
}

// writePump flushes enqueued frames to the connection. It exits on write
// error or session shutdown; a write error also closes the connection, which
// unblocks the read loop.
func (sess *session) writePump(log logr.Logger) {
	for {
		select {
		case message, isOpen := <-sess.outbound.Out:
			if !isOpen {
				return
			}
			if err := sess.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				log.V(1).Info("session write failed", "error", err.Error())
				sess.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-sess.ctx.Done():
			return
		}
	}
}

// close sends a best-effort close frame and closes the connection. Safe to
// call from any goroutine, any number of times.
func (sess *session) close(closeCode int, reason string) {
	sess.closeOnce.Do(func() {
		deadline := time.Now().Add(closeGracePeriod)
		_ = sess.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, reason), deadline)
		_ = sess.conn.Close()
		sess.cancel()
	})
}
