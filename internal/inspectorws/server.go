/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package inspectorws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/microsoft/inspectorbridge/internal/bridge"
	"github.com/microsoft/inspectorbridge/pkg/concurrency"
	"github.com/microsoft/inspectorbridge/pkg/syncmap"
)

const invalidPort = -1

// Server is a WebSocket inspector socket server. It accepts debugger
// front-end connections, multiplexes them into integer-identified sessions,
// and reports session lifecycle events and inbound frames to a
// bridge.ServerDelegate. It implements bridge.Server.
type Server struct {
	delegate bridge.ServerDelegate
	log      logr.Logger

	listener net.Listener
	port     atomic.Int32

	lifetimeCtx context.Context
	cancel      context.CancelFunc

	upgrader websocket.Upgrader

	nextSessionID atomic.Int64
	sessions      syncmap.Map[int, *session]

	// sessionWG counts running upgrade handlers, pending or accepted, so
	// TerminateConnections can wait until every terminal EndSession has been
	// reported.
	sessionWG sync.WaitGroup

	stopJob *concurrency.OneTimeJob[error]
}

// NewServer creates a server that reports to delegate. The server does not
// listen until Start is called.
func NewServer(delegate bridge.ServerDelegate, log logr.Logger) *Server {
	s := &Server{
		delegate: delegate,
		log:      log.WithName("inspectorws"),
		stopJob:  concurrency.NewOneTimeJob[error](),
	}
	s.port.Store(invalidPort)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// Inspector front-ends (DevTools, IDEs) do not send a matching Origin.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s
}

// Start binds host:port and begins serving. Binding happens synchronously so
// a bind failure is returned to the caller; serving continues on a background
// goroutine until Stop. ctx bounds the lifetime of all session goroutines.
func (s *Server) Start(ctx context.Context, host string, port int) error {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return fmt.Errorf("inspector server could not bind %s:%d: %w", host, port, err)
	}

	s.listener = listener
	s.port.Store(int32(listener.Addr().(*net.TCPAddr).Port))
	s.lifetimeCtx, s.cancel = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/json", s.handleJSONList)
	mux.HandleFunc("/json/list", s.handleJSONList)
	mux.HandleFunc("/json/version", s.handleJSONVersion)
	mux.HandleFunc("/", s.handleUpgrade)

	go func() {
		serveErr := http.Serve(listener, mux)
		// http.Serve always returns non-nil; after Stop closed the listener
		// this is the expected "use of closed network connection".
		s.log.V(1).Info("inspector server loop exited", "reason", serveErr.Error())
	}()

	s.log.Info("inspector server listening", "host", host, "port", s.Port())
	return nil
}

// Port returns the actual bound port, or -1 before Start succeeds.
func (s *Server) Port() int {
	return int(s.port.Load())
}

// Stop closes the listener and stops accepting new sessions. Live sessions
// are left running; use TerminateConnections to end them. Safe to call more
// than once: later callers share the first call's result.
func (s *Server) Stop() error {
	if s.stopJob.TryTake() {
		var err error
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.stopJob.Complete(err)
		return err
	}
	return s.stopJob.WaitResult()
}

// TerminateConnections closes every live session connection and waits for
// their read loops to exit, so every terminal EndSession has been reported to
// the delegate by the time this returns.
func (s *Server) TerminateConnections() {
	if s.cancel != nil {
		s.cancel()
	}
	s.sessions.Range(func(_ int, sess *session) bool {
		sess.close(websocket.CloseGoingAway, "inspector server shutting down")
		return true
	})
	s.sessionWG.Wait()
}

// Send writes a text frame to sessionID. It never blocks on the peer: frames
// are handed to the session's write pump and flushed asynchronously.
func (s *Server) Send(sessionID int, message string) error {
	sess, found := s.sessions.Load(sessionID)
	if !found {
		return fmt.Errorf("no session with id %d", sessionID)
	}
	return sess.enqueue(message)
}

// AcceptSession resolves the pending handshake for sessionID, letting its
// read loop and write pump start. Unknown ids are ignored.
func (s *Server) AcceptSession(sessionID int) {
	if sess, found := s.sessions.Load(sessionID); found {
		sess.resolve(true)
	}
}

// DeclineSession resolves the pending handshake for sessionID by closing the
// connection. Unknown ids are ignored.
func (s *Server) DeclineSession(sessionID int) {
	if sess, found := s.sessions.Load(sessionID); found {
		sess.resolve(false)
	}
}

// handleUpgrade serves GET /<targetID>, upgrading to WebSocket and running
// the session until the socket closes.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	targetID := strings.TrimPrefix(r.URL.Path, "/")
	if !s.knownTarget(targetID) {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		s.log.V(1).Info("websocket upgrade failed", "error", err.Error())
		return
	}

	sessionID := int(s.nextSessionID.Add(1))
	sess := newSession(s.lifetimeCtx, sessionID, conn)
	s.sessions.Store(sessionID, sess)
	s.sessionWG.Add(1)
	defer s.sessionWG.Done()

	log := s.log.WithValues("sessionId", sessionID, "remote", conn.RemoteAddr().String())
	log.Info("session starting")

	// The delegate may call AcceptSession synchronously from inside
	// StartSession; sess.decision is buffered so that cannot deadlock.
	s.delegate.StartSession(sessionID, targetID)

	accepted := sess.awaitDecision()
	if !accepted {
		log.Info("session declined")
		s.sessions.Delete(sessionID)
		sess.close(websocket.ClosePolicyViolation, "session declined")
		return
	}

	go sess.writePump(log)
	s.readLoop(sess, log)

	s.sessions.Delete(sessionID)
	sess.close(websocket.CloseNormalClosure, "")
	s.delegate.EndSession(sessionID)
	log.Info("session ended")
}

// readLoop forwards inbound text frames to the delegate until the connection
// closes or the session is terminated.
func (s *Server) readLoop(sess *session, log logr.Logger) {
	for {
		messageType, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.V(1).Info("session read ended", "error", err.Error())
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.delegate.MessageReceived(sess.id, string(data))
	}
}

func (s *Server) knownTarget(targetID string) bool {
	for _, id := range s.delegate.GetTargetIds() {
		if id == targetID {
			return true
		}
	}
	return false
}

var _ bridge.Server = (*Server)(nil)

// Factory adapts NewServer to the bridge.ServerFactory shape.
func Factory(log logr.Logger) bridge.ServerFactory {
	return func(delegate bridge.ServerDelegate) bridge.Server {
		return NewServer(delegate, log)
	}
}
