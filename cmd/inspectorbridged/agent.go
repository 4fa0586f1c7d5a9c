/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/microsoft/inspectorbridge/internal/bridge"
	"github.com/microsoft/inspectorbridge/pkg/concurrency"
	"github.com/microsoft/inspectorbridge/pkg/logger"
)

// loopbackAgent is a stand-in for a real scripting engine. It runs a single
// goroutine emulating the engine thread, and answers every inspector command
// with an empty-result reply so front-ends see a live, if vacuous, target.
type loopbackAgent struct {
	log    logr.Logger
	tasks  *concurrency.UnboundedChan[func()]
	cancel context.CancelFunc
	done   chan struct{}
}

func newLoopbackAgent(log logr.Logger) *loopbackAgent {
	ctx, cancel := context.WithCancel(context.Background())
	a := &loopbackAgent{
		log:    log.WithName("agent"),
		tasks:  concurrency.NewUnboundedChan[func()](ctx),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go a.runEngineThread()
	return a
}

// runEngineThread consumes scheduled tasks one at a time, standing in for the
// engine's foreground task runner.
func (a *loopbackAgent) runEngineThread() {
	defer close(a.done)
	for task := range a.tasks.Out {
		task()
	}
}

func (a *loopbackAgent) shutdown() {
	a.cancel()
	<-a.done
}

func (a *loopbackAgent) Connect(sessionID int, writer bridge.SessionWriter) (bridge.SessionHandle, error) {
	a.log.Info("debugger session connected", "sessionId", sessionID)
	// Tagging with the session log stream id routes a copy of this session's
	// log entries to its own log file. Dispatch logs inbound messages at V(1),
	// so they reach that file only at verbosity 1 and above; outbound replies
	// are not logged.
	sessionLog := a.log.WithValues(logger.SESSION_LOG_STREAM_ID, strconv.Itoa(sessionID), "sessionId", sessionID)
	return &loopbackSession{
		log:       sessionLog,
		sessionID: sessionID,
		writer:    writer,
	}, nil
}

func (a *loopbackAgent) ResumeStartup() {
	a.log.Info("front-end requested startup resume")
}

func (a *loopbackAgent) RunForegroundTask(task func()) {
	select {
	case a.tasks.In <- task:
	case <-a.done:
	}
}

// RequestInterrupt has nothing special to interrupt here: the stub engine
// never runs long native code, so the interrupt path collapses into the
// foreground-task path.
func (a *loopbackAgent) RequestInterrupt(callback func()) {
	a.RunForegroundTask(callback)
}

var _ bridge.Agent = (*loopbackAgent)(nil)

type loopbackSession struct {
	log       logr.Logger
	sessionID int
	writer    bridge.SessionWriter
}

// Dispatch acknowledges each well-formed command with an empty result.
// Events and malformed frames are logged and dropped.
func (s *loopbackSession) Dispatch(payload bridge.Payload) {
	message := payload.UTF8()
	s.log.V(1).Info("inbound protocol message", "message", message)

	var command struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(message), &command); err != nil || command.ID == nil {
		return
	}

	reply := fmt.Sprintf(`{"id":%d,"result":{}}`, *command.ID)
	s.writer.Write(s.sessionID, bridge.NewPayloadFromUTF8(reply))
}

var _ bridge.SessionHandle = (*loopbackSession)(nil)
