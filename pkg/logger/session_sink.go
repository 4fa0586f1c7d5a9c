/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	stdslices "slices"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/microsoft/inspectorbridge/pkg/osutil"
)

const (
	// SESSION_LOG_STREAM_ID acts as a special key for any logger that has a session sink
	// enabled. If the first argument to WithValues is this key, the second argument is
	// treated as a debugger session id. Neither argument is included in the final log
	// entries, but the session sink tracks the id and routes a copy of the entry to a
	// separate log file named session-<id>.log.
	SESSION_LOG_STREAM_ID = "session_log_stream_id"
)

var (
	sessionLoggerLock     = &sync.Mutex{}
	sessionLoggerDisabled = &atomic.Bool{}
	sessionSinks          = map[string]*sessionFileSink{}
	tempDir               = os.TempDir()
)

type sessionFileSink struct {
	file   *os.File
	logger logr.Logger
	flush  func()
}

func GetSessionLogPath(sessionID string) string {
	if !osutil.HasOnlyValidFilenameChars(sessionID) {
		return ""
	}
	return filepath.Join(tempDir, fmt.Sprintf("session-%s.log", sessionID))
}

func ReleaseSessionLog(sessionID string) {
	sessionLoggerLock.Lock()
	defer sessionLoggerLock.Unlock()

	if sink, found := sessionSinks[sessionID]; found {
		sink.flush()
		_ = sink.file.Close()
		delete(sessionSinks, sessionID)
	}
}

func ReleaseAllSessionLogs() {
	sessionLoggerLock.Lock()
	defer sessionLoggerLock.Unlock()

	sessionLoggerDisabled.Store(true)

	wg := &sync.WaitGroup{}
	wg.Add(len(sessionSinks))

	for sessionID, sink := range sessionSinks {
		go func(sessionID string, sink *sessionFileSink) {
			defer wg.Done()
			sink.flush()
			_ = sink.file.Close()
		}(sessionID, sink)
	}

	sessionSinks = map[string]*sessionFileSink{}

	wg.Wait()
}

type sessionSink struct {
	loggerName  string
	sessionID   string
	values      []any
	atomicLevel zap.AtomicLevel
	innerSink   logr.LogSink
}

func newSessionSink(atomicLevel zap.AtomicLevel, innerSink logr.LogSink) *sessionSink {
	sink := &sessionSink{
		atomicLevel: zap.NewAtomicLevel(),
		innerSink:   innerSink,
	}
	sink.atomicLevel.SetLevel(atomicLevel.Level())

	return sink
}

func (s *sessionSink) Flush() {
	sessionLoggerLock.Lock()
	defer sessionLoggerLock.Unlock()

	wg := &sync.WaitGroup{}
	wg.Add(len(sessionSinks))

	for _, sink := range sessionSinks {
		go func(sfs *sessionFileSink) {
			defer wg.Done()
			sfs.flush()
		}(sink)
	}

	wg.Wait()
}

// Enabled implements logr.LogSink.
func (s *sessionSink) Enabled(level int) bool {
	return s.innerSink.Enabled(level)
}

// Error implements logr.LogSink.
func (s *sessionSink) Error(err error, msg string, keysAndValues ...any) {
	s.innerSink.Error(err, msg, keysAndValues...)
	s.writeSessionError(s.sessionID, err, msg, keysAndValues...)
}

// Info implements logr.LogSink.
func (s *sessionSink) Info(level int, msg string, keysAndValues ...any) {
	s.innerSink.Info(level, msg, keysAndValues...)
	s.writeSessionInfo(s.sessionID, level, msg, keysAndValues...)
}

// Init implements logr.LogSink.
func (s *sessionSink) Init(info logr.RuntimeInfo) {
	s.innerSink.Init(info)
}

// WithName implements logr.LogSink.
func (s *sessionSink) WithName(name string) logr.LogSink {
	if s.loggerName != "" {
		name = s.loggerName + "." + name
	}

	newSink := &sessionSink{
		loggerName:  name,
		sessionID:   s.sessionID,
		values:      s.values,
		atomicLevel: zap.NewAtomicLevel(),
		innerSink:   s.innerSink.WithName(name),
	}
	newSink.atomicLevel.SetLevel(s.atomicLevel.Level())

	return newSink
}

// WithValues implements logr.LogSink.
func (s *sessionSink) WithValues(keysAndValues ...any) logr.LogSink {
	sessionID := s.sessionID
	if len(keysAndValues) >= 2 && keysAndValues[0] == SESSION_LOG_STREAM_ID {
		sessionID = keysAndValues[1].(string)
		keysAndValues = keysAndValues[2:]
	}

	newSink := sessionSink{
		loggerName:  s.loggerName,
		sessionID:   sessionID,
		atomicLevel: zap.NewAtomicLevel(),
		innerSink:   s.innerSink.WithValues(keysAndValues...),
	}
	newSink.atomicLevel.SetLevel(s.atomicLevel.Level())
	values := stdslices.Clone(s.values)
	values = append(values, keysAndValues...)
	newSink.values = values

	return &newSink
}

func (s *sessionSink) writeSessionError(sessionID string, err error, msg string, keysAndValues ...any) {
	sink := s.getSink(sessionID)
	if sink != nil {
		sink.logger.WithValues(s.values...).GetSink().Error(err, msg, keysAndValues...)
	}
}

func (s *sessionSink) writeSessionInfo(sessionID string, level int, msg string, keysAndValues ...any) {
	sink := s.getSink(sessionID)
	if sink != nil {
		sink.logger.WithValues(s.values...).GetSink().Info(level, msg, keysAndValues...)
	}
}

func (s *sessionSink) getSink(sessionID string) *sessionFileSink {
	if sessionID == "" {
		return nil
	}

	if sessionLoggerDisabled.Load() {
		return nil
	}

	sessionLoggerLock.Lock()
	defer sessionLoggerLock.Unlock()

	if sessionLoggerDisabled.Load() {
		return nil
	}

	sink, found := sessionSinks[sessionID]
	var sinkErr error
	if !found {
		sink, sinkErr = s.newSessionFileSink(sessionID)
		if sinkErr == nil {
			sessionSinks[sessionID] = sink
		}
	}

	return sink
}

func (s *sessionSink) newSessionFileSink(sessionID string) (*sessionFileSink, error) {
	file, err := os.OpenFile(GetSessionLogPath(sessionID), os.O_RDWR|os.O_CREATE|os.O_APPEND, osutil.PrivateFileMode)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if osutil.IsWindows() {
		encoderConfig.LineEnding = string(osutil.CRLF())
	}
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	zapLogger := zap.New(zapcore.NewCore(consoleEncoder, zapcore.Lock(file), s.atomicLevel))

	return &sessionFileSink{
		file:   file,
		logger: zapr.NewLogger(zapLogger).WithName(s.loggerName),
		flush:  func() { _ = zapLogger.Sync() },
	}, nil
}

var _ logr.LogSink = (*sessionSink)(nil)
