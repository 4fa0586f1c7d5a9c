package logger

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/microsoft/inspectorbridge/pkg/osutil"
)

const (
	// IB_LOG_SOCKET names a Unix domain socket that console log output should be
	// written to instead of stderr. Used to pipe bridge logs to a supervising process.
	IB_LOG_SOCKET = "IB_LOG_SOCKET"

	verbosityFlagName      = "verbosity"
	verbosityFlagShortName = "v"
)

type Logger struct {
	logr.Logger
	name        string
	atomicLevel zap.AtomicLevel
	flush       func()
}

// New builds a console logger. Output goes to stderr by default, or to the
// Unix socket named by IB_LOG_SOCKET if that socket can be dialed.
func New(name string) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if osutil.IsWindows() {
		encoderConfig.LineEnding = string(osutil.CRLF())
	}
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	atomicLevel := zap.NewAtomicLevel()

	consoleLog := zapcore.Lock(os.Stderr)
	if logSocket, found := os.LookupEnv(IB_LOG_SOCKET); found {
		dialer := &net.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(context.Background(), "unix", logSocket)
		if err == nil {
			consoleLog = zapcore.AddSync(conn)
		} else {
			fmt.Fprintf(os.Stderr, "logs should have been written to Unix domain socket '%s' but could not connect: %s\n", logSocket, err.Error())
		}
	}

	core := zapcore.NewCore(consoleEncoder, consoleLog, atomicLevel)
	zapLogger := zap.New(core)

	return &Logger{
		Logger:      zapr.NewLogger(zapLogger),
		name:        name,
		atomicLevel: atomicLevel,
		flush:       func() { _ = zapLogger.Sync() },
	}
}

func (l *Logger) WithName(name string) *Logger {
	l.Logger = l.Logger.WithName(name)
	return l
}

// WithSessionSink routes log entries tagged with SESSION_LOG_STREAM_ID to a
// per-session log file in addition to the console.
func (l *Logger) WithSessionSink() *Logger {
	l.Logger = l.Logger.WithSink(newSessionSink(l.atomicLevel, l.Logger.GetSink()))
	return l
}

// WithFilterSink swallows the first error record whose message equals filter.
// The filter disarms after that one match, or after maxLife other error
// records, whichever comes first; later records always pass through.
func (l *Logger) WithFilterSink(filter string, maxLife uint32) *Logger {
	l.Logger = l.Logger.WithSink(newFilterSink(filter, maxLife, l.Logger.GetSink()))
	return l
}

func (l *Logger) SetLevel(level zapcore.Level) {
	l.atomicLevel.SetLevel(level)
}

func (l *Logger) Flush() {
	l.flush()
}

// AddLevelFlag registers a -v/--verbosity flag that controls this logger's level.
func (l *Logger) AddLevelFlag(fs *pflag.FlagSet) {
	levelVal := NewLevelFlagValue(func(level zapcore.Level) {
		l.SetLevel(level)
	})
	fs.VarP(&levelVal, verbosityFlagName, verbosityFlagShortName, "Logging verbosity level (e.g. -v=debug). Can be one of 'debug', 'info', or 'error', or any positive integer corresponding to increasing levels of debug verbosity.")
}
