package logger

import (
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionSink(t *testing.T) {
	t.Parallel()

	sessionID := "session-sink-test"
	expectedSessionFilePath := GetSessionLogPath(sessionID)

	logger := New("session-sink-log").WithSessionSink().WithName("session-sink-log")
	log := logger.Logger

	defer ReleaseSessionLog(sessionID)

	require.NoFileExists(t, expectedSessionFilePath)

	log = log.WithValues(SESSION_LOG_STREAM_ID, sessionID)
	log.Info("This is a test log entry", "Key1", "Value1")

	logger.flush()

	require.FileExists(t, expectedSessionFilePath)

	file, fileErr := os.OpenFile(expectedSessionFilePath, os.O_RDONLY, 0)
	require.NoError(t, fileErr)

	contents, readErr := io.ReadAll(file)
	require.NoError(t, readErr)
	defer file.Close()

	require.Contains(t, string(contents), "This is a test log entry")
	require.Contains(t, string(contents), "{\"Key1\": \"Value1\"}")
}

func TestSessionSinkNoSessionID(t *testing.T) {
	t.Parallel()

	sessionID := "session-sink-no-session-id-test"
	expectedSessionFilePath := GetSessionLogPath(sessionID)

	logger := New("session-sink-no-id-log").WithSessionSink().WithName("session-sink-no-id-log")
	log := logger.Logger

	defer ReleaseSessionLog(sessionID)

	require.NoFileExists(t, expectedSessionFilePath)

	log = log.WithValues(SESSION_LOG_STREAM_ID, sessionID, "Key1", "Value1")
	log.Info("This is a session with an id", "Key2", "Value2")
	log.Error(fmt.Errorf("error of some sort"), "This is an error record")

	logger.flush()

	require.FileExists(t, expectedSessionFilePath)

	file, fileErr := os.OpenFile(expectedSessionFilePath, os.O_RDONLY, 0)
	require.NoError(t, fileErr)

	contents, readErr := io.ReadAll(file)
	require.NoError(t, readErr)
	defer file.Close()

	require.Contains(t, string(contents), "info\tsession-sink-no-id-log\tThis is a session with an id\t{\"Key1\": \"Value1\", \"Key2\": \"Value2\"}")
	require.Contains(t, string(contents), "error\tsession-sink-no-id-log\tThis is an error record\t{\"Key1\": \"Value1\", \"error\": \"error of some sort\"}")
}

func TestMain(m *testing.M) {
	previousTempDir := tempDir
	newTempDir, err := os.MkdirTemp(os.TempDir(), "session-sink-test-")
	if err != nil {
		panic(err)
	}
	tempDir = newTempDir
	defer func() { tempDir = previousTempDir }()

	code := m.Run()

	if code == 0 {
		os.RemoveAll(tempDir)
	}

	os.Exit(code)
}
