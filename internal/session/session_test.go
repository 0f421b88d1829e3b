package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chunklog/internal/capture"
)

func TestNew(t *testing.T) {
	s := New([]string{"make", "test"}, "build.log")

	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	require.Equal(t, "make test", s.CommandLine())
	require.Equal(t, "build.log", s.Log)
	require.False(t, s.Completed)
	require.Zero(t, s.Duration())
	require.NotEqual(t, s.ID, New(nil, "").ID)
}

func TestSidecarPath(t *testing.T) {
	require.Equal(t, "/tmp/run.log.session.yaml", SidecarPath("/tmp/run.log"))
}

func TestComplete(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	res := &capture.Result{
		PID:      123,
		Start:    start,
		End:      start.Add(1500 * time.Millisecond),
		ExitCode: 2,
		Chunks:   7,
		Bytes:    300,
	}

	s := New([]string{"false"}, "x.log")
	s.Complete(res, &capture.ExitError{Code: 2})

	require.True(t, s.Completed)
	require.Equal(t, 123, s.PID)
	require.Equal(t, 2, s.ExitCode)
	require.Equal(t, "exit status 2", s.Error)
	require.Equal(t, 7, s.Chunks)
	require.Equal(t, 300, s.Bytes)
	require.Equal(t, 1500*time.Millisecond, s.Duration())
}

func TestComplete_SpawnError(t *testing.T) {
	s := New([]string{"missing"}, "x.log")
	s.Complete(&capture.Result{}, &capture.SpawnError{Command: "missing", Err: errors.New("not found")})

	require.Equal(t, -1, s.ExitCode)
	require.Equal(t, "failed to start missing: not found", s.Error)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.log")

	s := New([]string{"sh", "-c", "echo hi"}, logPath)
	s.Complete(&capture.Result{PID: 9, Start: s.StartTime, End: s.StartTime.Add(time.Second), Signal: "killed"}, &capture.SignalError{Signal: "killed"})
	require.NoError(t, s.Save(SidecarPath(logPath)))

	data, err := os.ReadFile(SidecarPath(logPath))
	require.NoError(t, err)
	require.Contains(t, string(data), "signal: killed")

	loaded, err := LoadForLog(logPath)
	require.NoError(t, err)
	require.Equal(t, s.ID, loaded.ID)
	require.Equal(t, s.Command, loaded.Command)
	require.Equal(t, "killed", loaded.Signal)
	require.True(t, loaded.StartTime.Equal(s.StartTime))
	require.Equal(t, time.Second, loaded.Duration())
}

func TestLoadForLog_Missing(t *testing.T) {
	s, err := LoadForLog(filepath.Join(t.TempDir(), "none.log"))
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: [unclosed"), 0600))

	_, err := Load(path)
	require.Error(t, err)
}
