// Package session stores what is known about a capture next to its log file.
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"chunklog/internal/capture"
)

// SidecarSuffix is appended to the log path to form the session file path.
const SidecarSuffix = ".session.yaml"

// Session is the metadata of one capture.
type Session struct {
	ID        string    `yaml:"id"`
	Command   []string  `yaml:"command"`
	Log       string    `yaml:"log"`
	PID       int       `yaml:"pid,omitempty"`
	StartTime time.Time `yaml:"start_time"`
	EndTime   time.Time `yaml:"end_time,omitempty"`
	Completed bool      `yaml:"completed"`
	ExitCode  int       `yaml:"exit_code"`
	Signal    string    `yaml:"signal,omitempty"`
	Error     string    `yaml:"error,omitempty"`
	Chunks    int       `yaml:"chunks"`
	Bytes     int       `yaml:"bytes"`

	OutputKind string `yaml:"output_kind,omitempty"`
}

// New returns a session for a capture of argv into logPath that has not run yet.
func New(argv []string, logPath string) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Command:   argv,
		Log:       logPath,
		StartTime: time.Now().UTC(),
	}
}

// SidecarPath returns the session file path belonging to logPath.
func SidecarPath(logPath string) string {
	return logPath + SidecarSuffix
}

// Complete records the outcome of the capture. res may be nil when the capture never
// produced a result.
func (s *Session) Complete(res *capture.Result, err error) {
	s.Completed = true
	s.EndTime = time.Now().UTC()
	if res != nil {
		s.PID = res.PID
		s.StartTime = res.Start.UTC()
		s.EndTime = res.End.UTC()
		s.ExitCode = res.ExitCode
		s.Signal = res.Signal
		s.Chunks = res.Chunks
		s.Bytes = res.Bytes
	}
	if err != nil {
		s.Error = err.Error()
		var spawnErr *capture.SpawnError
		if errors.As(err, &spawnErr) && s.ExitCode == 0 {
			s.ExitCode = -1
		}
	}
}

// Duration returns the wall time of the capture, or 0 while it is running.
func (s *Session) Duration() time.Duration {
	if !s.Completed {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// CommandLine returns the command joined by spaces.
func (s *Session) CommandLine() string {
	return strings.Join(s.Command, " ")
}

// Save writes the session to path.
func (s *Session) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads a session written by Save.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &s, nil
}

// LoadForLog reads the session file belonging to logPath. It returns nil and no error
// when there is none.
func LoadForLog(logPath string) (*Session, error) {
	s, err := Load(SidecarPath(logPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return s, err
}
