package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"kronik/kronik/types"
	"kronik/kronik/utils/jsonutils"
	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
)

const metadataFile = "metadata.json"

// Session is one bounded run of the automation, with its own artifact directory.
type Session struct {
	ID        string
	Status    types.SessionStatus
	CreatedAt time.Time
	Dir       string
}

// Metadata is the on-disk description of a session.
type Metadata struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Status    types.SessionStatus `json:"status"`
	ClosedAt  *time.Time          `json:"closed_at,omitempty"`
}

// NewID derives a session id from the start time.
func NewID(now time.Time) string {
	return "session_" + now.Format("20060102_150405")
}

// Dir returns the artifact directory of a session.
func Dir(sessionsDir, id string) string {
	return filepath.Join(sessionsDir, id)
}

// New creates an active session under sessionsDir and writes its metadata.
func New(sessionsDir string, now time.Time) (*Session, error) {
	id := NewID(now)
	s := &Session{
		ID:        id,
		Status:    types.SessionActive,
		CreatedAt: now,
		Dir:       Dir(sessionsDir, id),
	}
	for _, dir := range []string{s.ScreenshotsDir(), s.RecordingsDir(), s.DownloadsDir()} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create session dir: %w", err)
		}
	}
	if err := s.SaveMetadata(nil); err != nil {
		return nil, err
	}
	logging.Named("session").Info("created new session", zap.String("session_id", id))
	return s, nil
}

func (s *Session) ScreenshotsDir() string { return filepath.Join(s.Dir, "screenshots") }
func (s *Session) RecordingsDir() string  { return filepath.Join(s.Dir, "recordings") }
func (s *Session) DownloadsDir() string   { return filepath.Join(s.Dir, "downloads") }

func (s *Session) Metadata() Metadata {
	return Metadata{ID: s.ID, CreatedAt: s.CreatedAt, Status: s.Status}
}

// SaveMetadata writes metadata.json; closedAt is recorded when non-nil.
func (s *Session) SaveMetadata(closedAt *time.Time) error {
	m := s.Metadata()
	m.ClosedAt = closedAt
	if err := jsonutils.WriteJSONFile(filepath.Join(s.Dir, metadataFile), m); err != nil {
		return fmt.Errorf("failed to save session metadata: %w", err)
	}
	return nil
}

// Close moves an active session to a terminal status and persists it.
func (s *Session) Close(status types.SessionStatus, now time.Time) error {
	switch status {
	case types.SessionCompleted, types.SessionFailed:
	default:
		return fmt.Errorf("cannot close session with status %q", status)
	}
	s.Status = status
	logging.Named("session").Info("closed session",
		zap.String("session_id", s.ID), zap.String("status", string(status)))
	return s.SaveMetadata(&now)
}

// List reads every session's metadata under sessionsDir, newest first.
func List(sessionsDir string) ([]Metadata, error) {
	entries, err := os.ReadDir(sessionsDir)
	if errors.Is(err, os.ErrNotExist) {
		return []Metadata{}, nil
	}
	if err != nil {
		return nil, err
	}

	sessions := []Metadata{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(sessionsDir, e.Name(), metadataFile))
		if err != nil {
			continue
		}
		var m Metadata
		if err := json.Unmarshal(data, &m); err != nil {
			logging.Named("session").Warn("skipping unreadable session metadata",
				zap.String("dir", e.Name()), zap.Error(err))
			continue
		}
		sessions = append(sessions, m)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}
