package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"kronik/kronik/types"
	"kronik/kronik/utils/jsonutils"
)

const recordExtension = ".json"

var (
	ErrNotFound    = errors.New("vector record not found")
	ErrEmptyVector = errors.New("vector is empty")
	ErrInvalidID   = errors.New("invalid vector record id")
)

// Record is one embedded analysis.
type Record struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	VideoID   int64          `json:"video_id"`
	VideoURL  string         `json:"tiktok_url"`
	Category  types.Category `json:"category"`
	Text      string         `json:"text"`
	Vector    []float32      `json:"vector"`
	CreatedAt time.Time      `json:"created_at"`
}

// Match is a search hit, Score being the cosine similarity to the query.
type Match struct {
	Record
	Score float64 `json:"score"`
}

// Store keeps one JSON document per record in a directory (data/db/chroma).
type Store struct {
	dir string
	mu  sync.RWMutex
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create vector store %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func VideoRecordID(videoID int64) string {
	return fmt.Sprintf("video_%d", videoID)
}

// DocumentText is the text embedded for a video: title, analysis, transcript
// and tags, one per line, empty parts omitted.
func DocumentText(info types.VideoInfo, a types.Analysis) string {
	var parts []string
	if info.Title != nil && strings.TrimSpace(*info.Title) != "" {
		parts = append(parts, strings.TrimSpace(*info.Title))
	}
	for _, p := range []string{a.Analysis, a.Transcript} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(a.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(a.Tags, " #"))
	}
	return strings.Join(parts, "\n")
}

func (s *Store) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id+recordExtension), nil
}

// Upsert writes r, replacing any record with the same id.
func (s *Store) Upsert(ctx context.Context, r Record) error {
	if len(r.Vector) == 0 {
		return ErrEmptyVector
	}
	path, err := s.path(r.ID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return jsonutils.WriteJSONFile(path, r)
}

func (s *Store) Get(id string) (Record, error) {
	path, err := s.path(id)
	if err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readRecord(path)
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return r, nil
}

// all loads every record; unreadable files are skipped.
func (s *Store) all(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != recordExtension {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := readRecord(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// Search returns up to k records most similar to query. Records of another
// dimension are ignored.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if len(query) == 0 {
		return nil, ErrEmptyVector
	}
	s.mu.RLock()
	records, err := s.all(ctx)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != len(query) {
			continue
		}
		matches = append(matches, Match{Record: r, Score: cosine(query, r.Vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// DeleteSession removes every record of a session and returns how many.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, r := range records {
		if r.SessionID != sessionID {
			continue
		}
		path, err := s.path(r.ID)
		if err != nil {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
