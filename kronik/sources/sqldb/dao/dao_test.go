package dao

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"kronik/kronik/sources/sqldb"
	"kronik/kronik/sources/sqldb/models"
	"kronik/kronik/types"
)

// --- Helpers ---
func setupTestDB(t *testing.T) *sqldb.Database {
	t.Helper()
	db, err := sqldb.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func createSession(t *testing.T, sessions *SessionDAO, id string) {
	t.Helper()
	if err := sessions.CreateSession(context.Background(), &models.Session{ID: id, Status: types.SessionActive}); err != nil {
		t.Fatalf("CreateSession(%s) failed: %v", id, err)
	}
}

func strPtr(s string) *string { return &s }

func sampleAnalysis() types.Analysis {
	return types.Analysis{
		Transcript: "hello there",
		Analysis:   "a dog skateboarding",
		Tags:       []string{"dog", "skate", "funny"},
		Category:   types.CategoryEntertainment,
		Rating:     5,
		Like:       true,
	}
}

// --- Session repository ---
func TestSessionCreateGetDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sessions := NewSessionDAO(db.DB)

	createSession(t, sessions, "session_20240101_120000")

	got, err := sessions.GetSession(ctx, "session_20240101_120000")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if got.ID != "session_20240101_120000" || got.Status != types.SessionActive {
		t.Errorf("GetSession() = %+v", got)
	}

	deleted, err := sessions.DeleteSession(ctx, "session_20240101_120000")
	if err != nil || !deleted {
		t.Fatalf("DeleteSession() = %v, %v", deleted, err)
	}
	if _, err := sessions.GetSession(ctx, "session_20240101_120000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() after delete err = %v, want ErrNotFound", err)
	}

	deleted, err = sessions.DeleteSession(ctx, "session_20240101_120000")
	if err != nil || deleted {
		t.Errorf("second DeleteSession() = %v, %v, want false, nil", deleted, err)
	}
}

func TestSessionStatusTransitions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sessions := NewSessionDAO(db.DB)

	createSession(t, sessions, "s1")
	createSession(t, sessions, "s2")

	active, err := sessions.GetActiveSession(ctx)
	if err != nil {
		t.Fatalf("GetActiveSession() failed: %v", err)
	}
	if active.ID != "s2" {
		t.Errorf("GetActiveSession() = %s, want newest s2", active.ID)
	}

	ok, err := sessions.UpdateStatus(ctx, "s2", types.SessionCompleted)
	if err != nil || !ok {
		t.Fatalf("UpdateStatus() = %v, %v", ok, err)
	}
	if _, err := sessions.UpdateStatus(ctx, "s1", types.SessionStatus("paused")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("UpdateStatus(paused) err = %v, want ErrInvalidStatus", err)
	}
	ok, err = sessions.UpdateStatus(ctx, "missing", types.SessionFailed)
	if err != nil || ok {
		t.Errorf("UpdateStatus(missing) = %v, %v, want false, nil", ok, err)
	}

	active, err = sessions.GetActiveSession(ctx)
	if err != nil || active.ID != "s1" {
		t.Errorf("GetActiveSession() = %+v, %v, want s1", active, err)
	}

	list, err := sessions.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListSessions() len = %d, want 2", len(list))
	}
}

func TestSessionDuplicate(t *testing.T) {
	db := setupTestDB(t)
	sessions := NewSessionDAO(db.DB)
	createSession(t, sessions, "s1")

	err := sessions.CreateSession(context.Background(), &models.Session{ID: "s1", Status: types.SessionActive})
	if !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("CreateSession() duplicate err = %v, want ErrDuplicateSession", err)
	}
}

// --- Video repository ---
func TestVideoScenario(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sessions := NewSessionDAO(db.DB)
	videos := NewVideoDAO(db.DB)

	createSession(t, sessions, "s1")

	id, err := videos.CreateVideo(ctx, types.VideoInfo{VideoURL: "https://x.test/v/1", Title: strPtr("first")}, "s1")
	if err != nil {
		t.Fatalf("CreateVideo() failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("CreateVideo() id = %d, want positive", id)
	}

	video, analysis, err := videos.GetVideo(ctx, id)
	if err != nil {
		t.Fatalf("GetVideo() failed: %v", err)
	}
	if video.VideoURL != "https://x.test/v/1" || analysis != nil {
		t.Errorf("GetVideo() = %+v, %+v, want video without analysis", video, analysis)
	}

	a := sampleAnalysis()
	ok, err := videos.AddAnalysis(ctx, a, id)
	if err != nil || !ok {
		t.Fatalf("AddAnalysis() = %v, %v", ok, err)
	}

	_, analysis, err = videos.GetVideo(ctx, id)
	if err != nil {
		t.Fatalf("GetVideo() failed: %v", err)
	}
	if analysis == nil {
		t.Fatal("GetVideo() analysis = nil after AddAnalysis")
	}
	if !reflect.DeepEqual(analysis.Result(), a) {
		t.Errorf("analysis = %+v, want %+v", analysis.Result(), a)
	}
}

func TestVideoDuplicateURL(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sessions := NewSessionDAO(db.DB)
	videos := NewVideoDAO(db.DB)
	createSession(t, sessions, "s1")
	createSession(t, sessions, "s2")

	first, err := videos.CreateVideo(ctx, types.VideoInfo{VideoURL: "https://x.test/v/1", Title: strPtr("original")}, "s1")
	if err != nil {
		t.Fatalf("CreateVideo() failed: %v", err)
	}

	for _, sessionID := range []string{"s1", "s2"} {
		_, err := videos.CreateVideo(ctx, types.VideoInfo{VideoURL: "https://x.test/v/1", Title: strPtr("copy")}, sessionID)
		if !errors.Is(err, ErrDuplicateVideo) {
			t.Errorf("CreateVideo() duplicate in %s err = %v, want ErrDuplicateVideo", sessionID, err)
		}
	}

	video, _, err := videos.GetVideo(ctx, first)
	if err != nil {
		t.Fatalf("GetVideo() failed: %v", err)
	}
	if video.Title == nil || *video.Title != "original" || video.SessionID != "s1" {
		t.Errorf("first insert changed: %+v", video)
	}
}

func TestVideoURLValidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sessions := NewSessionDAO(db.DB)
	videos := NewVideoDAO(db.DB)
	createSession(t, sessions, "s1")

	tests := []struct {
		name string
		info types.VideoInfo
	}{
		{"missing video url", types.VideoInfo{}},
		{"not a url", types.VideoInfo{VideoURL: "not_a_url"}},
		{"bad channel url", types.VideoInfo{VideoURL: "https://x.test/v/2", ChannelURL: strPtr("channel")}},
		{"bad thumbnail url", types.VideoInfo{VideoURL: "https://x.test/v/3", ThumbnailURL: strPtr("/img.png")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := videos.CreateVideo(ctx, tt.info, "s1"); !errors.Is(err, ErrInvalidURL) {
				t.Errorf("CreateVideo() err = %v, want ErrInvalidURL", err)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"not_a_url", false},
		{"", false},
		{"https://host/path", true},
		{"https://www.tiktok.com/@user/video/123", true},
		{"//host/path", false},
	}
	for _, tt := range tests {
		if got := ValidateURL(tt.in); got != tt.want {
			t.Errorf("ValidateURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVideoUnknownSession(t *testing.T) {
	db := setupTestDB(t)
	videos := NewVideoDAO(db.DB)

	_, err := videos.CreateVideo(context.Background(), types.VideoInfo{VideoURL: "https://x.test/v/9"}, "ghost")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("CreateVideo() err = %v, want ErrSessionNotFound", err)
	}
}

func TestAddAnalysisUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sessions := NewSessionDAO(db.DB)
	videos := NewVideoDAO(db.DB)
	createSession(t, sessions, "s1")

	id, err := videos.CreateVideo(ctx, types.VideoInfo{VideoURL: "https://x.test/v/1"}, "s1")
	if err != nil {
		t.Fatalf("CreateVideo() failed: %v", err)
	}

	if _, err := videos.AddAnalysis(ctx, sampleAnalysis(), id); err != nil {
		t.Fatalf("first AddAnalysis() failed: %v", err)
	}
	second := types.Analysis{
		Transcript: "",
		Analysis:   "rewatched, less funny",
		Tags:       []string{"b", "a"},
		Category:   types.CategoryMisc,
		Rating:     1,
		Like:       false,
	}
	if _, err := videos.AddAnalysis(ctx, second, id); err != nil {
		t.Fatalf("second AddAnalysis() failed: %v", err)
	}

	count, err := countAnalyses(ctx, videos, id)
	if err != nil {
		t.Fatalf("count analyses: %v", err)
	}
	if count != 1 {
		t.Errorf("analysis rows = %d, want 1", count)
	}

	_, analysis, err := videos.GetVideo(ctx, id)
	if err != nil {
		t.Fatalf("GetVideo() failed: %v", err)
	}
	if !reflect.DeepEqual(analysis.Result(), second) {
		t.Errorf("analysis = %+v, want %+v", analysis.Result(), second)
	}
}

func TestAddAnalysisMissingVideo(t *testing.T) {
	db := setupTestDB(t)
	videos := NewVideoDAO(db.DB)

	ok, err := videos.AddAnalysis(context.Background(), sampleAnalysis(), 42)
	if ok || !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("AddAnalysis() = %v, %v, want false, ErrVideoNotFound", ok, err)
	}
}

func TestCascadeDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sessions := NewSessionDAO(db.DB)
	videos := NewVideoDAO(db.DB)
	createSession(t, sessions, "s1")
	createSession(t, sessions, "s2")

	var ids []int64
	for _, u := range []string{"https://x.test/v/1", "https://x.test/v/2"} {
		id, err := videos.CreateVideo(ctx, types.VideoInfo{VideoURL: u}, "s1")
		if err != nil {
			t.Fatalf("CreateVideo() failed: %v", err)
		}
		if _, err := videos.AddAnalysis(ctx, sampleAnalysis(), id); err != nil {
			t.Fatalf("AddAnalysis() failed: %v", err)
		}
		ids = append(ids, id)
	}
	other, err := videos.CreateVideo(ctx, types.VideoInfo{VideoURL: "https://x.test/v/3"}, "s2")
	if err != nil {
		t.Fatalf("CreateVideo() failed: %v", err)
	}

	// Deleting one video takes its analysis with it.
	if ok, err := videos.DeleteVideo(ctx, ids[0]); err != nil || !ok {
		t.Fatalf("DeleteVideo() = %v, %v", ok, err)
	}
	if n, _ := countAnalyses(ctx, videos, ids[0]); n != 0 {
		t.Errorf("analysis rows after video delete = %d, want 0", n)
	}

	if ok, err := sessions.DeleteSession(ctx, "s1"); err != nil || !ok {
		t.Fatalf("DeleteSession() = %v, %v", ok, err)
	}
	for _, id := range ids {
		if _, _, err := videos.GetVideo(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetVideo(%d) after session delete err = %v, want ErrNotFound", id, err)
		}
		if n, _ := countAnalyses(ctx, videos, id); n != 0 {
			t.Errorf("analysis rows for %d = %d, want 0", id, n)
		}
	}
	if _, _, err := videos.GetVideo(ctx, other); err != nil {
		t.Errorf("video of another session should survive: %v", err)
	}
}

func TestListVideosBySession(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sessions := NewSessionDAO(db.DB)
	videos := NewVideoDAO(db.DB)
	createSession(t, sessions, "s1")

	first, _ := videos.CreateVideo(ctx, types.VideoInfo{VideoURL: "https://x.test/v/1"}, "s1")
	second, _ := videos.CreateVideo(ctx, types.VideoInfo{VideoURL: "https://x.test/v/2"}, "s1")
	if _, err := videos.AddAnalysis(ctx, sampleAnalysis(), first); err != nil {
		t.Fatalf("AddAnalysis() failed: %v", err)
	}

	records, err := videos.ListVideosBySession(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("ListVideosBySession() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	byID := map[int64]VideoRecord{}
	for _, r := range records {
		byID[r.Video.ID] = r
	}
	if byID[first].Analysis == nil {
		t.Errorf("video %d should carry its analysis", first)
	}
	if byID[second].Analysis != nil {
		t.Errorf("video %d should have no analysis", second)
	}

	video, _, err := videos.GetVideoByURL(ctx, "https://x.test/v/2")
	if err != nil || video.ID != second {
		t.Errorf("GetVideoByURL() = %+v, %v", video, err)
	}

	empty, err := videos.ListVideosBySession(ctx, "nobody", 10)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListVideosBySession(nobody) = %v, %v", empty, err)
	}
}

// countAnalyses returns how many analysis rows reference a video.
func countAnalyses(ctx context.Context, videos *VideoDAO, videoID int64) (int64, error) {
	var count int64
	err := videos.DB.WithContext(ctx).Model(&models.Analysis{}).Where("tiktok_id = ?", videoID).Count(&count).Error
	return count, err
}
