package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kronik/kronik/sources/sqldb/dao"
)

const testURL = "https://www.tiktok.com/@tiktok/video/6635480525911887110"

const sampleInfo = `{
  "title": "Test Video",
  "channel": "Test Channel",
  "channel_id": "test123",
  "channel_url": "https://www.tiktok.com/@test",
  "webpage_url": "https://www.tiktok.com/@test/video/123",
  "track": "Test Track",
  "duration": 30,
  "view_count": 1000,
  "like_count": 100,
  "repost_count": 10,
  "comment_count": 50,
  "timestamp": 1700000000,
  "thumbnails": [
    {"id": "dynamicCover", "url": "https://p16.tiktokcdn.com/dynamic.jpg"},
    {"id": "originCover", "url": "https://p16.tiktokcdn.com/origin.jpg"}
  ]
}`

func newTestDownloader(t *testing.T) *Downloader {
	t.Helper()
	d, err := New(Config{SaveDir: filepath.Join(t.TempDir(), "downloads")})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	d.now = func() time.Time { return time.Date(2024, 6, 7, 8, 9, 10, 0, time.UTC) }
	return d
}

func TestIsTikTokURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{testURL, true},
		{"https://vm.tiktok.com/ZMabc/", true},
		{"https://vt.tiktok.com/ZSxyz/", true},
		{"https://not-tiktok.com/watch?v=123", false},
		{"http://www.tiktok.com/@a/video/1", false},
		{"not_a_url", false},
	}
	for _, tt := range tests {
		if got := IsTikTokURL(tt.url); got != tt.want {
			t.Errorf("IsTikTokURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	d := newTestDownloader(t)
	path := d.OutputPath("test_video")
	if filepath.Dir(path) != d.cfg.SaveDir {
		t.Errorf("dir = %q, want %q", filepath.Dir(path), d.cfg.SaveDir)
	}
	if filepath.Base(path) != "test_video_20240607_080910.mp4" {
		t.Errorf("name = %q", filepath.Base(path))
	}
}

func TestArgs(t *testing.T) {
	d := newTestDownloader(t)
	d.cfg.UseChromeCookies = true
	d.cfg.Resolution = "720"
	args := strings.Join(d.Args(testURL, "/tmp/out.mp4"), " ")
	for _, want := range []string{"--dump-single-json", "--no-simulate", "--output /tmp/out.mp4",
		"--cookies-from-browser chrome", "--format-sort res:720"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if !strings.HasSuffix(args, testURL) {
		t.Errorf("url should be the last argument: %q", args)
	}
}

func TestParseInfo(t *testing.T) {
	info, err := ParseInfo([]byte(sampleInfo))
	if err != nil {
		t.Fatalf("ParseInfo() failed: %v", err)
	}
	if info.VideoURL != "https://www.tiktok.com/@test/video/123" {
		t.Errorf("VideoURL = %q", info.VideoURL)
	}
	if info.ThumbnailURL == nil || *info.ThumbnailURL != "https://p16.tiktokcdn.com/origin.jpg" {
		t.Errorf("ThumbnailURL = %v, want originCover", info.ThumbnailURL)
	}
	if info.ViewCount == nil || *info.ViewCount != 1000 {
		t.Errorf("ViewCount = %v", info.ViewCount)
	}
	if info.Duration == nil || *info.Duration != 30 {
		t.Errorf("Duration = %v", info.Duration)
	}
	if info.Track == nil || *info.Track != "Test Track" {
		t.Errorf("Track = %v", info.Track)
	}
}

func TestBestThumbnailPriority(t *testing.T) {
	thumbs := []thumbnail{
		{ID: "dynamicCover", URL: "d"},
		{ID: "cover", URL: "c"},
		{ID: "originCover", URL: "o"},
	}
	if got := bestThumbnail(thumbs); got == nil || *got != "c" {
		t.Errorf("bestThumbnail() = %v, want cover", got)
	}
	if got := bestThumbnail(nil); got != nil {
		t.Errorf("bestThumbnail(nil) = %v, want nil", *got)
	}
}

func TestDownloadRejectsNonTikTok(t *testing.T) {
	d := newTestDownloader(t)
	d.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatal("runner must not be called for invalid urls")
		return nil, nil
	}
	if _, err := d.Download(context.Background(), "https://not-tiktok.com/watch?v=123", "x"); !errors.Is(err, ErrNotTikTok) {
		t.Errorf("Download() err = %v, want ErrNotTikTok", err)
	}
}

func TestDownload(t *testing.T) {
	d := newTestDownloader(t)
	d.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		for i, a := range args {
			if a == "--output" {
				if err := os.WriteFile(args[i+1], []byte("mp4"), 0o644); err != nil {
					return nil, err
				}
			}
		}
		return []byte(sampleInfo), nil
	}

	res, err := d.Download(context.Background(), testURL, "video")
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("downloaded file missing: %v", err)
	}
	if res.Info.Title == nil || *res.Info.Title != "Test Video" {
		t.Errorf("Info.Title = %v", res.Info.Title)
	}
}

func TestDownloadFailure(t *testing.T) {
	d := newTestDownloader(t)
	d.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, fmt.Errorf("yt-dlp failed: exit status 1")
	}
	if _, err := d.Download(context.Background(), testURL, "video"); err == nil {
		t.Error("Download() should fail when yt-dlp fails")
	}
}

func TestPageMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/@alice/video/42?is_from_webapp=1&sender_device=pc", http.StatusFound)
	})
	mux.HandleFunc("/@alice/video/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
<title>fallback</title>
<meta property="og:title" content="Alice dances">
<meta property="og:image" content="https://cdn.example/cover.jpg">
</head><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newTestDownloader(t)
	info, err := d.PageMetadata(context.Background(), srv.URL+"/short")
	if err != nil {
		t.Fatalf("PageMetadata() failed: %v", err)
	}
	if info.VideoURL != srv.URL+"/@alice/video/42" {
		t.Errorf("VideoURL = %q", info.VideoURL)
	}
	if info.Title == nil || *info.Title != "Alice dances" {
		t.Errorf("Title = %v", info.Title)
	}
	if info.ThumbnailURL == nil || *info.ThumbnailURL != "https://cdn.example/cover.jpg" {
		t.Errorf("ThumbnailURL = %v", info.ThumbnailURL)
	}
	if info.Channel == nil || *info.Channel != "alice" {
		t.Errorf("Channel = %v", info.Channel)
	}
}

func TestCanonicalURL(t *testing.T) {
	got := CanonicalURL("https://www.tiktok.com/@a/video/1?_r=1&_t=abc#top")
	if got != "https://www.tiktok.com/@a/video/1" {
		t.Errorf("CanonicalURL() = %q", got)
	}
}

type staticPage struct {
	final, html string
}

func (s staticPage) FetchPage(ctx context.Context, link string) (string, string, error) {
	return s.final, s.html, nil
}

func TestPageMetadataPrefersCanonicalLink(t *testing.T) {
	d := newTestDownloader(t).WithPageFetcher(staticPage{
		final: "https://www.tiktok.com/redirected?x=1",
		html: `<html><head>
<link rel="canonical" href="https://www.tiktok.com/@bob/video/7?lang=en">
<meta property="og:url" content="https://www.tiktok.com/@other/video/8">
<title> Bob cooks </title>
</head></html>`,
	})
	info, err := d.PageMetadata(context.Background(), "https://vm.tiktok.com/ZMabc/")
	if err != nil {
		t.Fatalf("PageMetadata() failed: %v", err)
	}
	if info.VideoURL != "https://www.tiktok.com/@bob/video/7" {
		t.Errorf("VideoURL = %q", info.VideoURL)
	}
	if info.Title == nil || *info.Title != "Bob cooks" {
		t.Errorf("Title = %v", info.Title)
	}
	if info.ChannelURL == nil || *info.ChannelURL != "https://www.tiktok.com/@bob" {
		t.Errorf("ChannelURL = %v", info.ChannelURL)
	}
	if info.ThumbnailURL != nil {
		t.Errorf("ThumbnailURL = %v, want nil", *info.ThumbnailURL)
	}
}

func TestPageMetadataResolvesRelativeTags(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantURL   string
		wantImage string
	}{
		{
			name:      "relative canonical and protocol-relative image",
			html:      `<link rel="canonical" href="/@user/video/123"><meta property="og:image" content="//p16-sign.tiktokcdn.com/cover.jpeg">`,
			wantURL:   "https://www.tiktok.com/@user/video/123",
			wantImage: "https://p16-sign.tiktokcdn.com/cover.jpeg",
		},
		{
			name:    "relative og:url",
			html:    `<meta property="og:url" content="/@user/video/123?is_copy_url=1">`,
			wantURL: "https://www.tiktok.com/@user/video/123",
		},
		{
			name:    "unusable tags fall back to the landing page",
			html:    `<link rel="canonical" href="javascript:void(0)"><meta property="og:image" content="data:image/png;base64,AAAA">`,
			wantURL: "https://www.tiktok.com/@user/video/123",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDownloader(t).WithPageFetcher(staticPage{
				final: "https://www.tiktok.com/@user/video/123?_r=1",
				html:  "<html><head>" + tt.html + "</head></html>",
			})
			info, err := d.PageMetadata(context.Background(), "https://vm.tiktok.com/ZMabc/")
			if err != nil {
				t.Fatalf("PageMetadata() failed: %v", err)
			}
			if info.VideoURL != tt.wantURL {
				t.Errorf("VideoURL = %q, want %q", info.VideoURL, tt.wantURL)
			}
			if !dao.ValidateURL(info.VideoURL) {
				t.Errorf("VideoURL %q would be rejected by the store", info.VideoURL)
			}
			switch {
			case tt.wantImage == "" && info.ThumbnailURL != nil:
				t.Errorf("ThumbnailURL = %q, want nil", *info.ThumbnailURL)
			case tt.wantImage != "" && (info.ThumbnailURL == nil || *info.ThumbnailURL != tt.wantImage):
				t.Errorf("ThumbnailURL = %v, want %q", info.ThumbnailURL, tt.wantImage)
			}
			if info.Channel == nil || *info.Channel != "user" {
				t.Errorf("Channel = %v, want user", info.Channel)
			}
		})
	}
}
