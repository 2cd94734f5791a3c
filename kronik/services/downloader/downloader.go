package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"kronik/kronik/types"
	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var tiktokPrefixes = []string{
	"https://www.tiktok.com/",
	"https://vm.tiktok.com/",
	"https://vt.tiktok.com/",
}

var ErrNotTikTok = errors.New("not a tiktok url")

// IsTikTokURL checks the url against the known TikTok hosts before any network use.
func IsTikTokURL(url string) bool {
	for _, p := range tiktokPrefixes {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	return false
}

type Config struct {
	SaveDir          string
	YtDlpPath        string
	Format           string
	Resolution       string
	UseChromeCookies bool
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Result is a downloaded video and the metadata reported for it.
type Result struct {
	Path string
	Info types.VideoInfo
}

type Downloader struct {
	cfg   Config
	run   Runner
	now   func() time.Time
	pages PageFetcher
	log   *zap.Logger
}

func New(cfg Config) (*Downloader, error) {
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = "yt-dlp"
	}
	if cfg.Format == "" {
		cfg.Format = "best"
	}
	if err := os.MkdirAll(cfg.SaveDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Downloader{
		cfg:   cfg,
		run:   execRunner,
		now:   time.Now,
		pages: httpFetcher{client: &http.Client{Jar: jar, Timeout: 30 * time.Second}},
		log:   logging.Named("downloader"),
	}, nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// OutputPath is SaveDir/<name>_<timestamp>.mp4.
func (d *Downloader) OutputPath(name string) string {
	return filepath.Join(d.cfg.SaveDir, fmt.Sprintf("%s_%s.mp4", name, d.now().Format("20060102_150405")))
}

// Args builds the yt-dlp invocation that downloads url to out and prints
// the info document on stdout.
func (d *Downloader) Args(url, out string) []string {
	args := []string{
		"--dump-single-json",
		"--no-simulate",
		"--quiet",
		"--no-warnings",
		"--no-progress",
		"--format", d.cfg.Format,
		"--output", out,
		"--add-header", "User-Agent:" + userAgent,
	}
	if d.cfg.Resolution != "" {
		args = append(args, "--format-sort", "res:"+d.cfg.Resolution)
	}
	if d.cfg.UseChromeCookies {
		args = append(args, "--cookies-from-browser", "chrome")
	}
	return append(args, url)
}

// Download fetches the video behind url into SaveDir and returns its path and
// metadata. Non-TikTok urls are rejected with ErrNotTikTok before any network use.
func (d *Downloader) Download(ctx context.Context, url, name string) (Result, error) {
	defer logging.LogDuration(ctx, "downloader_download")()
	if !IsTikTokURL(url) {
		return Result{}, fmt.Errorf("%w: %s", ErrNotTikTok, url)
	}

	out := d.OutputPath(name)
	d.log.Debug("downloading", zap.String("url", url), zap.String("path", out), logging.TraceField(ctx))

	stdout, err := d.run(ctx, d.cfg.YtDlpPath, d.Args(url, out)...)
	if err != nil {
		return Result{}, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if _, err := os.Stat(out); err != nil {
		return Result{}, fmt.Errorf("download of %s produced no file: %w", url, err)
	}
	info, err := ParseInfo(stdout)
	if err != nil {
		return Result{}, err
	}
	if info.VideoURL == "" {
		info.VideoURL = url
	}
	d.log.Info("downloaded", zap.String("url", url), zap.String("path", out), logging.TraceField(ctx))
	return Result{Path: out, Info: info}, nil
}
