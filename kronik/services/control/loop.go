package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"kronik/kronik/services/device"
	"kronik/kronik/services/downloader"
	"kronik/kronik/services/events"
	"kronik/kronik/services/llm"
	"kronik/kronik/services/session"
	"kronik/kronik/sources/sqldb/dao"
	"kronik/kronik/sources/sqldb/models"
	"kronik/kronik/sources/storage"
	"kronik/kronik/sources/vectorstore"
	"kronik/kronik/types"
	"kronik/kronik/utils/jsonutils"
	"kronik/kronik/utils/logging"
	waitutil "kronik/kronik/utils/wait"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnbounded         = errors.New("loop needs MaxIterations, Duration or Forever")
	ErrConflictingBounds = errors.New("forever cannot be combined with an iteration or duration bound")
	ErrAppsMissing       = errors.New("required apps not installed")
	ErrDeviceUnreachable = errors.New("device unreachable")
	errIterationSkipped  = errors.New("iteration skipped")
)

const (
	finishTimeout         = 30 * time.Second
	drainTimeout          = 3 * time.Minute
	defaultAppOpenTimeout = 15 * time.Second
)

// Options bound and shape a run. Exactly one of Forever or the explicit
// bounds (MaxIterations, Duration, or both) must be set.
type Options struct {
	MaxIterations     int
	Duration          time.Duration
	Forever           bool
	RecordFor         time.Duration
	Pause             time.Duration
	Download          bool
	MaxDeviceFailures int
	AppOpenTimeout    time.Duration
}

// Validate checks that the run is bounded and well formed.
func (o Options) Validate() error {
	if o.MaxIterations < 0 || o.Duration < 0 {
		return fmt.Errorf("iterations and duration must not be negative")
	}
	if o.MaxIterations == 0 && o.Duration == 0 && !o.Forever {
		return ErrUnbounded
	}
	if o.Forever && (o.MaxIterations > 0 || o.Duration > 0) {
		return ErrConflictingBounds
	}
	if o.RecordFor <= 0 {
		return fmt.Errorf("record duration must be positive")
	}
	return nil
}

// Device is everything the loop needs from the phone.
type Device interface {
	device.AppDriver
	device.Screenshotter
	device.KeyPresser
	TikTokDevice
}

// Recorder captures the screen for one iteration at a time.
type Recorder interface {
	Start(ctx context.Context) (string, error)
	Stop(ctx context.Context, path string) (string, error)
	Recording() bool
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	UpdateStatus(ctx context.Context, id string, status types.SessionStatus) (bool, error)
}

type VideoStore interface {
	CreateVideo(ctx context.Context, info types.VideoInfo, sessionID string) (int64, error)
	GetVideoByURL(ctx context.Context, videoURL string) (*models.Video, *models.Analysis, error)
	AddAnalysis(ctx context.Context, analysis types.Analysis, videoID int64) (bool, error)
}

type VideoAnalyzer interface {
	AnalyzeVideo(ctx context.Context, path string) (types.Analysis, error)
}

type VideoDownloader interface {
	Download(ctx context.Context, url, name string) (downloader.Result, error)
	PageMetadata(ctx context.Context, link string) (types.VideoInfo, error)
}

type Archiver interface {
	UploadFile(ctx context.Context, sessionID, kind, localPath string) (storage.ArchiveObject, error)
	UploadJSON(ctx context.Context, sessionID, kind, name string, data []byte) (storage.ArchiveObject, error)
}

type Publisher interface {
	Publish(e events.Event) int
}

type AnalysisEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Upsert(ctx context.Context, r vectorstore.Record) error
}

// Deps are the collaborators of a Loop. Downloader, Archiver, Events and the
// Embedder/Vectors pair are optional.
type Deps struct {
	Device     Device
	Recorder   Recorder
	Sessions   SessionStore
	Videos     VideoStore
	Analyzer   VideoAnalyzer
	Downloader VideoDownloader
	Archiver   Archiver
	Events     Publisher
	Embedder   AnalysisEmbedder
	Vectors    VectorStore
}

// Stats counts what a run did.
type Stats struct {
	Iterations int `json:"iterations"`
	Recorded   int `json:"recorded"`
	Downloaded int `json:"downloaded"`
	Analyzed   int `json:"analyzed"`
	Stored     int `json:"stored"`
	Duplicates int `json:"duplicates"`
	Embedded   int `json:"embedded"`
	Liked      int `json:"liked"`
	Skipped    int `json:"skipped"`
}

// Loop runs the record, analyze, react cycle for one session.
type Loop struct {
	deps    Deps
	session *session.Session
	opts    Options
	tiktok  *TikTokController
	stats   Stats
	now     func() time.Time
	log     *zap.Logger
}

func NewLoop(deps Deps, sess *session.Session, opts Options) *Loop {
	if opts.AppOpenTimeout <= 0 {
		opts.AppOpenTimeout = defaultAppOpenTimeout
	}
	return &Loop{
		deps:    deps,
		session: sess,
		opts:    opts,
		tiktok:  NewTikTokController(deps.Device),
		now:     time.Now,
		log:     logging.Named("control").With(zap.String("session_id", sess.ID)),
	}
}

func (l *Loop) Stats() Stats {
	return l.stats
}

func (l *Loop) publish(ctx context.Context, kind events.Kind, data interface{}) {
	if l.deps.Events == nil {
		return
	}
	traceID, _ := ctx.Value(logging.TraceIDKey).(string)
	l.deps.Events.Publish(events.NewEvent(kind, l.session.ID, traceID, data))
}

// Run executes iterations until a bound is reached or ctx is cancelled. An
// operator interrupt ends the run normally. The session is closed on every
// exit path: completed on a normal stop, failed on a fatal error.
func (l *Loop) Run(ctx context.Context) (err error) {
	if err := l.opts.Validate(); err != nil {
		return err
	}

	if err := l.deps.Sessions.CreateSession(ctx, &models.Session{
		ID:        l.session.ID,
		Status:    types.SessionActive,
		CreatedAt: l.session.CreatedAt,
	}); err != nil && !errors.Is(err, dao.ErrDuplicateSession) {
		return fmt.Errorf("failed to store session: %w", err)
	}
	l.publish(ctx, events.KindSessionStarted, l.session.Metadata())
	defer func() { l.finish(ctx, err) }()

	runCtx := ctx
	if l.opts.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.opts.Duration)
		defer cancel()
	}

	if err := l.prepare(runCtx); err != nil {
		if runCtx.Err() != nil {
			l.log.Info("stopped before the first iteration", zap.Error(err))
			return nil
		}
		return err
	}

	failures := 0
	for i := 0; l.opts.MaxIterations == 0 || i < l.opts.MaxIterations; i++ {
		if runCtx.Err() != nil {
			break
		}
		iterErr := l.iterate(runCtx, i)
		l.stats.Iterations++
		switch {
		case errors.Is(iterErr, ErrDeviceUnreachable):
			failures++
			l.stats.Skipped++
			l.log.Error("device failure", zap.Int("iteration", i), zap.Int("consecutive", failures), zap.Error(iterErr))
			if l.opts.MaxDeviceFailures > 0 && failures >= l.opts.MaxDeviceFailures {
				return fmt.Errorf("%w: %d consecutive failures", ErrDeviceUnreachable, failures)
			}
		case iterErr != nil:
			failures = 0
			l.stats.Skipped++
		default:
			failures = 0
		}
	}

	if ctx.Err() != nil {
		l.log.Info("interrupted, stopping session")
	}
	return nil
}

func (l *Loop) prepare(ctx context.Context) error {
	if missing := device.MissingApps(ctx, l.deps.Device); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrAppsMissing, strings.Join(missing, ", "))
	}
	if err := device.Home(ctx, l.deps.Device); err != nil {
		l.log.Warn("failed to go home before launch", zap.Error(err))
	}
	if err := device.OpenApp(ctx, l.deps.Device, device.TikTok, l.opts.AppOpenTimeout); err != nil {
		return err
	}
	l.screenshot(ctx)
	l.log.Info("starting tiktok interaction loop",
		zap.Int("max_iterations", l.opts.MaxIterations),
		zap.Duration("duration", l.opts.Duration),
		zap.Bool("forever", l.opts.Forever))
	return nil
}

func (l *Loop) screenshot(ctx context.Context) {
	if _, err := device.TakeScreenshot(ctx, l.deps.Device, l.session.ScreenshotsDir(), l.now()); err != nil {
		l.log.Warn("screenshot failed", zap.Error(err), logging.TraceField(ctx))
	}
}

// iterate runs one cycle. It returns ErrDeviceUnreachable when recording could
// not be started or stopped, and errIterationSkipped when the item could not
// be analyzed.
func (l *Loop) iterate(ctx context.Context, i int) error {
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	defer logging.LogDuration(ctx, "control_iteration")()
	l.log.Info("iteration", zap.Int("index", i), logging.TraceField(ctx))

	l.screenshot(ctx)
	recording, err := l.record(ctx)
	if err != nil {
		l.publish(ctx, events.KindIterationFailed, failureEvent("record", err))
		return err
	}
	if recording == "" {
		return errIterationSkipped
	}
	l.stats.Recorded++
	l.publish(ctx, events.KindRecordingSaved, map[string]string{"path": recording})

	// The Duration bound may expire mid-watch. The last recording is still
	// analyzed on a bounded detached context; an operator interrupt keeps it
	// on disk unanalyzed.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if !errors.Is(ctxErr, context.DeadlineExceeded) {
			l.log.Info("interrupted, recording kept unanalyzed", zap.String("path", recording), logging.TraceField(ctx))
			return nil
		}
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		l.log.Info("duration reached, finishing last recording", zap.String("path", recording), logging.TraceField(ctx))
		return l.process(drainCtx, recording)
	}

	err = l.process(ctx, recording)

	l.tiktok.ScrollNext(ctx)
	if pauseErr := waitutil.Sleep(ctx, l.opts.Pause); pauseErr != nil {
		l.log.Debug("pause interrupted", zap.Error(pauseErr))
	}
	return err
}

// process resolves, analyzes and stores one saved recording.
func (l *Loop) process(ctx context.Context, recording string) error {
	link := l.tiktok.GetLink(ctx)
	info, target := l.resolve(ctx, link, recording)
	return l.analyze(ctx, info, target, recording)
}

// failureEvent describes a skipped iteration without the raw error text,
// which stays in the logs.
func failureEvent(stage string, err error) map[string]string {
	reason := "failed"
	switch {
	case errors.Is(err, ErrDeviceUnreachable):
		reason = "device_unreachable"
	case errors.Is(err, llm.ErrFileNotFound):
		reason = "file_not_found"
	case errors.Is(err, types.ErrSchemaViolation):
		reason = "schema_violation"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, context.Canceled):
		reason = "cancelled"
	}
	return map[string]string{"stage": stage, "reason": reason}
}

// record captures RecordFor of the feed. A cancelled ctx cuts the watch
// short but the recording is still stopped and saved.
func (l *Loop) record(ctx context.Context) (string, error) {
	target, err := l.deps.Recorder.Start(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	if target == "" {
		l.log.Warn("recording already in progress, skipping", logging.TraceField(ctx))
		return "", nil
	}
	if err := waitutil.Sleep(ctx, l.opts.RecordFor); err != nil {
		l.log.Info("watch interrupted", zap.Error(err), logging.TraceField(ctx))
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	saved, err := l.deps.Recorder.Stop(stopCtx, target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	return saved, nil
}

// resolve turns the share link into video metadata and picks the file to
// analyze: the downloaded video when available, otherwise the recording.
func (l *Loop) resolve(ctx context.Context, link, recording string) (types.VideoInfo, string) {
	if link == "" {
		return types.VideoInfo{}, recording
	}
	info := types.VideoInfo{VideoURL: downloader.CanonicalURL(link)}
	if l.deps.Downloader == nil {
		return info, recording
	}

	if l.opts.Download {
		res, err := l.deps.Downloader.Download(ctx, link, "tiktok")
		if err == nil {
			l.stats.Downloaded++
			l.publish(ctx, events.KindVideoDownloaded, map[string]string{"path": res.Path, "tiktok_url": res.Info.VideoURL})
			return res.Info, res.Path
		}
		l.log.Error("download failed", zap.String("link", link), zap.Error(err), logging.TraceField(ctx))
	}

	meta, err := l.deps.Downloader.PageMetadata(ctx, link)
	if err != nil {
		l.log.Warn("page metadata failed", zap.String("link", link), zap.Error(err), logging.TraceField(ctx))
		return info, recording
	}
	return meta, recording
}

func (l *Loop) analyze(ctx context.Context, info types.VideoInfo, target, recording string) error {
	analysis, err := l.deps.Analyzer.AnalyzeVideo(ctx, target)
	if err != nil {
		l.log.Error("error during tiktok analysis", zap.String("path", target), zap.Error(err), logging.TraceField(ctx))
		l.publish(ctx, events.KindIterationFailed, failureEvent("analyze", err))
		return errIterationSkipped
	}
	l.stats.Analyzed++

	sidecar, err := writeSidecar(target, analysis)
	if err != nil {
		l.log.Error("failed to write analysis sidecar", zap.Error(err), logging.TraceField(ctx))
	}

	if info.VideoURL != "" {
		if videoID, stored := l.persist(ctx, info, analysis); stored {
			l.embed(ctx, videoID, info, analysis)
		}
	} else {
		l.log.Warn("no video link, analysis kept on disk only", logging.TraceField(ctx))
	}

	if analysis.Like && l.tiktok.Like(ctx) {
		l.stats.Liked++
		l.log.Info("liked video based on analysis", logging.TraceField(ctx))
		l.publish(ctx, events.KindVideoLiked, map[string]string{"tiktok_url": info.VideoURL})
	}

	l.archive(ctx, recording, target, sidecar)
	l.publish(ctx, events.KindAnalysisComplete, map[string]interface{}{
		"tiktok_url": info.VideoURL,
		"path":       target,
		"category":   analysis.Category,
		"rating":     analysis.Rating,
		"like":       analysis.Like,
	})
	return nil
}

func writeSidecar(mediaPath string, analysis types.Analysis) (string, error) {
	data, err := analysis.JSON()
	if err != nil {
		return "", err
	}
	path := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".json"
	return path, jsonutils.WriteFile(path, data)
}

// persist stores the video and its analysis and reports whether the
// analysis was written. A url seen before keeps its first row; its analysis
// is only filled in when it had none.
func (l *Loop) persist(ctx context.Context, info types.VideoInfo, analysis types.Analysis) (int64, bool) {
	videoID, err := l.deps.Videos.CreateVideo(ctx, info, l.session.ID)
	if errors.Is(err, dao.ErrDuplicateVideo) {
		l.stats.Duplicates++
		existing, prior, getErr := l.deps.Videos.GetVideoByURL(ctx, info.VideoURL)
		if getErr != nil {
			l.log.Error("failed to load duplicate video", zap.Error(getErr), logging.TraceField(ctx))
			return 0, false
		}
		if prior != nil {
			l.log.Info("video already stored, skipping", zap.String("tiktok_url", info.VideoURL), logging.TraceField(ctx))
			return 0, false
		}
		videoID = existing.ID
	} else if err != nil {
		l.log.Error("failed to store video", zap.String("tiktok_url", info.VideoURL), zap.Error(err), logging.TraceField(ctx))
		return 0, false
	}

	if _, err := l.deps.Videos.AddAnalysis(ctx, analysis, videoID); err != nil {
		l.log.Error("failed to store analysis", zap.Int64("video_id", videoID), zap.Error(err), logging.TraceField(ctx))
		return 0, false
	}
	l.stats.Stored++
	return videoID, true
}

// embed indexes a stored analysis in the vector store. Failures are logged
// and never skip the item.
func (l *Loop) embed(ctx context.Context, videoID int64, info types.VideoInfo, analysis types.Analysis) {
	if l.deps.Embedder == nil || l.deps.Vectors == nil {
		return
	}
	text := vectorstore.DocumentText(info, analysis)
	vector, err := l.deps.Embedder.EmbedDocument(ctx, text)
	if err != nil {
		l.log.Warn("failed to embed analysis", zap.Int64("video_id", videoID), zap.Error(err), logging.TraceField(ctx))
		return
	}
	err = l.deps.Vectors.Upsert(ctx, vectorstore.Record{
		ID:        vectorstore.VideoRecordID(videoID),
		SessionID: l.session.ID,
		VideoID:   videoID,
		VideoURL:  info.VideoURL,
		Category:  analysis.Category,
		Text:      text,
		Vector:    vector,
		CreatedAt: l.now(),
	})
	if err != nil {
		l.log.Warn("failed to store embedding", zap.Int64("video_id", videoID), zap.Error(err), logging.TraceField(ctx))
		return
	}
	l.stats.Embedded++
}

func (l *Loop) archive(ctx context.Context, recording, target, sidecar string) {
	if l.deps.Archiver == nil {
		return
	}
	uploads := []struct{ kind, path string }{{"recordings", recording}}
	if target != recording {
		uploads = append(uploads, struct{ kind, path string }{"downloads", target})
	}
	if sidecar != "" {
		uploads = append(uploads, struct{ kind, path string }{"analysis", sidecar})
	}
	for _, u := range uploads {
		if _, err := l.deps.Archiver.UploadFile(ctx, l.session.ID, u.kind, u.path); err != nil {
			l.log.Warn("archive upload failed", zap.String("path", u.path), zap.Error(err), logging.TraceField(ctx))
		}
	}
}

// archiveSummary uploads the closed session's metadata and counters.
func (l *Loop) archiveSummary(ctx context.Context) {
	if l.deps.Archiver == nil {
		return
	}
	summary := struct {
		session.Metadata
		Stats Stats `json:"stats"`
	}{l.session.Metadata(), l.stats}
	data, err := json.Marshal(summary)
	if err != nil {
		l.log.Warn("failed to encode session summary", zap.Error(err))
		return
	}
	if _, err := l.deps.Archiver.UploadJSON(ctx, l.session.ID, "", "summary.json", data); err != nil {
		l.log.Warn("archive upload failed", zap.String("path", "summary.json"), zap.Error(err))
	}
}

// finish stops any open recording and closes the session in the store and
// on disk, using a fresh context so an interrupt cannot skip it.
func (l *Loop) finish(parent context.Context, runErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), finishTimeout)
	defer cancel()

	if l.deps.Recorder.Recording() {
		if path, err := l.deps.Recorder.Stop(ctx, ""); err != nil {
			l.log.Error("failed to stop recording on exit", zap.Error(err))
		} else {
			l.log.Info("saved recording on exit", zap.String("path", path))
		}
	}

	status := types.SessionCompleted
	if runErr != nil {
		status = types.SessionFailed
		logging.ErrorLogger.Error("session failed", zap.String("session_id", l.session.ID), zap.Error(runErr))
	}
	if _, err := l.deps.Sessions.UpdateStatus(ctx, l.session.ID, status); err != nil {
		l.log.Error("failed to update session status", zap.Error(err))
	}
	if err := l.session.Close(status, l.now()); err != nil {
		l.log.Error("failed to close session", zap.Error(err))
	}
	l.archiveSummary(ctx)
	l.publish(ctx, events.KindSessionClosed, map[string]interface{}{"status": status, "stats": l.stats})
	l.log.Info("completed all actions", zap.String("status", string(status)), zap.Any("stats", l.stats))
}
