package device

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
)

// ScreenRecorder is the capture capability a Recorder drives.
type ScreenRecorder interface {
	StartRecording(ctx context.Context, opts RecordingOptions) error
	StopRecording(ctx context.Context, opts RecordingOptions) (string, error)
}

// Recorder owns the recording-in-progress state of one device handle.
// It is not safe for concurrent use; the control loop is its only caller.
type Recorder struct {
	device    ScreenRecorder
	dir       string
	opts      RecordingOptions
	now       func() time.Time
	log       *zap.Logger
	recording bool
	current   string
}

// NewRecorder writes recordings into dir.
func NewRecorder(device ScreenRecorder, dir string) *Recorder {
	return &Recorder{
		device: device,
		dir:    dir,
		opts:   DefaultRecordingOptions(),
		now:    time.Now,
		log:    logging.Named("recorder"),
	}
}

func (r *Recorder) Recording() bool {
	return r.recording
}

// Current is the target path of the open recording, or "".
func (r *Recorder) Current() string {
	return r.current
}

func (r *Recorder) newPath() string {
	return filepath.Join(r.dir, fmt.Sprintf("recording_%s.mp4", r.now().Format("20060102_150405")))
}

// Start begins a recording and returns its target path. It returns "" with
// no error when a recording is already open.
func (r *Recorder) Start(ctx context.Context) (string, error) {
	if r.recording {
		r.log.Warn("recording already in progress", zap.String("path", r.current))
		return "", nil
	}
	if err := os.MkdirAll(r.dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create recordings dir: %w", err)
	}

	path := r.newPath()
	if err := r.device.StartRecording(ctx, r.opts); err != nil {
		r.reset()
		return "", fmt.Errorf("failed to start recording: %w", err)
	}
	r.recording = true
	r.current = path
	r.log.Info("recording started", zap.String("path", path), logging.TraceField(ctx))
	return path, nil
}

// Stop ends the open recording and writes it to path, or to a fresh
// timestamped path when path is "". It returns "" with no error when nothing
// is being recorded. Any failure clears the recording state.
func (r *Recorder) Stop(ctx context.Context, path string) (string, error) {
	if !r.recording {
		r.log.Warn("no recording in progress")
		return "", nil
	}
	defer r.reset()

	encoded, err := r.device.StopRecording(ctx, r.opts)
	if err != nil {
		return "", fmt.Errorf("failed to stop recording: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode recording: %w", err)
	}

	if path == "" {
		path = r.newPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create recordings dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write recording: %w", err)
	}
	r.log.Info("recording saved", zap.String("path", path), zap.Int("bytes", len(data)), logging.TraceField(ctx))
	return path, nil
}

func (r *Recorder) reset() {
	r.recording = false
	r.current = ""
}
