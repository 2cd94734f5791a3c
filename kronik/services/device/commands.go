package device

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
)

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Point struct {
	X int
	Y int
}

// RecordingOptions is the fixed capture configuration of a screen recording.
// With Audio set the media projection recorder is used, which captures
// device audio but ignores BitRate.
type RecordingOptions struct {
	VideoSize string
	BitRate   int
	TimeLimit int
	Audio     bool
}

func DefaultRecordingOptions() RecordingOptions {
	return RecordingOptions{
		VideoSize: "720x1280",
		BitRate:   4_000_000,
		TimeLimit: 180,
		Audio:     true,
	}
}

func (c *Client) WindowSize(ctx context.Context) (Size, error) {
	var rect struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := c.sessionCall(ctx, http.MethodGet, "/window/rect", nil, &rect); err != nil {
		return Size{}, err
	}
	return Size{Width: int(rect.Width), Height: int(rect.Height)}, nil
}

func touchSequence(steps ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"actions": []interface{}{
			map[string]interface{}{
				"type":       "pointer",
				"id":         "finger",
				"parameters": map[string]interface{}{"pointerType": "touch"},
				"actions":    steps,
			},
		},
	}
}

func move(p Point, durationMs int) map[string]interface{} {
	return map[string]interface{}{"type": "pointerMove", "duration": durationMs, "x": p.X, "y": p.Y, "origin": "viewport"}
}

func down() map[string]interface{} {
	return map[string]interface{}{"type": "pointerDown", "button": 0}
}

func up() map[string]interface{} {
	return map[string]interface{}{"type": "pointerUp", "button": 0}
}

func pause(durationMs int) map[string]interface{} {
	return map[string]interface{}{"type": "pause", "duration": durationMs}
}

// Tap presses at p for holdMs milliseconds.
func (c *Client) Tap(ctx context.Context, p Point, holdMs int) error {
	return c.sessionCall(ctx, http.MethodPost, "/actions",
		touchSequence(move(p, 0), down(), pause(holdMs), up()), nil)
}

// DoubleTap taps twice at p with gapMs between the taps, in one action chain.
func (c *Client) DoubleTap(ctx context.Context, p Point, holdMs, gapMs int) error {
	return c.sessionCall(ctx, http.MethodPost, "/actions",
		touchSequence(move(p, 0), down(), pause(holdMs), up(), pause(gapMs), down(), pause(holdMs), up()), nil)
}

// Swipe drags a finger from one point to another over durationMs.
func (c *Client) Swipe(ctx context.Context, from, to Point, durationMs int) error {
	return c.sessionCall(ctx, http.MethodPost, "/actions",
		touchSequence(move(from, 0), down(), move(to, durationMs), up()), nil)
}

// FindElement looks an element up by xpath; a miss is ErrNoSuchElement.
func (c *Client) FindElement(ctx context.Context, xpath string) (string, error) {
	var ref map[string]string
	body := map[string]string{"using": "xpath", "value": xpath}
	if err := c.sessionCall(ctx, http.MethodPost, "/element", body, &ref); err != nil {
		return "", err
	}
	if id := ref[w3cElementKey]; id != "" {
		return id, nil
	}
	if id := ref["ELEMENT"]; id != "" {
		return id, nil
	}
	return "", fmt.Errorf("find %s: %w", xpath, ErrNoSuchElement)
}

func (c *Client) Click(ctx context.Context, elementID string) error {
	return c.sessionCall(ctx, http.MethodPost, "/element/"+elementID+"/click", map[string]string{}, nil)
}

func (c *Client) Back(ctx context.Context) error {
	return c.sessionCall(ctx, http.MethodPost, "/back", map[string]string{}, nil)
}

// PressKeycode sends an Android key event, e.g. 3 for HOME.
func (c *Client) PressKeycode(ctx context.Context, keycode int) error {
	return c.execute(ctx, "mobile: pressKey", map[string]interface{}{"keycode": keycode}, nil)
}

// Clipboard returns the device clipboard as plain text.
func (c *Client) Clipboard(ctx context.Context) (string, error) {
	var encoded string
	if err := c.execute(ctx, "mobile: getClipboard", map[string]interface{}{"contentType": "plaintext"}, &encoded); err != nil {
		return "", err
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode clipboard: %w", err)
	}
	return string(decoded), nil
}

// Screenshot returns the current screen as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	var encoded string
	if err := c.sessionCall(ctx, http.MethodGet, "/screenshot", nil, &encoded); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func (c *Client) ActivateApp(ctx context.Context, appID string) error {
	return c.execute(ctx, "mobile: activateApp", map[string]interface{}{"appId": appID}, nil)
}

func (c *Client) IsAppInstalled(ctx context.Context, appID string) (bool, error) {
	var installed bool
	err := c.execute(ctx, "mobile: isAppInstalled", map[string]interface{}{"appId": appID}, &installed)
	return installed, err
}

func (c *Client) CurrentPackage(ctx context.Context) (string, error) {
	var pkg string
	err := c.execute(ctx, "mobile: getCurrentPackage", nil, &pkg)
	return pkg, err
}

// StartRecording begins a screen capture with opts.
func (c *Client) StartRecording(ctx context.Context, opts RecordingOptions) error {
	if opts.Audio {
		return c.execute(ctx, "mobile: startMediaProjectionRecording", map[string]interface{}{
			"resolution":     mediaProjectionResolution(opts.VideoSize),
			"maxDurationSec": opts.TimeLimit,
			"priority":       "high",
		}, nil)
	}
	return c.sessionCall(ctx, http.MethodPost, "/appium/start_recording_screen", map[string]interface{}{
		"options": map[string]interface{}{
			"videoSize": opts.VideoSize,
			"bitRate":   opts.BitRate,
			"timeLimit": strconv.Itoa(opts.TimeLimit),
		},
	}, nil)
}

// StopRecording ends the capture started with the same opts and returns the
// base64 encoded video.
func (c *Client) StopRecording(ctx context.Context, opts RecordingOptions) (string, error) {
	var encoded string
	if opts.Audio {
		err := c.execute(ctx, "mobile: stopMediaProjectionRecording", nil, &encoded)
		return encoded, err
	}
	err := c.sessionCall(ctx, http.MethodPost, "/appium/stop_recording_screen",
		map[string]interface{}{"options": map[string]interface{}{}}, &encoded)
	return encoded, err
}

// mediaProjectionResolution flips "720x1280" into the landscape form the
// media projection recorder expects ("1280x720").
func mediaProjectionResolution(videoSize string) string {
	var w, h int
	if _, err := fmt.Sscanf(videoSize, "%dx%d", &w, &h); err != nil || w == 0 || h == 0 {
		return "1280x720"
	}
	if w < h {
		w, h = h, w
	}
	return fmt.Sprintf("%dx%d", w, h)
}
