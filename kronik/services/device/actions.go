package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
)

const keycodeHome = 3

type KeyPresser interface {
	PressKeycode(ctx context.Context, keycode int) error
}

type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

type Swiper interface {
	WindowSize(ctx context.Context) (Size, error)
	Swipe(ctx context.Context, from, to Point, durationMs int) error
}

// Home navigates to the device home screen.
func Home(ctx context.Context, d KeyPresser) error {
	logging.Named("device").Info("navigating to home screen")
	if err := d.PressKeycode(ctx, keycodeHome); err != nil {
		return fmt.Errorf("failed to navigate home: %w", err)
	}
	return nil
}

// TakeScreenshot saves the current screen as dir/screenshot_<ts>.png.
func TakeScreenshot(ctx context.Context, d Screenshotter, dir string, now time.Time) (string, error) {
	png, err := d.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("screenshot_%s.png", now.Format("20060102_150405")))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}
	logging.Named("device").Debug("screenshot saved", zap.String("path", path))
	return path, nil
}

// verticalSwipe drags along the horizontal center between the given height fractions.
func verticalSwipe(ctx context.Context, d Swiper, fromFrac, toFrac float64) error {
	size, err := d.WindowSize(ctx)
	if err != nil {
		return err
	}
	x := size.Width / 2
	from := Point{X: x, Y: int(float64(size.Height) * fromFrac)}
	to := Point{X: x, Y: int(float64(size.Height) * toFrac)}
	return d.Swipe(ctx, from, to, 250)
}

// ScrollUp swipes from 75% to 25% of the screen height, advancing the feed.
func ScrollUp(ctx context.Context, d Swiper) error {
	logging.Named("device").Debug("scrolling up")
	return verticalSwipe(ctx, d, 0.75, 0.25)
}

// ScrollDown swipes from 25% to 75% of the screen height, back to the
// previous video.
func ScrollDown(ctx context.Context, d Swiper) error {
	logging.Named("device").Debug("scrolling down")
	return verticalSwipe(ctx, d, 0.25, 0.75)
}
