package control

import (
	"context"
	"errors"
	"regexp"
	"time"

	"kronik/kronik/services/device"
	"kronik/kronik/utils/logging"
	waitutil "kronik/kronik/utils/wait"

	"go.uber.org/zap"
)

const (
	shareButtonXPath = "//*[contains(@content-desc, 'Share')]"
	copyLinkXPath    = "//android.widget.TextView[@text='Copy link']"
)

var linkPattern = regexp.MustCompile(`https?://\S+`)

// TikTokDevice is the device surface the TikTok controller drives.
type TikTokDevice interface {
	device.Swiper
	DoubleTap(ctx context.Context, p device.Point, holdMs, gapMs int) error
	FindElement(ctx context.Context, xpath string) (string, error)
	Click(ctx context.Context, elementID string) error
	Back(ctx context.Context) error
	Clipboard(ctx context.Context) (string, error)
}

// TikTokController performs feed interactions. Device failures are logged
// and reported as false or "" so one bad gesture never ends a session.
type TikTokController struct {
	device      TikTokDevice
	elementWait time.Duration
	log         *zap.Logger
}

func NewTikTokController(d TikTokDevice) *TikTokController {
	return &TikTokController{device: d, elementWait: 3 * time.Second, log: logging.Named("control")}
}

// Like double taps the center of the screen.
func (c *TikTokController) Like(ctx context.Context) bool {
	size, err := c.device.WindowSize(ctx)
	if err != nil {
		c.log.Error("error performing like action", zap.Error(err), logging.TraceField(ctx))
		return false
	}
	center := device.Point{X: size.Width / 2, Y: size.Height / 2}
	if err := c.device.DoubleTap(ctx, center, 100, 100); err != nil {
		c.log.Error("error performing like action", zap.Error(err), logging.TraceField(ctx))
		return false
	}
	c.log.Debug("double tap performed", logging.TraceField(ctx))
	return true
}

// ScrollNext advances the feed to the next video.
func (c *TikTokController) ScrollNext(ctx context.Context) bool {
	if err := device.ScrollUp(ctx, c.device); err != nil {
		c.log.Error("error scrolling to next video", zap.Error(err), logging.TraceField(ctx))
		return false
	}
	return true
}

func (c *TikTokController) waitForElement(ctx context.Context, xpath string) (string, error) {
	var id string
	var lastErr error
	err := waitutil.Until(ctx, 250*time.Millisecond, c.elementWait, func(ctx context.Context) bool {
		id, lastErr = c.device.FindElement(ctx, xpath)
		return lastErr == nil
	})
	if err != nil {
		if lastErr != nil && !errors.Is(lastErr, device.ErrNoSuchElement) {
			return "", lastErr
		}
		return "", err
	}
	return id, nil
}

func (c *TikTokController) tapElement(ctx context.Context, xpath string) error {
	id, err := c.waitForElement(ctx, xpath)
	if err != nil {
		return err
	}
	return c.device.Click(ctx, id)
}

// GetLink copies the share link of the current video through the share
// sheet and returns it, or "" when any step fails. The sheet is always
// dismissed with a back press.
func (c *TikTokController) GetLink(ctx context.Context) string {
	defer func() {
		if err := c.device.Back(context.WithoutCancel(ctx)); err != nil {
			c.log.Debug("failed to dismiss share sheet", zap.Error(err))
		}
	}()

	if err := c.tapElement(ctx, shareButtonXPath); err != nil {
		c.logLinkError(ctx, "share button", err)
		return ""
	}
	if err := c.tapElement(ctx, copyLinkXPath); err != nil {
		c.logLinkError(ctx, "copy link button", err)
		return ""
	}
	text, err := c.device.Clipboard(ctx)
	if err != nil {
		c.logLinkError(ctx, "clipboard", err)
		return ""
	}
	link := ExtractLink(text)
	if link == "" {
		c.log.Warn("clipboard holds no link", zap.String("clipboard", text), logging.TraceField(ctx))
		return ""
	}
	c.log.Debug("copied tiktok link", zap.String("link", link), logging.TraceField(ctx))
	return link
}

func (c *TikTokController) logLinkError(ctx context.Context, step string, err error) {
	if errors.Is(err, waitutil.ErrTimeout) {
		c.log.Warn("timeout while trying to get tiktok link", zap.String("step", step), logging.TraceField(ctx))
		return
	}
	c.log.Error("error getting tiktok link", zap.String("step", step), zap.Error(err), logging.TraceField(ctx))
}

// ExtractLink returns the first http(s) url in text. Share text often wraps
// the link in a sentence.
func ExtractLink(text string) string {
	return linkPattern.FindString(text)
}
