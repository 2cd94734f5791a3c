package scraper

import (
	"context"
	"fmt"
	"time"

	"kronik/kronik/utils/logging"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const (
	defaultRenderTimeout = 15 * time.Second
	renderUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Renderer loads pages in headless Chromium so share links that only
// resolve client-side still yield their canonical page and meta tags.
type Renderer struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	timeout time.Duration
	log     *zap.Logger
}

// NewRenderer starts Playwright and one shared browser. Browsers must be
// installed beforehand (playwright install chromium).
func NewRenderer(timeout time.Duration) (*Renderer, error) {
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-gpu",
			"--no-sandbox",
			"--disable-dev-shm-usage",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}
	return &Renderer{pw: pw, browser: browser, timeout: timeout, log: logging.Named("scraper")}, nil
}

// Close stops the browser and Playwright.
func (r *Renderer) Close() {
	if r.browser != nil {
		r.browser.Close()
	}
	if r.pw != nil {
		r.pw.Stop()
	}
}

// FetchPage navigates to link and returns the final url after redirects and
// the rendered document. Images and fonts are not loaded.
func (r *Renderer) FetchPage(ctx context.Context, link string) (string, string, error) {
	defer logging.LogDuration(ctx, "scraper_render")()

	bctx, err := r.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(renderUserAgent),
		Viewport:  &playwright.Size{Width: 1080, Height: 1920},
		Locale:    playwright.String("en-US"),
	})
	if err != nil {
		return "", "", err
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return "", "", err
	}
	defer page.Close()

	if err := page.Route("**/*.{png,jpg,jpeg,gif,svg,webp,woff,woff2,mp4}", func(route playwright.Route) {
		route.Abort()
	}); err != nil {
		return "", "", err
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if _, err := page.Goto(link, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", link, err)
	}

	content, err := page.Content()
	if err != nil {
		return "", "", err
	}
	r.log.Debug("rendered page", zap.String("link", link), zap.String("final", page.URL()), logging.TraceField(ctx))
	return page.URL(), content, nil
}
