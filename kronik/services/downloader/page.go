package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"kronik/kronik/types"
	"kronik/kronik/utils/logging"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const maxPageBytes = 4 << 20

// PageFetcher loads a page and reports the url it finally landed on.
type PageFetcher interface {
	FetchPage(ctx context.Context, link string) (finalURL, html string, err error)
}

type httpFetcher struct {
	client *http.Client
}

func (f httpFetcher) FetchPage(ctx context.Context, link string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("failed to fetch %s: status %d", link, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", link, err)
	}
	return resp.Request.URL.String(), string(body), nil
}

// WithPageFetcher replaces the plain HTTP page fetcher, e.g. with a
// headless browser.
func (d *Downloader) WithPageFetcher(f PageFetcher) *Downloader {
	d.pages = f
	return d
}

// PageMetadata resolves a share link (following short-link redirects) and
// reads the Open Graph tags of the landing page. The returned VideoURL is the
// canonical page url without query or fragment, so the same video copied
// twice maps to the same row.
func (d *Downloader) PageMetadata(ctx context.Context, link string) (types.VideoInfo, error) {
	defer logging.LogDuration(ctx, "downloader_page_metadata")()

	finalURL, html, err := d.pages.FetchPage(ctx, link)
	if err != nil {
		return types.VideoInfo{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return types.VideoInfo{}, fmt.Errorf("failed to parse %s: %w", link, err)
	}

	base, err := url.Parse(finalURL)
	if err != nil || !isWebURL(base) {
		return types.VideoInfo{}, fmt.Errorf("fetch of %s landed on invalid url %q", link, finalURL)
	}

	// Tags may be relative or protocol-relative; an unusable one is skipped.
	canonical := resolveAttr(base, doc, "href", `link[rel="canonical"]`)
	if canonical == "" {
		canonical = resolveAttr(base, doc, "content", `meta[property="og:url"]`)
	}
	if canonical == "" {
		canonical = base.String()
	}

	info := types.VideoInfo{VideoURL: CanonicalURL(canonical)}
	if title := firstAttr(doc, "content", `meta[property="og:title"]`); title != "" {
		info.Title = &title
	} else if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		info.Title = &title
	}
	if image := resolveAttr(base, doc, "content", `meta[property="og:image"]`); image != "" {
		info.ThumbnailURL = &image
	}
	if channel := channelFromPath(info.VideoURL); channel != "" {
		channelURL := "https://www.tiktok.com/@" + channel
		info.Channel = &channel
		info.ChannelURL = &channelURL
	}

	d.log.Debug("page metadata", zap.String("link", link), zap.String("canonical", info.VideoURL))
	return info, nil
}

func firstAttr(doc *goquery.Document, attr, selector string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

// resolveAttr reads the attribute like firstAttr and resolves it against
// base. It returns "" unless the result is an absolute http(s) url.
func resolveAttr(base *url.URL, doc *goquery.Document, attr, selector string) string {
	raw := firstAttr(doc, attr, selector)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if !isWebURL(u) {
		return ""
	}
	return u.String()
}

func isWebURL(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CanonicalURL drops the query string and fragment of raw.
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// channelFromPath extracts "user" from ".../@user/video/123".
func channelFromPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(u.Path, "/") {
		if strings.HasPrefix(part, "@") && len(part) > 1 {
			return part[1:]
		}
	}
	return ""
}
