package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

// Fetcher retrieves the HTML of an article page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher performs a plain GET. Sufficient for server-rendered article
// pages, which is most financial news sources.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPFetcher creates a plain-HTTP fetcher.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
	}
}

// Fetch downloads the page body.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("scrape: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape: page returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("scrape: read body: %w", err)
	}

	return string(body), nil
}

// RenderFetcher drives a headless browser so pages that assemble their
// content with JavaScript still yield extractable HTML.
type RenderFetcher struct {
	UserAgent string
	Logger    *slog.Logger
}

// NewRenderFetcher creates a headless-browser fetcher.
func NewRenderFetcher(userAgent string, logger *slog.Logger) *RenderFetcher {
	return &RenderFetcher{
		UserAgent: userAgent,
		Logger:    logger.With(slog.String("component", "render_fetcher")),
	}
}

// Fetch navigates to the page and returns the rendered document.
func (f *RenderFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()

	var rendered string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &rendered, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("scrape: render %s: %w", pageURL, err)
	}

	f.Logger.DebugContext(ctx, "page rendered",
		slog.String("url", pageURL),
		slog.String("duration", time.Since(start).String()))

	return rendered, nil
}
