// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/pdiddy/search-agent/pkg/types"
)

const defaultBrowserTimeout = 30 * time.Second

// innerTextJS reads the rendered text of the main content area.
const innerTextJS = `(() => {
  const root = document.querySelector('article') || document.querySelector('main') || document.body;
  if (!root) return '';
  root.querySelectorAll('script,style,noscript,nav,header,footer,aside,form').forEach(e => e.remove());
  return root.innerText || '';
})()`

// BrowserFetcher renders pages in headless Chrome, for sites that build
// their content with JavaScript. Each Fetch launches and tears down its own
// browser so no state survives between turns.
type BrowserFetcher struct {
	opts     []chromedp.ExecAllocatorOption
	timeout  time.Duration
	maxChars int
}

// NewBrowserFetcher returns a fetcher with cfg's timeout, User-Agent, and
// text limit. A local Chrome or Chromium installation is required.
func NewBrowserFetcher(cfg types.ScrapeConfig) *BrowserFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultBrowserTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = types.DefaultUserAgent
	}

	// Copy the defaults to avoid mutating the package-level slice.
	opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
	copy(opts, chromedp.DefaultExecAllocatorOptions[:])
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(ua),
		chromedp.WindowSize(1280, 720),
	)

	return &BrowserFetcher{opts: opts, timeout: timeout, maxChars: cfg.MaxChars}
}

// Fetch navigates to url, waits for the body, and reads its rendered text.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (types.Document, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return types.Document{}, errors.New("fetch url is empty")
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()
	runCtx, cancelRun := context.WithTimeout(tabCtx, b.timeout)
	defer cancelRun()

	var title, text string
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
		chromedp.Evaluate(innerTextJS, &text),
	); err != nil {
		return types.Document{}, fmt.Errorf("rendering %s: %w", url, err)
	}

	return document(url, title, text, b.maxChars)
}
