// Package daangn renders daangn.com buy-sell pages in headless Chrome and
// reads listing cards and detail pages out of the rendered DOM.
package daangn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"daangn-crawler/config"
	"daangn-crawler/models"
	"daangn-crawler/pipeline"
	"daangn-crawler/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Browser is a pipeline.Surface backed by one shared Chrome process. Every
// list page and detail fetch gets its own tab.
type Browser struct {
	crawl  config.CrawlConfig
	detail config.DetailConfig
	logger *utils.Logger
	retry  *utils.RetryConfig

	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

var _ pipeline.Surface = (*Browser)(nil)

// NewBrowser starts Chrome. The process lives until Close, independent of
// any run context, so an interrupted run can still shut it down cleanly.
func NewBrowser(cfg config.Config, logger *utils.Logger) (*Browser, error) {
	chromeBin := findChromeBinary(cfg.Browser.ChromeBin)
	if chromeBin != "" {
		logger.Info("[browser] Using browser binary: %s", chromeBin)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Browser.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("daangn: start browser: %w", err)
	}

	return &Browser{
		crawl:  cfg.Crawl,
		detail: cfg.Detail,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.Crawl.ListRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}

// newTab opens a tab that is closed when ctx ends or the returned cancel
// func is called.
func (b *Browser) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	stop := context.AfterFunc(ctx, cancel)
	return tabCtx, func() {
		stop()
		cancel()
	}
}

// OpenList navigates a fresh tab to the search URL and waits for the first
// cards. A page that shows no cards within LIST_WAIT_TIMEOUT is still
// returned; the expander then sees zero cards and stops.
func (b *Browser) OpenList(ctx context.Context, searchURL string) (pipeline.ListPage, error) {
	var page *listPage

	err := b.retry.Do(ctx, "open-list", func(ctx context.Context) error {
		tabCtx, cancel := b.newTab(ctx)

		if err := chromedp.Run(tabCtx, chromedp.Navigate(searchURL)); err != nil {
			cancel()
			return fmt.Errorf("navigate: %w", ctxErr(ctx, err))
		}

		waitCtx, cancelWait := context.WithTimeout(tabCtx, b.crawl.ListWaitTimeout)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(ItemSelector, chromedp.ByQuery))
		cancelWait()
		if err != nil {
			if ctx.Err() != nil {
				cancel()
				return ctx.Err()
			}
			b.logger.Warn("[browser] No listing cards after %v", b.crawl.ListWaitTimeout)
		}

		var title string
		if err := chromedp.Run(tabCtx, chromedp.Title(&title)); err == nil {
			b.logger.Info("[browser] Page title: %s", title)
		}

		page = &listPage{ctx: tabCtx, cancel: cancel, base: searchURL, logger: b.logger, clickTimeout: b.crawl.PollMax}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// FetchDetail renders one detail page in its own tab. If the article does not
// appear within DETAIL_WAIT_TIMEOUT the page is read anyway after a short
// fallback delay. The caller bounds the whole fetch through ctx.
func (b *Browser) FetchDetail(ctx context.Context, detailURL string) (*models.ListingDetail, error) {
	tabCtx, cancel := b.newTab(ctx)
	defer cancel()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(detailURL)); err != nil {
		return nil, fmt.Errorf("daangn: navigate detail: %w", ctxErr(ctx, err))
	}

	waitCtx, cancelWait := context.WithTimeout(tabCtx, b.detail.WaitTimeout)
	err := chromedp.Run(waitCtx, chromedp.WaitVisible(DetailReadySelector, chromedp.ByQuery))
	cancelWait()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b.logger.Debug("[detail] %s not ready after %v, reading anyway", detailURL, b.detail.WaitTimeout)
		if err := utils.Sleep(ctx, b.detail.FallbackDelay); err != nil {
			return nil, err
		}
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("daangn: read detail: %w", ctxErr(ctx, err))
	}
	return ParseDetailHTML(html)
}

// ctxErr prefers the caller's context error over the tab error it caused.
func ctxErr(ctx context.Context, err error) error {
	if ctxE := ctx.Err(); ctxE != nil && !errors.Is(err, ctxE) {
		return ctxE
	}
	return err
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(preferred string) string {
	if preferred != "" {
		return preferred
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
