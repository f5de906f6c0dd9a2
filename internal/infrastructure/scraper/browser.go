package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
)

const defaultReadySelector = "body"

type BrowserFetcherConfig struct {
	UserAgent     string
	ReadySelector string
	Timeout       time.Duration
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	Logger   *logging.Logger
}

// BrowserFetcher renders pages in one long-lived headless Chrome. Each fetch
// runs in its own tab. A browser that fails is dropped and started again on
// the next fetch.
type BrowserFetcher struct {
	mu sync.Mutex

	userAgent     string
	readySelector string
	timeout       time.Duration
	execPath      string
	logger        *logging.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func NewBrowserFetcher(cfg BrowserFetcherConfig) *BrowserFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.ReadySelector == "" {
		cfg.ReadySelector = defaultReadySelector
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPageTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &BrowserFetcher{
		userAgent:     cfg.UserAgent,
		readySelector: cfg.ReadySelector,
		timeout:       cfg.Timeout,
		execPath:      cfg.ExecPath,
		logger:        cfg.Logger.Named("browser"),
	}
}

// Fetch is serialized; the bookmaker page is heavy and one tab at a time is
// what the browser is sized for.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	browserCtx, err := f.browserLocked()
	if err != nil {
		return nil, err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, f.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(f.readySelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, crerr.Wrap(ctxErr, "render page")
		}
		if browserCtx.Err() != nil || !crerr.Is(err, context.DeadlineExceeded) {
			f.logger.WarnContext(ctx, "browser failed, restarting on next fetch", "url", url, "error", err)
			f.teardownLocked()
		}
		return nil, crerr.Mark(crerr.Wrapf(err, "render %s", url), errSourceTransient)
	}
	return []byte(html), nil
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardownLocked()
	return nil
}

func (f *BrowserFetcher) browserLocked() (context.Context, error) {
	if f.browserCtx != nil && f.browserCtx.Err() == nil {
		return f.browserCtx, nil
	}
	f.teardownLocked()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(f.userAgent),
	)
	if f.execPath != "" {
		opts = append(opts, chromedp.ExecPath(f.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			f.logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			f.logger.Warn(fmt.Sprintf(format, args...))
		}),
	)
	// An empty run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, crerr.Mark(crerr.Wrap(err, "start browser"), errSourceTransient)
	}

	f.allocCancel = allocCancel
	f.browserCtx = browserCtx
	f.browserCancel = browserCancel
	f.logger.Info("browser started")
	return browserCtx, nil
}

func (f *BrowserFetcher) teardownLocked() {
	if f.browserCancel != nil {
		f.browserCancel()
	}
	if f.allocCancel != nil {
		f.allocCancel()
	}
	f.browserCtx = nil
	f.browserCancel = nil
	f.allocCancel = nil
}
