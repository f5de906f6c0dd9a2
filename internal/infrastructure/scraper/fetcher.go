package scraper

import (
	"context"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
	defaultPageTimeout = 60 * time.Second
	maxPageBytes       = 16 << 20
)

// errSourceTransient marks failures worth retrying on the next cycle:
// network errors, timeouts, 5xx and 429 responses, a crashed browser.
var errSourceTransient = crerr.New("bookmaker source transient failure")

// IsTransient reports whether err came from a retryable source failure.
func IsTransient(err error) bool {
	return crerr.Is(err, errSourceTransient)
}

// PageFetcher returns the rendered HTML of a listing page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Close() error
}

type HTTPFetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// HTTPFetcher is a plain GET for sources that render server side.
type HTTPFetcher struct {
	client    *fasthttp.Client
	userAgent string
	timeout   time.Duration
}

func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPageTimeout
	}
	return &HTTPFetcher{
		client: &fasthttp.Client{
			Name:                     cfg.UserAgent,
			MaxResponseBodySize:      maxPageBytes,
			ReadTimeout:              cfg.Timeout,
			WriteTimeout:             cfg.Timeout,
			NoDefaultUserAgentHeader: true,
		},
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, crerr.Wrap(err, "fetch page")
	}
	if timeout <= 0 {
		return nil, crerr.Mark(crerr.Newf("fetch %s: no time left in cycle", url), errSourceTransient)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	if err := f.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, crerr.Mark(crerr.Wrapf(err, "fetch %s", url), errSourceTransient)
	}

	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
	case status == fasthttp.StatusTooManyRequests || status >= 500:
		return nil, crerr.Mark(crerr.Newf("fetch %s: status=%d", url, status), errSourceTransient)
	default:
		return nil, crerr.Newf("fetch %s: status=%d", url, status)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
