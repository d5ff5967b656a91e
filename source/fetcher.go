// Package source opens catalog files from disk or over HTTP.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/motofit/config"
	"github.com/aluiziolira/motofit/metrics"
)

const maxCatalogBytes = 64 << 20

// Fetcher downloads remote catalogs with a colly collector and retries
// transient failures with capped exponential backoff.
type Fetcher struct {
	cfg       config.CatalogConfig
	collector *colly.Collector
	retry     *retryManager
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu           sync.Mutex // serialises downloads on the collector
	maxBody      int
	requestCount int64
}

// NewFetcher builds a fetcher configured from cfg. m may be nil.
func NewFetcher(cfg *config.Config, m *metrics.Metrics) *Fetcher {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.Catalog.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Catalog.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Catalog.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &Fetcher{
		cfg:       cfg.Catalog,
		collector: collector,
		metrics:   m,
		logger:    slog.Default(),
	}
	f.WithMaxBodySize(maxCatalogBytes)
	f.retry = newRetryManager(cfg.Catalog, m)
	f.configureHandlers()
	return f
}

// WithTransport swaps the HTTP transport, mainly for tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// WithMaxBodySize caps the catalog download size. Larger bodies fail with
// ErrTooLarge instead of being cut short.
func (f *Fetcher) WithMaxBodySize(n int) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxBody = n
	// One extra byte tells a body at the limit apart from a truncated one.
	f.collector.MaxBodySize = n + 1
	return f
}

// WithLogger overrides the fetcher's logger.
func (f *Fetcher) WithLogger(logger *slog.Logger) *Fetcher {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// RequestCount is the number of HTTP requests issued so far.
func (f *Fetcher) RequestCount() int {
	return int(atomic.LoadInt64(&f.requestCount))
}

// RetryCount is the number of retries scheduled so far.
func (f *Fetcher) RetryCount() int {
	return f.retry.TotalRetries()
}

// Open returns a reader over the catalog at location, which is either a local
// path or an http(s) URL.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !config.IsRemote(location) {
		file, err := os.Open(location)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrNotFound{Err: err}
			}
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		return file, nil
	}

	body, err := f.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// Fetch downloads rawURL, retrying transient failures until the retry budget
// or ctx runs out.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("catalog url must include a host")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.retry.Reset(rawURL)
	for {
		if err := ctx.Err(); err != nil {
			return nil, classifyError(err, 0)
		}

		body, status, err := f.visit(rawURL)
		if err == nil {
			return body, nil
		}

		classified := classifyError(err, status)
		category := ErrorTypeLabel(classified)
		f.metrics.IncFetchError(category)
		f.logger.Warn("catalog download failed",
			slog.String("url", rawURL),
			slog.String("category", category),
			slog.Int("status", status),
			slog.Any("error", err),
		)

		if !retryable(classified) {
			return nil, classified
		}
		delay, ok := f.retry.Schedule(rawURL)
		if !ok {
			return nil, classified
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, classifyError(ctx.Err(), 0)
		case <-timer.C:
		}
	}
}

func (f *Fetcher) visit(rawURL string) ([]byte, int, error) {
	reqCtx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil)

	status, _ := reqCtx.GetAny("status").(int)
	if err != nil {
		return nil, status, err
	}
	body, _ := reqCtx.GetAny("body").([]byte)
	if len(body) > f.maxBody {
		return nil, status, ErrTooLarge{Err: fmt.Errorf("catalog exceeds %d bytes", f.maxBody)}
	}
	return body, status, nil
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		atomic.AddInt64(&f.requestCount, 1)
		f.metrics.IncFetchRequest("started")
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
		f.metrics.IncFetchRequest("completed")
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			f.metrics.ObserveFetchDuration(time.Since(start))
		}
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put("status", r.StatusCode)
		f.metrics.IncFetchRequest("failed")
	})
}

type retryManager struct {
	cfg     config.CatalogConfig
	metrics *metrics.Metrics

	mu           sync.Mutex
	attempts     map[string]int
	totalRetries int
}

func newRetryManager(cfg config.CatalogConfig, m *metrics.Metrics) *retryManager {
	return &retryManager{
		cfg:      cfg,
		metrics:  m,
		attempts: make(map[string]int),
	}
}

// Schedule registers another attempt for url and returns how long to wait.
func (rm *retryManager) Schedule(url string) (time.Duration, bool) {
	if rm.cfg.MaxRetries == 0 {
		return 0, false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	attempt := rm.attempts[url]
	if attempt >= rm.cfg.MaxRetries {
		return 0, false
	}

	attempt++
	rm.attempts[url] = attempt
	rm.totalRetries++
	rm.metrics.IncFetchRetries()

	return rm.backoff(attempt), true
}

// Reset clears the attempt counter for url before a fresh download.
func (rm *retryManager) Reset(url string) {
	rm.mu.Lock()
	delete(rm.attempts, url)
	rm.mu.Unlock()
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}
