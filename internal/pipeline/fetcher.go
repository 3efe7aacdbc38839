package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ppiankov/casefile/internal/cache"
	"github.com/ppiankov/casefile/internal/model"
	"github.com/ppiankov/casefile/internal/util"
	"github.com/ppiankov/casefile/internal/worker"
)

// pageTTL keeps a downloaded page long enough for every HTTP tier of one URL
const pageTTL = 10 * time.Minute

// ErrDisallowed is returned when robots.txt forbids the fetch
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError is a non-200 response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Fetcher downloads article pages for the HTTP extraction tiers
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	pages      cache.Cache
	logger     *slog.Logger
}

// NewFetcher creates a new Fetcher. limiter and pages may be nil.
func NewFetcher(cfg model.HTTPConfig, limiter *worker.Limiter, pages cache.Cache, logger *slog.Logger) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy)

	f := &Fetcher{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		limiter:   limiter,
		pages:     pages,
		logger:    logger,
	}
	if f.userAgent == "" {
		f.userAgent = model.DefaultUserAgent
	}
	if f.maxBytes <= 0 {
		f.maxBytes = model.DefaultConfig().HTTP.MaxBodyBytes
	}
	if cfg.RespectRobotsTxt {
		f.robots = util.NewRobotsChecker(f.userAgent, cfg.Timeout, nil)
	}
	return f
}

// Fetch retrieves the HTML of rawURL. Any status other than 200 is an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	key := cache.Key("page", rawURL)
	if f.pages != nil {
		if body, ok := f.pages.Get(key); ok {
			return string(body), nil
		}
	}

	if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
		return "", fmt.Errorf("fetch %s: %w", rawURL, ErrDisallowed)
	}
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	// Read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if f.pages != nil {
		if err := f.pages.Set(key, body, pageTTL); err != nil && f.logger != nil {
			f.logger.Warn("failed to cache page", "url", rawURL, "error", err)
		}
	}
	return string(body), nil
}
