package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/casefile/internal/browser"
	"github.com/ppiankov/casefile/internal/metrics"
	"github.com/ppiankov/casefile/internal/model"
	"github.com/ppiankov/casefile/internal/worker"
)

// Navigator loads pages in the long-lived browser session
type Navigator interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
}

// ProbeFunc loads url in a throwaway session and returns the page title
type ProbeFunc func(ctx context.Context, url string) (string, error)

// Driver owns the long-lived browser session and decides whether a URL is
// reachable and loadable
type Driver struct {
	nav          Navigator
	probe        ProbeFunc
	limiter      *worker.Limiter
	probeTimeout time.Duration
	loadTimeout  time.Duration
	attempts     int
	retryDelay   time.Duration
	logger       *slog.Logger
	metrics      *metrics.Recorder

	// sleep is replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a driver over nav and probe
func NewDriver(nav Navigator, probe ProbeFunc, cfg *model.Config, limiter *worker.Limiter, logger *slog.Logger, rec *metrics.Recorder) *Driver {
	attempts := cfg.Retry.LoadAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Driver{
		nav:          nav,
		probe:        probe,
		limiter:      limiter,
		probeTimeout: cfg.Browser.ProbeTimeout,
		loadTimeout:  cfg.Browser.PageLoadTimeout,
		attempts:     attempts,
		retryDelay:   cfg.Retry.LoadDelay,
		logger:       logger,
		metrics:      rec,
		sleep:        worker.Sleep,
	}
}

// EnsureReachable reports whether url renders a page with a non-empty title
// in a fresh session. It is never retried.
func (d *Driver) EnsureReachable(ctx context.Context, url string) bool {
	if err := d.limiter.Wait(ctx, url); err != nil {
		return false
	}

	probeCtx := ctx
	if d.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, d.probeTimeout)
		defer cancel()
	}

	title, err := d.probe(probeCtx, url)
	if err != nil {
		d.logger.Warn("url not accessible", "url", url, "error", err)
		return false
	}
	if strings.TrimSpace(title) == "" {
		d.logger.Warn("url not accessible, empty title", "url", url)
		return false
	}
	return true
}

// Load navigates the long-lived session to url. Timeouts are retried after
// a delay; a driver failure ends the attempt at once.
func (d *Driver) Load(ctx context.Context, url string) bool {
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err := d.limiter.Wait(ctx, url); err != nil {
			return false
		}

		d.metrics.LoadAttempt()
		err := d.nav.Navigate(ctx, url, d.loadTimeout)
		if err == nil {
			d.logger.Info("page loaded", "url", url, "attempt", attempt)
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		if !errors.Is(err, browser.ErrTimeout) {
			d.logger.Error("driver failure, giving up", "url", url, "error", err)
			return false
		}

		d.logger.Warn("page load timed out", "url", url, "attempt", attempt, "max", d.attempts)
		if attempt == d.attempts {
			break
		}
		if err := d.sleep(ctx, d.retryDelay); err != nil {
			return false
		}
	}

	d.logger.Error("failed to load page after retries", "url", url, "attempts", d.attempts)
	return false
}
