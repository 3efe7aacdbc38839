// Package extract turns a URL into article text through an ordered chain of
// extraction tiers, from a cheap download to a full browser render.
package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/casefile/internal/metrics"
	"github.com/ppiankov/casefile/internal/model"
)

// Tier is one extraction strategy
type Tier interface {
	Name() string
	Extract(ctx context.Context, url string) (string, error)
}

// Engine runs tiers in order and returns the first text that is long enough
type Engine struct {
	tiers     []Tier
	minLength int
	timeouts  map[string]time.Duration
	logger    *slog.Logger
	metrics   *metrics.Recorder
}

// NewEngine creates an engine over tiers; order is priority
func NewEngine(cfg model.ExtractionConfig, logger *slog.Logger, rec *metrics.Recorder, tiers ...Tier) *Engine {
	minLength := cfg.MinTextLength
	if minLength <= 0 {
		minLength = 100
	}
	return &Engine{
		tiers:     tiers,
		minLength: minLength,
		timeouts: map[string]time.Duration{
			TierArticle:     cfg.FetchTimeout,
			TierReadability: cfg.FetchTimeout,
			TierRendered:    cfg.RenderTimeout,
		},
		logger:  logger,
		metrics: rec,
	}
}

// Tier names, also used as metric labels
const (
	TierArticle     = "article"
	TierReadability = "readability"
	TierRendered    = "rendered"
)

// ExtractMainText returns the main text of url, or "" if every tier failed.
// Tier errors are logged and never returned.
func (e *Engine) ExtractMainText(ctx context.Context, url string) string {
	e.logger.Info("extracting article text", "url", url)

	for _, tier := range e.tiers {
		if ctx.Err() != nil {
			return ""
		}

		text, err := e.runTier(ctx, tier, url)
		if err != nil {
			e.logger.Error("extraction tier failed", "tier", tier.Name(), "url", url, "error", err)
			e.metrics.Tier(tier.Name(), "error")
			continue
		}

		text = strings.TrimSpace(text)
		if n := utf8.RuneCountInString(text); n < e.minLength {
			e.logger.Warn("extraction tier returned insufficient text", "tier", tier.Name(), "url", url, "chars", n)
			e.metrics.Tier(tier.Name(), "short")
			continue
		}

		e.logger.Info("article extracted", "tier", tier.Name(), "url", url, "chars", utf8.RuneCountInString(text))
		e.metrics.Tier(tier.Name(), "accepted")
		return text
	}

	return ""
}

func (e *Engine) runTier(ctx context.Context, tier Tier, url string) (string, error) {
	if timeout := e.timeouts[tier.Name()]; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return tier.Extract(ctx, url)
}
