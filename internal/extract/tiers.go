package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/casefile/internal/extract/adapters"
)

// Fetcher downloads a page over plain HTTP
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Renderer returns the markup of a page after scripts ran
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(ctx context.Context, url string) (string, error)

// Render calls f
func (f RendererFunc) Render(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// ArticleTier downloads the page and applies the article adapters
type ArticleTier struct {
	fetcher  Fetcher
	registry *adapters.Registry
	base     adapters.BaseAdapter
}

// NewArticleTier creates the first-tier extractor
func NewArticleTier(fetcher Fetcher, registry *adapters.Registry) *ArticleTier {
	if registry == nil {
		registry = adapters.NewRegistry()
	}
	return &ArticleTier{fetcher: fetcher, registry: registry}
}

func (t *ArticleTier) Name() string { return TierArticle }

func (t *ArticleTier) Extract(ctx context.Context, url string) (string, error) {
	page, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	doc, err := t.base.ParseHTML(page)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	text, _ := t.registry.Extract(doc, url)
	return text, nil
}

// ReadabilityTier downloads the page and runs readability scoring over it
type ReadabilityTier struct {
	fetcher Fetcher
}

// NewReadabilityTier creates the second-tier extractor
func NewReadabilityTier(fetcher Fetcher) *ReadabilityTier {
	return &ReadabilityTier{fetcher: fetcher}
}

func (t *ReadabilityTier) Name() string { return TierReadability }

func (t *ReadabilityTier) Extract(ctx context.Context, url string) (string, error) {
	page, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return Readability(page)
}

// RenderedTier renders the page in a fresh headless browser before running
// readability, for sites that build the story with scripts
type RenderedTier struct {
	renderer Renderer
}

// NewRenderedTier creates the last-resort extractor
func NewRenderedTier(renderer Renderer) *RenderedTier {
	return &RenderedTier{renderer: renderer}
}

func (t *RenderedTier) Name() string { return TierRendered }

func (t *RenderedTier) Extract(ctx context.Context, url string) (string, error) {
	if t.renderer == nil {
		return "", errors.New("no renderer configured")
	}
	page, err := t.renderer.Render(ctx, url)
	if err != nil {
		return "", err
	}
	return Readability(page)
}
