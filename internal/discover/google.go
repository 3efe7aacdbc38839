package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ppiankov/casefile/internal/worker"
)

// pageSize is the most results the Custom Search API returns per request
const pageSize = 10

// Searcher returns result links for one page of a query. start is 1-based.
type Searcher interface {
	Search(ctx context.Context, query string, start, num int) ([]string, error)
}

// GoogleSearcher queries a Programmable Search Engine
type GoogleSearcher struct {
	service  *customsearch.Service
	engineID string
}

// NewGoogleSearcher creates a searcher for engineID. Extra client options
// (endpoint, HTTP client) are passed to the API client.
func NewGoogleSearcher(ctx context.Context, apiKey, engineID string, opts ...option.ClientOption) (*GoogleSearcher, error) {
	if apiKey == "" || engineID == "" {
		return nil, errors.New("google api key and search engine id are required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}
	return &GoogleSearcher{service: service, engineID: engineID}, nil
}

// Search runs one page of query
func (g *GoogleSearcher) Search(ctx context.Context, query string, start, num int) ([]string, error) {
	res, err := g.service.Cse.List().
		Q(query).
		Cx(g.engineID).
		Num(int64(num)).
		Start(int64(start)).
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("custom search: HTTP %d: %s", apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("custom search: %w", err)
	}

	links := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		if item.Link != "" {
			links = append(links, item.Link)
		}
	}
	return links, nil
}

// Collector pages through search results
type Collector struct {
	searcher Searcher
	pause    time.Duration
	logger   *slog.Logger

	// sleep is replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCollector creates a collector pausing between pages
func NewCollector(searcher Searcher, pause time.Duration, logger *slog.Logger) *Collector {
	return &Collector{searcher: searcher, pause: pause, logger: logger, sleep: worker.Sleep}
}

// Collect fetches up to maxResults links, stopping at the first empty or
// failed page
func (c *Collector) Collect(ctx context.Context, query string, maxResults int) []string {
	var links []string
	pages := (maxResults + pageSize - 1) / pageSize

	for page := 0; page < pages; page++ {
		start := 1 + page*pageSize
		c.logger.Info("fetching search page", "page", page+1, "start", start)

		results, err := c.searcher.Search(ctx, query, start, pageSize)
		if err != nil {
			c.logger.Error("search request failed", "start", start, "error", err)
			break
		}
		if len(results) == 0 {
			c.logger.Warn("no results returned, ending search", "start", start)
			break
		}
		links = append(links, results...)

		if err := c.sleep(ctx, c.pause); err != nil {
			break
		}
	}

	if len(links) > maxResults {
		links = links[:maxResults]
	}
	return links
}
