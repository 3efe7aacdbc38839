package discover

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/casefile/internal/model"
)

// Runner executes configured search runs and exports their results
type Runner struct {
	collector  *Collector
	outputDir  string
	maxResults int
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner creates a runner writing exports to outputDir
func NewRunner(searcher Searcher, cfg model.SearchConfig, outputDir string, logger *slog.Logger) *Runner {
	return &Runner{
		collector:  NewCollector(searcher, cfg.PagePause, logger),
		outputDir:  outputDir,
		maxResults: cfg.MaxResults,
		logger:     logger,
		now:        time.Now,
	}
}

// Report is the result of one search run
type Report struct {
	SearchID string
	Query    string
	Found    int
	Kept     int
	Path     string
}

// Run searches the last daysBack days for run and writes the kept URLs to
// a CSV export. No file is written when nothing was found.
func (r *Runner) Run(ctx context.Context, run model.SearchRun, daysBack int) (*Report, error) {
	if daysBack <= 0 {
		daysBack = run.DaysBack
	}
	if daysBack <= 0 {
		daysBack = 7
	}
	id := run.ID
	if id == "" {
		id = "default_search"
	}

	to := r.now()
	query := BuildQuery(QueryOptions{
		Region:          run.Region,
		ExcludedDomains: run.ExcludedDomains,
		From:            to.AddDate(0, 0, -daysBack),
		To:              to,
	})
	r.logger.Info("searching for articles", "search", id, "query", query)

	found := r.collector.Collect(ctx, query, r.maxResults)
	var kept []string
	for _, u := range found {
		if !Excluded(u, run.ExcludedDomains) {
			kept = append(kept, u)
		}
	}

	report := &Report{SearchID: id, Query: query, Found: len(found), Kept: len(kept)}
	r.logger.Info("retrieved articles", "search", id, "found", len(found), "kept", len(kept), "days_back", daysBack)
	if len(kept) == 0 {
		return report, nil
	}

	path, err := WriteCSV(r.outputDir, id, kept, to)
	if err != nil {
		return report, err
	}
	report.Path = path
	r.logger.Info("csv file created", "path", path)
	return report, nil
}
