package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/casefile/internal/discover"
	"github.com/ppiankov/casefile/internal/logging"
	"github.com/ppiankov/casefile/internal/model"
	"github.com/spf13/cobra"
)

var (
	daysBack   int
	outputDir  string
	searchIDs  []string
	maxResults int
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Search for candidate articles and export them as CSV",
	Long: `Discover runs the configured search queries against Google Custom Search:
- Trafficking terms and evidence terms (arrest, charged, ...) OR'd together
- Limited to news articles about the configured region
- Restricted to the last N days
- Excluded domains are dropped

Each run writes saved_urls_<search>_<timestamp>.csv to the output directory,
which 'casefile mine' reads as its candidate list.

Requires GOOGLE_API_KEY and GOOGLE_CSE_ID.

Example:
  casefile discover
  casefile discover --days-back 14
  casefile discover --search default_search --max-results 50`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().IntVar(&daysBack, "days-back", 0, "search the last N days (default: per search run, else 7)")
	discoverCmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for CSV exports (default from config)")
	discoverCmd.Flags().StringSliceVar(&searchIDs, "search", nil, "only run the search runs with these ids")
	discoverCmd.Flags().IntVar(&maxResults, "max-results", 0, "max results per search run (default from config)")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if maxResults > 0 {
		cfg.Search.MaxResults = maxResults
	}

	closeLog, err := setupLogging(cfg.Output)
	if err != nil {
		return err
	}
	defer closeLog()

	runs := selectRuns(cfg.Search.Runs, searchIDs)
	if len(runs) == 0 {
		return fmt.Errorf("no search runs configured (or none match --search)")
	}

	ctx, cancel := runContext()
	defer cancel()

	searcher, err := discover.NewGoogleSearcher(ctx, cfg.Search.APIKey, cfg.Search.EngineID)
	if err != nil {
		return err
	}
	runner := discover.NewRunner(searcher, cfg.Search, cfg.Output.Dir, logging.New("discover"))

	for _, run := range runs {
		report, err := runner.Run(ctx, run, daysBack)
		if err != nil {
			return fmt.Errorf("search %s: %w", run.ID, err)
		}
		if report.Path == "" {
			fmt.Fprintf(os.Stderr, "✗ %s: no articles found\n", report.SearchID)
		} else {
			fmt.Fprintf(os.Stderr, "✓ %s: kept %d of %d results -> %s\n", report.SearchID, report.Kept, report.Found, report.Path)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// selectRuns returns the runs whose id is in ids, or all runs when ids is empty
func selectRuns(runs []model.SearchRun, ids []string) []model.SearchRun {
	if len(ids) == 0 {
		return runs
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var selected []model.SearchRun
	for _, run := range runs {
		if wanted[run.ID] {
			selected = append(selected, run)
		}
	}
	return selected
}
