package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/casefile/internal/browser"
	"github.com/ppiankov/casefile/internal/cache"
	"github.com/ppiankov/casefile/internal/discover"
	"github.com/ppiankov/casefile/internal/extract"
	"github.com/ppiankov/casefile/internal/extract/adapters"
	"github.com/ppiankov/casefile/internal/llm"
	"github.com/ppiankov/casefile/internal/logging"
	"github.com/ppiankov/casefile/internal/metrics"
	"github.com/ppiankov/casefile/internal/model"
	"github.com/ppiankov/casefile/internal/pipeline"
	"github.com/ppiankov/casefile/internal/store"
	"github.com/ppiankov/casefile/internal/verify"
	"github.com/ppiankov/casefile/internal/worker"
	"github.com/spf13/cobra"
)

var (
	storePath      string
	candidateDir   string
	candidateFiles int
	maxCandidates  int
	noRetry        bool
	headful        bool
	llmProvider    string
	llmModel       string
)

// mineCmd represents the mine command
var mineCmd = &cobra.Command{
	Use:   "mine [url...]",
	Short: "Fetch, extract and verify candidate articles into the store",
	Long: `Mine processes candidate URLs one at a time:
- Skip URLs already in the store (unresolved ones are retried)
- Load the page in a headless browser
- Extract the main article text (article heuristic, readability, rendered page)
- Ask the language model whether it reports an actual trafficking incident
- Store incidents, suspects and victims with their structured forms

Candidates come from the newest discover CSV exports unless URLs are given.

Example:
  casefile mine
  casefile mine --candidate-dir ./output --candidate-files 2
  casefile mine https://www.news24.com/some-article --llm-provider ollama --llm-model llama3`,
	RunE: runMine,
}

func init() {
	rootCmd.AddCommand(mineCmd)

	mineCmd.Flags().StringVar(&storePath, "db", "", "SQLite store path (default from config)")
	mineCmd.Flags().StringVar(&candidateDir, "candidate-dir", "", "directory of discover CSV exports (default from config)")
	mineCmd.Flags().IntVar(&candidateFiles, "candidate-files", 0, "read the newest N export files (default from config)")
	mineCmd.Flags().IntVar(&maxCandidates, "max-candidates", 0, "cap on candidate URLs per run (default from config)")
	mineCmd.Flags().BoolVar(&noRetry, "no-retry-unresolved", false, "do not re-queue records left unresolved by earlier runs")
	mineCmd.Flags().BoolVar(&headful, "headful", false, "show the browser window (debugging)")
	mineCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	mineCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runMine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyMineFlags(cfg)

	closeLog, err := setupLogging(cfg.Output)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := runContext()
	defer cancel()

	runID := uuid.NewString()
	base := slog.Default().With(slog.String("run_id", runID))
	logger := with(base, "mine")
	rec := metrics.New()

	candidates := args
	if len(candidates) == 0 {
		candidates, err = discover.ReadCandidates(cfg.Pipeline.CandidateDir, cfg.Pipeline.CandidateFiles, cfg.Pipeline.MaxCandidates)
		if err != nil {
			return fmt.Errorf("read candidates: %w", err)
		}
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	backend, err := llm.NewBackend(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return fmt.Errorf("create LLM backend: %w", err)
	}

	opts := browser.OptionsFromConfig(cfg.Browser)
	opts.Headful = headful
	session, err := browser.NewSession(opts)
	if err != nil {
		return fmt.Errorf("browser init: %w", err)
	}
	defer func() { _ = session.Close() }()

	limiter := worker.NewLimiter(cfg.HTTP.RequestsPerSec, cfg.HTTP.BurstSize)
	pages := cache.NewMemoryCache(10*time.Minute, 5*time.Minute)
	fetcher := pipeline.NewFetcher(cfg.HTTP, limiter, pages, with(base, "fetch"))

	renderer := extract.RendererFunc(func(ctx context.Context, url string) (string, error) {
		return browser.Render(ctx, opts, url, cfg.Extraction.RenderTimeout, cfg.Extraction.SettleDelay)
	})
	extractor := extract.NewEngine(cfg.Extraction, with(base, "extract"), rec,
		extract.NewArticleTier(fetcher, adapters.NewRegistry()),
		extract.NewReadabilityTier(fetcher),
		extract.NewRenderedTier(renderer),
	)

	probe := func(ctx context.Context, url string) (string, error) {
		return browser.Probe(ctx, opts, url, cfg.Browser.ProbeTimeout)
	}
	driver := pipeline.NewDriver(session, probe, cfg, limiter, with(base, "driver"), rec)

	verifier := verify.NewEngine(backend, cfg.Retry, with(base, "verify"), rec)

	p := pipeline.New(driver, extractor, verifier, st, cfg, with(base, "pipeline"), rec)

	printMineHeader(os.Stderr, cfg, runID, len(candidates))
	started := time.Now()

	summary, runErr := p.Run(ctx, candidates)
	if summary != nil {
		printMineSummary(os.Stderr, summary, time.Since(started))
	}

	if cfg.Output.MetricsFile != "" {
		if err := rec.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			logger.Warn("metrics textfile not written", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("mine: %w", runErr)
	}
	return nil
}

func applyMineFlags(cfg *model.Config) {
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if candidateDir != "" {
		cfg.Pipeline.CandidateDir = candidateDir
	}
	if candidateFiles > 0 {
		cfg.Pipeline.CandidateFiles = candidateFiles
	}
	if maxCandidates > 0 {
		cfg.Pipeline.MaxCandidates = maxCandidates
	}
	if noRetry {
		cfg.Pipeline.RetryUnresolved = false
	}
	if llmProvider != "" && llmProvider != cfg.LLM.Provider {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKey = ""
		resolveLLMKey(&cfg.LLM)
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}

// setupLogging initializes the slog default from the output section. The
// returned func closes the log file, if one was opened.
func setupLogging(out model.OutputConfig) (func(), error) {
	level, err := logging.ParseLevel(out.LogLevel)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	closer := func() {}
	if out.LogFile != "" {
		f, err := logging.OpenFile(out.LogFile)
		if err != nil {
			return nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = func() { _ = f.Close() }
	}

	logging.Init(level, out.LogFormat, w)
	return closer, nil
}

func with(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

func printMineHeader(w io.Writer, cfg *model.Config, runID string, candidates int) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Casefile Mining Run\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Run ID:       %s\n", runID)
	fmt.Fprintf(w, "  Candidates:   %d\n", candidates)
	fmt.Fprintf(w, "  Store:        %s\n", cfg.Store.Path)
	fmt.Fprintf(w, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(w, "  Retry unres.: %t\n", cfg.Pipeline.RetryUnresolved)
	fmt.Fprintf(w, "\n")
}

func printMineSummary(w io.Writer, s *pipeline.Summary, elapsed time.Duration) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	if s.Interrupted {
		fmt.Fprintf(w, "  Run Interrupted\n")
	} else {
		fmt.Fprintf(w, "  Run Complete\n")
	}
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Planned:    %d URLs (%d re-queued)\n", s.Planned, s.Requeued)
	fmt.Fprintf(w, "  Processed:  %d\n", s.Processed)

	outcomes := make([]string, 0, len(s.Outcomes))
	for outcome := range s.Outcomes {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Fprintf(w, "    %-14s %d\n", outcome+":", s.Outcomes[outcome])
	}

	fmt.Fprintf(w, "  Elapsed:    %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(w, "\n")
}
