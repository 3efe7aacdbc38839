// Package pipeline drives each candidate URL from reachability probe to
// persisted, verified record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/casefile/internal/llm"
	"github.com/ppiankov/casefile/internal/metrics"
	"github.com/ppiankov/casefile/internal/model"
	"github.com/ppiankov/casefile/internal/store"
	"github.com/ppiankov/casefile/internal/worker"
)

// State is a step of the per-URL state machine
type State int

const (
	StateNew State = iota
	StateProbed
	StateLoaded
	StateExtracted
	StateVerified
	StateSuspectsDone
	StateVictimsDone
	StatePersisted
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateProbed:
		return "PROBED"
	case StateLoaded:
		return "LOADED"
	case StateExtracted:
		return "EXTRACTED"
	case StateVerified:
		return "VERIFIED"
	case StateSuspectsDone:
		return "SUSPECTS_DONE"
	case StateVictimsDone:
		return "VICTIMS_DONE"
	case StatePersisted:
		return "PERSISTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// URL outcomes, also used as metric labels
const (
	OutcomeInaccessible = "inaccessible"
	OutcomeLoadFailed   = "load_failed"
	OutcomeNoText       = "no_text"
	OutcomeIncidentYes  = "incident_yes"
	OutcomeIncidentNo   = "incident_no"
	OutcomeUnresolved   = "unresolved"

	// OutcomeCanceled marks a URL abandoned by run cancellation; nothing is written
	OutcomeCanceled = "canceled"
)

// Loader checks and loads pages in the browser
type Loader interface {
	EnsureReachable(ctx context.Context, url string) bool
	Load(ctx context.Context, url string) bool
}

// Extractor returns the main text of a page, or "" when nothing usable was found
type Extractor interface {
	ExtractMainText(ctx context.Context, url string) string
}

// Verifier asks the language model about an article
type Verifier interface {
	OpenSession(ctx context.Context, text string) (llm.Session, error)
	VerifyIncident(ctx context.Context, session llm.Session) (model.IncidentStatus, []string)
	ExtractSuspects(ctx context.Context, session llm.Session) []string
	ExtractVictims(ctx context.Context, session llm.Session) []string
	ConfirmNaturalPerson(ctx context.Context, name string) bool
	ExtractSuspectForm(ctx context.Context, session llm.Session, name string) *model.SuspectForm
	ExtractVictimForm(ctx context.Context, session llm.Session, name string) *model.VictimForm
	Pause(ctx context.Context) error
}

// Job is one URL to process. Existing is set when a stored record is re-queued.
type Job struct {
	URL      string
	Existing *model.URLRecord
}

// Result describes how one URL ended
type Result struct {
	URL       string
	State     State
	Outcome   string
	Record    *model.URLRecord
	Incidents int
	Suspects  int
	Victims   int
}

// Summary totals a run
type Summary struct {
	Planned     int
	Processed   int
	Requeued    int
	Outcomes    map[string]int
	Interrupted bool
}

// Pipeline orchestrates the per-URL process
type Pipeline struct {
	loader    Loader
	extractor Extractor
	verifier  Verifier
	store     store.Store
	config    model.PipelineConfig
	logger    *slog.Logger
	metrics   *metrics.Recorder

	// pause between verified URLs, replaced in tests
	pause func(ctx context.Context) error
}

// New creates a pipeline with the given collaborators
func New(loader Loader, extractor Extractor, verifier Verifier, st store.Store, cfg *model.Config, logger *slog.Logger, rec *metrics.Recorder) *Pipeline {
	pcfg := cfg.Pipeline
	return &Pipeline{
		loader:    loader,
		extractor: extractor,
		verifier:  verifier,
		store:     st,
		config:    pcfg,
		logger:    logger,
		metrics:   rec,
		pause: func(ctx context.Context) error {
			return worker.Sleep(ctx, worker.Between(pcfg.URLPauseMin, pcfg.URLPauseMax))
		},
	}
}

// SetPause replaces the delay between verified URLs
func (p *Pipeline) SetPause(pause func(ctx context.Context) error) {
	p.pause = pause
}

// Plan deduplicates candidates and drops URLs the store already holds.
// Stored records whose verification never finished are re-queued when
// retry_unresolved is on.
func (p *Pipeline) Plan(ctx context.Context, candidates []string) ([]Job, error) {
	limit := p.config.StoreScanLimit
	if limit <= 0 {
		limit = 1_000_000
	}
	stored, err := p.store.SearchURLs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load stored urls: %w", err)
	}

	known := make(map[string]*model.URLRecord, len(stored))
	for _, rec := range stored {
		known[rec.URL] = rec
	}

	seen := make(map[string]bool, len(candidates))
	var jobs []Job
	for _, raw := range candidates {
		url := strings.TrimSpace(raw)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		if _, ok := known[url]; ok {
			continue
		}
		jobs = append(jobs, Job{URL: url})
	}

	if p.config.RetryUnresolved {
		for _, rec := range stored {
			if rec.NeedsVerification() {
				jobs = append(jobs, Job{URL: rec.URL, Existing: rec})
			}
		}
	}
	return jobs, nil
}

// Run processes candidates one at a time until done, canceled or a fatal
// error occurs
func (p *Pipeline) Run(ctx context.Context, candidates []string) (*Summary, error) {
	jobs, err := p.Plan(ctx, candidates)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Planned: len(jobs), Outcomes: make(map[string]int)}
	p.logger.Info("run planned", "candidates", len(candidates), "jobs", len(jobs))

	for i, job := range jobs {
		if ctx.Err() != nil {
			summary.Interrupted = true
			p.logger.Warn("run interrupted", "processed", summary.Processed, "remaining", len(jobs)-i)
			break
		}

		result, err := p.ProcessURL(ctx, job)
		if err != nil {
			return summary, fmt.Errorf("process %s: %w", job.URL, err)
		}
		if result.Outcome == OutcomeCanceled {
			summary.Interrupted = true
			p.logger.Warn("run interrupted", "processed", summary.Processed, "remaining", len(jobs)-i)
			break
		}

		summary.Processed++
		summary.Outcomes[result.Outcome]++
		if job.Existing != nil {
			summary.Requeued++
		}

		if result.Outcome != OutcomeInaccessible && result.Outcome != OutcomeLoadFailed && result.Outcome != OutcomeNoText {
			_ = p.pause(ctx)
		}
	}

	return summary, nil
}

// ProcessURL runs one URL through the state machine. Only fatal store
// errors are returned; every other failure ends in a negative record.
// A cancellation before verification writes nothing and reports OutcomeCanceled.
func (p *Pipeline) ProcessURL(ctx context.Context, job Job) (*Result, error) {
	logger := p.logger.With("url", job.URL)
	res := &Result{URL: job.URL, State: StateNew}

	rec := job.Existing
	if rec == nil {
		rec = model.NewURLRecord(job.URL, model.SourceGoogleSearch)
	}

	if rec.Content == "" {
		reachable := p.loader.EnsureReachable(ctx, job.URL)
		if ctx.Err() != nil {
			return p.abandon(logger, res)
		}
		if !reachable {
			return p.persistNegative(ctx, res, rec, job.Existing != nil, OutcomeInaccessible)
		}
		res.State = StateProbed

		logger.Info("processing url")
		loaded := p.loader.Load(ctx, job.URL)
		if ctx.Err() != nil {
			return p.abandon(logger, res)
		}
		if !loaded {
			return p.persistNegative(ctx, res, rec, job.Existing != nil, OutcomeLoadFailed)
		}
		res.State = StateLoaded

		text := p.extractor.ExtractMainText(ctx, job.URL)
		if ctx.Err() != nil {
			return p.abandon(logger, res)
		}
		if text == "" {
			logger.Warn("no text extracted")
			return p.persistNegative(ctx, res, rec, job.Existing != nil, OutcomeNoText)
		}
		rec.Content = text
		rec.Accessible = model.AccessYes
	} else {
		logger.Info("re-verifying stored content")
	}
	res.State = StateExtracted

	session, err := p.verifier.OpenSession(ctx, rec.Content)
	var evidence []string
	if err != nil {
		logger.Error("failed to open model session", "error", err)
		rec.ActualIncident = model.IncidentUnresolved
	} else {
		rec.ActualIncident, evidence = p.verifier.VerifyIncident(ctx, session)
	}

	// Writes go through even if the run is being canceled, so a URL is
	// never left half recorded
	wctx := context.WithoutCancel(ctx)

	if err := p.saveRecord(wctx, rec, job.Existing != nil); err != nil {
		return res, err
	}
	res.State = StateVerified
	res.Record = rec

	switch rec.ActualIncident {
	case model.IncidentYes:
		res.Outcome = OutcomeIncidentYes
	case model.IncidentNo:
		res.Outcome = OutcomeIncidentNo
	default:
		res.Outcome = OutcomeUnresolved
	}

	if rec.ActualIncident == model.IncidentYes {
		if err := p.storeIncidents(wctx, logger, res, rec.ID, evidence); err != nil {
			return res, err
		}
		if err := p.storeSuspects(ctx, wctx, logger, res, session); err != nil {
			return res, err
		}
		res.State = StateSuspectsDone
		if err := p.storeVictims(ctx, wctx, logger, res, session); err != nil {
			return res, err
		}
		res.State = StateVictimsDone
	}

	res.State = StatePersisted
	p.metrics.URL(res.Outcome)
	logger.Info("url processed", "outcome", res.Outcome, "incidents", res.Incidents,
		"suspects", res.Suspects, "victims", res.Victims)
	return res, nil
}

// abandon ends a URL interrupted before verification without touching the
// store, so the next run picks it up again
func (p *Pipeline) abandon(logger *slog.Logger, res *Result) (*Result, error) {
	logger.Warn("url abandoned, run canceled", "state", res.State)
	res.Outcome = OutcomeCanceled
	return res, nil
}

// persistNegative records a URL that could not be read
func (p *Pipeline) persistNegative(ctx context.Context, res *Result, rec *model.URLRecord, existed bool, outcome string) (*Result, error) {
	rec.Content = ""
	rec.Accessible = model.AccessNo
	rec.ActualIncident = model.IncidentUnknown

	if err := p.saveRecord(context.WithoutCancel(ctx), rec, existed); err != nil {
		return res, err
	}
	res.State = StatePersisted
	res.Outcome = outcome
	res.Record = rec
	p.metrics.URL(outcome)
	p.logger.Warn("url not usable", "url", rec.URL, "outcome", outcome)
	return res, nil
}

// saveRecord inserts a new record or rewrites the mutable fields of a stored one
func (p *Pipeline) saveRecord(ctx context.Context, rec *model.URLRecord, existed bool) error {
	if !existed {
		id, err := p.store.InsertURL(ctx, rec)
		if err == nil {
			rec.ID = id
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("insert url: %w", err)
		}
		stored, err := p.store.GetURL(ctx, rec.URL)
		if err != nil {
			return fmt.Errorf("get url: %w", err)
		}
		rec.ID = stored.ID
	}

	updates := []struct {
		field store.Field
		value any
	}{
		{store.FieldContent, rec.Content},
		{store.FieldAccessible, rec.Accessible},
		{store.FieldActualIncident, rec.ActualIncident},
	}
	for _, u := range updates {
		if err := p.store.UpdateField(ctx, rec.ID, u.field, u.value); err != nil {
			return fmt.Errorf("update %s: %w", u.field, err)
		}
	}
	return nil
}

func (p *Pipeline) storeIncidents(ctx context.Context, logger *slog.Logger, res *Result, urlID int64, evidence []string) error {
	for _, text := range evidence {
		_, err := p.store.InsertIncident(ctx, &model.Incident{URLID: urlID, Text: text})
		switch {
		case err == nil:
			res.Incidents++
			logger.Info("inserted incident", "incident", text)
		case errors.Is(err, store.ErrDuplicate):
			logger.Warn("incident already stored", "incident", text)
		default:
			return fmt.Errorf("insert incident: %w", err)
		}
	}
	return nil
}

// storeSuspects stores every confirmed suspect and, when the model gives one,
// its form. runCtx governs model calls, ctx governs writes.
func (p *Pipeline) storeSuspects(runCtx, ctx context.Context, logger *slog.Logger, res *Result, session llm.Session) error {
	for _, name := range p.verifier.ExtractSuspects(runCtx, session) {
		if runCtx.Err() != nil {
			return nil
		}
		if err := p.storeSuspect(runCtx, ctx, logger, res, session, name); err != nil {
			return err
		}
		_ = p.verifier.Pause(runCtx)
	}
	return nil
}

func (p *Pipeline) storeSuspect(runCtx, ctx context.Context, logger *slog.Logger, res *Result, session llm.Session, name string) error {
	if !p.verifier.ConfirmNaturalPerson(runCtx, name) {
		logger.Info("skipping suspect, not a natural person", "name", name)
		p.metrics.Entity("suspect", "rejected")
		return nil
	}

	id, err := p.store.InsertSuspect(ctx, &model.Suspect{URLID: res.Record.ID, Name: name})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		logger.Warn("suspect already stored", "name", name)
		p.metrics.Entity("suspect", "duplicate")
		return nil
	case err != nil:
		return fmt.Errorf("insert suspect: %w", err)
	}
	res.Suspects++
	p.metrics.Entity("suspect", "stored")
	logger.Info("suspect inserted", "name", name)

	form := p.verifier.ExtractSuspectForm(runCtx, session, name)
	if form == nil {
		logger.Error("failed to extract suspect form", "name", name)
		p.metrics.Entity("suspect_form", "failed")
		return nil
	}
	form.URLID, form.SuspectID = res.Record.ID, id

	_, err = p.store.InsertSuspectForm(ctx, form)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		logger.Warn("suspect form already stored", "name", name)
		p.metrics.Entity("suspect_form", "duplicate")
	case err != nil:
		return fmt.Errorf("insert suspect form: %w", err)
	default:
		p.metrics.Entity("suspect_form", "stored")
		logger.Info("inserted suspect form", "name", name)
	}
	return nil
}

func (p *Pipeline) storeVictims(runCtx, ctx context.Context, logger *slog.Logger, res *Result, session llm.Session) error {
	for _, name := range p.verifier.ExtractVictims(runCtx, session) {
		if runCtx.Err() != nil {
			return nil
		}
		if err := p.storeVictim(runCtx, ctx, logger, res, session, name); err != nil {
			return err
		}
		_ = p.verifier.Pause(runCtx)
	}
	return nil
}

func (p *Pipeline) storeVictim(runCtx, ctx context.Context, logger *slog.Logger, res *Result, session llm.Session, name string) error {
	if !p.verifier.ConfirmNaturalPerson(runCtx, name) {
		logger.Info("skipping victim, not a natural person", "name", name)
		p.metrics.Entity("victim", "rejected")
		return nil
	}

	id, err := p.store.InsertVictim(ctx, &model.Victim{URLID: res.Record.ID, Name: name})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		logger.Warn("victim already stored", "name", name)
		p.metrics.Entity("victim", "duplicate")
		return nil
	case err != nil:
		return fmt.Errorf("insert victim: %w", err)
	}
	res.Victims++
	p.metrics.Entity("victim", "stored")
	logger.Info("victim inserted", "name", name)

	form := p.verifier.ExtractVictimForm(runCtx, session, name)
	if form == nil {
		logger.Error("failed to extract victim form", "name", name)
		p.metrics.Entity("victim_form", "failed")
		return nil
	}
	form.URLID, form.VictimID = res.Record.ID, id

	_, err = p.store.InsertVictimForm(ctx, form)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		logger.Warn("victim form already stored", "name", name)
		p.metrics.Entity("victim_form", "duplicate")
	case err != nil:
		return fmt.Errorf("insert victim form: %w", err)
	default:
		p.metrics.Entity("victim_form", "stored")
		logger.Info("inserted victim form", "name", name)
	}
	return nil
}
