// Package verify asks a language model whether an article reports a real
// trafficking incident and pulls named suspects and victims out of it.
package verify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ppiankov/casefile/internal/llm"
	"github.com/ppiankov/casefile/internal/metrics"
	"github.com/ppiankov/casefile/internal/model"
	"github.com/ppiankov/casefile/internal/worker"
)

// Engine runs the verification and entity prompts against one backend
type Engine struct {
	backend llm.Backend
	query   Querier
	logger  *slog.Logger
	metrics *metrics.Recorder
	pause   func(ctx context.Context) error
}

// NewEngine creates an engine over backend using the retry section of cfg
func NewEngine(backend llm.Backend, cfg model.RetryConfig, logger *slog.Logger, rec *metrics.Recorder) *Engine {
	e := &Engine{
		backend: backend,
		query: Querier{
			Policy:  RetryPolicyFromConfig(cfg),
			Logger:  logger,
			Metrics: rec,
		},
		logger:  logger,
		metrics: rec,
	}
	e.pause = func(ctx context.Context) error {
		return worker.Sleep(ctx, worker.Between(cfg.EntityPauseMin, cfg.EntityPauseMax))
	}
	return e
}

// WithPolicy replaces the retry policy; used by tests
func (e *Engine) WithPolicy(p RetryPolicy) *Engine {
	e.query.Policy = p
	return e
}

// WithPause replaces the pacing delay between entities; used by tests
func (e *Engine) WithPause(pause func(ctx context.Context) error) *Engine {
	e.pause = pause
	return e
}

// OpenSession starts a conversation about text under the analyst persona
func (e *Engine) OpenSession(ctx context.Context, text string) (llm.Session, error) {
	return e.backend.NewSession(ctx, Persona, text)
}

// VerifyIncident asks whether the article is a factual report of an incident.
// Evidence is only returned with IncidentYes.
func (e *Engine) VerifyIncident(ctx context.Context, session llm.Session) (model.IncidentStatus, []string) {
	resp, outcome := ValidatedQuery[AnswerResponse](ctx, e.query, session, KeyIncident, incidentPrompt)
	if outcome != OutcomeOK {
		e.logger.Warn("no valid incident response", "outcome", outcome)
		return model.IncidentUnresolved, nil
	}

	switch {
	case resp.IsYes():
		e.logger.Info("incident detected", "evidence", len(resp.Evidence))
		return model.IncidentYes, resp.Evidence
	case resp.IsNo():
		e.logger.Info("no incident detected")
		return model.IncidentNo, nil
	default:
		e.logger.Warn("unexpected incident answer", "answer", resp.Answer)
		return model.IncidentUnresolved, nil
	}
}

// ExtractSuspects returns the candidate suspect names the model lists
func (e *Engine) ExtractSuspects(ctx context.Context, session llm.Session) []string {
	return e.names(ctx, session, KeySuspect, suspectPrompt)
}

// ExtractVictims returns the candidate victim names the model lists
func (e *Engine) ExtractVictims(ctx context.Context, session llm.Session) []string {
	return e.names(ctx, session, KeyVictim, victimPrompt)
}

func (e *Engine) names(ctx context.Context, session llm.Session, key, prompt string) []string {
	resp, outcome := ValidatedQuery[AnswerResponse](ctx, e.query, session, key, prompt)
	if outcome != OutcomeOK || !resp.IsYes() {
		return nil
	}

	seen := make(map[string]bool, len(resp.Evidence))
	var names []string
	for _, name := range resp.Evidence {
		folded := strings.ToLower(name)
		if seen[folded] {
			continue
		}
		seen[folded] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		e.logger.Info("no names listed", "prompt", key)
	}
	return names
}

// ConfirmNaturalPerson asks, outside any session, whether name identifies a
// natural person. It is not retried; any failure means not confirmed.
func (e *Engine) ConfirmNaturalPerson(ctx context.Context, name string) bool {
	reply, err := e.backend.Complete(ctx, confirmNamePrompt(name))
	if err != nil {
		e.logger.Error("failed to confirm natural name", "name", name, "error", err)
		e.metrics.Query(KeyConfirmName, outcomeOf(ctx, err).String())
		return false
	}

	var resp ConfirmResponse
	if err := decodeStrict(reply, &resp); err != nil {
		e.logger.Error("failed to confirm natural name", "name", name, "error", err)
		e.metrics.Query(KeyConfirmName, OutcomeParseError.String())
		return false
	}
	if err := resp.Validate(); err != nil {
		e.logger.Error("failed to confirm natural name", "name", name, "error", err)
		e.metrics.Query(KeyConfirmName, OutcomeParseError.String())
		return false
	}

	e.metrics.Query(KeyConfirmName, OutcomeOK.String())
	return resp.Answer == "yes"
}

// ExtractSuspectForm asks for the detailed attributes of a confirmed suspect
func (e *Engine) ExtractSuspectForm(ctx context.Context, session llm.Session, name string) *model.SuspectForm {
	resp, outcome := ValidatedQuery[SuspectFormResponse](ctx, e.query, session, KeySuspectForm, suspectFormPrompt(name))
	if outcome != OutcomeOK {
		return nil
	}
	form := resp.SuspectForm
	form.Name = name
	return &form
}

// ExtractVictimForm asks for the detailed attributes of a confirmed victim
func (e *Engine) ExtractVictimForm(ctx context.Context, session llm.Session, name string) *model.VictimForm {
	resp, outcome := ValidatedQuery[VictimFormResponse](ctx, e.query, session, KeyVictimForm, victimFormPrompt(name))
	if outcome != OutcomeOK {
		return nil
	}
	form := resp.VictimForm
	form.Name = name
	return &form
}

// Pause waits a random entity pacing delay
func (e *Engine) Pause(ctx context.Context) error {
	if e.pause == nil {
		return nil
	}
	return e.pause(ctx)
}

func outcomeOf(ctx context.Context, err error) Outcome {
	switch {
	case ctx.Err() != nil:
		return OutcomeCanceled
	case llm.IsRateLimit(err):
		return OutcomeRateLimited
	case llm.KindOf(err) == llm.KindResponse:
		return OutcomeParseError
	default:
		return OutcomeTransportError
	}
}
