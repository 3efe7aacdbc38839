package verify

import (
	"context"
	"log/slog"

	"github.com/ppiankov/casefile/internal/llm"
	"github.com/ppiankov/casefile/internal/metrics"
)

// Outcome is the result class of a validated query
type Outcome int

const (
	OutcomeOK             Outcome = iota
	OutcomeParseError             // Reply was not valid JSON of the expected shape
	OutcomeTransportError         // Backend failed for a reason other than rate limiting
	OutcomeRateLimited            // Every attempt was rate limited
	OutcomeCanceled               // Context ended before an answer arrived
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeParseError:
		return "parse_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Querier carries what every validated query needs besides the prompt
type Querier struct {
	Policy  RetryPolicy
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// ValidatedQuery sends prompt on session and decodes the reply into T.
// Only rate-limit rejections are retried; a parse or transport failure
// returns nil at once.
func ValidatedQuery[T any, PT responsePtr[T]](ctx context.Context, q Querier, session llm.Session, key, prompt string) (*T, Outcome) {
	result, outcome := validatedQuery[T, PT](ctx, q, session, key, prompt)
	q.Metrics.Query(key, outcome.String())
	return result, outcome
}

func validatedQuery[T any, PT responsePtr[T]](ctx context.Context, q Querier, session llm.Session, key, prompt string) (*T, Outcome) {
	logger := q.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := q.Policy.attempts()

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, OutcomeCanceled
		}

		reply, err := session.Chat(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, OutcomeCanceled
			}
			if !llm.IsRateLimit(err) {
				logger.Error("request failed", "prompt", key, "error", err)
				return nil, OutcomeTransportError
			}
			if attempt == attempts-1 {
				break
			}

			delay := q.Policy.Delay(attempt)
			logger.Warn("rate limited, backing off", "prompt", key, "attempt", attempt+1, "delay", delay)
			q.Metrics.Retry(key)
			if err := q.Policy.sleep(ctx, delay); err != nil {
				return nil, OutcomeCanceled
			}
			continue
		}

		var result T
		if err := decodeStrict(reply, &result); err != nil {
			logger.Error("reply is not valid JSON", "prompt", key, "error", err)
			return nil, OutcomeParseError
		}
		if err := PT(&result).Validate(); err != nil {
			logger.Error("reply failed validation", "prompt", key, "error", err)
			return nil, OutcomeParseError
		}

		logger.Info("prompt processed", "prompt", key)
		return &result, OutcomeOK
	}

	logger.Error("max retries reached, skipping", "prompt", key, "attempts", attempts)
	return nil, OutcomeRateLimited
}
