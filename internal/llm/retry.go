package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/metrics"
)

// DefaultMaxRetries is the number of corrective re-prompts after the first attempt.
const DefaultMaxRetries = 2

type retryState int

const (
	stateAsk retryState = iota
	stateCorrect
	stateDone
	stateExhausted
)

// Outcome describes how a Retrier run ended.
type Outcome struct {
	Attempts  int
	Accepted  bool
	Exhausted bool
	LastErr   error
}

// Retrier drives one request through ask -> validate -> correct until the
// validator accepts a response or the retry budget runs out. Fallback runs
// once on exhaustion.
type Retrier struct {
	Client     Client
	MaxRetries int
	Category   events.Category
	Reporter   *events.Reporter
	Fallback   func(lastErr error)
}

// Run sends req and hands each response to validate. Errors returned by Run
// are limited to cancellation and ErrNotConfigured; every other problem is
// folded into the Outcome.
func (r *Retrier) Run(ctx context.Context, req Request, validate func(text string) error) (Outcome, error) {
	if r.Client == nil {
		return Outcome{}, ErrNotConfigured
	}
	maxRetries := r.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	conv := req.Clone()
	var (
		out   Outcome
		text  string
		state = stateAsk
	)
	for {
		switch state {
		case stateAsk:
			if err := CheckContext(ctx); err != nil {
				return out, err
			}
			out.Attempts++
			resp, err := r.Client.Complete(ctx, conv)
			switch {
			case err == nil:
			case IsCancelled(err):
				return out, normalizeCancel(err)
			case errors.Is(err, ErrNotConfigured):
				return out, err
			default:
				metrics.LLMRequests.WithLabelValues(req.Purpose, "error").Inc()
				out.LastErr = err
				r.Reporter.Warn(r.Category, "request failed", map[string]any{"attempt": out.Attempts, "error": err.Error()})
				text = ""
				state = r.next(out.Attempts, maxRetries)
				continue
			}
			text = resp
			if verr := validate(resp); verr != nil {
				metrics.LLMRequests.WithLabelValues(req.Purpose, "invalid").Inc()
				out.LastErr = verr
				r.Reporter.Warn(r.Category, "response rejected", map[string]any{"attempt": out.Attempts, "error": verr.Error()})
				state = r.next(out.Attempts, maxRetries)
				continue
			}
			metrics.LLMRequests.WithLabelValues(req.Purpose, "ok").Inc()
			state = stateDone

		case stateCorrect:
			metrics.LLMRetries.WithLabelValues(req.Purpose).Inc()
			if text != "" {
				conv.Messages = append(conv.Messages, Message{Role: RoleAssistant, Content: text})
			}
			conv.Messages = append(conv.Messages, Message{
				Role:    RoleUser,
				Content: CorrectiveText(out.Attempts, maxRetries, out.LastErr),
			})
			state = stateAsk

		case stateDone:
			out.Accepted = true
			out.LastErr = nil
			return out, nil

		case stateExhausted:
			out.Exhausted = true
			r.Reporter.Warn(r.Category, "retries exhausted", map[string]any{"attempts": out.Attempts})
			if r.Fallback != nil {
				r.Fallback(out.LastErr)
			}
			return out, nil
		}
	}
}

func (r *Retrier) next(attempts, maxRetries int) retryState {
	if attempts > maxRetries {
		return stateExhausted
	}
	return stateCorrect
}

// CorrectiveText escalates with each failed attempt; the last retry is
// announced as final.
func CorrectiveText(attempt, maxRetries int, problem error) string {
	reason := "it could not be used"
	if problem != nil {
		reason = problem.Error()
	}
	msg := fmt.Sprintf("Your previous response was rejected: %s. Reply again with only the JSON document in the requested shape, no commentary.", reason)
	if attempt >= maxRetries {
		msg += " This is the final attempt: copy every file path exactly as given and use only the allowed values."
	}
	return msg
}

func normalizeCancel(err error) error {
	if errors.Is(err, ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
