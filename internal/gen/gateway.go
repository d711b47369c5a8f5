package gen

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/crucidev/crucible/internal/config"
	"github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/logging"
)

// PauseError reports a pause condition: the generation service is unavailable
// or out of quota. It is not a pipeline failure; the orchestrator suspends the
// current stage, persists state, and waits for an explicit resume signal.
// PauseError wraps ErrQuotaExceeded or ErrServiceUnavailable for errors.Is.
type PauseError struct {
	// Reason is the human-readable pause reason.
	Reason string

	// Err is the underlying sentinel (ErrQuotaExceeded or ErrServiceUnavailable).
	Err error
}

// Error implements the error interface.
func (e *PauseError) Error() string {
	return fmt.Sprintf("pause condition: %s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *PauseError) Unwrap() error {
	return e.Err
}

// IsPause reports whether err carries a pause condition.
func IsPause(err error) bool {
	var pe *PauseError
	return stderrors.As(err, &pe)
}

// Gateway wraps a Client with the pinned-model policy and failure
// classification. The model identifier is fixed at construction and never
// altered mid-pipeline; there is no fallback substitution under any
// condition. This is a hard policy invariant, not a performance choice.
type Gateway struct {
	client  Client
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGateway creates a gateway bound to the configured pinned model.
func NewGateway(client Client, cfg *config.GenerationConfig, logger zerolog.Logger) *Gateway {
	return &Gateway{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With().Str("component", "gen").Str("model", cfg.Model).Logger(),
	}
}

// Model returns the pinned model identifier.
func (g *Gateway) Model() string {
	return g.model
}

// Generate submits a request to the generation service.
//
// Failure classification:
//   - quota or availability failures (including timeouts) return a *PauseError;
//     the caller must suspend, not fail
//   - empty text returns ErrEmptyGeneration, treated as a stage fail verdict
//   - all other failures are returned as-is for the stage's fail handling
func (g *Gateway) Generate(ctx context.Context, req *Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	prompt := req.Prompt
	if len(req.Constraints) > 0 {
		var sb strings.Builder
		sb.WriteString(prompt)
		sb.WriteString("\n\nAdditional constraints from prior review:\n")
		for _, c := range req.Constraints {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
		prompt = sb.String()
	}

	g.logger.Debug().
		Str("stage", req.Stage).
		Int("prompt_len", len(prompt)).
		Int("constraints", len(req.Constraints)).
		Str("prompt_head", logging.SafeValue("prompt", head(prompt, 120))).
		Msg("submitting generation request")

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.client.Submit(callCtx, g.model, prompt)
	elapsed := time.Since(start)

	if err != nil {
		return nil, g.classify(ctx, req.Stage, err, elapsed)
	}

	if strings.TrimSpace(text) == "" {
		g.logger.Warn().Str("stage", req.Stage).Msg("generation returned empty text")
		return nil, fmt.Errorf("stage %s: %w", req.Stage, errors.ErrEmptyGeneration)
	}

	g.logger.Info().
		Str("stage", req.Stage).
		Int64("duration_ms", elapsed.Milliseconds()).
		Int("text_len", len(text)).
		Msg("generation request completed")

	return &Response{Text: text, Model: g.model}, nil
}

// classify maps client failures onto the error taxonomy. A deadline on the
// call context is service unavailability, not a distinct error kind.
func (g *Gateway) classify(ctx context.Context, stage string, err error, elapsed time.Duration) error {
	// Caller cancellation propagates untouched.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		g.logger.Warn().
			Str("stage", stage).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("generation call timed out, treating as unavailability")
		return &PauseError{
			Reason: fmt.Sprintf("model %s timed out after %s", g.model, g.timeout),
			Err:    errors.ErrServiceUnavailable,
		}
	}

	if isQuotaError(err) {
		g.logger.Warn().Str("stage", stage).Err(err).Msg("generation quota exhausted")
		return &PauseError{
			Reason: fmt.Sprintf("model %s quota exceeded", g.model),
			Err:    errors.ErrQuotaExceeded,
		}
	}

	if isUnavailableError(err) {
		g.logger.Warn().Str("stage", stage).Err(err).Msg("generation service unavailable")
		return &PauseError{
			Reason: fmt.Sprintf("model %s unavailable", g.model),
			Err:    errors.ErrServiceUnavailable,
		}
	}

	g.logger.Error().Str("stage", stage).Err(err).Msg("generation call failed")
	return fmt.Errorf("stage %s: generation failed: %w", stage, err)
}

// isQuotaError detects quota and billing rejections from error text.
// The client is an opaque binding, so string matching is what we have.
func isQuotaError(err error) bool {
	if stderrors.Is(err, errors.ErrQuotaExceeded) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "quota") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "billing") ||
		strings.Contains(s, "insufficient_quota") ||
		strings.Contains(s, "429")
}

// isUnavailableError detects transient availability failures from error text.
func isUnavailableError(err error) bool {
	if stderrors.Is(err, errors.ErrServiceUnavailable) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unavailable") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "no such host") ||
		strings.Contains(s, "overloaded") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503")
}

// head returns at most n leading bytes of s.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
