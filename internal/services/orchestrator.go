package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"flash-notes/internal/logging"
)

const defaultProviderTimeout = 60 * time.Second

type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeDegraded OutcomeKind = "degraded"
	OutcomeNoInput  OutcomeKind = "no_input"
)

// Outcome is the result of one analysis run. SourceText always carries the
// original input. Err is set for degraded and no_input outcomes and matches
// ErrNoUsableContent or ErrEmptySourceText respectively.
type Outcome struct {
	Kind       OutcomeKind
	Result     *AnalysisResult
	Provider   string
	SourceText string
	Err        error
}

// Orchestrator runs the two-provider fallback chain. Calls are strictly
// sequential and each one is bounded by its own timeout.
type Orchestrator struct {
	primary   Provider
	secondary Provider
	timeout   time.Duration
	logger    *zap.Logger
}

func NewOrchestrator(primary, secondary Provider, timeout time.Duration, logger *zap.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &Orchestrator{
		primary:   primary,
		secondary: secondary,
		timeout:   timeout,
		logger:    logging.OrNop(logger),
	}
}

// Analyze never returns an error: every failure is folded into the Outcome.
// Exhausting both providers yields a degraded outcome and leaves the choice
// of heuristic cards, manual input or retry to the caller.
func (o *Orchestrator) Analyze(ctx context.Context, text string, preferSecondary bool) Outcome {
	if strings.TrimSpace(text) == "" {
		return Outcome{Kind: OutcomeNoInput, SourceText: text, Err: ErrEmptySourceText}
	}

	order := [2]Provider{o.primary, o.secondary}
	if preferSecondary {
		order[0], order[1] = order[1], order[0]
	}

	failures := []error{ErrNoUsableContent}
	for _, provider := range order {
		if provider == nil {
			continue
		}
		result, err := o.attempt(ctx, provider, text)
		if err == nil {
			o.logger.Info("analysis succeeded",
				zap.String("provider", provider.Name()),
				zap.Int("flashcards", len(result.Flashcards)),
			)
			return Outcome{
				Kind:       OutcomeSuccess,
				Result:     result,
				Provider:   provider.Name(),
				SourceText: text,
			}
		}
		o.logger.Warn("provider attempt failed",
			zap.String("provider", provider.Name()),
			zap.String("kind", string(failureKindOf(err))),
			zap.Error(err),
		)
		failures = append(failures, err)
	}

	err := errors.Join(failures...)
	o.logger.Error("all providers failed", zap.Int("attempts", len(failures)-1), zap.Error(err))
	return Outcome{Kind: OutcomeDegraded, SourceText: text, Err: err}
}

// attempt runs one provider call plus repair and normalisation.
func (o *Orchestrator) attempt(ctx context.Context, provider Provider, text string) (*AnalysisResult, error) {
	raw, err := o.call(ctx, provider, text)
	if err != nil {
		return nil, err
	}

	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w: %w", provider.Name(), ErrMalformedPayload, err)
	}

	result, err := normalizeAnalysis(payload, text)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", provider.Name(), err)
	}
	return result, nil
}

type callResult struct {
	raw string
	err error
}

// call abandons a provider that outlives its timeout, even one that ignores
// context cancellation.
func (o *Orchestrator) call(ctx context.Context, provider Provider, text string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		raw, err := provider.Analyze(callCtx, text)
		done <- callResult{raw: raw, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.raw, nil
		}
		var perr *ProviderError
		if errors.As(res.err, &perr) {
			return "", res.err
		}
		kind := FailureUnknown
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			kind = FailureTimeout
		}
		return "", &ProviderError{Provider: provider.Name(), Kind: kind, Err: res.err}
	case <-callCtx.Done():
		kind := FailureTimeout
		if !errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			kind = FailureUnknown
		}
		return "", &ProviderError{Provider: provider.Name(), Kind: kind, Err: callCtx.Err()}
	}
}
