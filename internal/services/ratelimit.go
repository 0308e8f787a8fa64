package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultRateLimitBackoff = 60 * time.Second

// RateLimitedProvider throttles calls to a provider with a token bucket.
// It never waits for a token: a throttled call fails at once as
// rate_limited so the orchestrator can move on to the next provider.
// An upstream rate_limited failure opens a back-off window.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
	backoff time.Duration
	now     func() time.Time

	mu      sync.Mutex
	retryAt time.Time
}

func NewRateLimitedProvider(inner Provider, requestsPerSecond float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		backoff: defaultRateLimitBackoff,
		now:     time.Now,
	}
}

func (p *RateLimitedProvider) Name() string {
	return p.inner.Name()
}

func (p *RateLimitedProvider) Analyze(ctx context.Context, text string) (string, error) {
	now := p.now()

	p.mu.Lock()
	retryAt := p.retryAt
	p.mu.Unlock()

	if now.Before(retryAt) {
		return "", &ProviderError{
			Provider: p.Name(),
			Kind:     FailureRateLimited,
			Err:      fmt.Errorf("backing off until %s", retryAt.Format(time.RFC3339)),
		}
	}
	if !p.limiter.AllowN(now, 1) {
		return "", &ProviderError{
			Provider: p.Name(),
			Kind:     FailureRateLimited,
			Err:      errors.New("local request budget exhausted"),
		}
	}

	out, err := p.inner.Analyze(ctx, text)
	if err != nil && failureKindOf(err) == FailureRateLimited {
		p.recordRateLimit()
	}
	return out, err
}

func (p *RateLimitedProvider) recordRateLimit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retryAt = p.now().Add(p.backoff)
}
