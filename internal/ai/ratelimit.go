package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// LimitedRuntime waits on a shared token bucket before each provider call.
type LimitedRuntime struct {
	Runtime
	limiter *rate.Limiter
}

// WithRateLimit wraps rt so calls are throttled to rps requests per second.
// rps <= 0 returns rt unchanged.
func WithRateLimit(rt Runtime, rps float64) Runtime {
	if rt == nil || rps <= 0 {
		return rt
	}
	return &LimitedRuntime{Runtime: rt, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (l *LimitedRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Runtime.Generate(ctx, req)
}

// GenerateStream forwards to the wrapped runtime when it streams, falling back
// to a single delta from Generate.
func (l *LimitedRuntime) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	if sr, ok := l.Runtime.(StreamRuntime); ok {
		return sr.GenerateStream(ctx, req, onDelta)
	}
	resp, err := l.Runtime.Generate(ctx, req)
	if err != nil {
		return err
	}
	onDelta(resp.Text())
	return nil
}
