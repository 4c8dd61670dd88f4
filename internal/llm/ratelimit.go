package llm

import (
	"context"
	"fmt"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const (
	// Characters per token used to estimate request size.
	charsPerToken = 4

	// Upper bound reserved for the structured answer.
	maxOutputTokens = 1000
)

// Throttle paces requests to a tokens-per-minute budget. It only delays
// calls; a request rejected by the provider is not retried.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows tokensPerMinute tokens per minute with a burst of one
// minute's budget. A non-positive budget disables pacing.
func NewThrottle(tokensPerMinute int) *Throttle {
	if tokensPerMinute <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	perSecond := rate.Limit(float64(tokensPerMinute) / 60)
	return &Throttle{limiter: rate.NewLimiter(perSecond, tokensPerMinute)}
}

// Wait blocks until tokens are available or ctx is done. Requests larger
// than the burst wait for a full bucket.
func (t *Throttle) Wait(ctx context.Context, tokens int) error {
	if t == nil || t.limiter.Limit() == rate.Inf {
		return ctx.Err()
	}
	if burst := t.limiter.Burst(); tokens > burst {
		tokens = burst
	}
	if err := t.limiter.WaitN(ctx, tokens); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

// EstimateTokens approximates the token count of texts.
func EstimateTokens(texts ...string) int {
	chars := 0
	for _, t := range texts {
		chars += utf8.RuneCountInString(t)
	}
	return (chars + charsPerToken - 1) / charsPerToken
}
