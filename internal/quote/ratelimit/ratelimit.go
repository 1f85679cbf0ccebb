package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"futuresquotes/internal/quote"
)

// Source wraps a quote.Source and gates calls with a token bucket.
// Callers wait for a token until their context is done; a wait that cannot
// be satisfied fails with quote.ErrRateLimited without calling upstream.
type Source struct {
	S       quote.Source
	Limiter *rate.Limiter
}

// PerMinute allows rpm requests per minute with the given burst.
func PerMinute(rpm, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

// MinInterval allows one request per interval.
func MinInterval(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Wrap applies the configured limit to src. Requests-per-minute takes
// precedence over a minimum interval; with neither set src is returned as is.
func Wrap(src quote.Source, rpm, burst int, minInterval time.Duration) quote.Source {
	switch {
	case rpm > 0:
		return &Source{S: src, Limiter: PerMinute(rpm, burst)}
	case minInterval > 0:
		return &Source{S: src, Limiter: MinInterval(minInterval)}
	default:
		return src
	}
}

func (s *Source) Name() string { return s.S.Name() }

func (s *Source) Fetch(ctx context.Context, symbol string) (quote.Snapshot, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return quote.Snapshot{}, &quote.ProviderError{
				Provider: s.S.Name(),
				Symbol:   symbol,
				Err:      fmt.Errorf("%w: %v", quote.ErrRateLimited, err),
			}
		}
	}
	return s.S.Fetch(ctx, symbol)
}
