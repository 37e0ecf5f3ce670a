// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/logging"
	"github.com/pdiddy/search-agent/pkg/types"
)

const (
	defaultBreakerFailures uint32 = 5
	defaultBreakerTimeout         = 30 * time.Second
	defaultBreakerInterval        = 60 * time.Second
)

// BreakerConfig configures a BreakerProvider.
type BreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before a half-open trial call.
	Timeout time.Duration
}

// BreakerProvider wraps a Completer so that a provider failing repeatedly
// is rejected immediately instead of being called on every turn.
type BreakerProvider struct {
	inner   Completer
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerProvider wraps inner with a circuit breaker.
func NewBreakerProvider(inner Completer, cfg BreakerConfig, logger *zap.Logger) *BreakerProvider {
	logger = logging.OrNop(logger)

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerFailures
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "llm:" + cfg.Name,
		MaxRequests: 1,
		Interval:    defaultBreakerInterval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A cancelled turn says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerProvider{inner: inner, breaker: cb}
}

// Complete routes the call through the breaker.
func (p *BreakerProvider) Complete(ctx context.Context, messages []types.Message, opts Options) (string, error) {
	out, err := p.breaker.Execute(func() (string, error) {
		return p.inner.Complete(ctx, messages, opts)
	})
	return out, p.wrap(err)
}

// Stream routes a streamed call through the breaker. Providers without
// streaming support fall back to a single completion written to w.
func (p *BreakerProvider) Stream(ctx context.Context, messages []types.Message, opts Options, w io.Writer) (string, error) {
	out, err := p.breaker.Execute(func() (string, error) {
		return Respond(ctx, p.inner, messages, opts, w)
	})
	return out, p.wrap(err)
}

// Unwrap returns the wrapped provider.
func (p *BreakerProvider) Unwrap() Completer { return p.inner }

func (p *BreakerProvider) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %w", p.breaker.Name(), ErrCircuitOpen, err)
	}
	return err
}

var _ Streamer = (*BreakerProvider)(nil)
