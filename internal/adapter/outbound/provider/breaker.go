package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"go.uber.org/zap"
)

// BreakerSettings configures the per-provider circuit breaker.
type BreakerSettings struct {
	FailureThreshold uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
}

// breakerProvider guards CreateCheckout of an inner provider with a circuit breaker.
// Webhook verification and parsing pass straight through.
type breakerProvider struct {
	outbound.PaymentProviderPort
	cb *gobreaker.CircuitBreaker[*model.ProviderCheckout]
}

// WithBreaker wraps p so repeated provider failures short-circuit to outbound.ErrProviderCircuitOpen.
func WithBreaker(p outbound.PaymentProviderPort, s BreakerSettings, logger *zap.Logger) outbound.PaymentProviderPort {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        string(p.Provider()),
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// missing credentials and caller cancellation say nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, outbound.ErrProviderNotConfigured) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &breakerProvider{
		PaymentProviderPort: p,
		cb:                  gobreaker.NewCircuitBreaker[*model.ProviderCheckout](settings),
	}
}

func (b *breakerProvider) CreateCheckout(ctx context.Context, req *model.CheckoutRequest) (*model.ProviderCheckout, error) {
	out, err := b.cb.Execute(func() (*model.ProviderCheckout, error) {
		return b.PaymentProviderPort.CreateCheckout(ctx, req)
	})
	if isBreakerOpen(err) {
		return nil, fmt.Errorf("%w: %w", outbound.ErrProviderCircuitOpen, err)
	}
	return out, err
}

// isBreakerOpen reports whether err came from an open or saturated breaker.
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
