package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Provider() model.Provider {
	return model.ProviderCard
}

func (m *mockProvider) CreateCheckout(ctx context.Context, req *model.CheckoutRequest) (*model.ProviderCheckout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProviderCheckout), args.Error(1)
}

func (m *mockProvider) FallbackCheckoutURL(sessionID string) string {
	return "https://fallback/" + sessionID
}

func (m *mockProvider) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	return nil
}

func (m *mockProvider) ParseEvent(payload []byte) (*model.ProviderEvent, error) {
	return &model.ProviderEvent{}, nil
}

func TestWithBreaker(t *testing.T) {
	t.Run("opens after consecutive failures", func(t *testing.T) {
		inner := new(mockProvider)
		inner.On("CreateCheckout", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Times(2)

		p := WithBreaker(inner, BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Minute}, nil)
		req := newCheckoutRequest("card_ref")

		for i := 0; i < 2; i++ {
			_, err := p.CreateCheckout(context.Background(), req)
			require.Error(t, err)
			assert.NotErrorIs(t, err, outbound.ErrProviderCircuitOpen)
		}

		_, err := p.CreateCheckout(context.Background(), req)
		assert.ErrorIs(t, err, outbound.ErrProviderCircuitOpen)
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		inner.AssertNumberOfCalls(t, "CreateCheckout", 2)
	})

	t.Run("configuration errors do not trip", func(t *testing.T) {
		inner := new(mockProvider)
		inner.On("CreateCheckout", mock.Anything, mock.Anything).Return(nil, outbound.ErrProviderNotConfigured)

		p := WithBreaker(inner, BreakerSettings{FailureThreshold: 1, OpenTimeout: time.Minute}, nil)
		for i := 0; i < 3; i++ {
			_, err := p.CreateCheckout(context.Background(), newCheckoutRequest("card_ref"))
			assert.ErrorIs(t, err, outbound.ErrProviderNotConfigured)
		}
		inner.AssertNumberOfCalls(t, "CreateCheckout", 3)
	})

	t.Run("passes through other methods", func(t *testing.T) {
		inner := new(mockProvider)
		inner.On("CreateCheckout", mock.Anything, mock.Anything).
			Return(&model.ProviderCheckout{ID: "cs_1", CheckoutURL: "https://x/cs_1"}, nil)

		p := WithBreaker(inner, BreakerSettings{}, nil)
		out, err := p.CreateCheckout(context.Background(), newCheckoutRequest("card_ref"))
		require.NoError(t, err)
		assert.Equal(t, "cs_1", out.ID)
		assert.Equal(t, model.ProviderCard, p.Provider())
		assert.Equal(t, "https://fallback/x", p.FallbackCheckoutURL("x"))
	})
}
