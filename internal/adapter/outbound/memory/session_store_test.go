package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
)

func newSession(id string) *model.PaymentSession {
	return &model.PaymentSession{
		ID:          id,
		Provider:    model.ProviderCard,
		OrderID:     "ORD-1",
		Amount:      decimal.NewFromInt(100),
		Currency:    "GBP",
		Status:      model.SessionStatusPending,
		CheckoutURL: "https://pay/" + id,
		Reference:   "card_ref",
		ProviderRef: "pi_1",
		CreatedAt:   time.Now(),
	}
}

func TestSessionStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	require.NoError(t, store.Put(ctx, newSession("cs_123")))
	assert.ErrorIs(t, store.Put(ctx, newSession("cs_123")), outbound.ErrSessionExists)

	got, err := store.Get(ctx, "cs_123")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", got.OrderID)

	// returned sessions are copies
	got.Status = model.SessionStatusCompleted
	again, err := store.Get(ctx, "cs_123")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusPending, again.Status)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, outbound.ErrSessionNotFound)
}

func TestSessionStore_FindByReference(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	require.NoError(t, store.Put(ctx, newSession("cs_123")))

	for _, ref := range []string{"card_ref", "pi_1"} {
		got, err := store.FindByReference(ctx, model.ProviderCard, ref)
		require.NoError(t, err)
		assert.Equal(t, "cs_123", got.ID)
	}

	_, err := store.FindByReference(ctx, model.ProviderWallet, "pi_1")
	assert.ErrorIs(t, err, outbound.ErrSessionNotFound)
}

func TestSessionStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	require.NoError(t, store.Put(ctx, newSession("cs_123")))

	s, ok, err := store.UpdateStatus(ctx, "cs_123", model.SessionStatusCompleted)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.SessionStatusCompleted, s.Status)
	assert.NotNil(t, s.CompletedAt)

	s, ok, err = store.UpdateStatus(ctx, "cs_123", model.SessionStatusCompleted)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.SessionStatusCompleted, s.Status)

	s, ok, err = store.UpdateStatus(ctx, "cs_123", model.SessionStatusFailed)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.SessionStatusCompleted, s.Status)

	_, _, err = store.UpdateStatus(ctx, "missing", model.SessionStatusCompleted)
	assert.ErrorIs(t, err, outbound.ErrSessionNotFound)
}

func TestSessionStore_ConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	require.NoError(t, store.Put(ctx, newSession("cs_123")))

	const workers = 32
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.UpdateStatus(ctx, "cs_123", model.SessionStatusCompleted)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitions)
}
