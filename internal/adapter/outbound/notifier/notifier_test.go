package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/paygate/internal/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newNotice() *model.CompletionNotice {
	return &model.CompletionNotice{
		OrderID:     "order-1",
		SessionID:   "cs_123",
		Provider:    model.ProviderCard,
		Amount:      decimal.RequireFromString("12.5"),
		Currency:    "USD",
		CompletedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []*model.CompletionNotice
	err     error
	delay   time.Duration
}

func (r *recordingNotifier) NotifyCompletion(ctx context.Context, notice *model.CompletionNotice) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.NotifyCompletion(context.Background(), newNotice()))

	entries := logs.FilterMessage("payment completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "order-1", fields["order_id"])
	assert.Equal(t, "12.5", fields["amount"])
}

func TestMultiNotifier(t *testing.T) {
	t.Run("single notifier is returned as is", func(t *testing.T) {
		r := &recordingNotifier{}
		assert.Same(t, r, NewMultiNotifier(r))
	})

	t.Run("every channel is tried and errors joined", func(t *testing.T) {
		errA := errors.New("a down")
		a := &recordingNotifier{err: errA}
		b := &recordingNotifier{}

		err := NewMultiNotifier(a, b).NotifyCompletion(context.Background(), newNotice())

		assert.ErrorIs(t, err, errA)
		assert.Equal(t, 1, a.count())
		assert.Equal(t, 1, b.count())
	})
}

type fakeSender struct {
	params *telego.SendMessageParams
	err    error
}

func (f *fakeSender) SendMessage(params *telego.SendMessageParams) (*telego.Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &telego.Message{MessageID: 1}, nil
}

func TestFormatNotice_CurrencyScale(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"1500", "JPY", "Amount: 1500 JPY"},
		{"1.234", "BHD", "Amount: 1.234 BHD"},
		{"12.5", "USD", "Amount: 12.50 USD"},
	}
	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			notice := newNotice()
			notice.Amount = decimal.RequireFromString(tt.amount)
			notice.Currency = tt.currency
			assert.Contains(t, formatNotice(notice), tt.want)
		})
	}
}

func TestTelegramNotifier(t *testing.T) {
	t.Run("sends formatted text to chat", func(t *testing.T) {
		sender := &fakeSender{}
		n := newTelegramNotifier(sender, 42)

		require.NoError(t, n.NotifyCompletion(context.Background(), newNotice()))

		require.NotNil(t, sender.params)
		assert.Equal(t, int64(42), sender.params.ChatID.ID)
		assert.Contains(t, sender.params.Text, "Order: order-1")
		assert.Contains(t, sender.params.Text, "Amount: 12.50 USD")
		assert.Contains(t, sender.params.Text, "Provider: card")
	})

	t.Run("wraps send error", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("boom")}
		err := newTelegramNotifier(sender, 42).NotifyCompletion(context.Background(), newNotice())
		assert.ErrorContains(t, err, "telegram send")
	})
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	n := NewKafkaNotifierWithWriter(w)

	require.NoError(t, n.NotifyCompletion(context.Background(), newNotice()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-1", string(w.msgs[0].Key))

	var got model.CompletionNotice
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "cs_123", got.SessionID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.5")))

	require.NoError(t, n.Close())
	assert.True(t, w.closed)

	w.err = errors.New("broker down")
	assert.ErrorContains(t, n.NotifyCompletion(context.Background(), newNotice()), "kafka write")
}

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return f.err
}

func TestAMQPNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := newAMQPNotifierWithPublisher(pub, "payments.completed")

	require.NoError(t, n.NotifyCompletion(context.Background(), newNotice()))
	assert.Equal(t, "", pub.exchange)
	assert.Equal(t, "payments.completed", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "cs_123", pub.msg.MessageId)
	assert.Contains(t, string(pub.msg.Body), `"order_id":"order-1"`)

	assert.NoError(t, n.Close())

	pub.err = errors.New("channel closed")
	assert.ErrorContains(t, n.NotifyCompletion(context.Background(), newNotice()), "amqp publish")
}

func TestAsyncNotifier(t *testing.T) {
	t.Run("delivers queued notices and drains on close", func(t *testing.T) {
		inner := &recordingNotifier{}
		n := NewAsyncNotifier(inner, 8, 2, time.Second, zap.NewNop())

		for i := 0; i < 5; i++ {
			require.NoError(t, n.NotifyCompletion(context.Background(), newNotice()))
		}
		require.NoError(t, n.Close(context.Background()))

		assert.Equal(t, 5, inner.count())
		assert.ErrorIs(t, n.NotifyCompletion(context.Background(), newNotice()), ErrNotifierClosed)
	})

	t.Run("drops when queue is full", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		block := make(chan struct{})
		inner := &blockingNotifier{release: block}
		n := NewAsyncNotifier(inner, 1, 1, 0, zap.New(core))

		// first notice occupies the worker, second fills the queue
		require.NoError(t, n.NotifyCompletion(context.Background(), newNotice()))
		require.Eventually(t, func() bool { return inner.started() }, time.Second, 5*time.Millisecond)
		require.NoError(t, n.NotifyCompletion(context.Background(), newNotice()))

		assert.ErrorIs(t, n.NotifyCompletion(context.Background(), newNotice()), ErrQueueFull)
		assert.Equal(t, 1, logs.FilterMessage("notification queue full, dropping notice").Len())

		close(block)
		require.NoError(t, n.Close(context.Background()))
	})

	t.Run("logs delivery failures", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		inner := &recordingNotifier{err: errors.New("down")}
		n := NewAsyncNotifier(inner, 4, 1, time.Second, zap.New(core))

		require.NoError(t, n.NotifyCompletion(context.Background(), newNotice()))
		require.NoError(t, n.Close(context.Background()))

		assert.Equal(t, 1, logs.FilterMessage("completion notification failed").Len())
	})

	t.Run("notice is copied before enqueue", func(t *testing.T) {
		inner := &recordingNotifier{}
		n := NewAsyncNotifier(inner, 4, 1, time.Second, zap.NewNop())

		notice := newNotice()
		require.NoError(t, n.NotifyCompletion(context.Background(), notice))
		notice.OrderID = "mutated"
		require.NoError(t, n.Close(context.Background()))

		require.Equal(t, 1, inner.count())
		assert.Equal(t, "order-1", inner.notices[0].OrderID)
	})
}

type blockingNotifier struct {
	release chan struct{}
	mu      sync.Mutex
	begun   bool
}

func (b *blockingNotifier) NotifyCompletion(_ context.Context, _ *model.CompletionNotice) error {
	b.mu.Lock()
	b.begun = true
	b.mu.Unlock()
	<-b.release
	return nil
}

func (b *blockingNotifier) started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.begun
}
