package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"github.com/uniedit/paygate/internal/shared/logger"
	"github.com/uniedit/paygate/internal/utils/random"
	"github.com/uniedit/paygate/internal/utils/requestctx"
	"go.uber.org/zap"
)

const (
	// webhookResultRejected is the metrics result of a webhook failing authentication.
	webhookResultRejected = "rejected"

	fallbackReasonCircuitOpen = "circuit_open"
)

// PaymentDomain defines the payment orchestration service.
type PaymentDomain interface {
	// CreateSession creates a checkout session with the given provider.
	// A provider outage yields a degraded session when fallback is enabled.
	CreateSession(ctx context.Context, provider model.Provider, req *model.PaymentRequest) (*model.PaymentSession, error)

	// GetSession returns a session by id.
	GetSession(ctx context.Context, id string) (*model.PaymentSession, error)

	// HandleWebhook authenticates and applies one provider webhook delivery.
	// Only ErrSignatureInvalid, ErrUnknownProvider and store failures are returned;
	// every other condition is reported through the returned event.
	HandleWebhook(ctx context.Context, provider model.Provider, payload []byte, headers http.Header) (*model.WebhookEvent, error)
}

// Options tunes the orchestration behavior.
type Options struct {
	// FallbackEnabled allows degraded sessions when a provider call fails.
	FallbackEnabled bool
	// ProviderTimeout bounds each outbound CreateCheckout call. Zero means no bound.
	ProviderTimeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// paymentDomain implements PaymentDomain.
type paymentDomain struct {
	providers outbound.PaymentProviderRegistryPort
	store     outbound.SessionStorePort
	notifier  outbound.CompletionNotifierPort
	eventLog  outbound.WebhookEventLogPort
	metrics   outbound.PaymentMetricsPort
	opts      Options
	logger    *zap.Logger
}

// NewPaymentDomain creates a new payment domain service.
// eventLog and metrics may be nil.
func NewPaymentDomain(
	providers outbound.PaymentProviderRegistryPort,
	store outbound.SessionStorePort,
	notifier outbound.CompletionNotifierPort,
	eventLog outbound.WebhookEventLogPort,
	metrics outbound.PaymentMetricsPort,
	opts Options,
	log *zap.Logger,
) PaymentDomain {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &paymentDomain{
		providers: providers,
		store:     store,
		notifier:  notifier,
		eventLog:  eventLog,
		metrics:   metrics,
		opts:      opts,
		logger:    log,
	}
}

func (d *paymentDomain) CreateSession(ctx context.Context, provider model.Provider, req *model.PaymentRequest) (*model.PaymentSession, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	prov, err := d.providers.Get(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	now := d.opts.Now()
	ref, err := random.LocalID(provider.IDTag(), now)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	log := logger.FromContext(ctx, d.logger).With(
		zap.String("provider", string(provider)),
		zap.String("order_id", req.OrderID),
		zap.String("reference", ref),
	)

	checkoutReq := &model.CheckoutRequest{PaymentRequest: *req, Reference: ref}
	checkoutReq.Currency = strings.ToUpper(req.Currency)
	if checkoutReq.UserID == "" {
		checkoutReq.UserID = requestctx.UserID(ctx)
	}

	out, callErr := d.callProvider(ctx, prov, checkoutReq)

	session := &model.PaymentSession{
		Provider:      provider,
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Currency:      checkoutReq.Currency,
		Status:        model.SessionStatusPending,
		Reference:     ref,
		Description:   req.Description,
		CustomerEmail: req.CustomerEmail,
		UserID:        checkoutReq.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch {
	case callErr == nil:
		session.ID = out.ID
		if session.ID == "" {
			session.ID = ref
		}
		session.CheckoutURL = out.CheckoutURL
		session.ProviderRef = out.ProviderRef
		session.ProviderMetadata = make(map[string]any, len(out.Metadata)+1)
		for k, v := range out.Metadata {
			session.ProviderMetadata[k] = v
		}

	case errors.Is(callErr, outbound.ErrProviderNotConfigured):
		log.Error("provider not configured", zap.Error(callErr))
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, provider)

	case !d.opts.FallbackEnabled:
		log.Error("provider call failed", zap.Error(callErr))
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, provider, callErr)

	default:
		reason := truncateReason(callErr.Error())
		if errors.Is(callErr, outbound.ErrProviderCircuitOpen) {
			reason = fallbackReasonCircuitOpen
			log.Info("provider circuit open, creating degraded session")
		} else {
			log.Warn("provider call failed, creating degraded session", zap.Error(callErr))
		}
		session.ID = ref
		session.Degraded = true
		session.CheckoutURL = prov.FallbackCheckoutURL(ref)
		if session.CheckoutURL == "" {
			// payers always get somewhere to go
			session.CheckoutURL = req.CancelURL
		}
		session.ProviderMetadata = map[string]any{"fallback_reason": reason}
	}
	session.ProviderMetadata["reference"] = ref

	if err := d.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	d.metrics.SessionCreated(provider, session.Degraded)
	log.Info("payment session created",
		zap.String("session_id", session.ID),
		zap.Bool("degraded", session.Degraded),
	)
	return session.Clone(), nil
}

// callProvider runs CreateCheckout under the provider timeout.
// No session lock is held while the call is in flight.
func (d *paymentDomain) callProvider(ctx context.Context, prov outbound.PaymentProviderPort, req *model.CheckoutRequest) (*model.ProviderCheckout, error) {
	callCtx := ctx
	if d.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.opts.ProviderTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := prov.CreateCheckout(callCtx, req)
	if err == nil && (out == nil || out.CheckoutURL == "") {
		err = errors.New("provider returned no checkout url")
	}
	// neither a config error nor an open breaker reached the provider
	if !errors.Is(err, outbound.ErrProviderNotConfigured) && !errors.Is(err, outbound.ErrProviderCircuitOpen) {
		d.metrics.ProviderCall(prov.Provider(), err == nil, time.Since(start))
	}
	return out, err
}

func (d *paymentDomain) GetSession(ctx context.Context, id string) (*model.PaymentSession, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	s, err := d.store.Get(ctx, id)
	if errors.Is(err, outbound.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (d *paymentDomain) HandleWebhook(ctx context.Context, provider model.Provider, payload []byte, headers http.Header) (*model.WebhookEvent, error) {
	prov, err := d.providers.Get(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	log := logger.FromContext(ctx, d.logger).With(zap.String("provider", string(provider)))

	if err := prov.VerifyWebhook(ctx, payload, headers); err != nil {
		d.metrics.WebhookProcessed(provider, webhookResultRejected)
		log.Warn("webhook signature rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	evt := &model.WebhookEvent{
		Provider:   provider,
		RawPayload: payload,
		Verified:   true,
	}

	parsed, err := prov.ParseEvent(payload)
	if err != nil {
		log.Warn("malformed webhook payload", zap.Error(err))
		d.finish(ctx, log, evt.Ignore(model.ReasonMalformed))
		return evt, nil
	}
	evt.EventID = parsed.ID
	evt.EventType = parsed.Type
	evt.SessionID = parsed.SessionID
	evt.OrderID = parsed.OrderID
	evt.ProviderRef = parsed.ProviderRef
	log = log.With(zap.String("event_id", parsed.ID), zap.String("event_type", parsed.Type))

	var target model.SessionStatus
	switch parsed.Kind {
	case model.EventKindSucceeded:
		target = model.SessionStatusCompleted
	case model.EventKindFailed:
		target = model.SessionStatusFailed
	default:
		log.Debug("ignoring webhook event type")
		d.finish(ctx, log, evt.Ignore(model.ReasonUnknownEvent))
		return evt, nil
	}

	session, err := d.resolveSession(ctx, provider, parsed)
	if errors.Is(err, outbound.ErrSessionNotFound) {
		log.Warn("orphaned webhook event",
			zap.String("session_id", parsed.SessionID),
			zap.String("provider_ref", parsed.ProviderRef),
		)
		d.finish(ctx, log, evt.Ignore(model.ReasonOrphaned))
		return evt, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	evt.SessionID = session.ID
	evt.OrderID = session.OrderID
	log = log.With(zap.String("session_id", session.ID))

	if session.Degraded {
		log.Warn("webhook targets degraded session")
		d.finish(ctx, log, evt.Ignore(model.ReasonDegraded))
		return evt, nil
	}

	updated, transitioned, err := d.store.UpdateStatus(ctx, session.ID, target)
	if err != nil {
		return nil, fmt.Errorf("update session status: %w", err)
	}
	if !transitioned {
		log.Info("session already terminal", zap.String("status", string(updated.Status)))
		d.finish(ctx, log, evt.Ignore(model.ReasonAlreadyTerminal))
		return evt, nil
	}

	if target == model.SessionStatusFailed {
		evt.Outcome = model.EventOutcomeFailed
		log.Info("payment session failed")
		d.finish(ctx, log, evt)
		return evt, nil
	}

	evt.Outcome = model.EventOutcomeCompleted
	log.Info("payment session completed", zap.String("order_id", updated.OrderID))
	d.notify(ctx, log, updated)
	d.finish(ctx, log, evt)
	return evt, nil
}

// resolveSession finds the session an event refers to. An echoed session id
// wins over the provider's own reference; the provider reference is also tried
// as a session id for sessions keyed by it.
func (d *paymentDomain) resolveSession(ctx context.Context, provider model.Provider, e *model.ProviderEvent) (*model.PaymentSession, error) {
	type lookup func() (*model.PaymentSession, error)
	byID := func(id string) lookup {
		return func() (*model.PaymentSession, error) { return d.store.Get(ctx, id) }
	}
	byRef := func(ref string) lookup {
		return func() (*model.PaymentSession, error) { return d.store.FindByReference(ctx, provider, ref) }
	}

	var lookups []lookup
	if e.SessionID != "" {
		lookups = append(lookups, byID(e.SessionID), byRef(e.SessionID))
	}
	if e.ProviderRef != "" {
		lookups = append(lookups, byRef(e.ProviderRef), byID(e.ProviderRef))
	}

	for _, find := range lookups {
		s, err := find()
		if errors.Is(err, outbound.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// a session of another provider is never a match
		if s.Provider != provider {
			continue
		}
		return s, nil
	}
	return nil, outbound.ErrSessionNotFound
}

// notify delivers the completion notice. Failures are logged only.
func (d *paymentDomain) notify(ctx context.Context, log *zap.Logger, s *model.PaymentSession) {
	if d.notifier == nil {
		return
	}
	completedAt := s.UpdatedAt
	if s.CompletedAt != nil {
		completedAt = *s.CompletedAt
	}
	notice := &model.CompletionNotice{
		OrderID:     s.OrderID,
		SessionID:   s.ID,
		Provider:    s.Provider,
		Amount:      s.Amount,
		Currency:    s.Currency,
		CompletedAt: completedAt,
	}
	if err := d.notifier.NotifyCompletion(ctx, notice); err != nil {
		log.Error("completion notification failed", zap.Error(err))
	}
}

// finish records metrics and the audit row of a verified webhook.
func (d *paymentDomain) finish(ctx context.Context, log *zap.Logger, evt *model.WebhookEvent) {
	result := string(evt.Outcome)
	if evt.Reason != "" {
		result = evt.Reason
	}
	d.metrics.WebhookProcessed(evt.Provider, result)

	if d.eventLog == nil {
		return
	}
	record := &model.WebhookEventRecord{
		ID:         uuid.NewString(),
		Provider:   evt.Provider,
		EventID:    evt.EventID,
		EventType:  evt.EventType,
		SessionID:  evt.SessionID,
		Outcome:    string(evt.Outcome),
		Reason:     evt.Reason,
		ReceivedAt: d.opts.Now(),
	}
	if err := d.eventLog.Record(ctx, record); err != nil {
		log.Error("failed to record webhook event", zap.Error(err))
	}
}

func truncateReason(s string) string {
	const max = 256
	if len(s) > max {
		return s[:max]
	}
	return s
}

type noopMetrics struct{}

func (noopMetrics) SessionCreated(model.Provider, bool)              {}
func (noopMetrics) WebhookProcessed(model.Provider, string)          {}
func (noopMetrics) ProviderCall(model.Provider, bool, time.Duration) {}
