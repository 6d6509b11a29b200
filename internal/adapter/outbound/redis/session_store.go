package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
)

const (
	sessionKeyPrefix    = "paygate:session:"
	sessionRefKeyPrefix = "paygate:session:ref:"

	// maxTxRetries bounds optimistic-lock retries of a contended status update.
	maxTxRetries = 16
)

// sessionStore implements outbound.SessionStorePort on Redis.
// Status updates use WATCH/MULTI so only one writer moves a pending session.
type sessionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionStore creates a Redis session store. A zero ttl keeps sessions forever.
func NewSessionStore(client *redis.Client, ttl time.Duration) outbound.SessionStorePort {
	return &sessionStore{client: client, ttl: ttl, now: time.Now}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func sessionRefKey(provider model.Provider, ref string) string {
	return sessionRefKeyPrefix + string(provider) + ":" + ref
}

func (s *sessionStore) Put(ctx context.Context, session *model.PaymentSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	key := sessionKey(session.ID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return outbound.ErrSessionExists
		}
		// the session and its reference keys are written together or not at all
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			for _, ref := range []string{session.Reference, session.ProviderRef} {
				if ref != "" {
					pipe.Set(ctx, sessionRefKey(session.Provider, ref), session.ID, s.ttl)
				}
			}
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		// a concurrent Put claimed the id between WATCH and EXEC
		return outbound.ErrSessionExists
	}
	return err
}

func (s *sessionStore) Get(ctx context.Context, id string) (*model.PaymentSession, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, outbound.ErrSessionNotFound
		}
		return nil, err
	}
	return decodeSession(data)
}

func (s *sessionStore) FindByReference(ctx context.Context, provider model.Provider, ref string) (*model.PaymentSession, error) {
	id, err := s.client.Get(ctx, sessionRefKey(provider, ref)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, outbound.ErrSessionNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *sessionStore) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) (*model.PaymentSession, bool, error) {
	key := sessionKey(id)

	var (
		result       *model.PaymentSession
		transitioned bool
	)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return outbound.ErrSessionNotFound
			}
			return err
		}
		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		if !session.Status.CanTransitionTo(status) {
			result, transitioned = session, false
			return nil
		}

		now := s.now()
		session.Status = status
		session.UpdatedAt = now
		if status == model.SessionStatusCompleted {
			session.CompletedAt = &now
		}
		encoded, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		result, transitioned = session, true
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return result, transitioned, nil
	}
	return nil, false, fmt.Errorf("update session %s: too many concurrent writers", id)
}

func decodeSession(data []byte) (*model.PaymentSession, error) {
	var session model.PaymentSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Compile-time check
var _ outbound.SessionStorePort = (*sessionStore)(nil)
