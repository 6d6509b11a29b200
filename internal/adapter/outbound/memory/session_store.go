// Package memory provides in-process adapters for single-instance deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
)

type refKey struct {
	provider model.Provider
	ref      string
}

// entry guards one session. Status updates lock only their own entry.
type entry struct {
	mu      sync.Mutex
	session *model.PaymentSession
}

// sessionStore implements outbound.SessionStorePort in memory.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	refs     map[refKey]string
	now      func() time.Time
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() outbound.SessionStorePort {
	return &sessionStore{
		sessions: make(map[string]*entry),
		refs:     make(map[refKey]string),
		now:      time.Now,
	}
}

func (s *sessionStore) Put(_ context.Context, session *model.PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return outbound.ErrSessionExists
	}
	s.sessions[session.ID] = &entry{session: session.Clone()}
	for _, ref := range []string{session.Reference, session.ProviderRef} {
		if ref != "" {
			s.refs[refKey{provider: session.Provider, ref: ref}] = session.ID
		}
	}
	return nil
}

func (s *sessionStore) Get(_ context.Context, id string) (*model.PaymentSession, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, outbound.ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

func (s *sessionStore) FindByReference(ctx context.Context, provider model.Provider, ref string) (*model.PaymentSession, error) {
	s.mu.RLock()
	id, ok := s.refs[refKey{provider: provider, ref: ref}]
	s.mu.RUnlock()
	if !ok {
		return nil, outbound.ErrSessionNotFound
	}
	return s.Get(ctx, id)
}

func (s *sessionStore) UpdateStatus(_ context.Context, id string, status model.SessionStatus) (*model.PaymentSession, bool, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, false, outbound.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.session.Status.CanTransitionTo(status) {
		return e.session.Clone(), false, nil
	}

	now := s.now()
	e.session.Status = status
	e.session.UpdatedAt = now
	if status == model.SessionStatusCompleted {
		e.session.CompletedAt = &now
	}
	return e.session.Clone(), true, nil
}

func (s *sessionStore) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}
