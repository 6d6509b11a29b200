package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"gorm.io/gorm"
)

// sessionStoreAdapter implements outbound.SessionStorePort.
// Status updates are a conditional UPDATE guarded by status = 'pending'.
type sessionStoreAdapter struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSessionStoreAdapter creates a new session store database adapter.
// The gorm.DB should be opened with TranslateError so duplicates surface as gorm.ErrDuplicatedKey.
func NewSessionStoreAdapter(db *gorm.DB) outbound.SessionStorePort {
	return &sessionStoreAdapter{db: db, now: time.Now}
}

func (a *sessionStoreAdapter) Put(ctx context.Context, session *model.PaymentSession) error {
	err := a.db.WithContext(ctx).Create(session).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return outbound.ErrSessionExists
	}
	if err != nil {
		return fmt.Errorf("create payment session: %w", err)
	}
	return nil
}

func (a *sessionStoreAdapter) Get(ctx context.Context, id string) (*model.PaymentSession, error) {
	var session model.PaymentSession
	err := a.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, outbound.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment session by id: %w", err)
	}
	return &session, nil
}

func (a *sessionStoreAdapter) FindByReference(ctx context.Context, provider model.Provider, ref string) (*model.PaymentSession, error) {
	var session model.PaymentSession
	err := a.db.WithContext(ctx).
		Where("provider = ? AND (reference = ? OR provider_ref = ?)", provider, ref, ref).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, outbound.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment session by reference: %w", err)
	}
	return &session, nil
}

func (a *sessionStoreAdapter) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) (*model.PaymentSession, bool, error) {
	transitioned := false
	if model.SessionStatusPending.CanTransitionTo(status) {
		now := a.now()
		updates := map[string]interface{}{
			"status":     status,
			"updated_at": now,
		}
		if status == model.SessionStatusCompleted {
			updates["completed_at"] = now
		}

		result := a.db.WithContext(ctx).
			Model(&model.PaymentSession{}).
			Where("id = ? AND status = ?", id, model.SessionStatusPending).
			Updates(updates)
		if result.Error != nil {
			return nil, false, fmt.Errorf("update payment session status: %w", result.Error)
		}
		transitioned = result.RowsAffected == 1
	}

	session, err := a.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return session, transitioned, nil
}

// Compile-time check
var _ outbound.SessionStorePort = (*sessionStoreAdapter)(nil)
