package postgres

import (
	"context"
	"fmt"

	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"gorm.io/gorm"
)

// webhookEventAdapter implements outbound.WebhookEventLogPort.
type webhookEventAdapter struct {
	db *gorm.DB
}

// NewWebhookEventAdapter creates a new webhook event log adapter.
func NewWebhookEventAdapter(db *gorm.DB) outbound.WebhookEventLogPort {
	return &webhookEventAdapter{db: db}
}

func (a *webhookEventAdapter) Record(ctx context.Context, record *model.WebhookEventRecord) error {
	if err := a.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create webhook event: %w", err)
	}
	return nil
}

// Compile-time check
var _ outbound.WebhookEventLogPort = (*webhookEventAdapter)(nil)
