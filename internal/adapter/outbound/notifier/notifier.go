// Package notifier delivers completion notices to external channels.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"go.uber.org/zap"
)

// logNotifier writes completion notices to the application log.
type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *zap.Logger) outbound.CompletionNotifierPort {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) NotifyCompletion(_ context.Context, notice *model.CompletionNotice) error {
	n.logger.Info("payment completed",
		zap.String("order_id", notice.OrderID),
		zap.String("session_id", notice.SessionID),
		zap.String("provider", string(notice.Provider)),
		zap.String("amount", notice.Amount.String()),
		zap.String("currency", notice.Currency),
		zap.Time("completed_at", notice.CompletedAt),
	)
	return nil
}

// multiNotifier fans a notice out to every channel.
type multiNotifier struct {
	notifiers []outbound.CompletionNotifierPort
}

// NewMultiNotifier combines notifiers. Every channel is tried; errors are joined.
func NewMultiNotifier(notifiers ...outbound.CompletionNotifierPort) outbound.CompletionNotifierPort {
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return &multiNotifier{notifiers: notifiers}
}

func (m *multiNotifier) NotifyCompletion(ctx context.Context, notice *model.CompletionNotice) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.NotifyCompletion(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// formatNotice renders a human readable one-paragraph notice.
func formatNotice(notice *model.CompletionNotice) string {
	return fmt.Sprintf("Payment completed\nOrder: %s\nAmount: %s %s\nProvider: %s\nSession: %s",
		notice.OrderID,
		model.FormatAmount(notice.Amount, notice.Currency),
		notice.Currency,
		notice.Provider,
		notice.SessionID,
	)
}
