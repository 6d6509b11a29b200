package notifier

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
)

// messageSender is the subset of telego.Bot used for notices.
type messageSender interface {
	SendMessage(params *telego.SendMessageParams) (*telego.Message, error)
}

// telegramNotifier posts completion notices to a Telegram chat.
type telegramNotifier struct {
	bot    messageSender
	chatID int64
}

// NewTelegramNotifier creates a Telegram notifier from a bot token.
func NewTelegramNotifier(token string, chatID int64) (outbound.CompletionNotifierPort, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, chatID), nil
}

func newTelegramNotifier(bot messageSender, chatID int64) *telegramNotifier {
	return &telegramNotifier{bot: bot, chatID: chatID}
}

func (n *telegramNotifier) NotifyCompletion(_ context.Context, notice *model.CompletionNotice) error {
	_, err := n.bot.SendMessage(&telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.chatID},
		Text:   formatNotice(notice),
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
