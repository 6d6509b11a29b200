package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/uniedit/paygate/internal/adapter/outbound/notifier"
	"github.com/uniedit/paygate/internal/infra/config"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"go.uber.org/zap"
)

// Notification channel names.
const (
	channelLog      = "log"
	channelTelegram = "telegram"
	channelKafka    = "kafka"
	channelAMQP     = "amqp"
)

// notifierSet is the async fan-out notifier plus the resources it owns.
type notifierSet struct {
	async   *notifier.AsyncNotifier
	closers []io.Closer
}

func (n *notifierSet) NotifyCompletion(ctx context.Context, notice *model.CompletionNotice) error {
	return n.async.NotifyCompletion(ctx, notice)
}

// Close drains queued notices, then closes channel connections.
func (n *notifierSet) Close(ctx context.Context) error {
	return errors.Join(n.async.Close(ctx), closeAll(n.closers))
}

// channelOpener builds one notification channel. The closer is nil when
// the channel owns no connection.
type channelOpener func(name string, cfg *config.NotifierConfig, log *zap.Logger) (outbound.CompletionNotifierPort, io.Closer, error)

// buildNotifier creates one notifier per configured channel.
func buildNotifier(cfg *config.NotifierConfig, log *zap.Logger) (*notifierSet, error) {
	return buildNotifierWith(cfg, log, openChannel)
}

// buildNotifierWith closes every channel opened so far when a later one fails.
func buildNotifierWith(cfg *config.NotifierConfig, log *zap.Logger, open channelOpener) (*notifierSet, error) {
	set := &notifierSet{}
	var channels []outbound.CompletionNotifierPort

	for _, name := range cfg.Channels {
		n, closer, err := open(name, cfg, log)
		if err != nil {
			return nil, errors.Join(err, closeAll(set.closers))
		}
		if closer != nil {
			set.closers = append(set.closers, closer)
		}
		channels = append(channels, n)
	}
	if len(channels) == 0 {
		channels = append(channels, notifier.NewLogNotifier(log.Named("notifier")))
	}

	set.async = notifier.NewAsyncNotifier(
		notifier.NewMultiNotifier(channels...),
		cfg.QueueSize,
		cfg.Workers,
		cfg.Timeout,
		log.Named("notifier"),
	)
	return set, nil
}

func openChannel(name string, cfg *config.NotifierConfig, log *zap.Logger) (outbound.CompletionNotifierPort, io.Closer, error) {
	switch name {
	case channelLog:
		return notifier.NewLogNotifier(log.Named("notifier")), nil, nil
	case channelTelegram:
		if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
			return nil, nil, errors.New("telegram notifier needs bot_token and chat_id")
		}
		n, err := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			return nil, nil, err
		}
		return n, nil, nil
	case channelKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, nil, errors.New("kafka notifier needs brokers")
		}
		n := notifier.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		return n, n, nil
	case channelAMQP:
		n, err := notifier.NewAMQPNotifier(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return nil, nil, err
		}
		return n, n, nil
	default:
		return nil, nil, fmt.Errorf("unknown notifier channel %q", name)
	}
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
