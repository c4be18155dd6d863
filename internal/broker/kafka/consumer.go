package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/RiskSync/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusHandler обрабатывает одно событие смены статуса заказа.
type StatusHandler func(ctx context.Context, msg messages.OrderStatusChanged) error

// Consumer читает orders.status_changed — единственный входной поток
// локальных переходов для сверки с антифродом.
type Consumer struct {
	r messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r: kafka.NewReader(cfg),
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume крутит цикл fetch → decode → handler → commit до отмены ctx.
// Битое сообщение логируется и коммитится: один ядовитый payload не должен
// останавливать весь поток статусов. Ошибка обработчика — останавливает:
// commit не делаем, после рестарта сообщение придёт снова.
func (c *Consumer) Consume(ctx context.Context, handler StatusHandler) error {
	for {
		raw, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}

		var m messages.OrderStatusChanged
		if err := json.Unmarshal(raw.Value, &m); err != nil {
			slog.Warn("skipping malformed status message",
				"offset", raw.Offset, "error", err.Error())
			if err := c.r.CommitMessages(ctx, raw); err != nil {
				return errors.Wrap(err, "commit skipped message")
			}
			continue
		}

		if err := handler(ctx, m); err != nil {
			return errors.Wrap(err, "handle status change")
		}
		if err := c.r.CommitMessages(ctx, raw); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}
