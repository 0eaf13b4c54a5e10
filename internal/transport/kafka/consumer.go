package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/asquebay/restaurant-order-service/internal/config"
	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/service"

	"github.com/segmentio/kafka-go"
)

// StatusChanger — это интерфейс, который абстрагирует консьюмер
// от конкретной реализации сервисного слоя
type StatusChanger interface {
	ChangeStatus(ctx context.Context, orderID int64, status string) (model.Order, error)
}

// messageReader — часть kafka.Reader, которой пользуется консьюмер
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// Consumer читает команды смены статуса заказа, которые присылают кухонные устройства
type Consumer struct {
	reader  messageReader
	service StatusChanger
	log     *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewConsumer создает новый экземпляр консьюмера
func NewConsumer(cfg config.Kafka, service StatusChanger, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	})

	return &Consumer{
		reader:     reader,
		service:    service,
		log:        log.With(slog.String("component", "kafka_consumer")),
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

// Run запускает цикл чтения сообщений из Kafka
// эта функция блокирующая, поэтому она запускается в отдельной горутине
func (c *Consumer) Run(ctx context.Context) {
	log := c.log
	log.Info("kafka consumer started")

	delay := c.minBackoff
	for {
		// FetchMessage блокирует до тех пор, пока не придет новое сообщение или не возникнет ошибка
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("context cancelled, stopping consumer")
				return
			}
			if errors.Is(err, io.EOF) {
				log.Info("kafka reader closed")
				return
			}
			// брокер недоступен: ждём с нарастающей паузой, а не крутимся вхолостую
			log.Error("failed to fetch message", slog.String("error", err.Error()), slog.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return
			}
			delay = c.next(delay)
			continue
		}
		delay = c.minBackoff

		if !c.process(ctx, msg) {
			log.Info("context cancelled, stopping consumer")
			return
		}
	}
}

// process применяет сообщение и подтверждает его
// временные ошибки повторяются на том же сообщении, иначе commit следующего сдвинет offset мимо него
// false означает, что контекст отменён и сообщение не подтверждено
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	log := c.log.With(slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset))
	log.Debug("received message", slog.String("topic", msg.Topic))

	delay := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := c.handleMessage(ctx, msg.Value)
		if err == nil {
			break
		}
		log.Error("failed to handle message, retrying",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
		)
		if !sleep(ctx, delay) {
			return false
		}
		delay = c.next(delay)
	}

	// offset фиксируем только ПОСЛЕ обработки
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.Error("failed to commit message", slog.String("error", err.Error()))
	}
	return true
}

func (c *Consumer) next(delay time.Duration) time.Duration {
	return min(2*delay, c.maxBackoff)
}

// sleep ждёт d или отмены контекста; false — контекст отменён
func sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// handleMessage парсит и применяет одну команду
// nil означает, что сообщение можно подтвердить (в том числе если повтор бессмыслен)
func (c *Consumer) handleMessage(ctx context.Context, value []byte) error {
	var cmd model.StatusChange

	if err := json.Unmarshal(value, &cmd); err != nil {
		c.log.Warn("failed to unmarshal message, skipping", slog.String("error", err.Error()))
		return nil
	}

	if err := cmd.Validate(); err != nil {
		c.log.Warn("message validation failed, skipping",
			slog.String("error", err.Error()),
			slog.Int64("order_id", cmd.OrderID),
		)
		return nil
	}

	if _, err := c.service.ChangeStatus(ctx, cmd.OrderID, cmd.Status); err != nil {
		// неверный переход или удалённый заказ не исправятся повтором
		if errors.Is(err, service.ErrInvalidTransition) ||
			errors.Is(err, service.ErrNotFound) ||
			errors.Is(err, service.ErrValidation) {
			c.log.Warn("status command rejected, skipping",
				slog.String("error", err.Error()),
				slog.Int64("order_id", cmd.OrderID),
			)
			return nil
		}
		return err
	}

	c.log.Info("status command applied", slog.Int64("order_id", cmd.OrderID), slog.String("status", cmd.Status))
	return nil
}

// gracefull shutdown консьюмера
func (c *Consumer) Close() error {
	c.log.Info("closing kafka consumer")
	return c.reader.Close()
}
