package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/asquebay/restaurant-order-service/internal/config"
	"github.com/asquebay/restaurant-order-service/internal/model"
)

const publishTimeout = 5 * time.Second

// channel — подмножество amqp091.Channel, которое нужно издателю
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher рассылает события смены статуса заказа в fanout-обменник
type Publisher struct {
	conn     *amqp091.Connection
	mu       sync.Mutex
	ch       channel
	exchange string
	log      *slog.Logger
}

// NewPublisher подключается к RabbitMQ и объявляет обменник уведомлений
func NewPublisher(cfg config.RabbitMQ, log *slog.Logger) (*Publisher, error) {
	const op = "transport.rabbitmq.NewPublisher"

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: failed to open channel: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"fanout",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: failed to declare exchange %s: %w", op, cfg.Exchange, err)
	}

	p := newPublisher(ch, cfg.Exchange, log)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, log *slog.Logger) *Publisher {
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		log:      log.With(slog.String("component", "rabbitmq_publisher")),
	}
}

// NotifyStatusChange публикует событие; канал не потокобезопасен для публикации
func (p *Publisher) NotifyStatusChange(ctx context.Context, event model.StatusEvent) error {
	const op = "transport.rabbitmq.Publisher.NotifyStatusChange"

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		"",         // routing key (fanout его игнорирует)
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Transient,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Debug("status change published",
		slog.Int64("order_id", event.OrderID),
		slog.String("status", string(event.NewStatus)),
	)
	return nil
}

// Close закрывает канал и соединение
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		p.log.Warn("failed to close channel", slog.String("error", err.Error()))
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
