package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventHandler обрабатывает одно событие прогресса из очереди.
// Возврат ErrStop завершает подписку без ошибки; любая другая ошибка
// прерывает её и уходит вызывающей стороне.
type EventHandler func(ctx context.Context, msg *Message) error

// Subscriber потребляет события прогресса по шаблону routing key.
//
// Очередь подписчика эксклюзивная и auto-delete: у каждого подписчика
// своя, брокер убирает её при отключении. Подтверждений нет — поток
// прогресса не переигрывается.
type Subscriber struct {
	conn    *Connection
	logger  *slog.Logger
	pattern string
}

// NewSubscriber создаёт подписку на события по шаблону
// (PatternForRun, PatternAll или свой).
func NewSubscriber(conn *Connection, logger *slog.Logger, pattern string) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{conn: conn, logger: logger, pattern: pattern}
}

// Listen принимает события до отмены контекста, ErrStop из обработчика
// или ошибки обработчика. Разрыв соединения переживается: после
// reconnect очередь и привязка объявляются заново.
func (s *Subscriber) Listen(ctx context.Context, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := s.bind()
		if err != nil {
			s.logger.Error("failed to bind subscription", "pattern", s.pattern, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.conn.ReconnectNotify():
				s.logger.Info("reconnected, rebinding subscription", "pattern", s.pattern)
				continue
			}
		}

		s.logger.Info("subscription started", "pattern", s.pattern)

		err = s.pump(ctx, deliveries, handler)
		switch {
		case errors.Is(err, ErrStop):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil && !errors.Is(err, errDeliveriesClosed):
			return err
		}

		// Канал закрыт брокером, ждём переподключения.
		s.logger.Warn("deliveries channel closed, waiting for reconnect", "pattern", s.pattern)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.conn.ReconnectNotify():
		}
	}
}

var errDeliveriesClosed = errors.New("deliveries channel closed")

// bind объявляет эксклюзивную очередь, привязывает её к обменнику
// и начинает потребление.
func (s *Subscriber) bind() (<-chan amqp.Delivery, error) {
	ch := s.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, s.pattern, ExchangeProgress, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s to %s: %w", q.Name, ExchangeProgress, err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer tag (auto-generated)
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// pump декодирует и раздаёт доставленные сообщения обработчику.
func (s *Subscriber) pump(ctx context.Context, deliveries <-chan amqp.Delivery, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}

			var msg Message
			if err := json.Unmarshal(raw.Body, &msg); err != nil {
				s.logger.Warn("skipping malformed message",
					"pattern", s.pattern,
					"error", err,
				)
				continue
			}

			s.logger.Debug("received progress event",
				"routing_key", raw.RoutingKey,
				"kind", string(msg.Kind),
			)

			if err := handler(ctx, &msg); err != nil {
				return err
			}
		}
	}
}

// ParsePayload декодирует payload сообщения в конкретный тип события.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload после Unmarshal — map; прогоняем через JSON ещё раз.
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
