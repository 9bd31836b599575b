package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/koshkarov/crucible/internal/progress"
)

// publishTimeout ограничивает одну публикацию из адаптера Sink.
const publishTimeout = 5 * time.Second

// Message — конверт события прогресса на проводе.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// RunID — запуск, к которому относится событие.
	RunID uuid.UUID `json:"run_id"`

	// Kind — вид события; дублирует суффикс routing key.
	Kind progress.Kind `json:"kind"`

	// Payload — полезная нагрузка события.
	Payload any `json:"payload"`

	// Timestamp — время публикации.
	Timestamp time.Time `json:"timestamp"`
}

// Publisher публикует события прогресса в обменник.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// PublishEvent публикует одно событие прогресса с ключом run.<id>.<kind>.
func (p *Publisher) PublishEvent(ctx context.Context, runID uuid.UUID, ev progress.Event) error {
	msg := Message{
		ID:        uuid.New().String(),
		RunID:     runID,
		Kind:      ev.Kind,
		Payload:   ev.Payload,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := ProgressKey(runID, ev.Kind)

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			ExchangeProgress, // exchange
			key,              // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Transient,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}

		p.logger.Debug("published progress event",
			"routing_key", key,
			"message_id", msg.ID,
		)

		return nil
	})
}

// EventSink адаптирует Publisher к progress.Sink для одного запуска.
//
// Используется как зеркало в progress.Multi: ошибка публикации не роняет
// запуск, составной приёмник её логирует и глотает.
type EventSink struct {
	pub   *Publisher
	runID uuid.UUID
}

// NewEventSink создаёт приёмник событий одного запуска.
func NewEventSink(pub *Publisher, runID uuid.UUID) *EventSink {
	return &EventSink{pub: pub, runID: runID}
}

// Emit реализует интерфейс progress.Sink.
func (s *EventSink) Emit(ev progress.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return s.pub.PublishEvent(ctx, s.runID, ev)
}
