package mq

import (
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/koshkarov/crucible/internal/progress"
)

// ExchangeProgress — topic-обменник событий прогресса.
const ExchangeProgress = "crucible.progress"

// PatternAll — шаблон подписки на все события всех запусков.
const PatternAll = "run.#"

// ProgressKey строит ключ маршрутизации события: run.<id>.<kind>.
func ProgressKey(runID uuid.UUID, kind progress.Kind) string {
	return fmt.Sprintf("run.%s.%s", runID, kind)
}

// PatternForRun строит шаблон подписки на все события одного запуска.
func PatternForRun(runID uuid.UUID) string {
	return fmt.Sprintf("run.%s.*", runID)
}

// SetupTopology объявляет обменник прогресса. Операция идемпотентна,
// её выполняют и издатель, и подписчики.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			ExchangeProgress, // name
			"topic",          // type
			true,             // durable
			false,            // auto-deleted
			false,            // internal
			false,            // no-wait
			nil,              // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeProgress, err)
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Crucible RabbitMQ Topology:

    crucible.progress (topic)
    └── run.<id>.<kind> per event
            run.<id>.*     — one run, every event
            run.*.complete — successful finishes only
            run.#          — the whole progress bus
            Queues are subscriber-owned (exclusive, auto-delete)
  `
}
