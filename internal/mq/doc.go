// Package mq транслирует события прогресса в RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление обменника и ключи маршрутизации
//   - publisher.go  — публикация событий, адаптер progress.Sink
//   - subscriber.go — подписка на события по шаблону routing key
//
// Обменник один — crucible.progress (topic). Каждое событие уходит
// с ключом run.<id>.<kind>, поэтому подписчик сам выбирает срез:
//   - run.<id>.*    — все события одного запуска
//   - run.*.complete — только успешные завершения
//   - run.#          — вся шина прогресса
package mq
