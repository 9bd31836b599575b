// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go     — Handler с DI (адаптеры, хранилище, publisher, logger)
//   - routes.go      — регистрация маршрутов
//   - middleware.go  — middleware (logging, recovery, CORS)
//   - response.go    — унифицированные JSON-ответы и обработка ошибок
//   - dto.go         — Data Transfer Objects (request/response)
//   - run_handler.go — запуск прогонов (SSE) и история
//   - ws_handler.go  — запуск прогонов по WebSocket
//
// Запуск прогона — потоковая ручка: POST /api/v1/runs держит соединение
// открытым и отдаёт события прогресса как Server-Sent Events до
// терминального события. Исторические ручки работают только при
// подключённой БД.
package api
