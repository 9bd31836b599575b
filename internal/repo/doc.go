// Package repo — аналитическое хранилище запусков в PostgreSQL.
//
// Хранилище необязательно: ядро работает без БД, API лишь отключает
// исторические ручки. Писатель (Recorder) подключается к потоку событий
// прогресса как зеркало и не влияет на исход запуска.
//
// Таблицы:
//   - runs       — по строке на запуск: спецификация, статус, итоги
//   - run_rounds — по строке на раунд: счётчики валидации
package repo
