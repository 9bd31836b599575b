// Package cli реализует инструмент командной строки Crucible.
//
// # Обзор
//
// CLI — клиентская утилита сервиса генерации. Запускает прогоны через
// HTTP API и читает их SSE-поток; формы ответов API продублированы
// локально, пакет internal/api не импортируется. Единственное
// исключение из клиентской дисциплины — `run watch`: он подключается
// к обменнику прогресса напрямую через internal/mq, потому что смотрит
// на прогон, запущенный кем-то другим, и API ему не нужен.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент Crucible API: запуск прогонов (StartRun → RunStream,
// без таймаута — поток живёт столько, сколько прогон) и история
// (ListRuns, GetRun — с обычным таймаутом).
//
//	client := cli.NewClient("http://localhost:8080")
//	stream, err := client.StartRun(ctx, cli.StartRunRequest{Prompt: "..."})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) и строки прогресса — по умолчанию
//   - JSON (в том числе сырые события потока) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: crucible run start --json | jq .
//
// ## Commands
//
// Cobra-команды:
//   - run start: запуск прогона (--prompt или --spec-file), стрим
//     прогресса, --output пишет готовые артефакты на диск
//   - run list, run show: история через API
//   - run watch: подписка на прогон через обменник прогресса
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
