// Package progress содержит канал прогресса запуска: алгебру событий,
// интерфейс приёмника (Sink) и SSE-кодировщик.
//
// События испускаются синхронно с изменением состояния запуска: никакой
// буферизации между оркестратором и приёмником нет. На каждый завершённый
// запуск приходится ровно одно терминальное событие (complete,
// max_retries_exceeded или error); отменённый запуск обрывает поток без
// терминального события.
package progress
