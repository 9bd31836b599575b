// Пакет orchestrator реализует цикл сходимости: генерация артефактов,
// их валидация и точечный ремонт невалидных до полного успеха или
// исчерпания лимита раундов.
//
// Схема одного запуска:
//
//  1. Генератор возвращает начальный пакет артефактов — он фиксирует
//     манифест (состав и порядок имён) на весь запуск.
//  2. Каждый раунд все ещё невалидные артефакты проходят валидацию
//     (параллельно, с ограничением Parallelism). Реестр накапливает
//     валидные экземпляры и никогда их не откатывает.
//  3. Если остались невалидные — генератору отправляются только они,
//     вместе с диагностикой компилятора. Ответ примиряется с манифестом
//     и цикл повторяется.
//
// Ход запуска транслируется в progress.Sink: поток событий всегда
// завершается ровно одним терминальным событием (complete,
// max_retries_exceeded или error), кроме отмены контекста — тогда поток
// просто обрывается.
//
// Экземпляр Orchestrator одноразовый: один вызов Execute на один запуск.
package orchestrator
