// Package generator содержит адаптеры генерации артефактов.
//
// # Обзор
//
// Генератор превращает спецификацию в именованный набор артефактов кода
// и чинит невалидные артефакты по диагностике компилятора. Ядро системы
// видит только интерфейс Generator; всё остальное — детали адаптера.
//
// Боевая реализация (LLM) ходит в OpenAI-совместимый chat-completions
// API. Ответ модели полиморфен, поэтому нормализуется ровно один раз на
// границе адаптера (normalize.go):
//   - {"files": [...]} — текущая форма, упорядоченный список
//   - {"name": ..., "code": ...} — устаревшая форма одним артефактом,
//     оборачивается в список из одного элемента
//   - [...] — голый массив артефактов
//
// Кодовые ограды (```json) и окружающая проза срезаются до разбора.
// Артефакт без имени или кода — нарушение схемы, фатальное для запуска.
package generator
