// Package validator содержит адаптеры валидации сгенерированного кода.
//
// # Обзор
//
// Валидатор отвечает на один вопрос: принимает ли компилятор этот код.
// Невалидный код — штатный исход (Outcome.Valid=false с диагностикой),
// инфраструктурные сбои — ошибка вызова.
//
// Реализации:
//   - Service — внешний compile-сервис по HTTP (POST {language, code})
//   - Command — локальный тулчейн: код во временный файл, запуск
//     компилятора, ненулевой exit-код превращается в диагностику
//
// # Диагностика
//
// diagnostics.go дополняет сообщение компилятора контекстным окном:
// строками вокруг указанной позиции. Позиция за пределами кода артефакта —
// нарушение контракта валидатора и фатальная ошибка запуска.
package validator
