package domain

import "errors"

// Классы ошибок конвейера сходимости.
//
// Конкретные ошибки оборачивают эти sentinel-значения через fmt.Errorf
// с %w; вызывающая сторона различает классы через errors.Is.
var (
	// ErrGenerator — сбой генератора: ошибка транспорта, пустой ответ,
	// неразбираемый payload. Фатально для запуска.
	ErrGenerator = errors.New("generator failure")

	// ErrValidator — валидатор нарушил свой контракт (например, указал
	// позицию ошибки за пределами кода артефакта). Фатально для запуска.
	ErrValidator = errors.New("validator contract violation")

	// ErrSchema — структурное нарушение данных: пустой батч, повторная
	// инициализация реестра, артефакт без имени или кода.
	ErrSchema = errors.New("schema violation")

	// ErrReconciliation — батч починки не удалось однозначно сверить
	// с манифестом (неоднозначное переименование или дыра).
	ErrReconciliation = errors.New("reconciliation failed")

	// ErrExhausted — лимит раундов исчерпан, артефакты остались
	// невалидными. Частичный результат при этом доступен.
	ErrExhausted = errors.New("max repair rounds exhausted")
)
