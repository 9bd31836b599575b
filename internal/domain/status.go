package domain

// RunStatus — статус запуска сходимости.
//
// Жизненный цикл:
//
//	GENERATING → VALIDATING → COMPLETE
//	                        ↘ RETRYING → VALIDATING (цикл до maxRounds)
//	                        ↘ EXHAUSTED
//	(из любого состояния) → ERROR (фатальный сбой)
//	(из любого состояния) → CANCELLED (отмена вызывающей стороной)
type RunStatus string

const (
	// RunStatusGenerating — идёт первичная генерация артефактов.
	RunStatusGenerating RunStatus = "GENERATING"

	// RunStatusValidating — артефакты проходят валидацию.
	RunStatusValidating RunStatus = "VALIDATING"

	// RunStatusRetrying — невалидные артефакты отправлены на починку.
	RunStatusRetrying RunStatus = "RETRYING"

	// RunStatusComplete — все артефакты прошли валидацию.
	RunStatusComplete RunStatus = "COMPLETE"

	// RunStatusExhausted — лимит раундов исчерпан, остались невалидные
	// артефакты. Частичный результат доступен.
	RunStatusExhausted RunStatus = "EXHAUSTED"

	// RunStatusError — фатальный сбой адаптера или сверки.
	RunStatusError RunStatus = "ERROR"

	// RunStatusCancelled — запуск отменён (контекст вызывающей стороны
	// завершился).
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (запуск завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusComplete, RunStatusExhausted, RunStatusError, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsKnown возвращает true для известных значений статуса.
// Используется при разборе фильтров в API и CLI.
func (s RunStatus) IsKnown() bool {
	switch s {
	case RunStatusGenerating, RunStatusValidating, RunStatusRetrying,
		RunStatusComplete, RunStatusExhausted, RunStatusError, RunStatusCancelled:
		return true
	default:
		return false
	}
}
