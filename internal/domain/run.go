package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один запуск сходимости: генерация, валидация и починка набора
// артефактов до полной валидности либо до исчерпания раундов.
//
// Run создаётся на каждый запрос (HTTP, CLI или локальный запуск) и живёт
// ровно один проход конвейера. Состояние между запусками не разделяется.
type Run struct {
	// ID — уникальный идентификатор запуска.
	ID uuid.UUID `json:"id"`

	// Spec — спецификация, поданная вызывающей стороной.
	Spec Spec `json:"spec"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Rounds — количество завершённых раундов валидации.
	Rounds int `json:"rounds"`

	// StartedAt — время начала выполнения (первое обращение к генератору).
	// Nil, если запуск ещё не начался.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время достижения терминального статуса.
	// Nil, если запуск ещё идёт.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки для статусов ERROR и EXHAUSTED.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания запуска.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт запуск в статусе GENERATING.
func NewRun(spec Spec) *Run {
	return &Run{
		ID:        uuid.New(),
		Spec:      spec,
		Status:    RunStatusGenerating,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если запуск ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если запуск достиг терминального статуса.
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkStarted фиксирует начало выполнения (перед первым обращением
// к генератору).
func (r *Run) MarkStarted() {
	now := time.Now()
	r.StartedAt = &now
	r.Status = RunStatusGenerating
}

// MarkValidating переводит запуск в статус VALIDATING.
func (r *Run) MarkValidating() {
	r.Status = RunStatusValidating
}

// MarkRetrying переводит запуск в статус RETRYING перед очередной починкой.
func (r *Run) MarkRetrying() {
	r.Status = RunStatusRetrying
}

// MarkComplete переводит запуск в статус COMPLETE.
func (r *Run) MarkComplete() {
	now := time.Now()
	r.Status = RunStatusComplete
	r.FinishedAt = &now
}

// MarkExhausted переводит запуск в статус EXHAUSTED с текстом последней
// ошибки невалидного артефакта.
func (r *Run) MarkExhausted(lastErr string) {
	now := time.Now()
	r.Status = RunStatusExhausted
	r.FinishedAt = &now
	r.Error = lastErr
}

// MarkError переводит запуск в статус ERROR (фатальный сбой адаптера
// или сверки).
func (r *Run) MarkError(err string) {
	now := time.Now()
	r.Status = RunStatusError
	r.FinishedAt = &now
	r.Error = err
}

// MarkCancelled переводит запуск в статус CANCELLED.
func (r *Run) MarkCancelled() {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
}
