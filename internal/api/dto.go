package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/koshkarov/crucible/internal/domain"
	"github.com/koshkarov/crucible/internal/repo"
)

// StartRunRequest — запрос на запуск прогона.
type StartRunRequest struct {
	// Prompt — описание желаемого набора артефактов. Обязательно.
	Prompt string `json:"prompt"`

	// Language — целевой язык генерации.
	Language string `json:"language,omitempty"`

	// Name — человекочитаемое имя запуска.
	Name string `json:"name,omitempty"`

	// MaxRounds — лимит раундов для этого запуска (1..10);
	// вне диапазона используется серверный лимит.
	MaxRounds int `json:"max_rounds,omitempty"`
}

// ToSpec конвертирует запрос в доменную спецификацию.
func (r StartRunRequest) ToSpec() domain.Spec {
	return domain.Spec{
		Prompt:   r.Prompt,
		Language: r.Language,
		Name:     r.Name,
	}
}

// RunResponse — строка запуска в ответах API.
type RunResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name,omitempty"`
	Prompt     string     `json:"prompt"`
	Language   string     `json:"language,omitempty"`
	Status     string     `json:"status"`
	Rounds     int        `json:"rounds"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RunFromRecord конвертирует запись хранилища в RunResponse.
func RunFromRecord(rec repo.RunRecord) RunResponse {
	return RunResponse{
		ID:         rec.ID,
		Name:       rec.Spec.Name,
		Prompt:     rec.Spec.Prompt,
		Language:   rec.Spec.Language,
		Status:     string(rec.Status),
		Rounds:     rec.Rounds,
		Error:      rec.Error,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		CreatedAt:  rec.CreatedAt,
	}
}

// RunDetailResponse — запуск вместе с артефактами и историей раундов.
type RunDetailResponse struct {
	RunResponse

	// Artifacts — итоговые артефакты; на проводе в той же форме,
	// что и в событиях прогресса.
	Artifacts []domain.Artifact `json:"artifacts,omitempty"`

	// RoundHistory — счётчики по раундам.
	RoundHistory []repo.RoundRecord `json:"round_history,omitempty"`
}
