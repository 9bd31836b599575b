package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koshkarov/crucible/internal/domain"
)

// RunRecord — строка запуска вместе с финальными артефактами.
type RunRecord struct {
	domain.Run

	// Artifacts — итоговый набор артефактов (частичный при EXHAUSTED,
	// с диагностикой на невалидных). Не заполняется в списках.
	Artifacts []domain.Artifact `json:"artifacts,omitempty"`
}

// RoundRecord — итог одного раунда валидации.
type RoundRecord struct {
	Round       int       `json:"round"`
	ValidCount  int       `json:"valid_count"`
	FailedCount int       `json:"failed_count"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// RunFilter — параметры выборки запусков.
type RunFilter struct {
	Status domain.RunStatus
	Limit  int
	Offset int
}

// RunRepo — репозиторий запусков.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create вставляет строку нового запуска.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, name, prompt, language, status, rounds, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		nullString(run.Spec.Name),
		run.Spec.Prompt,
		nullString(run.Spec.Language),
		run.Status,
		run.Rounds,
		run.StartedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish записывает терминальное состояние запуска и итоговые артефакты.
func (r *RunRepo) Finish(ctx context.Context, run *domain.Run, artifacts []domain.Artifact) error {
	var artifactsJSON []byte
	if len(artifacts) > 0 {
		var err error
		artifactsJSON, err = json.Marshal(artifacts)
		if err != nil {
			return fmt.Errorf("marshal artifacts: %w", err)
		}
	}

	query := `
		UPDATE runs
		SET status = $2, rounds = $3, artifacts = $4, error = $5, finished_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.Rounds,
		artifactsJSON,
		nullString(run.Error),
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRound записывает итог одного раунда валидации.
func (r *RunRepo) AddRound(ctx context.Context, runID uuid.UUID, round, validCount, failedCount int) error {
	query := `
		INSERT INTO run_rounds (run_id, round, valid_count, failed_count, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, runID, round, validCount, failedCount, time.Now())
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// GetByID возвращает запуск вместе с артефактами.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	query := `
		SELECT id, name, prompt, language, status, rounds, artifacts,
		       error, started_at, finished_at, created_at
		FROM runs
		WHERE id = $1
	`

	var rec RunRecord
	var name, language, runError *string
	var artifactsJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&name,
		&rec.Spec.Prompt,
		&language,
		&rec.Status,
		&rec.Rounds,
		&artifactsJSON,
		&runError,
		&rec.StartedAt,
		&rec.FinishedAt,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	applyNullable(&rec, name, language, runError)

	if artifactsJSON != nil {
		if err := json.Unmarshal(artifactsJSON, &rec.Artifacts); err != nil {
			return nil, fmt.Errorf("unmarshal artifacts: %w", err)
		}
	}

	return &rec, nil
}

// List возвращает запуски по фильтру, новые первыми. Артефакты
// в список не включаются.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, name, prompt, language, status, rounds,
		       error, started_at, finished_at, created_at
		FROM runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var name, language, runError *string

		err := rows.Scan(
			&rec.ID,
			&name,
			&rec.Spec.Prompt,
			&language,
			&rec.Status,
			&rec.Rounds,
			&runError,
			&rec.StartedAt,
			&rec.FinishedAt,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		applyNullable(&rec, name, language, runError)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Rounds возвращает историю раундов запуска.
func (r *RunRepo) Rounds(ctx context.Context, runID uuid.UUID) ([]RoundRecord, error) {
	query := `
		SELECT round, valid_count, failed_count, recorded_at
		FROM run_rounds
		WHERE run_id = $1
		ORDER BY round ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []RoundRecord
	for rows.Next() {
		var rec RoundRecord
		if err := rows.Scan(&rec.Round, &rec.ValidCount, &rec.FailedCount, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, rec)
	}
	return rounds, rows.Err()
}

// applyNullable переносит nullable-колонки в запись.
func applyNullable(rec *RunRecord, name, language, runError *string) {
	if name != nil {
		rec.Spec.Name = *name
	}
	if language != nil {
		rec.Spec.Language = *language
	}
	if runError != nil {
		rec.Error = *runError
	}
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
