package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL — схема хранилища. Идемпотентна, выполняется на старте.
const schemaDDL = `
	CREATE TABLE IF NOT EXISTS runs (
		id          UUID PRIMARY KEY,
		name        TEXT,
		prompt      TEXT NOT NULL,
		language    TEXT,
		status      TEXT NOT NULL,
		rounds      INT NOT NULL DEFAULT 0,
		artifacts   JSONB,
		error       TEXT,
		started_at  TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

	CREATE TABLE IF NOT EXISTS run_rounds (
		run_id       UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		round        INT NOT NULL,
		valid_count  INT NOT NULL,
		failed_count INT NOT NULL,
		recorded_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, round)
	);
`

// EnsureSchema создаёт таблицы хранилища, если их ещё нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
