package repo

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/koshkarov/crucible/internal/domain"
	"github.com/koshkarov/crucible/internal/progress"
)

// recordTimeout ограничивает одну операцию записи из потока событий.
const recordTimeout = 5 * time.Second

// runStore — операции хранилища, нужные Recorder.
type runStore interface {
	Create(ctx context.Context, run *domain.Run) error
	AddRound(ctx context.Context, runID uuid.UUID, round, validCount, failedCount int) error
	Finish(ctx context.Context, run *domain.Run, artifacts []domain.Artifact) error
}

// Recorder зеркалирует поток событий одного запуска в хранилище.
//
// Подключается зеркалом в progress.Multi: ошибка записи логируется
// составным приёмником и не влияет на исход запуска. validation_start
// создаёт строку запуска, validation_progress добавляет раунд,
// терминальное событие фиксирует итог. Отмена обрывает поток без
// терминального события — тогда строку дописывает Finalize.
type Recorder struct {
	store  runStore
	run    *domain.Run
	logger *slog.Logger

	order     []string
	latest    map[string]domain.Artifact
	created   bool
	finalized bool
}

// NewRecorder создаёт Recorder для одного запуска.
func NewRecorder(store runStore, run *domain.Run, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		run:    run,
		logger: logger,
		latest: make(map[string]domain.Artifact),
	}
}

// Emit реализует интерфейс progress.Sink.
func (rec *Recorder) Emit(ev progress.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	switch p := ev.Payload.(type) {
	case progress.ValidationStartPayload:
		return rec.ensureCreated(ctx)

	case progress.ValidationProgressPayload:
		return rec.store.AddRound(ctx, rec.run.ID, p.Round, p.ValidCount, p.FailedCount)

	case progress.ArtifactReadyPayload:
		// Держим последнее состояние каждого имени: на исходе
		// невалидные артефакты сохраняются вместе с диагностикой.
		if _, seen := rec.latest[p.Artifact.Name]; !seen {
			rec.order = append(rec.order, p.Artifact.Name)
		}
		rec.latest[p.Artifact.Name] = p.Artifact
		return nil

	case progress.CompletePayload:
		return rec.finish(ctx, p.Artifacts)

	case progress.MaxRetriesExceededPayload:
		return rec.finish(ctx, rec.snapshot())

	case progress.ErrorPayload:
		return rec.finish(ctx, rec.snapshot())
	}

	return nil
}

// Finalize дописывает строку запуска, когда поток оборвался без
// терминального события. Повторный вызов безвреден.
func (rec *Recorder) Finalize(ctx context.Context) error {
	if rec.finalized {
		return nil
	}
	rec.logger.Debug("finalizing interrupted run record",
		"run_id", rec.run.ID.String(),
		"status", string(rec.run.Status),
	)
	return rec.finish(ctx, rec.snapshot())
}

// ensureCreated вставляет строку запуска ровно один раз.
func (rec *Recorder) ensureCreated(ctx context.Context) error {
	if rec.created {
		return nil
	}
	if err := rec.store.Create(ctx, rec.run); err != nil {
		return err
	}
	rec.created = true
	return nil
}

// finish записывает терминальное состояние; строка создаётся, если
// запуск упал до validation_start.
func (rec *Recorder) finish(ctx context.Context, artifacts []domain.Artifact) error {
	rec.finalized = true
	if err := rec.ensureCreated(ctx); err != nil {
		return err
	}
	return rec.store.Finish(ctx, rec.run, artifacts)
}

// snapshot собирает последний известный набор артефактов в порядке
// их первого появления в потоке.
func (rec *Recorder) snapshot() []domain.Artifact {
	if len(rec.order) == 0 {
		return nil
	}
	artifacts := make([]domain.Artifact, 0, len(rec.order))
	for _, name := range rec.order {
		artifacts = append(artifacts, rec.latest[name])
	}
	return artifacts
}
