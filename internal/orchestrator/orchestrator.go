package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koshkarov/crucible/internal/domain"
	"github.com/koshkarov/crucible/internal/generator"
	"github.com/koshkarov/crucible/internal/progress"
	"github.com/koshkarov/crucible/internal/registry"
	"github.com/koshkarov/crucible/internal/telemetry"
	"github.com/koshkarov/crucible/internal/validator"
)

const (
	// defaultMaxRounds — лимит раундов по умолчанию: первый раунд
	// генерации плюс до четырёх раундов ремонта.
	defaultMaxRounds = 5

	// defaultParallelism — сколько артефактов валидируется одновременно
	// внутри одного раунда.
	defaultParallelism = 4
)

// Orchestrator управляет одним запуском: генерация, валидация, ремонт.
// Экземпляр одноразовый и не потокобезопасный — реестр и состояние
// запуска принадлежат только ему.
type Orchestrator struct {
	generator   generator.Generator
	validator   validator.Validator
	sink        progress.Sink
	maxRounds   int
	parallelism int
	logger      *slog.Logger

	executed bool
}

// Config содержит зависимости и настройки оркестратора.
type Config struct {
	Generator   generator.Generator // обязательное поле
	Validator   validator.Validator // обязательное поле
	Sink        progress.Sink       // опционально, по умолчанию progress.Discard
	MaxRounds   int                 // опционально, по умолчанию 5
	Parallelism int                 // опционально, по умолчанию 4
	Logger      *slog.Logger        // опционально
}

// Result — итог одного запуска.
type Result struct {
	// Run — запуск с финальным статусом, счётчиком раундов и таймингами.
	Run *domain.Run

	// Artifacts — валидированные артефакты в порядке манифеста.
	// При статусе EXHAUSTED список частичный.
	Artifacts []domain.Artifact

	// Remaining — артефакты, так и не прошедшие валидацию, в порядке
	// манифеста, каждый с последней диагностикой. Пуст при успехе.
	Remaining []domain.Artifact
}

// New создает оркестратор с переданной конфигурацией.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Generator == nil {
		return nil, ErrMissingGenerator
	}
	if cfg.Validator == nil {
		return nil, ErrMissingValidator
	}

	sink := cfg.Sink
	if sink == nil {
		sink = progress.Discard
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		generator:   cfg.Generator,
		validator:   cfg.Validator,
		sink:        sink,
		maxRounds:   maxRounds,
		parallelism: parallelism,
		logger:      logger,
	}, nil
}

// Execute прогоняет запуск через цикл сходимости до полного успеха,
// исчерпания лимита раундов или фатальной ошибки.
//
// Поток событий в sink всегда завершается ровно одним терминальным
// событием; исключение — отмена контекста, при которой поток обрывается
// без терминального события, а запуск получает статус CANCELLED.
// При статусе EXHAUSTED возвращается ошибка domain.ErrExhausted вместе
// с частичным результатом — вызывающий не должен её проглатывать.
func (o *Orchestrator) Execute(ctx context.Context, run *domain.Run) (*Result, error) {
	if o.executed {
		return nil, ErrAlreadyExecuted
	}
	o.executed = true

	if err := run.Spec.Validate(); err != nil {
		return nil, err
	}

	logger := telemetry.WithRunID(o.logger, run.ID.String())
	run.MarkStarted()
	logger.Info("run started",
		slog.String("language", run.Spec.Language),
		slog.Int("max_rounds", o.maxRounds),
	)

	reg := registry.New(registry.Config{Logger: logger})
	st := &runState{run: run, reg: reg, emitted: make(map[string]bool)}

	// 1. Начальная генерация. Проверяем отмену перед каждым обращением
	// к внешнему сервису.
	if err := ctx.Err(); err != nil {
		return o.cancel(st, logger, err)
	}

	genStart := time.Now()
	batch, err := o.generator.Generate(ctx, run.Spec)
	telemetry.RecordGeneratorCall(time.Since(genStart))
	if err != nil {
		return o.finish(st, logger, classify(fmt.Errorf("generate: %w", err), domain.ErrGenerator))
	}
	if len(batch) == 0 {
		return o.finish(st, logger, fmt.Errorf("%w: generator returned no artifacts", domain.ErrGenerator))
	}
	for i := range batch {
		batch[i].Round = 1
	}

	// 2. Первый пакет фиксирует манифест запуска.
	if err := reg.Initialize(batch); err != nil {
		return o.finish(st, logger, err)
	}
	if err := o.emit(progress.NewValidationStart(reg.TotalExpected())); err != nil {
		return o.finish(st, logger, err)
	}

	// 3. Цикл сходимости: валидация, при необходимости ремонт.
	pending := batch
	for round := 1; ; round++ {
		run.MarkValidating()
		run.Rounds = round
		roundLogger := telemetry.WithRound(logger, round)

		if err := o.validateBatch(ctx, pending); err != nil {
			if isCancellation(err) {
				return o.cancel(st, logger, err)
			}
			return o.finish(st, logger, err)
		}
		for _, a := range pending {
			if a.Validated {
				reg.MarkValidated(a)
			}
		}
		telemetry.RecordRound()

		validCount := reg.ValidatedCount()
		failedCount := reg.TotalExpected() - validCount
		roundLogger.Info("round validated",
			slog.Int("valid", validCount),
			slog.Int("failed", failedCount),
		)

		if err := o.emit(progress.NewValidationProgress(round, validCount, failedCount)); err != nil {
			return o.finish(st, logger, err)
		}
		for _, a := range pending {
			isUpdate := st.emitted[a.Name]
			st.emitted[a.Name] = true
			ev := progress.NewArtifactReady(a, isUpdate, len(st.emitted), reg.TotalExpected())
			if err := o.emit(ev); err != nil {
				return o.finish(st, logger, err)
			}
		}

		// 4. Успех: все имена манифеста валидированы.
		if reg.IsComplete() {
			run.MarkComplete()
			telemetry.RecordRunFinished(string(run.Status))
			logger.Info("run complete", slog.Int("rounds", round))
			if err := o.emit(progress.NewComplete(reg.Validated())); err != nil {
				return o.result(st), err
			}
			return o.result(st), nil
		}

		failed := failedOf(pending)
		st.remaining = failed

		// 5. Лимит раундов исчерпан: частичный результат плюс ошибка,
		// которую вызывающий обязан обработать.
		if round == o.maxRounds {
			lastErr := failed[0].ValidationError
			run.MarkExhausted(lastErr)
			telemetry.RecordRunFinished(string(run.Status))
			logger.Warn("run exhausted",
				slog.Int("rounds", round),
				slog.Int("remaining", len(failed)),
			)
			if err := o.emit(progress.NewMaxRetriesExceeded(lastErr)); err != nil {
				logger.Warn("terminal event lost", slog.Any("error", err))
			}
			return o.result(st), fmt.Errorf("%w: %d of %d artifacts still invalid after %d rounds",
				domain.ErrExhausted, len(failed), reg.TotalExpected(), round)
		}

		// 6. Ремонт: генератору уходят только невалидные артефакты,
		// каждый со своим кодом и диагностикой.
		run.MarkRetrying()
		if err := o.emit(progress.NewRetrying(round+1, reg.FailedNames())); err != nil {
			return o.finish(st, logger, err)
		}
		if err := ctx.Err(); err != nil {
			return o.cancel(st, logger, err)
		}

		repStart := time.Now()
		fixed, err := o.generator.Repair(ctx, failed)
		telemetry.RecordGeneratorCall(time.Since(repStart))
		if err != nil {
			return o.finish(st, logger, classify(fmt.Errorf("repair: %w", err), domain.ErrGenerator))
		}
		if len(fixed) == 0 {
			return o.finish(st, logger, fmt.Errorf("%w: repair returned no artifacts", domain.ErrGenerator))
		}

		merged, err := reg.MergeFixed(fixed, round+1)
		if err != nil {
			return o.finish(st, logger, err)
		}
		pending = pendingOf(merged, reg)
	}
}

// runState — накопленное состояние одного запуска.
type runState struct {
	run       *domain.Run
	reg       *registry.Registry
	emitted   map[string]bool
	remaining []domain.Artifact
}

// validateBatch валидирует артефакты пакета параллельно, записывая
// вердикты назад по индексу, чтобы диагностика не потеряла адресата.
func (o *Orchestrator) validateBatch(ctx context.Context, batch []domain.Artifact) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)

	for i := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a := &batch[i]

			start := time.Now()
			outcome, err := o.validator.Validate(ctx, a.Code)
			telemetry.RecordValidation(err == nil && outcome.Valid, time.Since(start))
			if err != nil {
				return classify(fmt.Errorf("validate %q: %w", a.Name, err), domain.ErrValidator)
			}

			if outcome.Valid {
				a.Validated = true
				a.ValidationError = ""
				if outcome.SizeBytes > 0 {
					a.SizeBytes = outcome.SizeBytes
				}
				return nil
			}

			enhanced, err := validator.Enhance(a.Code, outcome.Error)
			if err != nil {
				// Диагностика указывает за пределы артефакта — контракт
				// валидатора нарушен, раунд фатален.
				return fmt.Errorf("artifact %q: %w", a.Name, err)
			}
			a.Validated = false
			a.ValidationError = enhanced
			return nil
		})
	}

	return g.Wait()
}

// emit отправляет событие в sink синхронно с шагом, который его породил.
func (o *Orchestrator) emit(ev progress.Event) error {
	telemetry.RecordProgressEvent(string(ev.Kind))
	if err := o.sink.Emit(ev); err != nil {
		return fmt.Errorf("emit %s: %w", ev.Kind, err)
	}
	return nil
}

// finish фиксирует фатальный исход: статус ERROR, терминальное событие
// error и возврат ошибки вызывающему.
func (o *Orchestrator) finish(st *runState, logger *slog.Logger, err error) (*Result, error) {
	if isCancellation(err) {
		return o.cancel(st, logger, err)
	}
	st.run.MarkError(err.Error())
	telemetry.RecordRunFinished(string(st.run.Status))
	logger.Error("run failed", slog.Any("error", err))
	if emitErr := o.sink.Emit(progress.NewError(err.Error())); emitErr != nil {
		logger.Warn("terminal event lost", slog.Any("error", emitErr))
	}
	return o.result(st), err
}

// cancel обрывает запуск по отмене контекста: статус CANCELLED,
// терминальное событие не отправляется.
func (o *Orchestrator) cancel(st *runState, logger *slog.Logger, err error) (*Result, error) {
	st.run.MarkCancelled()
	telemetry.RecordRunFinished(string(st.run.Status))
	logger.Info("run cancelled", slog.Int("rounds", st.run.Rounds))
	return o.result(st), err
}

// result собирает снимок итога из реестра и состояния запуска.
func (o *Orchestrator) result(st *runState) *Result {
	return &Result{
		Run:       st.run,
		Artifacts: st.reg.Validated(),
		Remaining: st.remaining,
	}
}

// classify приводит ошибку к одному из видов доменной таксономии.
// Уже классифицированные ошибки проходят без изменений, остальные
// заворачиваются в запасной вид kind.
func classify(err error, kind error) error {
	for _, known := range []error{
		domain.ErrGenerator,
		domain.ErrValidator,
		domain.ErrSchema,
		domain.ErrReconciliation,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", kind, err)
}

// isCancellation распознает обрыв по отмене или истечению контекста.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// failedOf отбирает из пакета невалидные артефакты, сохраняя порядок.
func failedOf(batch []domain.Artifact) []domain.Artifact {
	failed := make([]domain.Artifact, 0, len(batch))
	for _, a := range batch {
		if !a.Validated {
			failed = append(failed, a)
		}
	}
	return failed
}

// pendingOf отбирает из слитого пакета артефакты, ещё не прошедшие
// валидацию: валидированные неприкосновенны до конца запуска.
func pendingOf(merged []domain.Artifact, reg *registry.Registry) []domain.Artifact {
	pending := make([]domain.Artifact, 0, len(merged))
	for _, a := range merged {
		if !reg.IsValidated(a.Name) {
			pending = append(pending, a)
		}
	}
	return pending
}
