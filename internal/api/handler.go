package api

import (
	"log/slog"

	"github.com/koshkarov/crucible/internal/domain"
	"github.com/koshkarov/crucible/internal/generator"
	"github.com/koshkarov/crucible/internal/mq"
	"github.com/koshkarov/crucible/internal/progress"
	"github.com/koshkarov/crucible/internal/repo"
	"github.com/koshkarov/crucible/internal/validator"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	generator   generator.Generator
	validator   validator.Validator
	runRepo     *repo.RunRepo
	publisher   *mq.Publisher
	maxRounds   int
	parallelism int
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Generator и Validator — обязательные адаптеры прогона.
	Generator generator.Generator
	Validator validator.Validator

	// RunRepo — хранилище истории. nil отключает исторические ручки.
	RunRepo *repo.RunRepo

	// Publisher — зеркало прогресса в очередь. nil отключает его.
	Publisher *mq.Publisher

	// MaxRounds и Parallelism — настройки оркестратора по умолчанию.
	MaxRounds   int
	Parallelism int

	Logger *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		generator:   cfg.Generator,
		validator:   cfg.Validator,
		runRepo:     cfg.RunRepo,
		publisher:   cfg.Publisher,
		maxRounds:   cfg.MaxRounds,
		parallelism: cfg.Parallelism,
		logger:      logger,
	}
}

// buildSink собирает приёмник событий запуска: основной транспорт плюс
// доступные зеркала (аналитика, очередь). Возвращает Recorder, чтобы
// вызывающая сторона дописала строку запуска при обрыве потока.
func (h *Handler) buildSink(primary progress.Sink, run *domain.Run, logger *slog.Logger) (progress.Sink, *repo.Recorder) {
	var mirrors []progress.Sink
	var recorder *repo.Recorder

	if h.runRepo != nil {
		recorder = repo.NewRecorder(h.runRepo, run, logger)
		mirrors = append(mirrors, recorder)
	}
	if h.publisher != nil {
		mirrors = append(mirrors, mq.NewEventSink(h.publisher, run.ID))
	}

	if len(mirrors) == 0 {
		return primary, nil
	}
	return progress.NewMulti(primary, logger, mirrors...), recorder
}
