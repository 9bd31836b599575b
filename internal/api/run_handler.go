package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/koshkarov/crucible/internal/domain"
	"github.com/koshkarov/crucible/internal/orchestrator"
	"github.com/koshkarov/crucible/internal/progress"
	"github.com/koshkarov/crucible/internal/repo"
	"github.com/koshkarov/crucible/internal/telemetry"
)

// requestRoundsCap — верхняя граница клиентского max_rounds.
const requestRoundsCap = 10

// StartRun запускает прогон и стримит события прогресса как SSE.
// Соединение держится открытым до терминального события; обрыв
// соединения отменяет прогон.
// POST /api/v1/runs
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	spec := req.ToSpec()
	if err := spec.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	run := domain.NewRun(spec)
	logger := telemetry.WithRunID(h.logger, run.ID.String())

	sink, recorder := h.buildSink(progress.NewSSEWriter(w), run, logger)

	orch, err := orchestrator.New(orchestrator.Config{
		Generator:   h.generator,
		Validator:   h.validator,
		Sink:        sink,
		MaxRounds:   h.resolveRounds(req.MaxRounds),
		Parallelism: h.parallelism,
		Logger:      logger,
	})
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Run-Id", run.ID.String())
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	// Терминальный исход уходит в поток событием; ошибка здесь
	// уже залогирована оркестратором.
	_, _ = orch.Execute(r.Context(), run)

	if recorder != nil {
		// r.Context() к этому моменту может быть мёртв (отмена клиентом).
		if err := recorder.Finalize(context.Background()); err != nil {
			logger.Warn("failed to finalize run record", "error", err)
		}
	}
}

// resolveRounds выбирает лимит раундов: клиентский в допустимых
// границах или серверный по умолчанию.
func (h *Handler) resolveRounds(requested int) int {
	if requested > 0 && requested <= requestRoundsCap {
		return requested
	}
	return h.maxRounds
}

// ListRuns возвращает историю запусков.
// GET /api/v1/runs?status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runRepo == nil {
		Unavailable(w, "run history requires a database")
		return
	}

	filter := repo.RunFilter{}

	if status := r.URL.Query().Get("status"); status != "" {
		st := domain.RunStatus(status)
		if !st.IsKnown() {
			BadRequest(w, "unknown status")
			return
		}
		filter.Status = st
	}
	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	records, err := h.runRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(records))
	for i, rec := range records {
		result[i] = RunFromRecord(rec)
	}

	List(w, result, len(result))
}

// GetRun возвращает запуск с артефактами и историей раундов.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runRepo == nil {
		Unavailable(w, "run history requires a database")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	rec, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	rounds, err := h.runRepo.Rounds(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, RunDetailResponse{
		RunResponse:  RunFromRecord(*rec),
		Artifacts:    rec.Artifacts,
		RoundHistory: rounds,
	})
}

// ListRunRounds возвращает счётчики по раундам запуска.
// GET /api/v1/runs/{id}/rounds
func (h *Handler) ListRunRounds(w http.ResponseWriter, r *http.Request) {
	if h.runRepo == nil {
		Unavailable(w, "run history requires a database")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	if _, err := h.runRepo.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	rounds, err := h.runRepo.Rounds(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, rounds, len(rounds))
}

// queryInt парсит числовой query-параметр с дефолтным значением.
func queryInt(r *http.Request, name string, defaultVal int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
