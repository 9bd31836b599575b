package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koshkarov/crucible/internal/domain"
	"github.com/koshkarov/crucible/internal/orchestrator"
	"github.com/koshkarov/crucible/internal/progress"
	"github.com/koshkarov/crucible/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// RunSocket запускает прогон по WebSocket: первым текстовым кадром
// клиент шлёт спецификацию (тот же JSON, что и StartRunRequest),
// дальше сервер шлёт события прогресса кадрами {kind, payload}.
// Разрыв соединения отменяет прогон.
// GET /api/v1/runs/ws
func (h *Handler) RunSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req StartRunRequest
	if err := conn.ReadJSON(&req); err != nil {
		closeSocket(conn, websocket.CloseInvalidFramePayloadData, "invalid spec frame")
		return
	}

	spec := req.ToSpec()
	if err := spec.Validate(); err != nil {
		_ = conn.WriteJSON(progress.NewError(err.Error()))
		closeSocket(conn, websocket.CloseNormalClosure, "")
		return
	}

	run := domain.NewRun(spec)
	logger := telemetry.WithRunID(h.logger, run.ID.String())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Читающая горутина замечает разрыв соединения; содержимое
	// дальнейших кадров клиента не интерпретируется.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	sink, recorder := h.buildSink(socketSink{conn: conn}, run, logger)

	orch, err := orchestrator.New(orchestrator.Config{
		Generator:   h.generator,
		Validator:   h.validator,
		Sink:        sink,
		MaxRounds:   h.resolveRounds(req.MaxRounds),
		Parallelism: h.parallelism,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		closeSocket(conn, websocket.CloseInternalServerErr, "")
		return
	}

	_, _ = orch.Execute(ctx, run)

	if recorder != nil {
		if err := recorder.Finalize(context.Background()); err != nil {
			logger.Warn("failed to finalize run record", "error", err)
		}
	}

	closeSocket(conn, websocket.CloseNormalClosure, "")
}

// socketSink пишет события прогресса кадрами WebSocket.
type socketSink struct {
	conn *websocket.Conn
}

// Emit реализует интерфейс progress.Sink.
func (s socketSink) Emit(ev progress.Event) error {
	return s.conn.WriteJSON(ev)
}

// closeSocket отправляет корректный close-кадр.
func closeSocket(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
