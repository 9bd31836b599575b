package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		CORS(),
	)

	// Runs
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.StartRun)))
	mux.Handle("GET /api/v1/runs/ws", chain(http.HandlerFunc(h.RunSocket)))
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/rounds", chain(http.HandlerFunc(h.ListRunRounds)))

	// CORS preflight: метод-специфичные шаблоны выше не матчат OPTIONS,
	// запрос должен дойти до CORS middleware.
	mux.Handle("OPTIONS /api/v1/", chain(http.HandlerFunc(Preflight)))
}
