package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/koshkarov/crucible/internal/domain"
	"github.com/koshkarov/crucible/internal/progress"
)

// fakeGenerator returns a scripted initial batch and scripted repair
// responses.
type fakeGenerator struct {
	initial     domain.Batch
	repairs     []domain.Batch
	generateErr error
	repairCalls int
}

func (g *fakeGenerator) Generate(_ context.Context, _ domain.Spec) (domain.Batch, error) {
	if g.generateErr != nil {
		return nil, g.generateErr
	}
	return append(domain.Batch(nil), g.initial...), nil
}

func (g *fakeGenerator) Repair(_ context.Context, failed []domain.Artifact) (domain.Batch, error) {
	g.repairCalls++
	if idx := g.repairCalls - 1; idx < len(g.repairs) {
		return g.repairs[idx], nil
	}
	return append(domain.Batch(nil), failed...), nil
}

// fakeValidator decides validity by looking the code up in a verdict
// table. Codes missing from the table are treated as valid.
type fakeValidator struct {
	verdicts map[string]domain.Outcome
}

func (v *fakeValidator) Validate(_ context.Context, code string) (domain.Outcome, error) {
	if out, ok := v.verdicts[code]; ok {
		return out, nil
	}
	return domain.Outcome{Valid: true}, nil
}

func newTestHandler(gen *fakeGenerator, val *fakeValidator) *Handler {
	return NewHandler(Config{
		Generator: gen,
		Validator: val,
		MaxRounds: 5,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func newTestMux(gen *fakeGenerator, val *fakeValidator) *http.ServeMux {
	mux := http.NewServeMux()
	newTestHandler(gen, val).RegisterRoutes(mux)
	return mux
}

// sseEvent — один декодированный блок "event:"/"data:" из потока.
type sseEvent struct {
	kind string
	data json.RawMessage
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		case line == "":
			if current.kind != "" {
				events = append(events, current)
				current = sseEvent{}
			}
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan sse body: %v", err)
	}
	return events
}

func sseKinds(events []sseEvent) []string {
	kinds := make([]string, len(events))
	for i, ev := range events {
		kinds[i] = ev.kind
	}
	return kinds
}

func decodePayload[T any](t *testing.T, data json.RawMessage) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal payload %s: %v", data, err)
	}
	return out
}

func startRun(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

// --- SSE Streaming Tests ---

func TestStartRun_StreamsRunToCompletion(t *testing.T) {
	gen := &fakeGenerator{
		initial: domain.Batch{{Name: "main.go", Code: "package main"}},
	}
	mux := newTestMux(gen, &fakeValidator{})

	w := startRun(t, mux, `{"prompt": "build a parser"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
	if _, err := uuid.Parse(w.Header().Get("X-Run-Id")); err != nil {
		t.Errorf("X-Run-Id is not a uuid: %q", w.Header().Get("X-Run-Id"))
	}

	events := parseSSE(t, w.Body.String())
	wantKinds := []string{"validation_start", "validation_progress", "artifact_ready", "complete"}
	if got := sseKinds(events); !equalStrings(got, wantKinds) {
		t.Fatalf("expected kinds %v, got %v", wantKinds, got)
	}

	complete := decodePayload[progress.CompletePayload](t, events[3].data)
	if len(complete.Artifacts) != 1 || !complete.Artifacts[0].Validated {
		t.Errorf("unexpected complete payload: %+v", complete)
	}
}

func TestStartRun_RepairRoundAppearsInStream(t *testing.T) {
	gen := &fakeGenerator{
		initial: domain.Batch{
			{Name: "A", Code: "a ok"},
			{Name: "B", Code: "b bad"},
		},
		repairs: []domain.Batch{
			{{Name: "B", Code: "b ok"}},
		},
	}
	val := &fakeValidator{verdicts: map[string]domain.Outcome{
		"b bad": {Valid: false, Error: "does not compile"},
	}}
	mux := newTestMux(gen, val)

	w := startRun(t, mux, `{"prompt": "two files"}`)

	events := parseSSE(t, w.Body.String())
	wantKinds := []string{
		"validation_start",
		"validation_progress", "artifact_ready", "artifact_ready",
		"retrying",
		"validation_progress", "artifact_ready",
		"complete",
	}
	if got := sseKinds(events); !equalStrings(got, wantKinds) {
		t.Fatalf("expected kinds %v, got %v", wantKinds, got)
	}

	retrying := decodePayload[progress.RetryingPayload](t, events[4].data)
	if retrying.Round != 2 || len(retrying.FailedNames) != 1 || retrying.FailedNames[0] != "B" {
		t.Errorf("unexpected retrying payload: %+v", retrying)
	}

	repaired := decodePayload[progress.ArtifactReadyPayload](t, events[6].data)
	if !repaired.IsUpdate || repaired.Artifact.Name != "B" || !repaired.Artifact.Validated {
		t.Errorf("unexpected repaired artifact payload: %+v", repaired)
	}
}

func TestStartRun_GeneratorFailureEndsStreamWithError(t *testing.T) {
	gen := &fakeGenerator{generateErr: errors.New("model unavailable")}
	mux := newTestMux(gen, &fakeValidator{})

	w := startRun(t, mux, `{"prompt": "doomed"}`)

	// Заголовки уже отправлены: исход уходит событием в поток.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	events := parseSSE(t, w.Body.String())
	if got := sseKinds(events); !equalStrings(got, []string{"error"}) {
		t.Fatalf("expected [error], got %v", got)
	}
	msg := decodePayload[progress.ErrorPayload](t, events[0].data)
	if !strings.Contains(msg.Message, "model unavailable") {
		t.Errorf("expected diagnostic in error payload, got %q", msg.Message)
	}
}

func TestStartRun_InvalidBodyRejected(t *testing.T) {
	mux := newTestMux(&fakeGenerator{}, &fakeValidator{})

	w := startRun(t, mux, "not json")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("expected %s, got %s", ErrCodeBadRequest, resp.Error.Code)
	}
}

func TestStartRun_BlankPromptRejected(t *testing.T) {
	mux := newTestMux(&fakeGenerator{}, &fakeValidator{})

	w := startRun(t, mux, `{"prompt": "   "}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// --- History Endpoint Tests ---

func TestHistoryEndpointsRequireDatabase(t *testing.T) {
	mux := newTestMux(&fakeGenerator{}, &fakeValidator{})
	id := uuid.NewString()

	paths := []string{
		"/api/v1/runs",
		"/api/v1/runs/" + id,
		"/api/v1/runs/" + id + "/rounds",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
			continue
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Errorf("%s: unmarshal error response: %v", path, err)
			continue
		}
		if resp.Error.Code != ErrCodeUnavailable {
			t.Errorf("%s: expected %s, got %s", path, ErrCodeUnavailable, resp.Error.Code)
		}
	}
}

// --- WebSocket Tests ---

type wsFrame struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func dialRunSocket(t *testing.T, mux *http.ServeMux) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(mux)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/runs/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

// readFrames читает кадры событий до нормального закрытия со стороны сервера.
func readFrames(t *testing.T, conn *websocket.Conn) []wsFrame {
	t.Helper()
	var frames []wsFrame
	for {
		var frame wsFrame
		err := conn.ReadJSON(&frame)
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return frames
		}
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		frames = append(frames, frame)
	}
}

func TestRunSocket_StreamsFramesToCompletion(t *testing.T) {
	gen := &fakeGenerator{
		initial: domain.Batch{{Name: "main.go", Code: "package main"}},
	}
	conn, cleanup := dialRunSocket(t, newTestMux(gen, &fakeValidator{}))
	defer cleanup()

	if err := conn.WriteJSON(StartRunRequest{Prompt: "build a parser"}); err != nil {
		t.Fatalf("write spec frame: %v", err)
	}

	frames := readFrames(t, conn)
	wantKinds := []string{"validation_start", "validation_progress", "artifact_ready", "complete"}
	got := make([]string, len(frames))
	for i, f := range frames {
		got[i] = f.Kind
	}
	if !equalStrings(got, wantKinds) {
		t.Fatalf("expected kinds %v, got %v", wantKinds, got)
	}

	complete := decodePayload[progress.CompletePayload](t, frames[3].Payload)
	if len(complete.Artifacts) != 1 || complete.Artifacts[0].Name != "main.go" {
		t.Errorf("unexpected complete payload: %+v", complete)
	}
}

func TestRunSocket_InvalidSpecGetsErrorFrame(t *testing.T) {
	conn, cleanup := dialRunSocket(t, newTestMux(&fakeGenerator{}, &fakeValidator{}))
	defer cleanup()

	if err := conn.WriteJSON(StartRunRequest{Prompt: ""}); err != nil {
		t.Fatalf("write spec frame: %v", err)
	}

	frames := readFrames(t, conn)
	if len(frames) != 1 || frames[0].Kind != "error" {
		t.Fatalf("expected single error frame, got %+v", frames)
	}
}

// --- Middleware Tests ---

func TestPreflightGetsCORSHeaders(t *testing.T) {
	mux := newTestMux(&fakeGenerator{}, &fakeValidator{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected wildcard origin, got %q", origin)
	}
}

func TestRecoveryConvertsPanicTo500(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Chain(Recovery(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

// --- Helper Tests ---

func TestResolveRounds(t *testing.T) {
	h := newTestHandler(&fakeGenerator{}, &fakeValidator{})

	cases := []struct {
		requested int
		want      int
	}{
		{0, 5},
		{3, 3},
		{10, 10},
		{11, 5},
		{-1, 5},
	}
	for _, tc := range cases {
		if got := h.resolveRounds(tc.requested); got != tc.want {
			t.Errorf("resolveRounds(%d) = %d, want %d", tc.requested, got, tc.want)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
