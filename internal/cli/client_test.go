package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// --- StartRun Stream Tests ---

func TestClient_StartRun_StreamsEvents(t *testing.T) {
	body := "event: validation_start\n" +
		"data: {\"totalExpected\":2}\n" +
		"\n" +
		"event: complete\n" +
		"data: {\"artifacts\":[{\"name\":\"main.go\",\"code\":\"package main\",\"validated\":true,\"roundProduced\":1}]}\n" +
		"\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/runs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req StartRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt != "build" {
			t.Errorf("unexpected request body: %+v (%v)", req, err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Run-Id", "run-123")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	stream, err := NewClient(srv.URL).StartRun(context.Background(), StartRunRequest{Prompt: "build"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	defer stream.Close()

	if stream.RunID() != "run-123" {
		t.Errorf("expected run id from header, got %q", stream.RunID())
	}

	first, err := stream.Next()
	if err != nil {
		t.Fatalf("first event: %v", err)
	}
	if first.Kind != kindValidationStart {
		t.Errorf("expected validation_start, got %q", first.Kind)
	}
	var start validationStartEvent
	if err := json.Unmarshal(first.Data, &start); err != nil || start.TotalExpected != 2 {
		t.Errorf("unexpected validation_start payload: %s (%v)", first.Data, err)
	}

	second, err := stream.Next()
	if err != nil {
		t.Fatalf("second event: %v", err)
	}
	if second.Kind != kindComplete {
		t.Errorf("expected complete, got %q", second.Kind)
	}
	var complete completeEvent
	if err := json.Unmarshal(second.Data, &complete); err != nil || len(complete.Artifacts) != 1 {
		t.Errorf("unexpected complete payload: %s (%v)", second.Data, err)
	}

	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestClient_StartRun_APIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":"BAD_REQUEST","message":"prompt is required"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).StartRun(context.Background(), StartRunRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "BAD_REQUEST") || !strings.Contains(err.Error(), "prompt is required") {
		t.Errorf("expected code and message in error, got %q", err)
	}
}

// --- History Tests ---

func TestClient_ListRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "COMPLETE" {
			t.Errorf("expected status filter, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("expected limit=5, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[{"id":"1","prompt":"p","status":"COMPLETE","rounds":2,"created_at":"2026-01-01T00:00:00Z"}],"total":1}`)
	}))
	defer srv.Close()

	runs, err := NewClient(srv.URL).ListRuns(ListRunsOpts{Status: "COMPLETE", Limit: 5})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "COMPLETE" || runs[0].Rounds != 2 {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

func TestClient_GetRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs/abc" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"id":"abc","prompt":"p","status":"EXHAUSTED","rounds":5,"created_at":"2026-01-01T00:00:00Z","artifacts":[{"name":"B","code":"bad","validated":false,"validationError":"does not compile","roundProduced":5}],"round_history":[{"round":1,"valid_count":0,"failed_count":1,"recorded_at":"2026-01-01T00:00:01Z"}]}}`)
	}))
	defer srv.Close()

	run, err := NewClient(srv.URL).GetRun("abc")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != "EXHAUSTED" {
		t.Errorf("unexpected status: %q", run.Status)
	}
	if len(run.Artifacts) != 1 || run.Artifacts[0].ValidationError != "does not compile" {
		t.Errorf("unexpected artifacts: %+v", run.Artifacts)
	}
	if len(run.RoundHistory) != 1 || run.RoundHistory[0].FailedCount != 1 {
		t.Errorf("unexpected round history: %+v", run.RoundHistory)
	}
}

func TestClient_GetRun_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":"NOT_FOUND","message":"run not found"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetRun("missing")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected NOT_FOUND error, got %v", err)
	}
}
