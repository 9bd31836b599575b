package validator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestService_Validate_Valid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req compileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Language != "go" {
			t.Errorf("expected language go, got %q", req.Language)
		}
		if req.Code != "package main" {
			t.Errorf("unexpected code: %q", req.Code)
		}
		json.NewEncoder(w).Encode(compileResponse{Valid: true, SizeBytes: 2048})
	}))
	defer srv.Close()

	v := NewService(ServiceConfig{URL: srv.URL, Language: "go"})
	outcome, err := v.Validate(context.Background(), "package main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Valid {
		t.Error("expected valid outcome")
	}
	if outcome.SizeBytes != 2048 {
		t.Errorf("expected size 2048, got %d", outcome.SizeBytes)
	}
}

func TestService_Validate_Invalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(compileResponse{Valid: false, Error: "main.go:2:1: undefined: x"})
	}))
	defer srv.Close()

	v := NewService(ServiceConfig{URL: srv.URL})
	outcome, err := v.Validate(context.Background(), "broken")
	if err != nil {
		t.Fatalf("rejected code is not an infrastructure error, got %v", err)
	}
	if outcome.Valid {
		t.Error("expected invalid outcome")
	}
	if outcome.Error != "main.go:2:1: undefined: x" {
		t.Errorf("unexpected diagnostic: %q", outcome.Error)
	}
}

func TestService_Validate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "compile farm on fire", http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewService(ServiceConfig{URL: srv.URL})
	_, err := v.Validate(context.Background(), "package main")
	if !errors.Is(err, ErrCompileService) {
		t.Errorf("expected ErrCompileService, got %v", err)
	}
}

func TestService_Validate_Unreachable(t *testing.T) {
	v := NewService(ServiceConfig{URL: "http://127.0.0.1:1/compile"})
	_, err := v.Validate(context.Background(), "package main")
	if !errors.Is(err, ErrCompileService) {
		t.Errorf("expected ErrCompileService, got %v", err)
	}
}
