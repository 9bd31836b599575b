package repo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/koshkarov/crucible/internal/domain"
	"github.com/koshkarov/crucible/internal/progress"
)

type roundCall struct {
	round, valid, failed int
}

type finishCall struct {
	run       *domain.Run
	artifacts []domain.Artifact
}

type fakeStore struct {
	created   int
	rounds    []roundCall
	finished  []finishCall
	createErr error
}

func (s *fakeStore) Create(_ context.Context, _ *domain.Run) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created++
	return nil
}

func (s *fakeStore) AddRound(_ context.Context, _ uuid.UUID, round, valid, failed int) error {
	s.rounds = append(s.rounds, roundCall{round, valid, failed})
	return nil
}

func (s *fakeStore) Finish(_ context.Context, run *domain.Run, artifacts []domain.Artifact) error {
	s.finished = append(s.finished, finishCall{run, artifacts})
	return nil
}

func newTestRecorder(store runStore) (*Recorder, *domain.Run) {
	run := domain.NewRun(domain.Spec{Prompt: "test"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRecorder(store, run, logger), run
}

func TestRecorder_SuccessfulRun(t *testing.T) {
	store := &fakeStore{}
	rec, _ := newTestRecorder(store)

	final := []domain.Artifact{{Name: "main.go", Code: "ok", Validated: true}}

	events := []progress.Event{
		progress.NewValidationStart(1),
		progress.NewValidationProgress(1, 1, 0),
		progress.NewArtifactReady(final[0], false, 1, 1),
		progress.NewComplete(final),
	}
	for _, ev := range events {
		if err := rec.Emit(ev); err != nil {
			t.Fatalf("Emit(%s): %v", ev.Kind, err)
		}
	}

	if store.created != 1 {
		t.Errorf("expected 1 create, got %d", store.created)
	}
	if len(store.rounds) != 1 || store.rounds[0] != (roundCall{1, 1, 0}) {
		t.Errorf("unexpected rounds: %+v", store.rounds)
	}
	if len(store.finished) != 1 {
		t.Fatalf("expected 1 finish, got %d", len(store.finished))
	}
	if got := store.finished[0].artifacts; len(got) != 1 || got[0].Name != "main.go" {
		t.Errorf("finish artifacts: %+v", got)
	}
}

func TestRecorder_ExhaustedRunKeepsLatestArtifactState(t *testing.T) {
	store := &fakeStore{}
	rec, _ := newTestRecorder(store)

	// Round 1: A valid, B invalid. Round 2: B repaired but still invalid.
	events := []progress.Event{
		progress.NewValidationStart(2),
		progress.NewValidationProgress(1, 1, 1),
		progress.NewArtifactReady(domain.Artifact{Name: "A", Code: "a", Validated: true}, false, 1, 2),
		progress.NewArtifactReady(domain.Artifact{Name: "B", Code: "b1", ValidationError: "e1"}, false, 2, 2),
		progress.NewValidationProgress(2, 1, 1),
		progress.NewArtifactReady(domain.Artifact{Name: "B", Code: "b2", ValidationError: "e2"}, true, 2, 2),
		progress.NewMaxRetriesExceeded("e2"),
	}
	for _, ev := range events {
		if err := rec.Emit(ev); err != nil {
			t.Fatalf("Emit(%s): %v", ev.Kind, err)
		}
	}

	if len(store.finished) != 1 {
		t.Fatalf("expected 1 finish, got %d", len(store.finished))
	}
	got := store.finished[0].artifacts
	if len(got) != 2 {
		t.Fatalf("expected snapshot of 2 artifacts, got %d", len(got))
	}
	// First-seen order, latest content.
	if got[0].Name != "A" || got[1].Name != "B" {
		t.Errorf("snapshot order: %v", domain.Batch(got).Names())
	}
	if got[1].Code != "b2" || got[1].ValidationError != "e2" {
		t.Errorf("snapshot should keep the repaired state: %+v", got[1])
	}
	if len(store.rounds) != 2 {
		t.Errorf("expected 2 rounds, got %d", len(store.rounds))
	}
}

func TestRecorder_FinalizeAfterTruncatedStream(t *testing.T) {
	store := &fakeStore{}
	rec, run := newTestRecorder(store)

	must := func(ev progress.Event) {
		t.Helper()
		if err := rec.Emit(ev); err != nil {
			t.Fatalf("Emit(%s): %v", ev.Kind, err)
		}
	}
	must(progress.NewValidationStart(1))
	must(progress.NewValidationProgress(1, 0, 1))
	must(progress.NewArtifactReady(domain.Artifact{Name: "A", ValidationError: "e"}, false, 1, 1))

	// Cancellation: no terminal event arrives, the caller finalizes.
	run.MarkCancelled()
	if err := rec.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := rec.Finalize(context.Background()); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}

	if len(store.finished) != 1 {
		t.Fatalf("expected exactly 1 finish, got %d", len(store.finished))
	}
	if store.finished[0].run.Status != domain.RunStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", store.finished[0].run.Status)
	}
	if got := store.finished[0].artifacts; len(got) != 1 || got[0].Name != "A" {
		t.Errorf("finalize snapshot: %+v", got)
	}
}

func TestRecorder_ErrorBeforeValidationStartCreatesRow(t *testing.T) {
	store := &fakeStore{}
	rec, run := newTestRecorder(store)

	// Generator failed before any manifest existed.
	run.MarkError("generator failure: model overloaded")
	if err := rec.Emit(progress.NewError(run.Error)); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if store.created != 1 {
		t.Errorf("expected the run row to be created, got %d creates", store.created)
	}
	if len(store.finished) != 1 {
		t.Fatalf("expected 1 finish, got %d", len(store.finished))
	}
	if store.finished[0].artifacts != nil {
		t.Errorf("expected no artifacts, got %+v", store.finished[0].artifacts)
	}
}

func TestRecorder_StoreErrorPropagates(t *testing.T) {
	wantErr := errors.New("connection refused")
	store := &fakeStore{createErr: wantErr}
	rec, _ := newTestRecorder(store)

	if err := rec.Emit(progress.NewValidationStart(1)); !errors.Is(err, wantErr) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}
