package progress

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/koshkarov/crucible/internal/domain"
)

// --- Kind Tests ---

func TestKind_IsTerminal(t *testing.T) {
	terminal := []Kind{KindComplete, KindMaxRetriesExceeded, KindError}
	for _, k := range terminal {
		if !k.IsTerminal() {
			t.Errorf("%s should be terminal", k)
		}
	}

	nonTerminal := []Kind{KindValidationStart, KindValidationProgress, KindArtifactReady, KindRetrying}
	for _, k := range nonTerminal {
		if k.IsTerminal() {
			t.Errorf("%s should not be terminal", k)
		}
	}
}

// --- SSE Tests ---

func TestSSEWriter_Encoding(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)

	err := w.Emit(NewValidationProgress(2, 2, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "event: validation_progress\ndata: {\"round\":2,\"validCount\":2,\"failedCount\":1}\n\n"
	if buf.String() != want {
		t.Errorf("wire mismatch:\ngot  %q\nwant %q", buf.String(), want)
	}
}

func TestSSEWriter_ArtifactReady(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)

	a := domain.Artifact{Name: "main.go", Code: "package main", Round: 1}
	if err := w.Emit(NewArtifactReady(a, false, 1, 3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "event: artifact_ready\ndata: ") {
		t.Errorf("unexpected frame start: %q", got)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Error("frame should end with a blank line")
	}
	for _, fragment := range []string{`"name":"main.go"`, `"isUpdate":false`, `"readySoFar":1`, `"totalExpected":3`} {
		if !strings.Contains(got, fragment) {
			t.Errorf("frame should contain %s, got %q", fragment, got)
		}
	}
}

type countingFlusher struct {
	io.Writer
	flushes int
}

func (c *countingFlusher) Flush() { c.flushes++ }

func TestSSEWriter_FlushPerEvent(t *testing.T) {
	var buf bytes.Buffer
	cf := &countingFlusher{Writer: &buf}
	w := NewSSEWriter(cf)

	_ = w.Emit(NewValidationStart(3))
	_ = w.Emit(NewRetrying(2, []string{"B", "C"}))

	// Each event must be pushed to the subscriber as it happens
	if cf.flushes != 2 {
		t.Errorf("expected 2 flushes, got %d", cf.flushes)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestSSEWriter_WriteError(t *testing.T) {
	w := NewSSEWriter(failingWriter{})

	if err := w.Emit(NewError("boom")); err == nil {
		t.Error("expected write error to propagate")
	}
}

// --- Multi Tests ---

func TestMulti_PrimaryErrorPropagates(t *testing.T) {
	primaryErr := errors.New("subscriber gone")
	primary := SinkFunc(func(Event) error { return primaryErr })

	var mirrored []Event
	mirror := SinkFunc(func(e Event) error {
		mirrored = append(mirrored, e)
		return nil
	})

	m := NewMulti(primary, slog.New(slog.NewTextHandler(io.Discard, nil)), mirror)

	err := m.Emit(NewValidationStart(1))
	if !errors.Is(err, primaryErr) {
		t.Errorf("expected primary error, got %v", err)
	}
	// Mirrors still observe the event even when the primary rejects it
	if len(mirrored) != 1 {
		t.Errorf("mirror should receive the event, got %d", len(mirrored))
	}
}

func TestMulti_MirrorErrorSwallowed(t *testing.T) {
	var delivered []Event
	primary := SinkFunc(func(e Event) error {
		delivered = append(delivered, e)
		return nil
	})
	mirror := SinkFunc(func(Event) error { return errors.New("analytics store down") })

	m := NewMulti(primary, slog.New(slog.NewTextHandler(io.Discard, nil)), mirror)

	if err := m.Emit(NewComplete(nil)); err != nil {
		t.Errorf("mirror failure must not fail the emit, got %v", err)
	}
	if len(delivered) != 1 {
		t.Errorf("primary should receive the event, got %d", len(delivered))
	}
}
