package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/koshkarov/crucible/internal/domain"
)

func TestParseLocation(t *testing.T) {
	cases := []struct {
		name string
		diag string
		line int
		ok   bool
	}{
		{"file prefix", "main.go:12:5: undefined: foo", 12, true},
		{"bare pair", "3:14: syntax error near token", 3, true},
		{"line word", "unexpected end of input at line 7", 7, true},
		{"line word capitalized", "Line 2: unterminated string", 2, true},
		{"no location", "cannot resolve import cycle", 0, false},
		{"empty", "", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line, ok := ParseLocation(tc.diag)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && line != tc.line {
				t.Errorf("expected line %d, got %d", tc.line, line)
			}
		})
	}
}

func TestEnhance_AppendsContextWindow(t *testing.T) {
	code := "line one\nline two\nline three\nline four\nline five\nline six"
	diag := "main.go:3:1: something is off"

	enhanced, err := Enhance(code, diag)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(enhanced, diag) {
		t.Error("enhanced diagnostic should keep the original message first")
	}
	// Window covers lines 1..5 with a marker on line 3
	for _, fragment := range []string{"> 3 | line three", "  1 | line one", "  5 | line five"} {
		if !strings.Contains(enhanced, fragment) {
			t.Errorf("expected window fragment %q in:\n%s", fragment, enhanced)
		}
	}
	if strings.Contains(enhanced, "line six") {
		t.Error("window should not reach past the context radius")
	}
}

func TestEnhance_WindowAtTop(t *testing.T) {
	code := "alpha\nbeta\ngamma"

	enhanced, err := Enhance(code, "1:1: bad start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(enhanced, "> 1 | alpha") {
		t.Errorf("expected marker on the first line, got:\n%s", enhanced)
	}
}

func TestEnhance_WindowAtBottom(t *testing.T) {
	code := "alpha\nbeta\ngamma"

	enhanced, err := Enhance(code, "3:1: bad end")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(enhanced, "> 3 | gamma") {
		t.Errorf("expected marker on the last line, got:\n%s", enhanced)
	}
}

func TestEnhance_NoLocationPassesThrough(t *testing.T) {
	diag := "cannot find package"

	enhanced, err := Enhance("some code", diag)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enhanced != diag {
		t.Errorf("diagnostic without location should pass through, got %q", enhanced)
	}
}

func TestEnhance_OutOfBounds(t *testing.T) {
	code := "only\nthree\nlines"

	// Валидатор указал строку 40 в артефакте из трёх строк —
	// нарушение контракта
	_, err := Enhance(code, "main.go:40:1: ghost error")
	if !errors.Is(err, domain.ErrValidator) {
		t.Errorf("expected ErrValidator, got %v", err)
	}
}
