package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Artifact Writing Tests ---

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()

	err := writeArtifacts(dir, []ArtifactResponse{
		{Name: "main.go", Code: "package main"},
		{Name: "internal/util/helper.go", Code: "package util"},
	})
	if err != nil {
		t.Fatalf("writeArtifacts: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "main.go"))
	if err != nil || string(got) != "package main" {
		t.Errorf("main.go: %q (%v)", got, err)
	}
	got, err = os.ReadFile(filepath.Join(dir, "internal", "util", "helper.go"))
	if err != nil || string(got) != "package util" {
		t.Errorf("nested artifact: %q (%v)", got, err)
	}
}

func TestWriteArtifacts_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "deep")

	if err := writeArtifacts(dir, []ArtifactResponse{{Name: "a.txt", Code: "a"}}); err != nil {
		t.Fatalf("writeArtifacts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Errorf("expected artifact on disk: %v", err)
	}
}

func TestWriteArtifacts_RejectsEscapingNames(t *testing.T) {
	dir := t.TempDir()

	err := writeArtifacts(dir, []ArtifactResponse{{Name: "../evil.go", Code: "x"}})
	if err == nil || !strings.Contains(err.Error(), "escapes output dir") {
		t.Fatalf("expected escape rejection, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "evil.go")); statErr == nil {
		t.Error("escaping artifact was written to disk")
	}
}
