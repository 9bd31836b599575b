package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempSpec(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp spec: %v", err)
	}
	return path
}

func TestLoadSpecFile_YAML(t *testing.T) {
	path := writeTempSpec(t, "spec.yaml", `
prompt: REST API for a todo list
language: go
name: todo-api
max_rounds: 3
`)

	doc, err := LoadSpecFile(path)
	if err != nil {
		t.Fatalf("LoadSpecFile: %v", err)
	}
	if doc.Prompt != "REST API for a todo list" || doc.Language != "go" || doc.Name != "todo-api" || doc.MaxRounds != 3 {
		t.Errorf("unexpected document: %+v", doc)
	}
}

// YAML — надмножество JSON: .json-документ читается тем же декодером.
func TestLoadSpecFile_JSON(t *testing.T) {
	path := writeTempSpec(t, "spec.json", `{"prompt": "a tiny parser", "max_rounds": 2}`)

	doc, err := LoadSpecFile(path)
	if err != nil {
		t.Fatalf("LoadSpecFile: %v", err)
	}
	if doc.Prompt != "a tiny parser" || doc.MaxRounds != 2 {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestLoadSpecFile_MissingPrompt(t *testing.T) {
	path := writeTempSpec(t, "spec.yaml", `language: go`)

	if _, err := LoadSpecFile(path); err == nil || !strings.Contains(err.Error(), "prompt is required") {
		t.Errorf("expected prompt requirement error, got %v", err)
	}
}

func TestLoadSpecFile_MissingFile(t *testing.T) {
	if _, err := LoadSpecFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadSpecFile_Malformed(t *testing.T) {
	path := writeTempSpec(t, "spec.yaml", "prompt: [unclosed")

	if _, err := LoadSpecFile(path); err == nil {
		t.Error("expected parse error")
	}
}
