package cli

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SpecDocument — спецификация прогона из файла.
//
//	prompt: REST API for a todo list
//	language: go
//	name: todo-api
//	max_rounds: 5
type SpecDocument struct {
	Prompt    string `yaml:"prompt"`
	Language  string `yaml:"language"`
	Name      string `yaml:"name"`
	MaxRounds int    `yaml:"max_rounds"`
}

// LoadSpecFile читает документ спецификации. YAML — надмножество JSON,
// поэтому .json-файлы разбираются тем же декодером.
func LoadSpecFile(path string) (*SpecDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}

	var doc SpecDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse spec file %s: %w", path, err)
	}
	if strings.TrimSpace(doc.Prompt) == "" {
		return nil, fmt.Errorf("spec file %s: prompt is required", path)
	}
	return &doc, nil
}
