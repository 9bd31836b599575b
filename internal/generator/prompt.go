package generator

import (
	"fmt"
	"strings"

	"github.com/koshkarov/crucible/internal/domain"
)

// Системные промпты. Формат ответа продиктован normalize.go: строгий JSON
// c массивом files, без прозы и кодовых оград.
const (
	generateSystemPrompt = `You are a code generation engine. Given a project description, produce a complete set of source files for it.

Respond with a single JSON object and nothing else:
{"files": [{"name": "<file name>", "code": "<full file content>", "role": "<role, optional>", "purpose": "<one line, optional>"}]}

Rules:
- every file needs a unique name and complete, compilable code
- list files in build order
- no prose, no markdown fences, JSON only`

	repairSystemPrompt = `You are a code repair engine. You receive source files rejected by the compiler together with the compiler diagnostics.

Respond with a single JSON object and nothing else:
{"files": [{"name": "<file name>", "code": "<full corrected file content>"}]}

Rules:
- return every rejected file, corrected; do not return files that were not given to you
- keep file names exactly as provided
- return complete file contents, not diffs
- no prose, no markdown fences, JSON only`
)

// buildGenerateMessages собирает диалог первичной генерации.
func buildGenerateMessages(spec domain.Spec) []message {
	var b strings.Builder
	if spec.Language != "" {
		fmt.Fprintf(&b, "Target language: %s\n\n", spec.Language)
	}
	b.WriteString(spec.Prompt)

	return []message{
		{Role: "system", Content: generateSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// buildRepairMessages собирает диалог починки: на каждый невалидный
// артефакт — имя, диагностика компилятора и текущий код.
func buildRepairMessages(failed []domain.Artifact) []message {
	var b strings.Builder
	fmt.Fprintf(&b, "Fix the following %d file(s).\n", len(failed))
	for _, a := range failed {
		fmt.Fprintf(&b, "\n--- file: %s ---\ncompiler output:\n%s\n\ncurrent code:\n%s\n",
			a.Name, a.ValidationError, a.Code)
	}

	return []message{
		{Role: "system", Content: repairSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}
