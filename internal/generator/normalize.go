package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/koshkarov/crucible/internal/domain"
)

// filePayload — один артефакт в ответе генератора.
// Поля path и content — ослабленные синонимы, которые модели
// периодически подставляют вместо name и code.
type filePayload struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Role    string `json:"role"`
	Purpose string `json:"purpose"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// empty возвращает true, если в элементе нет ни имени, ни кода.
func (f filePayload) empty() bool {
	return f.Name == "" && f.Path == "" && f.Code == "" && f.Content == ""
}

// multiPayload — текущая форма ответа: объект со списком файлов.
type multiPayload struct {
	Files []filePayload `json:"files"`
}

// normalizeBatch разрешает полиморфный ответ генератора в упорядоченный
// батч. Формы, в порядке опознания:
//  1. {"files": [...]}
//  2. голый массив [...]
//  3. одиночный объект {"name": ..., "code": ...} (устаревшая форма)
func normalizeBatch(content string) (domain.Batch, error) {
	payload, ok := extractJSON(content)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON value found", ErrBadPayload)
	}

	if strings.HasPrefix(payload, "{") {
		var multi multiPayload
		if err := json.Unmarshal([]byte(payload), &multi); err == nil && multi.Files != nil {
			return resolveFiles(multi.Files)
		}

		var single filePayload
		if err := json.Unmarshal([]byte(payload), &single); err == nil && !single.empty() {
			return resolveFiles([]filePayload{single})
		}
		return nil, fmt.Errorf("%w: object matches no known shape", ErrBadPayload)
	}

	var files []filePayload
	if err := json.Unmarshal([]byte(payload), &files); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return resolveFiles(files)
}

// resolveFiles приводит элементы ответа к доменным артефактам,
// сохраняя порядок.
func resolveFiles(files []filePayload) (domain.Batch, error) {
	batch := make(domain.Batch, 0, len(files))
	for i, f := range files {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			name = strings.TrimSpace(f.Path)
		}
		code := f.Code
		if code == "" {
			code = f.Content
		}
		if name == "" {
			return nil, fmt.Errorf("%w: artifact #%d has no name", domain.ErrSchema, i+1)
		}
		if code == "" {
			return nil, fmt.Errorf("%w: artifact %q has no code", domain.ErrSchema, name)
		}
		batch = append(batch, domain.Artifact{
			Name:    name,
			Code:    code,
			Role:    strings.TrimSpace(f.Role),
			Purpose: strings.TrimSpace(f.Purpose),
		})
	}
	return batch, nil
}

// extractJSON вырезает первое сбалансированное JSON-значение (объект или
// массив) из текста ответа, предварительно срезав кодовые ограды.
func extractJSON(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", false
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimLeft(trimmed, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
		trimmed = strings.TrimSpace(trimmed)
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	return extractValue(trimmed)
}

// extractValue ищет первый '{' или '[' и возвращает сбалансированный
// фрагмент, учитывая строки и экранирование внутри них.
func extractValue(text string) (string, bool) {
	start := -1
	var stack []rune
	inString := false
	escape := false

	for i, r := range text {
		if start == -1 {
			switch r {
			case '{':
				start = i
				stack = append(stack, '}')
			case '[':
				start = i
				stack = append(stack, ']')
			}
			continue
		}
		if inString {
			if escape {
				escape = false
				continue
			}
			switch r {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || r != stack[len(stack)-1] {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return strings.TrimSpace(text[start : i+1]), true
			}
		}
	}
	return "", false
}
