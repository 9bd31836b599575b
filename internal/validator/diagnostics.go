package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/koshkarov/crucible/internal/domain"
)

// contextLines — сколько строк кода показывать по обе стороны от позиции.
const contextLines = 2

// Форматы позиций в диагностике компиляторов:
//   - "main.go:12:5: undefined: foo" или "12:5: syntax error"
//   - "error on line 12" / "Line 12: unexpected token"
var (
	colonLocPattern = regexp.MustCompile(`(?:^|[\s:(])(\d+):(\d+)`)
	lineLocPattern  = regexp.MustCompile(`(?i)\bline\s+(\d+)`)
)

// ParseLocation извлекает номер строки из текста диагностики.
// Возвращает ok=false, если позиция не указана.
func ParseLocation(diag string) (int, bool) {
	if m := colonLocPattern.FindStringSubmatch(diag); m != nil {
		if line, err := strconv.Atoi(m[1]); err == nil && line > 0 {
			return line, true
		}
	}
	if m := lineLocPattern.FindStringSubmatch(diag); m != nil {
		if line, err := strconv.Atoi(m[1]); err == nil && line > 0 {
			return line, true
		}
	}
	return 0, false
}

// Enhance дополняет диагностику контекстным окном вокруг указанной позиции.
//
// Диагностика без позиции возвращается как есть. Позиция за пределами кода
// артефакта — нарушение контракта валидатора: возвращается ошибка класса
// ErrValidator, фатальная для запуска.
func Enhance(code, diag string) (string, error) {
	line, ok := ParseLocation(diag)
	if !ok {
		return diag, nil
	}

	lines := strings.Split(code, "\n")
	if line > len(lines) {
		return "", fmt.Errorf("%w: diagnostic points at line %d but artifact has %d lines",
			domain.ErrValidator, line, len(lines))
	}

	return diag + "\n\n" + contextWindow(lines, line), nil
}

// contextWindow строит фрагмент кода вокруг строки line (1-based)
// с номерами строк и маркером на указанной строке.
func contextWindow(lines []string, line int) string {
	from := line - contextLines
	if from < 1 {
		from = 1
	}
	to := line + contextLines
	if to > len(lines) {
		to = len(lines)
	}

	width := len(strconv.Itoa(to))
	var b strings.Builder
	for i := from; i <= to; i++ {
		marker := "  "
		if i == line {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%*d | %s", marker, width, i, lines[i-1])
		if i < to {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
