package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Event выводит одно событие потока прогресса: человекочитаемую строку
// или, в режиме --json, сырую JSON-строку {"kind":...,"payload":...}.
func (o *Output) Event(kind string, data json.RawMessage) {
	if o.jsonMode {
		fmt.Fprintf(o.w, "{\"kind\":%q,\"payload\":%s}\n", kind, data)
		return
	}
	fmt.Fprintln(o.w, formatEvent(kind, data))
}

// Artifacts выводит таблицу артефактов. В JSON-режиме ничего не делает:
// артефакты уже попали в основной JSON-ответ.
func (o *Output) Artifacts(artifacts []ArtifactResponse) {
	if o.jsonMode || len(artifacts) == 0 {
		return
	}

	headers := []string{"NAME", "VALIDATED", "ROUND", "SIZE", "ERROR"}
	rows := make([][]string, len(artifacts))
	for i, a := range artifacts {
		size := ""
		if a.SizeBytes > 0 {
			size = strconv.FormatInt(a.SizeBytes, 10)
		}
		rows[i] = []string{
			a.Name,
			strconv.FormatBool(a.Validated),
			strconv.Itoa(a.Round),
			size,
			firstLine(a.ValidationError),
		}
	}

	fmt.Fprintln(o.w)
	o.Table(headers, rows)
}

// Rounds выводит таблицу раундов. В JSON-режиме ничего не делает.
func (o *Output) Rounds(rounds []RoundResponse) {
	if o.jsonMode || len(rounds) == 0 {
		return
	}

	headers := []string{"ROUND", "VALID", "FAILED", "RECORDED"}
	rows := make([][]string, len(rounds))
	for i, r := range rounds {
		rows[i] = []string{
			strconv.Itoa(r.Round),
			strconv.Itoa(r.ValidCount),
			strconv.Itoa(r.FailedCount),
			r.RecordedAt,
		}
	}

	fmt.Fprintln(o.w)
	o.Table(headers, rows)
}

// formatEvent форматирует событие в одну строку прогресса.
func formatEvent(kind string, data json.RawMessage) string {
	switch kind {
	case kindValidationStart:
		var p validationStartEvent
		if json.Unmarshal(data, &p) == nil {
			return fmt.Sprintf("manifest: %d artifact(s) generated", p.TotalExpected)
		}
	case kindValidationProgress:
		var p validationProgressEvent
		if json.Unmarshal(data, &p) == nil {
			return fmt.Sprintf("round %d: %d valid, %d failed", p.Round, p.ValidCount, p.FailedCount)
		}
	case kindArtifactReady:
		var p artifactReadyEvent
		if json.Unmarshal(data, &p) == nil {
			mark := "ok  "
			if !p.Artifact.Validated {
				mark = "FAIL"
			}
			line := fmt.Sprintf("  %s %s [%d/%d]", mark, p.Artifact.Name, p.ReadySoFar, p.TotalExpected)
			if p.IsUpdate {
				line += " (updated)"
			}
			if !p.Artifact.Validated && p.Artifact.ValidationError != "" {
				line += ": " + firstLine(p.Artifact.ValidationError)
			}
			return line
		}
	case kindRetrying:
		var p retryingEvent
		if json.Unmarshal(data, &p) == nil {
			return fmt.Sprintf("round %d: repairing %s", p.Round, strings.Join(p.FailedNames, ", "))
		}
	case kindComplete:
		var p completeEvent
		if json.Unmarshal(data, &p) == nil {
			return fmt.Sprintf("complete: %d artifact(s) valid", len(p.Artifacts))
		}
	case kindMaxRetriesExceeded:
		var p maxRetriesExceededEvent
		if json.Unmarshal(data, &p) == nil {
			return "exhausted: " + firstLine(p.LastError)
		}
	case kindError:
		var p errorEvent
		if json.Unmarshal(data, &p) == nil {
			return "error: " + p.Message
		}
	}
	// Неизвестный вид или нечитаемый payload — выводим хотя бы вид.
	return kind
}

// firstLine обрезает диагностику до первой строки разумной длины.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const limit = 120
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
