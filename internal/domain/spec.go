package domain

import (
	"fmt"
	"strings"
)

// Spec — спецификация исходных артефактов, которую подаёт вызывающая сторона.
//
// Описывает, ЧТО нужно сгенерировать. Интерпретация текста — забота
// генератора; ядро передаёт спецификацию как есть.
type Spec struct {
	// Prompt — текстовое описание желаемого набора артефактов. Обязательно.
	Prompt string `json:"prompt"`

	// Language — целевой язык генерации (например, "go", "typescript").
	// Пустое значение оставляет выбор за генератором.
	Language string `json:"language,omitempty"`

	// Name — человекочитаемое имя запуска (опционально, попадает в логи
	// и аналитику).
	Name string `json:"name,omitempty"`
}

// Validate проверяет минимальную корректность спецификации.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrSchema)
	}
	return nil
}
