package domain

// Artifact — единица сгенерированного кода.
//
// Генератор возвращает именованный набор артефактов (файлов, модулей,
// компонентов). Имя артефакта уникально в рамках одного запуска и служит
// ключом манифеста: под этим именем артефакт проходит валидацию, починку
// и сверку между раундами.
type Artifact struct {
	// Name — уникальное имя артефакта (например, "main.go", "Header.tsx").
	// Ключ манифеста; фиксируется при первой генерации.
	Name string `json:"name"`

	// Code — полный исходный код артефакта.
	Code string `json:"code"`

	// Role — роль артефакта в целевом проекте (опционально, задаёт генератор).
	Role string `json:"role,omitempty"`

	// Purpose — краткое назначение артефакта (опционально, задаёт генератор).
	Purpose string `json:"purpose,omitempty"`

	// Validated — прошёл ли артефакт валидацию.
	Validated bool `json:"validated"`

	// ValidationError — диагностика последней неудачной валидации.
	// Пустая строка, если ошибок нет.
	ValidationError string `json:"validationError,omitempty"`

	// SizeBytes — размер скомпилированного результата в байтах.
	// 0, если валидатор не сообщил размер.
	SizeBytes int64 `json:"sizeBytes,omitempty"`

	// Round — номер раунда, в котором была создана эта копия кода.
	// 1 для первичной генерации, 2+ для починок.
	Round int `json:"roundProduced"`
}

// Batch — упорядоченный список артефактов из одного ответа генератора.
//
// Порядок значим: он фиксируется в манифесте реестра и сохраняется
// во всех последующих операциях (валидация, починка, выдача результата).
type Batch []Artifact

// Names возвращает имена артефактов в порядке батча.
func (b Batch) Names() []string {
	names := make([]string, len(b))
	for i, a := range b {
		names[i] = a.Name
	}
	return names
}

// Outcome — вердикт валидатора по одному артефакту.
type Outcome struct {
	// Valid — принят ли код валидатором.
	Valid bool `json:"valid"`

	// Error — диагностика компилятора (пусто при Valid=true).
	Error string `json:"error,omitempty"`

	// SizeBytes — размер скомпилированного результата, если известен.
	SizeBytes int64 `json:"sizeBytes,omitempty"`
}
