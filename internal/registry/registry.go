package registry

import (
	"fmt"
	"log/slog"

	"github.com/koshkarov/crucible/internal/domain"
)

// Registry — реестр артефактов одного запуска.
//
// Реестром владеет ровно один оркестратор; все обращения идут из его
// горутины между фазами раунда, поэтому синхронизация не нужна.
// Реестр живёт один запуск и уничтожается вместе с ним.
type Registry struct {
	// originalOrder — манифест: имена артефактов в порядке первой
	// генерации. Фиксируется в Initialize и больше не меняется.
	originalOrder []string

	// validated — валидированные артефакты по имени.
	// Append-only: первая запись для имени выигрывает.
	validated map[string]domain.Artifact

	// initialized — был ли уже вызван Initialize.
	initialized bool

	logger *slog.Logger
}

// Config — конфигурация Registry.
type Config struct {
	// Logger — логгер (по умолчанию slog.Default()).
	Logger *slog.Logger
}

// New создаёт пустой реестр.
func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		validated: make(map[string]domain.Artifact),
		logger:    logger,
	}
}

// Initialize фиксирует манифест по первому батчу генерации.
//
// Повторный вызов и пустой батч — нарушение схемы. Имена в манифесте
// обязаны быть уникальными.
func (r *Registry) Initialize(batch domain.Batch) error {
	if r.initialized {
		return fmt.Errorf("%w: registry is already initialized", domain.ErrSchema)
	}
	if len(batch) == 0 {
		return fmt.Errorf("%w: initial batch is empty", domain.ErrSchema)
	}

	seen := make(map[string]bool, len(batch))
	order := make([]string, 0, len(batch))
	for _, a := range batch {
		if a.Name == "" {
			return fmt.Errorf("%w: artifact without a name", domain.ErrSchema)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: duplicate artifact name %q", domain.ErrSchema, a.Name)
		}
		seen[a.Name] = true
		order = append(order, a.Name)
	}

	r.originalOrder = order
	r.initialized = true
	return nil
}

// TotalExpected возвращает размер манифеста.
func (r *Registry) TotalExpected() int {
	return len(r.originalOrder)
}

// MarkValidated записывает прошедший валидацию артефакт.
//
// Повторные вызовы для того же имени игнорируются: первая валидная копия
// окончательна. Имя вне манифеста тоже игнорируется, чтобы множество
// ключей validated всегда оставалось подмножеством манифеста.
func (r *Registry) MarkValidated(a domain.Artifact) {
	if !r.inManifest(a.Name) {
		r.logger.Warn("ignoring validated artifact outside the manifest", "artifact", a.Name)
		return
	}
	if _, ok := r.validated[a.Name]; ok {
		return
	}
	a.Validated = true
	a.ValidationError = ""
	r.validated[a.Name] = a
}

// IsValidated возвращает true, если имя уже валидировано.
func (r *Registry) IsValidated(name string) bool {
	_, ok := r.validated[name]
	return ok
}

// ValidatedCount возвращает количество валидированных артефактов.
func (r *Registry) ValidatedCount() int {
	return len(r.validated)
}

// FailedNames возвращает имена манифеста, ещё не прошедшие валидацию,
// в порядке манифеста.
func (r *Registry) FailedNames() []string {
	names := make([]string, 0, len(r.originalOrder)-len(r.validated))
	for _, name := range r.originalOrder {
		if _, ok := r.validated[name]; !ok {
			names = append(names, name)
		}
	}
	return names
}

// IsComplete возвращает true, когда валидированы все имена манифеста.
func (r *Registry) IsComplete() bool {
	return r.initialized && len(r.validated) == len(r.originalOrder)
}

// Validated возвращает валидированные артефакты в порядке манифеста.
// Это поверхность частичного результата: доступна и после провала запуска.
func (r *Registry) Validated() []domain.Artifact {
	out := make([]domain.Artifact, 0, len(r.validated))
	for _, name := range r.originalOrder {
		if a, ok := r.validated[name]; ok {
			out = append(out, a)
		}
	}
	return out
}

// MergeFixed сверяет батч починки с манифестом и возвращает полный
// рабочий набор следующего раунда в порядке манифеста.
//
// Правила сверки:
//   - копия валидированного имени игнорируется (логируется);
//   - копия невалидного имени замещает прежнюю, с номером нового раунда;
//   - неопознанное имя при ровно одном незакрытом имени манифеста и ровно
//     одном неопознанном артефакте трактуется как переименование: код
//     попадает в слот манифеста под исходным именем, дрейф логируется;
//   - неопознанные имена при нуле незакрытых игнорируются с предупреждением;
//   - любая другая комбинация неоднозначна и завершает сверку ошибкой;
//   - после сверки каждое имя манифеста обязано иметь валидированную либо
//     входящую копию, иначе сверка завершается ошибкой.
func (r *Registry) MergeFixed(incoming domain.Batch, round int) (domain.Batch, error) {
	if !r.initialized {
		return nil, fmt.Errorf("%w: registry is not initialized", domain.ErrSchema)
	}

	matched := make(map[string]domain.Artifact, len(incoming))
	var unrecognized []domain.Artifact

	for _, a := range incoming {
		switch {
		case r.IsValidated(a.Name):
			r.logger.Warn("ignoring resubmission of a validated artifact", "artifact", a.Name)
		case r.inManifest(a.Name):
			if _, dup := matched[a.Name]; dup {
				r.logger.Warn("duplicate artifact in repair batch, keeping the first", "artifact", a.Name)
				continue
			}
			a.Round = round
			a.Validated = false
			matched[a.Name] = a
		default:
			unrecognized = append(unrecognized, a)
		}
	}

	unmatched := r.unmatchedNames(matched)

	if len(unrecognized) > 0 {
		switch {
		case len(unmatched) == 1 && len(unrecognized) == 1:
			// Генератор переименовал артефакт. Манифест авторитетен:
			// код занимает слот исходного имени.
			drifted := unrecognized[0]
			slot := unmatched[0]
			r.logger.Warn("artifact name drift detected, reconciling",
				"received", drifted.Name, "expected", slot)
			drifted.Name = slot
			drifted.Round = round
			drifted.Validated = false
			matched[slot] = drifted
		case len(unmatched) == 0:
			for _, a := range unrecognized {
				r.logger.Warn("ignoring unexpected artifact in repair batch", "artifact", a.Name)
			}
		default:
			return nil, &MergeError{
				Unmatched:    unmatched,
				Unrecognized: domain.Batch(unrecognized).Names(),
			}
		}
	}

	out := make(domain.Batch, 0, len(r.originalOrder))
	var holes []string
	for _, name := range r.originalOrder {
		if a, ok := r.validated[name]; ok {
			out = append(out, a)
			continue
		}
		if a, ok := matched[name]; ok {
			out = append(out, a)
			continue
		}
		holes = append(holes, name)
	}
	if len(holes) > 0 {
		return nil, &MergeError{Unmatched: holes}
	}
	return out, nil
}

// inManifest возвращает true, если имя есть в манифесте.
func (r *Registry) inManifest(name string) bool {
	for _, n := range r.originalOrder {
		if n == name {
			return true
		}
	}
	return false
}

// unmatchedNames возвращает незакрытые имена: невалидные и без копии
// во входящем батче, в порядке манифеста.
func (r *Registry) unmatchedNames(matched map[string]domain.Artifact) []string {
	var names []string
	for _, name := range r.originalOrder {
		if _, ok := r.validated[name]; ok {
			continue
		}
		if _, ok := matched[name]; ok {
			continue
		}
		names = append(names, name)
	}
	return names
}
