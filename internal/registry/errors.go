package registry

import (
	"fmt"
	"strings"

	"github.com/koshkarov/crucible/internal/domain"
)

// MergeError — ошибка сверки батча починки с манифестом.
type MergeError struct {
	// Unmatched — имена манифеста, оставшиеся без копии.
	Unmatched []string

	// Unrecognized — имена входящих артефактов, не найденные в манифесте.
	Unrecognized []string
}

// Error реализует интерфейс error.
func (e *MergeError) Error() string {
	var b strings.Builder
	b.WriteString("merge is ambiguous")
	if len(e.Unmatched) > 0 {
		fmt.Fprintf(&b, ": outstanding without a copy: %s", strings.Join(e.Unmatched, ", "))
	}
	if len(e.Unrecognized) > 0 {
		fmt.Fprintf(&b, "; unrecognized incoming: %s", strings.Join(e.Unrecognized, ", "))
	}
	return b.String()
}

// Unwrap возвращает класс ошибки для errors.Is.
func (e *MergeError) Unwrap() error {
	return domain.ErrReconciliation
}
