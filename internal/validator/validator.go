package validator

import (
	"context"

	"github.com/koshkarov/crucible/internal/domain"
)

// Validator — интерфейс валидации одного артефакта.
//
// Невалидный код возвращается как Outcome{Valid: false} с диагностикой,
// ошибка вызова означает инфраструктурный сбой (недоступный сервис,
// отменённый контекст) и фатальна для запуска.
type Validator interface {
	Validate(ctx context.Context, code string) (domain.Outcome, error)
}
