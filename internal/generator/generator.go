package generator

import (
	"context"

	"github.com/koshkarov/crucible/internal/domain"
)

// Generator — интерфейс генерации и починки артефактов.
//
// Generate выполняется один раз в начале запуска, Repair — по разу на
// каждый раунд починки. Оба возвращают упорядоченный батч; порядок
// первого батча фиксируется как манифест запуска.
//
// Ошибка вызова фатальна для запуска: ретраи на уровне транспорта —
// забота реализации, ядро их не делает.
type Generator interface {
	Generate(ctx context.Context, spec domain.Spec) (domain.Batch, error)
	Repair(ctx context.Context, failed []domain.Artifact) (domain.Batch, error)
}
