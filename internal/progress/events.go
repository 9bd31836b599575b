package progress

import "github.com/koshkarov/crucible/internal/domain"

// Kind — вид события прогресса.
type Kind string

// Виды событий.
const (
	// KindValidationStart — генерация завершена, начинается валидация.
	KindValidationStart Kind = "validation_start"

	// KindValidationProgress — итог очередного раунда валидации.
	KindValidationProgress Kind = "validation_progress"

	// KindArtifactReady — артефакт доступен подписчику (валидный или нет).
	KindArtifactReady Kind = "artifact_ready"

	// KindRetrying — невалидные артефакты уходят на починку.
	KindRetrying Kind = "retrying"

	// KindComplete — все артефакты валидны; терминальное.
	KindComplete Kind = "complete"

	// KindMaxRetriesExceeded — лимит раундов исчерпан; терминальное.
	KindMaxRetriesExceeded Kind = "max_retries_exceeded"

	// KindError — фатальный сбой запуска; терминальное.
	KindError Kind = "error"
)

// IsTerminal возвращает true для терминальных видов событий.
func (k Kind) IsTerminal() bool {
	switch k {
	case KindComplete, KindMaxRetriesExceeded, KindError:
		return true
	default:
		return false
	}
}

// Event — событие прогресса: вид плюс типизированный payload.
//
// Поле Payload всегда заполнено конструктором, соответствующим виду;
// на проводе вид идёт отдельно от payload (строка "event:" в SSE,
// routing key в очереди).
type Event struct {
	// Kind — вид события.
	Kind Kind `json:"kind"`

	// Payload — полезная нагрузка события.
	Payload any `json:"payload"`
}

// ValidationStartPayload — payload события validation_start.
type ValidationStartPayload struct {
	// TotalExpected — размер манифеста: сколько артефактов ожидается.
	TotalExpected int `json:"totalExpected"`
}

// ValidationProgressPayload — payload события validation_progress.
// Счётчики накопительные с начала запуска.
type ValidationProgressPayload struct {
	Round       int `json:"round"`
	ValidCount  int `json:"validCount"`
	FailedCount int `json:"failedCount"`
}

// ArtifactReadyPayload — payload события artifact_ready.
type ArtifactReadyPayload struct {
	// Artifact — артефакт целиком, включая диагностику при невалидности.
	Artifact domain.Artifact `json:"artifact"`

	// IsUpdate — false при первом появлении имени в потоке,
	// true при повторной выдаче после починки.
	IsUpdate bool `json:"isUpdate"`

	// ReadySoFar — сколько различных имён уже выдано в поток.
	ReadySoFar int `json:"readySoFar"`

	// TotalExpected — размер манифеста.
	TotalExpected int `json:"totalExpected"`
}

// RetryingPayload — payload события retrying.
type RetryingPayload struct {
	// Round — номер наступающего раунда починки.
	Round int `json:"round"`

	// FailedNames — имена невалидных артефактов в порядке манифеста.
	FailedNames []string `json:"failedNames"`
}

// CompletePayload — payload события complete.
type CompletePayload struct {
	// Artifacts — итоговый список артефактов в порядке манифеста.
	Artifacts []domain.Artifact `json:"artifacts"`
}

// MaxRetriesExceededPayload — payload события max_retries_exceeded.
type MaxRetriesExceededPayload struct {
	// LastError — диагностика первого из оставшихся невалидных артефактов.
	LastError string `json:"lastError"`
}

// ErrorPayload — payload события error.
type ErrorPayload struct {
	// Message — описание фатального сбоя.
	Message string `json:"message"`
}

// NewValidationStart создаёт событие validation_start.
func NewValidationStart(totalExpected int) Event {
	return Event{Kind: KindValidationStart, Payload: ValidationStartPayload{TotalExpected: totalExpected}}
}

// NewValidationProgress создаёт событие validation_progress.
func NewValidationProgress(round, validCount, failedCount int) Event {
	return Event{Kind: KindValidationProgress, Payload: ValidationProgressPayload{
		Round:       round,
		ValidCount:  validCount,
		FailedCount: failedCount,
	}}
}

// NewArtifactReady создаёт событие artifact_ready.
func NewArtifactReady(a domain.Artifact, isUpdate bool, readySoFar, totalExpected int) Event {
	return Event{Kind: KindArtifactReady, Payload: ArtifactReadyPayload{
		Artifact:      a,
		IsUpdate:      isUpdate,
		ReadySoFar:    readySoFar,
		TotalExpected: totalExpected,
	}}
}

// NewRetrying создаёт событие retrying.
func NewRetrying(round int, failedNames []string) Event {
	return Event{Kind: KindRetrying, Payload: RetryingPayload{Round: round, FailedNames: failedNames}}
}

// NewComplete создаёт событие complete.
func NewComplete(artifacts []domain.Artifact) Event {
	return Event{Kind: KindComplete, Payload: CompletePayload{Artifacts: artifacts}}
}

// NewMaxRetriesExceeded создаёт событие max_retries_exceeded.
func NewMaxRetriesExceeded(lastError string) Event {
	return Event{Kind: KindMaxRetriesExceeded, Payload: MaxRetriesExceededPayload{LastError: lastError}}
}

// NewError создаёт событие error.
func NewError(message string) Event {
	return Event{Kind: KindError, Payload: ErrorPayload{Message: message}}
}
