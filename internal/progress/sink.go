package progress

import "log/slog"

// Sink — приёмник событий прогресса.
//
// Emit обязан выполняться синхронно: оркестратор не продолжает работу,
// пока событие не доставлено (или не отвергнуто) приёмником. Ошибка
// основного приёмника фатальна для запуска.
type Sink interface {
	Emit(Event) error
}

// SinkFunc — адаптер функции к интерфейсу Sink.
type SinkFunc func(Event) error

// Emit реализует интерфейс Sink.
func (f SinkFunc) Emit(e Event) error {
	return f(e)
}

// Discard — приёмник, молча принимающий все события.
// Используется локальными запусками без подписчика.
var Discard Sink = SinkFunc(func(Event) error { return nil })

// Multi — составной приёмник: один основной плюс зеркала.
//
// Ошибка основного приёмника возвращается вызывающей стороне и прерывает
// запуск. Ошибки зеркал (аналитика, очередь) логируются и глотаются:
// недоступность зеркала не должна ронять запуск. Зеркала получают событие
// даже если основной приёмник его отверг.
type Multi struct {
	primary Sink
	mirrors []Sink
	logger  *slog.Logger
}

// NewMulti создаёт составной приёмник.
func NewMulti(primary Sink, logger *slog.Logger, mirrors ...Sink) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{
		primary: primary,
		mirrors: mirrors,
		logger:  logger,
	}
}

// Emit реализует интерфейс Sink.
func (m *Multi) Emit(e Event) error {
	err := m.primary.Emit(e)
	for _, mirror := range m.mirrors {
		if merr := mirror.Emit(e); merr != nil {
			m.logger.Warn("progress mirror rejected event",
				"kind", string(e.Kind), "error", merr)
		}
	}
	return err
}
