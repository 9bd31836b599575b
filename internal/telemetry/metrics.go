package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики конвейера сходимости. Регистрируются в default registry,
// экспортируются сервисами на /metrics.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crucible_runs_total",
		Help: "Finished convergence runs by terminal status",
	}, []string{"status"})

	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crucible_rounds_total",
		Help: "Validation rounds executed across all runs",
	})

	artifactsValidatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crucible_artifacts_validated_total",
		Help: "Artifact validation verdicts by result",
	}, []string{"result"})

	progressEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crucible_progress_events_total",
		Help: "Progress events emitted by kind",
	}, []string{"kind"})

	generatorSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crucible_generator_request_seconds",
		Help:    "Duration of generator calls (generate and repair)",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	validatorSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crucible_validator_request_seconds",
		Help:    "Duration of a single artifact validation",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

// RecordRunFinished учитывает запуск, достигший терминального статуса.
func RecordRunFinished(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// RecordRound учитывает завершённый раунд валидации.
func RecordRound() {
	roundsTotal.Inc()
}

// RecordValidation учитывает вердикт валидатора по одному артефакту.
func RecordValidation(valid bool, elapsed time.Duration) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	artifactsValidatedTotal.WithLabelValues(result).Inc()
	validatorSeconds.Observe(elapsed.Seconds())
}

// RecordGeneratorCall учитывает длительность обращения к генератору.
func RecordGeneratorCall(elapsed time.Duration) {
	generatorSeconds.Observe(elapsed.Seconds())
}

// RecordProgressEvent учитывает испущенное событие прогресса.
func RecordProgressEvent(kind string) {
	progressEventsTotal.WithLabelValues(kind).Inc()
}
