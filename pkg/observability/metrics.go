package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records stage durations and failures.
type Metrics struct {
	registry *prometheus.Registry
	entered  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
	current  prometheus.Gauge
}

// NewMetrics creates the collectors in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		entered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yolotrain_stage_entered_total",
				Help: "Number of times each pipeline stage was entered",
			},
			[]string{"stage"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yolotrain_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 12),
			},
			[]string{"stage"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yolotrain_stage_failures_total",
				Help: "Number of pipeline stages that ended in an error",
			},
			[]string{"stage", "kind"},
		),
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yolotrain_stage_current",
			Help: "Ordinal of the stage the pipeline is in",
		}),
	}
	m.registry.MustRegister(m.entered, m.duration, m.failures, m.current)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, e *domain.StageEvent) {
			m.entered.WithLabelValues(string(e.Stage)).Inc()
			m.current.Set(float64(e.Stage.Ordinal()))
		},
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) {
			m.duration.WithLabelValues(string(e.Stage)).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.failures.WithLabelValues(string(e.Stage), kindLabel(e.Err)).Inc()
			}
		},
	}
}

// WriteTextfile writes all metrics to path in the textfile collector format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func kindLabel(err error) string {
	kind := domain.KindOf(err)
	if kind == nil {
		return "unknown"
	}
	return kind.Error()
}

// LogHooks returns lifecycle hooks that log stage transitions.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, e *domain.StageEvent) {
			logger.DebugContext(ctx, "stage_enter", "stage", e.Stage)
		},
		OnStageLeave: func(ctx context.Context, e *domain.StageEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "stage_failed", "stage", e.Stage, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "stage_leave", "stage", e.Stage, "duration", e.Duration)
		},
	}
}
