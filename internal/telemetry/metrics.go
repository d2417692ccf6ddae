package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Metrics — Prometheus метрики runtime'ов workspace.
type Metrics struct {
	starts         *prometheus.CounterVec
	stops          *prometheus.CounterVec
	startDuration  prometheus.Histogram
	activeRuntimes prometheus.Gauge
	agentFailures  prometheus.Counter
	machines       prometheus.Counter
	events         *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		starts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsmaster_runtime_starts_total",
			Help: "Workspace runtime starts by result",
		}, []string{"result"}),
		stops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsmaster_runtime_stops_total",
			Help: "Workspace runtime stops by result",
		}, []string{"result"}),
		startDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wsmaster_runtime_start_duration_seconds",
			Help:    "Time from accepted start to RUNNING or ERROR",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		activeRuntimes: f.NewGauge(prometheus.GaugeOpts{
			Name: "wsmaster_active_runtimes",
			Help: "Workspaces with a registry entry",
		}),
		agentFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "wsmaster_agent_launch_failures_total",
			Help: "Failed agent launches on dev machines",
		}),
		machines: f.NewCounter(prometheus.CounterOpts{
			Name: "wsmaster_machines_started_total",
			Help: "Machines started by the environment engine",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsmaster_events_published_total",
			Help: "Workspace lifecycle events published by type",
		}, []string{"type"}),
	}
}

// RuntimeStarted учитывает завершённую попытку запуска.
func (m *Metrics) RuntimeStarted(result string, duration time.Duration) {
	m.starts.WithLabelValues(result).Inc()
	m.startDuration.Observe(duration.Seconds())
}

// RuntimeStopped учитывает остановку.
func (m *Metrics) RuntimeStopped(result string) {
	m.stops.WithLabelValues(result).Inc()
}

// SetActiveRuntimes выставляет число записей в реестре.
func (m *Metrics) SetActiveRuntimes(n int) {
	m.activeRuntimes.Set(float64(n))
}

// MachineStarted учитывает поднятую машину.
func (m *Metrics) MachineStarted() {
	m.machines.Inc()
}

// AgentLaunchFailed учитывает неудачный запуск агента.
func (m *Metrics) AgentLaunchFailed() {
	m.agentFailures.Inc()
}

// EventPublished учитывает опубликованное событие.
func (m *Metrics) EventPublished(eventType domain.EventType) {
	m.events.WithLabelValues(string(eventType)).Inc()
}
