package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the activation engine's metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	// Checks
	checksTotal   *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec

	// Sessions
	ticksTotal     *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	sessionsEnded  *prometheus.CounterVec

	// Finalizer
	finalizeTotal *prometheus.CounterVec
	activations   prometheus.Counter
	timeouts      prometheus.Counter

	// Notifications
	notificationsTotal *prometheus.CounterVec

	// Queue
	commandsTotal *prometheus.CounterVec
}

// NewCollector registers every metric on reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration panics.
func NewCollector(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		gatherer: gatherer,

		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activator_checks_total",
				Help: "Total number of signal checks performed",
			},
			[]string{"signal", "result"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "activator_check_duration_seconds",
				Help:    "Duration of signal checks in seconds",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"signal"},
		),

		ticksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activator_ticks_total",
				Help: "Monitoring ticks by verdict reason",
			},
			[]string{"reason"},
		),

		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "activator_sessions_active",
				Help: "Number of monitoring sessions currently running",
			},
		),

		sessionsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activator_sessions_ended_total",
				Help: "Monitoring sessions ended, by outcome",
			},
			[]string{"outcome"},
		),

		finalizeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activator_finalize_total",
				Help: "Finalize attempts by outcome",
			},
			[]string{"outcome"},
		),

		activations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "activator_activations_total",
				Help: "Custom domains transitioned to verified_active",
			},
		),

		timeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "activator_timeouts_total",
				Help: "Monitoring sessions that hit their deadline",
			},
		),

		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activator_notifications_total",
				Help: "Notifier deliveries by event and result",
			},
			[]string{"event", "result"},
		),

		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activator_commands_total",
				Help: "Queue commands processed by the worker",
			},
			[]string{"type", "result"},
		),
	}
}

func (c *Collector) ObserveCheck(signal string, verified bool, d time.Duration) {
	if c == nil {
		return
	}
	c.checksTotal.WithLabelValues(signal, resultLabel(verified)).Inc()
	c.checkDuration.WithLabelValues(signal).Observe(d.Seconds())
}

func (c *Collector) RecordTick(reason string) {
	if c == nil {
		return
	}
	c.ticksTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsActive.Inc()
}

func (c *Collector) SessionEnded(outcome string) {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
	c.sessionsEnded.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordFinalize(outcome string, activated bool) {
	if c == nil {
		return
	}
	c.finalizeTotal.WithLabelValues(outcome).Inc()
	if activated {
		c.activations.Inc()
	}
}

func (c *Collector) RecordTimeout() {
	if c == nil {
		return
	}
	c.timeouts.Inc()
}

func (c *Collector) RecordNotification(event string, err error) {
	if c == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	c.notificationsTotal.WithLabelValues(event, result).Inc()
}

func (c *Collector) RecordCommand(commandType string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.commandsTotal.WithLabelValues(commandType, result).Inc()
}

func resultLabel(verified bool) string {
	if verified {
		return "verified"
	}
	return "unverified"
}
