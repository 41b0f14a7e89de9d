package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "pricealerts"
	subsystem = "monitor"
)

// Metrics holds every collector the monitor updates.
type Metrics struct {
	TicksProcessed    *prometheus.CounterVec
	DecodeErrors      prometheus.Counter
	AlertsFired       *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	Sessions          prometheus.Counter
	SessionFailures   *prometheus.CounterVec
	State             prometheus.Gauge
	Baseline          *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks_processed_total",
			Help:      "The total number of evaluated ticks per symbol",
		}, []string{"symbol"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decode_errors_total",
			Help:      "The total number of dropped malformed ticks",
		}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alerts_fired_total",
			Help:      "The total number of threshold breaches per symbol and direction",
		}, []string{"symbol", "direction"}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_deliveries_total",
			Help:      "The total number of webhook deliveries by result",
		}, []string{"result"}),
		Sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_total",
			Help:      "The total number of stream sessions that reached the subscribed state",
		}),
		SessionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_failures_total",
			Help:      "The total number of failed stream sessions by error kind",
		}, []string{"kind"}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state",
			Help:      "Current loop state (0 connecting, 1 subscribed, 2 failed)",
		}),
		Baseline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "baseline_price",
			Help:      "The last notified price per symbol",
		}, []string{"symbol"}),
	}

	reg.MustRegister(
		m.TicksProcessed,
		m.DecodeErrors,
		m.AlertsFired,
		m.WebhookDeliveries,
		m.Sessions,
		m.SessionFailures,
		m.State,
		m.Baseline,
	)
	return m
}
