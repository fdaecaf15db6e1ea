// Package metrics exports Prometheus collectors fed by session events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/emitter"
	"time"
)

const namespace = "splitpay"

// Flows label the kind of session being observed.
const (
	FlowProbe = "probe"
	FlowPay   = "pay"
)

type Metrics struct {
	// Probing
	ProbesEvaluated prometheus.Counter
	RoutesProbed    prometheus.Counter
	PathsFound      prometheus.Counter

	// Paying
	ShardsAttempted prometheus.Counter
	ShardsSettled   prometheus.Counter
	PaymentsPaid    prometheus.Counter

	RoutingFailures *prometheus.CounterVec
	Sessions        *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec
}

// New registers all collectors with reg. A nil reg uses the default
// registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		ProbesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "evaluations_total",
			Help:      "Total number of amounts evaluated while searching for path liquidity",
		}),
		RoutesProbed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "routes_total",
			Help:      "Total number of routes probed",
		}),
		PathsFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "paths_found_total",
			Help:      "Total number of paths with measured liquidity",
		}),
		ShardsAttempted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pay",
			Name:      "shards_attempted_total",
			Help:      "Total number of payment shards sent",
		}),
		ShardsSettled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pay",
			Name:      "shards_settled_total",
			Help:      "Total number of payment shards settled",
		}),
		PaymentsPaid: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pay",
			Name:      "paid_total",
			Help:      "Total number of payments that revealed a preimage",
		}),
		RoutingFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_failures_total",
			Help:      "Total number of routing failures by flow and reason",
		}, []string{"flow", "reason"}),
		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of finished sessions by flow and outcome",
		}, []string{"flow", "outcome"}),
		SessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"flow"}),
	}
}

// Watch counts the events of a session until its terminal event.
func (m *Metrics) Watch(e *emitter.Emitter, flow string) {
	start := time.Now()

	e.On(emitter.Evaluating, func(interface{}) { m.ProbesEvaluated.Inc() })
	e.On(emitter.Probing, func(interface{}) { m.RoutesProbed.Inc() })
	e.On(emitter.Path, func(interface{}) { m.PathsFound.Inc() })
	e.On(emitter.Paying, func(interface{}) { m.ShardsAttempted.Inc() })
	e.On(emitter.PathSuccess, func(interface{}) { m.ShardsSettled.Inc() })
	e.On(emitter.Paid, func(interface{}) { m.PaymentsPaid.Inc() })

	e.On(emitter.RoutingFailure, func(data interface{}) {
		reason := bdb.UnknownFailure
		if failure, ok := data.(*bdb.RoutingFailure); ok && failure.Reason != "" {
			reason = failure.Reason
		}

		m.RoutingFailures.WithLabelValues(flow, reason).Inc()
	})

	for _, event := range []emitter.Event{emitter.Success, emitter.Failure, emitter.Error} {
		event := event

		e.On(event, func(interface{}) {
			m.Sessions.WithLabelValues(flow, string(event)).Inc()
			m.SessionDuration.WithLabelValues(flow).Observe(time.Since(start).Seconds())
		})
	}
}
