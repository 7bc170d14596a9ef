// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hostel/internal/complaint"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostel",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hostel",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	ComplaintsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostel",
		Name:      "complaints_created_total",
		Help:      "Complaints filed, by category.",
	}, []string{"category"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostel",
		Name:      "complaint_transitions_total",
		Help:      "Status changes, by from and to status.",
	}, []string{"from", "to"})

	Conflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hostel",
		Name:      "complaint_conflicts_total",
		Help:      "Transitions that lost a concurrent update after the retry.",
	})

	LoginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hostel",
		Name:      "login_failures_total",
		Help:      "Rejected login attempts.",
	})
)

// Recorder counts complaint events. It is registered as a complaint.Listener.
type Recorder struct{}

func (Recorder) Notify(_ context.Context, evt complaint.Event) error {
	switch evt.Type {
	case complaint.EventCreated:
		ComplaintsCreated.WithLabelValues(string(evt.Complaint.Category)).Inc()
	case complaint.EventTransitioned:
		Transitions.WithLabelValues(string(evt.From), string(evt.To)).Inc()
	}
	return nil
}
