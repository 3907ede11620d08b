package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IpnRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipn_records_total",
			Help: "Inbound gateway notification records by outcome",
		},
		[]string{"gateway", "outcome"},
	)

	PaymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Payment status writes by source and target status",
		},
		[]string{"from", "to", "kind"},
	)

	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_order_transitions_total",
			Help: "Payment order status writes by source and target status",
		},
		[]string{"from", "to", "kind"},
	)

	GatewayCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Duration of outbound gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway", "operation", "result"},
	)

	TasksEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_enqueued_total",
			Help: "Asynchronous tasks handed to the dispatcher",
		},
		[]string{"type", "result"},
	)

	TasksHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_handled_total",
			Help: "Asynchronous tasks executed by workers",
		},
		[]string{"type", "result"},
	)
)

func init() {
	prometheus.MustRegister(IpnRecords, PaymentTransitions, OrderTransitions, GatewayCalls, TasksEnqueued, TasksHandled)
}

// Result maps an error onto the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func Handler() http.Handler {
	return promhttp.Handler()
}
