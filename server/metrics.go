package server

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echomill_orders_submitted_total",
			Help: "Total number of orders accepted by symbol and side.",
		},
		[]string{"symbol", "side"},
	)

	tradesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echomill_trades_executed_total",
			Help: "Total number of trades executed by symbol.",
		},
		[]string{"symbol"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "echomill_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(ordersSubmitted, tradesExecuted, requestDuration)
}
