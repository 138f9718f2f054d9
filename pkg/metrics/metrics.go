package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	PurchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundle_purchases_total",
			Help: "Bundle purchases by final outcome",
		},
		[]string{"outcome"}, // delivered|refunded|insufficient|duplicate
	)

	WalletCreditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_credits_total",
			Help: "Wallet credits applied",
		},
		[]string{"kind"}, // topup|webhook|refund|commission|withdrawal_reversal
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_webhook_events_total",
			Help: "Gateway webhook events by processing result",
		},
		[]string{"result"},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current in-process webhook queue depth",
		},
	)

	registerOnce sync.Once
)

// Handler serves /metrics.
var Handler = promhttp.Handler

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal)
		prometheus.MustRegister(RequestLatency)
		prometheus.MustRegister(PurchasesTotal)
		prometheus.MustRegister(WalletCreditsTotal)
		prometheus.MustRegister(WebhookEventsTotal)
		prometheus.MustRegister(WorkerQueueDepth)
	})
}
