package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReplansTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trike_itinerary", Name: "replans_total", Help: "Total stop replanning passes"})
	ReroutesTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trike_itinerary", Name: "reroutes_total", Help: "Total deviation-triggered reroutes"})
	ProviderCalls  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trike_itinerary", Name: "provider_calls_total", Help: "External directions provider calls"})
	ProviderErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trike_itinerary", Name: "provider_errors_total", Help: "Failed directions provider calls"})

	PayloadCacheHits   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trike_itinerary", Name: "payload_cache_hits_total", Help: "Route-info payload cache hits"})
	PayloadCacheMisses = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trike_itinerary", Name: "payload_cache_misses_total", Help: "Route-info payload cache misses"})

	StopsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trike_itinerary", Name: "stops_completed_total", Help: "Completed itinerary stops"},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trike_itinerary", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trike_itinerary",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)
