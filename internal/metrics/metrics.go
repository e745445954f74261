// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mentor_api_upstream_duration_seconds",
			Help:    "Time taken by goodfire requests in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
		},
		[]string{"operation", "model"},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_api_upstream_errors_total",
			Help: "Failed goodfire requests",
		},
		[]string{"operation", "kind"},
	)

	Envelopes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_api_envelope_total",
			Help: "Envelope responses by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	VariantLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_api_variant_loads_total",
			Help: "Variant file loads by result",
		},
		[]string{"result"},
	)

	TagsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_api_tags_parsed_total",
			Help: "Tag list parsing outcomes",
		},
		[]string{"result"},
	)

	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_api_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
	)
)
