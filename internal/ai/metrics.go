package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	oracleRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicle_oracle_requests_total",
			Help: "Total number of requests to the oracle API.",
		},
		[]string{"call", "status"}, // call: assess|plan|resolve|opening|conclude|image_prompt
	)
	oracleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chronicle_oracle_request_duration_seconds",
			Help:    "Histogram of oracle API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"call"},
	)
	oraclePromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chronicle_oracle_prompt_tokens",
			Help:    "Histogram of estimated prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"call"},
	)
)
