package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_intake_scans_processed_total",
			Help: "Total number of scans that reached a settled processing status",
		},
		[]string{"status"}, // status: completed, failed
	)

	processingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "referral_intake_processing_duration_seconds",
			Help:    "End-to-end processing duration of one scan in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		},
		[]string{"status"},
	)

	pagesPerScan = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "referral_intake_pages_per_scan",
			Help:    "Number of page images produced per scan",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		},
	)

	documentConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "referral_intake_document_confidence",
			Help:    "Aggregated recognition confidence of completed scans",
			Buckets: []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, 1},
		},
		[]string{"document_type"},
	)

	extractionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_intake_extraction_outcomes_total",
			Help: "Structured extraction outcomes",
		},
		[]string{"outcome"}, // outcome: ok, backend_unavailable, unparseable
	)
)
