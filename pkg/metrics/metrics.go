// Package metrics provides Prometheus metrics for the pendency service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks reconciliation runs by status
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cadastro_retorno",
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of reconciliation runs by status",
		},
		[]string{"project_id", "status"},
	)

	// RunDuration tracks reconciliation run duration in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cadastro_retorno",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"project_id"},
	)

	// RunWarnings tracks data quality warnings per run
	RunWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cadastro_retorno",
			Subsystem: "run",
			Name:      "warnings_total",
			Help:      "Total number of data quality warnings by kind",
		},
		[]string{"project_id", "kind"},
	)

	// FetchRequestsTotal tracks survey API fetch requests
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cadastro_retorno",
			Subsystem: "survey",
			Name:      "fetch_requests_total",
			Help:      "Total number of survey API page fetches",
		},
		[]string{"form_id", "status"},
	)

	// FetchDuration tracks survey API fetch duration
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cadastro_retorno",
			Subsystem: "survey",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of survey API page fetches in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"form_id"},
	)

	// PublishItemsTotal tracks sync-back item outcomes
	PublishItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cadastro_retorno",
			Subsystem: "publish",
			Name:      "items_total",
			Help:      "Total number of sync-back item outcomes by action",
		},
		[]string{"project_id", "action"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cadastro_retorno",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

)

// RecordRun records a reconciliation run metric
func RecordRun(projectID, status string, durationSeconds float64) {
	RunsTotal.WithLabelValues(projectID, status).Inc()
	RunDuration.WithLabelValues(projectID).Observe(durationSeconds)
}

// RecordFetch records a survey API page fetch
func RecordFetch(formID, status string, durationSeconds float64) {
	FetchRequestsTotal.WithLabelValues(formID, status).Inc()
	FetchDuration.WithLabelValues(formID).Observe(durationSeconds)
}

// RecordPublishItem records one sync-back item outcome
func RecordPublishItem(projectID, action string) {
	PublishItemsTotal.WithLabelValues(projectID, action).Inc()
}
