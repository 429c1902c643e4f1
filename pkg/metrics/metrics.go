// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PropagationsTotal tracks name propagations by outcome (success, partial, failed)
	PropagationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "consistency",
			Name:      "propagations_total",
			Help:      "Total number of denormalized name propagations by outcome",
		},
		[]string{"outcome"},
	)

	// PropagationDuration tracks the wall time of a full fan-out
	PropagationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "consistency",
			Name:      "propagation_duration_seconds",
			Help:      "Duration of name propagations in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// RecordsUpdatedTotal tracks rewritten denormalized copies per collection
	RecordsUpdatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "consistency",
			Name:      "records_updated_total",
			Help:      "Total number of denormalized records rewritten per collection",
		},
		[]string{"collection"},
	)

	// CollectionSyncsTotal tracks per-collection sync attempts by status (ok, skipped, error)
	CollectionSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "consistency",
			Name:      "collection_syncs_total",
			Help:      "Total number of per-collection sync attempts by status",
		},
		[]string{"collection", "status"},
	)

	// RepairGuestsTotal tracks guests visited by bulk repair
	RepairGuestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "repair",
			Name:      "guests_total",
			Help:      "Total number of guests visited by bulk repair by outcome",
		},
		[]string{"outcome"},
	)

	// PagesServedTotal tracks pages fetched by mode (browse, search)
	PagesServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pagination",
			Name:      "pages_total",
			Help:      "Total number of pages fetched by collection and mode",
		},
		[]string{"collection", "mode"},
	)

	// PageItems tracks how many records a page returned
	PageItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "pagination",
			Name:      "page_items",
			Help:      "Number of records returned per page",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		},
		[]string{"mode"},
	)

	// GuestOperationsTotal tracks caller-facing guest operations by result
	GuestOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "guests",
			Name:      "operations_total",
			Help:      "Total number of guest operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// LockAcquisitionsTotal tracks per-guest rename lock attempts
	LockAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "redis",
			Name:      "lock_acquisitions_total",
			Help:      "Total number of rename lock acquisition attempts by result",
		},
		[]string{"result"},
	)

	// EventsPublishedTotal tracks guest lifecycle events sent to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "events_published_total",
			Help:      "Total number of guest events published by type and status",
		},
		[]string{"event_type", "status"},
	)

	// HTTPRequestsTotal tracks inbound API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks inbound API request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)
