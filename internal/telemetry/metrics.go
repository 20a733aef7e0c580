/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry holds the process metrics and tracing plumbing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsProcessedTotal counts job outcomes by classification.
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skirnir_jobs_processed_total",
		Help: "Generation jobs processed, labelled by outcome.",
	}, []string{"outcome"})

	// JobDuration observes end-to-end job processing time.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skirnir_job_duration_seconds",
		Help:    "Generation job processing duration.",
		Buckets: prometheus.DefBuckets,
	})

	// GenerationDuration observes the materialization step per experience.
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skirnir_generation_duration_seconds",
		Help:    "Event instance generation duration per experience.",
		Buckets: prometheus.DefBuckets,
	}, []string{"experience"})

	// EventInstancesCreatedTotal counts persisted occurrences.
	EventInstancesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skirnir_event_instances_created_total",
		Help: "Event instances materialized from recurring schedules.",
	})

	// LockAcquisitionsTotal counts generation lock attempts by result.
	LockAcquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skirnir_generation_lock_acquisitions_total",
		Help: "Generation lock acquisition attempts, labelled acquired/busy/error.",
	}, []string{"result"})

	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skirnir_http_requests_total",
		Help: "HTTP requests, labelled by method, endpoint, and status.",
	}, []string{"method", "endpoint", "status"})

	// HTTPRequestDuration observes API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skirnir_http_request_duration_seconds",
		Help:    "HTTP request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	// APIActiveConnections gauges in-flight API requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skirnir_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
