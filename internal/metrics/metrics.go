// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

// Package metrics exposes the Prometheus instrumentation for Daybook:
// storage engine operations, save/load verification, remote sync, cache
// efficiency, and the local HTTP API.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Storage Engine Metrics
	StorageOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage engine operations",
		},
		[]string{"engine", "operation"}, // operation: "put", "get", "delete", "list", "batch"
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Total number of storage engine errors",
		},
		[]string{"engine", "operation", "error_type"}, // error_type: "quota", "not_found", "other"
	)

	StorageEngineSelected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storage_engine_selected",
			Help: "Which storage engine is active (1 for the selected engine)",
		},
		[]string{"engine"},
	)

	StorageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Duration of storage engine operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine", "operation"},
	)

	// Save/Load Metrics
	SaveVerifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "save_verify_failures_total",
			Help: "Total number of post-save read-back verification failures",
		},
	)

	SchemaUpgrades = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schema_upgrades_total",
			Help: "Total number of storage schema upgrades performed",
		},
	)

	SlotSaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slot_saves_total",
			Help: "Total number of slot save operations",
		},
	)

	SlotLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slot_loads_total",
			Help: "Total number of slot load operations",
		},
	)

	// Remote Sync Metrics
	RemoteSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_sync_total",
			Help: "Total number of remote sync operations",
		},
		[]string{"operation", "result"}, // operation: "upload", "download"; result: "success", "failure", "rejected"
	)

	RemoteSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remote_sync_duration_seconds",
			Help:    "Duration of remote sync calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	RemoteSyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remote_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful remote sync",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "encounters", "memory"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordStorageOp records one engine operation with its outcome.
func RecordStorageOp(engine, operation string, duration time.Duration, err error) {
	StorageOps.WithLabelValues(engine, operation).Inc()
	StorageOpDuration.WithLabelValues(engine, operation).Observe(duration.Seconds())
	if err != nil {
		StorageErrors.WithLabelValues(engine, operation, classifyStorageError(err)).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRemoteSync records a remote sync call and its outcome.
func RecordRemoteSync(operation string, duration time.Duration, err error) {
	RemoteSyncDuration.Observe(duration.Seconds())
	if err != nil {
		RemoteSyncTotal.WithLabelValues(operation, "failure").Inc()
		return
	}
	RemoteSyncTotal.WithLabelValues(operation, "success").Inc()
	RemoteSyncLastSuccess.Set(float64(time.Now().Unix()))
}

func classifyStorageError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "quota"):
		return "quota"
	case strings.Contains(msg, "not found"):
		return "not_found"
	default:
		return "other"
	}
}
