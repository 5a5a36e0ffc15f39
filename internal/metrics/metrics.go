// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

// Package metrics provides Prometheus instrumentation for the ranking
// pipeline, the feedback pipeline, retrieval channel health, and the API
// surface. All instruments are registered on the default registry and served
// on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ranking pipeline
	RankingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_requests_total",
			Help: "Total number of ranking requests",
		},
		[]string{"result"}, // "ok", "not_found", "error"
	)

	RankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_duration_seconds",
			Help:    "End-to-end ranking pipeline duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	RankingCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranking_candidates",
			Help:    "Candidate counts at pipeline stages",
			Buckets: []float64{0, 5, 10, 20, 40, 60, 100, 200},
		},
		[]string{"stage"}, // "vector", "llm", "fused", "returned"
	)

	// Retrieval channel health
	ChannelDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_channel_degraded_total",
			Help: "Total number of degraded retrieval channel calls (error or timeout)",
		},
		[]string{"channel"},
	)

	// Feedback pipeline
	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_events_total",
			Help: "Total number of accepted feedback events",
		},
		[]string{"is_relevant"},
	)

	ArmUpsertFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arm_upsert_failures_total",
			Help: "Total number of failed bandit arm writebacks",
		},
	)

	ArmsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandit_arms",
			Help: "Current number of bandit arms held in memory",
		},
	)

	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"query"},
	)

	// API surface
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
)

// RecordRanking observes one ranking request with its outcome and duration.
func RecordRanking(result string, duration time.Duration) {
	RankingsTotal.WithLabelValues(result).Inc()
	RankingDuration.Observe(duration.Seconds())
}

// RecordCandidates observes a candidate count at a pipeline stage.
func RecordCandidates(stage string, count int) {
	RankingCandidates.WithLabelValues(stage).Observe(float64(count))
}

// RecordChannelDegraded counts one degraded retrieval channel call.
func RecordChannelDegraded(channel string) {
	ChannelDegradedTotal.WithLabelValues(channel).Inc()
}

// RecordFeedback counts one accepted feedback event.
func RecordFeedback(isRelevant bool) {
	FeedbackTotal.WithLabelValues(strconv.FormatBool(isRelevant)).Inc()
}

// RecordDBQuery observes the duration of one named database query.
func RecordDBQuery(query string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// TimeDBQuery starts a timer for a named query. Call the returned function
// when the query completes, typically via defer.
func TimeDBQuery(query string) func() {
	start := time.Now()
	return func() {
		RecordDBQuery(query, time.Since(start))
	}
}

// RecordAPIRequest observes one completed HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
