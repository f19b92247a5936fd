// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package queryproc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName is the OTel tracer name for query-processing spans.
const tracerName = "susquery.queryproc"

// Package-level Prometheus metrics for the query pipeline.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// queryDuration measures end-to-end natural-language query processing.
	//
	// Labels:
	//   - status: "success" or "error"
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "susquery",
			Subsystem: "queryproc",
			Name:      "query_duration_seconds",
			Help:      "Duration of natural-language query processing in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	// queriesTotal counts processed queries by outcome.
	//
	// Labels:
	//   - status: "success" or "error"
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "susquery",
			Subsystem: "queryproc",
			Name:      "queries_total",
			Help:      "Total natural-language queries processed.",
		},
		[]string{"status"},
	)

	// sqlBlockedTotal counts statements refused by the safety validator.
	sqlBlockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "susquery",
			Subsystem: "queryproc",
			Name:      "sql_blocked_total",
			Help:      "Total SQL statements blocked by the safety validator.",
		},
	)

	// caseCorrectionsTotal counts queries rewritten by the city-name
	// normalizer and re-executed.
	caseCorrectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "susquery",
			Subsystem: "queryproc",
			Name:      "case_corrections_total",
			Help:      "Total queries re-executed after city-name case correction.",
		},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
