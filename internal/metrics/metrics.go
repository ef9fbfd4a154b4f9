/*
Copyright 2025 Trustline Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskAttemptsTotal counts handler executions, including retries.
	TaskAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_task_attempts_total",
			Help: "Total number of verification handler attempts.",
		},
		[]string{"type"},
	)

	// TaskSuccessTotal counts tasks that produced a result message.
	TaskSuccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_task_success_total",
			Help: "Total number of verification tasks completed successfully.",
		},
		[]string{"type"},
	)

	// TaskErrorsTotal counts terminal task failures by error code.
	TaskErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_task_errors_total",
			Help: "Total number of verification task failures.",
		},
		[]string{"type", "code"},
	)

	// DeadLetterTotal counts messages published to the dead-letter queue.
	DeadLetterTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_dead_letter_total",
			Help: "Total number of dead-lettered verification tasks.",
		},
		[]string{"topic"},
	)

	// CacheErrorsTotal counts cache failures downgraded to misses.
	CacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_cache_errors_total",
			Help: "Total number of cache failures treated as misses.",
		},
		[]string{"operation"},
	)

	// RecordsSweptTotal counts expired verification records physically deleted.
	RecordsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_records_swept_total",
			Help: "Total number of expired verification records deleted by the sweeper.",
		},
	)

	// TaskDurationSeconds observes end-to-end handler latency per type.
	TaskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verification_task_duration_seconds",
			Help:    "Verification handler duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)
