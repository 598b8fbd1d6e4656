package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageRuns tracks stage executions by stage and outcome
	StageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizgen_stage_runs_total",
			Help: "Total number of pipeline stage runs",
		},
		[]string{"stage", "outcome"},
	)

	// StageDuration tracks stage execution time
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizgen_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"stage"},
	)

	// StageSkips counts duplicate triggers that lost the reservation race
	StageSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizgen_stage_skips_total",
			Help: "Total number of stage triggers skipped as already in flight",
		},
		[]string{"stage"},
	)

	// GeneratorCalls tracks LLM generation calls by outcome
	GeneratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizgen_generator_calls_total",
			Help: "Total number of question generator calls",
		},
		[]string{"outcome"},
	)

	// GeneratorLatency tracks LLM call latency
	GeneratorLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quizgen_generator_latency_seconds",
			Help:    "Question generator call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// QuestionsRejected counts questions dropped by validation
	QuestionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizgen_questions_rejected_total",
			Help: "Total number of generated questions rejected",
		},
		[]string{"reason"},
	)

	// CanvasCalls tracks Canvas API calls
	CanvasCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizgen_canvas_calls_total",
			Help: "Total number of Canvas API calls",
		},
		[]string{"operation", "outcome"},
	)

	// QueueDepth tracks pending jobs per stage queue
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quizgen_queue_depth",
			Help: "Pending jobs in the stage trigger queue",
		},
		[]string{"stage"},
	)

	// DBTxRetries counts retried transactions per operation
	DBTxRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizgen_db_tx_retries_total",
			Help: "Total number of database transaction retries",
		},
		[]string{"operation"},
	)

	// DBBatchSize tracks batch write sizes
	DBBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizgen_db_batch_size",
			Help:    "Number of rows per batch write",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
		[]string{"operation"},
	)

	// DBConnectionPoolUsage tracks connection pool utilization percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quizgen_db_pool_usage_percent",
			Help: "Database connection pool utilization percentage",
		},
	)
)
