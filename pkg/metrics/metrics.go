package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settler_intents_settled_total",
		Help: "The total number of settled intents",
	}, []string{"domain_mode", "status"})

	IntentProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settler_intent_processing_seconds",
		Help:    "Time taken to process intents",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	}, []string{"domain_mode"})

	ConversionLegs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settler_conversion_legs_total",
		Help: "Conversion legs executed by direction and status",
	}, []string{"direction", "status"})

	SettlementErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settler_errors_total",
		Help: "Total number of errors by type",
	}, []string{"domain_mode", "error_type"})

	PermanentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settler_permanent_errors_total",
		Help: "Total number of permanent errors that won't be retried",
	}, []string{"domain_mode", "error_type"})

	PendingIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settler_pending_intents",
		Help: "The number of won intents waiting to be processed",
	})

	RetryCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settler_retry_count_total",
		Help: "The total number of whole-intent retries by destination chain",
	}, []string{"chain"})

	MaxRetriesReached = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settler_max_retries_reached_total",
		Help: "Number of intents that reached maximum retry attempts",
	}, []string{"chain", "error_type"})

	RetryQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settler_retry_queue_size",
		Help: "Current size of the retry queue",
	})

	ProfitAndLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settler_reference_asset_delta",
		Help: "Reference-asset delta of the last reconciled single-domain settlement",
	})

	TokenBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "settler_token_balance",
		Help: "Solver token balance by mint",
	}, []string{"mint"})
)
