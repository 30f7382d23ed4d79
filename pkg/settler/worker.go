package settler

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/solverhq/solana-settler/pkg/metrics"
	"github.com/solverhq/solana-settler/pkg/models"
)

// worker processes intents from the job queue
func (s *Service) worker(ctx context.Context, id int) {
	s.logger.Debug("Starting worker %d", id)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker %d shutting down", id)
			return
		case job, ok := <-s.pendingJobs:
			if !ok {
				s.logger.Debug("Worker %d shutting down: channel closed", id)
				return
			}
			s.processJob(ctx, id, job)
			s.wg.Done()
		}
	}
}

func (s *Service) processJob(ctx context.Context, id int, job models.RetryJob) {
	intent := job.Intent

	// Breaker state may have changed between queueing and pickup.
	if cb, ok := s.breakers[intent.DestinationChain]; ok && cb.IsEnabled() && cb.IsOpen() {
		failureCount, lastFailure, _, _ := cb.GetState()
		s.logger.InfoWithDomain(intent.DestinationChain,
			"Worker %d: circuit open for %s (last failure %v, count %d), skipping intent %s",
			id, intent.DestinationChain, lastFailure, failureCount, intent.ID)
		s.release(intent.ID)
		return
	}

	mode := intent.Mode()
	s.logger.InfoWithDomain(intent.DestinationChain, "Worker %d processing intent %s (%s -> %s, out: %s)",
		id, intent.ID, intent.SourceChain, intent.DestinationChain, intent.AmountOut)

	startTime := time.Now()
	_, err := s.orchestrator.SettleIntent(ctx, intent)
	metrics.IntentProcessingTime.WithLabelValues(mode.String()).Observe(time.Since(startTime).Seconds())

	if err == nil {
		s.logger.InfoWithDomain(intent.DestinationChain, "Worker %d settled intent %s", id, intent.ID)
		metrics.IntentsSettled.WithLabelValues(mode.String(), "success").Inc()
		if cb, ok := s.breakers[intent.DestinationChain]; ok {
			cb.RecordSuccess()
		}
		s.release(intent.ID)
		return
	}

	shouldRetry, errorType := classifyError(err)
	s.logger.ErrorWithDomain(intent.DestinationChain, "Worker %d: intent %s failed: %v (type: %s, retry: %v)",
		id, intent.ID, err, errorType, shouldRetry)
	metrics.SettlementErrors.WithLabelValues(mode.String(), errorType).Inc()

	// The program already recorded this intent; from the solver's side
	// that is a success, just one it did not get credit for.
	if errorType == "already_settled" {
		s.logger.InfoWithDomain(intent.DestinationChain, "Intent %s was already settled, marking done", intent.ID)
		metrics.IntentsSettled.WithLabelValues(mode.String(), "success").Inc()
		s.release(intent.ID)
		return
	}

	circuitTripped := false
	if cb, ok := s.breakers[intent.DestinationChain]; ok {
		circuitTripped = cb.RecordFailure()
		if circuitTripped {
			failureCount, _, failureWindow, _ := cb.GetState()
			s.logger.Error("Circuit breaker tripped for %s: %d failures in %v",
				intent.DestinationChain, failureCount, failureWindow)
		}
	}

	metrics.IntentsSettled.WithLabelValues(mode.String(), "failed").Inc()

	switch {
	case shouldRetry && circuitTripped:
		s.logger.Info("Skipping retry for intent %s: circuit breaker tripped", intent.ID)
		s.release(intent.ID)
	case !shouldRetry:
		metrics.PermanentErrors.WithLabelValues(mode.String(), errorType).Inc()
		s.release(intent.ID)
	case job.RetryCount >= s.config.MaxRetries:
		s.logger.Error("Max retries reached for intent %s, giving up (error: %s)", intent.ID, errorType)
		metrics.MaxRetriesReached.WithLabelValues(intent.DestinationChain, errorType).Inc()
		s.release(intent.ID)
	default:
		s.scheduleRetry(job, errorType)
	}
}

// scheduleRetry queues the whole intent for a fresh orchestration run after
// an exponential backoff. Only failures before the settlement call ever
// reach here; a retried intent starts over from its first phase.
func (s *Service) scheduleRetry(job models.RetryJob, errorType string) {
	backoff := time.Duration(math.Pow(2, float64(job.RetryCount))) * 10 * time.Second
	if maxBackoff := 2 * time.Minute; backoff > maxBackoff {
		backoff = maxBackoff
	}

	retryJob := models.RetryJob{
		Intent:      job.Intent,
		RetryCount:  job.RetryCount + 1,
		NextAttempt: time.Now().Add(backoff),
		ErrorType:   errorType,
	}

	metrics.RetryCount.WithLabelValues(job.Intent.DestinationChain).Inc()
	s.logger.Info("Scheduling retry #%d for intent %s in %v (error: %s)",
		retryJob.RetryCount, job.Intent.ID, backoff, errorType)

	s.wg.Add(1)
	s.retryJobs <- retryJob
}

// classifyError maps a settlement failure to a retry decision. Only errors
// that provably precede the settlement call are retryable; everything
// ambiguous is treated as permanent so an intent never sees a second
// settlement submission.
func classifyError(err error) (shouldRetry bool, errorType string) {
	var escrowErr *models.EscrowCallError
	if errors.As(err, &escrowErr) {
		if models.IsDuplicateSettlement(escrowErr) {
			return false, "already_settled"
		}
		return false, "escrow_rejected"
	}

	var convErr *models.ConversionError
	if errors.As(err, &convErr) {
		if convErr.ManualRemediation {
			return false, "conversion_manual_remediation"
		}
		return false, "conversion_error"
	}

	var parseErr *models.ParseError
	if errors.As(err, &parseErr) {
		return false, "parse_error"
	}

	var quoteErr *models.QuoteUnavailableError
	if errors.As(err, &quoteErr) {
		return true, "quote_unavailable"
	}

	var providerErr *models.ProviderError
	if errors.As(err, &providerErr) {
		return true, "provider_error"
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, "cancelled"
	}

	return false, "unknown_error"
}

// retryHandler manages the retry queue
func (s *Service) retryHandler(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var retryQueue []models.RetryJob
	maxQueueSize := 1000

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.retryJobs:
			if !ok {
				return
			}
			if len(retryQueue) >= maxQueueSize {
				s.logger.Error("Retry queue at capacity (%d), dropping intent %s", maxQueueSize, job.Intent.ID)
				s.release(job.Intent.ID)
				s.wg.Done()
				continue
			}
			retryQueue = append(retryQueue, job)
			sort.Slice(retryQueue, func(i, j int) bool {
				return retryQueue[i].NextAttempt.Before(retryQueue[j].NextAttempt)
			})
		case <-ticker.C:
			now := time.Now()
			metrics.RetryQueueSize.Set(float64(len(retryQueue)))

			var remaining []models.RetryJob
			for _, job := range retryQueue {
				if job.NextAttempt.After(now) {
					remaining = append(remaining, job)
					continue
				}
				s.logger.Info("Retrying intent %s (attempt #%d, error type: %s)",
					job.Intent.ID, job.RetryCount, job.ErrorType)
				s.pendingJobs <- job
			}
			retryQueue = remaining
		}
	}
}
