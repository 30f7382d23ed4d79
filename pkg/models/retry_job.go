package models

import (
	"time"
)

// RetryJob represents a whole-intent resubmission scheduled after a
// retryable pre-settlement failure. Intents whose settlement call was
// already attempted are never queued here.
type RetryJob struct {
	Intent      Intent
	RetryCount  int
	NextAttempt time.Time
	ErrorType   string // Type of error that caused the retry
}
