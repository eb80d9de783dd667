package models

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy. Configuration problems are terminal: the submission is
// rejected and must be changed before resubmitting. Data gaps are retryable.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrDataUnavailable = errors.New("market data unavailable")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobExists       = errors.New("job already exists")
	ErrJobTerminal     = errors.New("job is in a terminal state")
	ErrCancelled       = errors.New("job cancelled")
)

// ConfigurationError wraps ErrConfiguration with the offending detail.
func ConfigurationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// DataUnavailableError marks a missing market feature vector for a date.
func DataUnavailableError(date time.Time) error {
	return fmt.Errorf("%w: %s", ErrDataUnavailable, date.Format("2006-01-02"))
}

// JobExecutionError wraps any failure raised inside a job worker.
type JobExecutionError struct {
	JobID string
	Err   error
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("job %s execution failed: %v", e.JobID, e.Err)
}

func (e *JobExecutionError) Unwrap() error { return e.Err }

// Retryable classifies an error: true means resubmitting with the same or
// adjusted parameters may succeed; false means configuration must change.
func Retryable(err error) bool {
	if errors.Is(err, ErrConfiguration) {
		return false
	}
	if errors.Is(err, ErrDataUnavailable) || errors.Is(err, ErrCancelled) {
		return true
	}
	var jerr *JobExecutionError
	if errors.As(err, &jerr) {
		return Retryable(jerr.Err)
	}
	return true
}
