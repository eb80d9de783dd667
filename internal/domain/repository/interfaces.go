package repository

import (
	"context"
	"time"

	"StratEq/internal/domain/models"
)

// FeatureStore is the market-data collaborator's storage face: per-date
// feature vectors persisted by the ingestion side, read-only here.
type FeatureStore interface {
	// Features returns the feature vector for a date, or an error wrapping
	// models.ErrDataUnavailable when the date has no usable row.
	Features(ctx context.Context, date time.Time) (*models.MarketFeatures, error)
	Health(ctx context.Context) error
	Close() error
}

// FeatureProvider is the cache-through view the engine consumes.
type FeatureProvider interface {
	Get(ctx context.Context, date time.Time) (*models.MarketFeatures, error)
}

// JobStore persists jobs keyed by id. Create and Update must be atomic so a
// worker writing progress never races a client polling status.
type JobStore interface {
	// Create persists a new job; models.ErrJobExists if the id is taken.
	Create(ctx context.Context, job *models.Job) error
	// Get returns a copy of the job; models.ErrJobNotFound if absent.
	Get(ctx context.Context, id string) (*models.Job, error)
	// Update applies fn to the stored job atomically. fn runs on a copy;
	// returning an error aborts the write.
	Update(ctx context.Context, id string, fn func(*models.Job) error) error
	// List returns copies of every stored job.
	List(ctx context.Context) ([]*models.Job, error)
	// DeleteOlderThan removes terminal jobs not updated since the cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// EventPublisher fans out job lifecycle transitions to external consumers
// (dashboards). Publishing is best-effort and must never fail a job.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event *models.Job) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordJobSubmitted(kind string)
	RecordJobFinished(kind, status string, seconds float64)
	RecordSolve(eqType string, iterations int, seconds float64)
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
	RecordError(kind string)
}
