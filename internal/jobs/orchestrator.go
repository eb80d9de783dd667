package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"StratEq/internal/backtest"
	"StratEq/internal/domain/models"
	"StratEq/internal/domain/repository"
	"StratEq/internal/sensitivity"
	"StratEq/pkg/logger"
)

// Config tunes the orchestrator pool.
type Config struct {
	Workers    int           // concurrent job executions
	GCInterval time.Duration // how often terminal jobs are swept
	Retention  time.Duration // how long terminal jobs stay pollable
}

func DefaultConfig() Config {
	return Config{
		Workers:    4,
		GCInterval: 10 * time.Minute,
		Retention:  24 * time.Hour,
	}
}

// Orchestrator runs backtest and sensitivity jobs asynchronously: submissions
// return immediately with a job id, a bounded worker pool executes them, and
// every state transition lands in the store before it is observable.
type Orchestrator struct {
	cfg       Config
	store     repository.JobStore
	events    repository.EventPublisher
	backtests *backtest.Runner
	sweeps    *sensitivity.Engine
	logger    *logger.Logger
	metrics   repository.Metrics

	sem  chan struct{}
	wg   sync.WaitGroup
	ctx  context.Context
	stop context.CancelFunc
}

func NewOrchestrator(cfg Config, store repository.JobStore, events repository.EventPublisher,
	backtests *backtest.Runner, sweeps *sensitivity.Engine, l *logger.Logger, m repository.Metrics) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		events:    events,
		backtests: backtests,
		sweeps:    sweeps,
		logger:    l,
		metrics:   m,
		sem:       make(chan struct{}, cfg.Workers),
		ctx:       ctx,
		stop:      cancel,
	}
}

// Start recovers orphaned jobs left behind by a previous process and launches
// the retention sweeper. Call once before accepting submissions.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.recoverOrphans(ctx); err != nil {
		return fmt.Errorf("orphan recovery: %w", err)
	}
	if o.cfg.GCInterval > 0 && o.cfg.Retention > 0 {
		o.wg.Add(1)
		go o.gcLoop()
	}
	return nil
}

// Shutdown stops accepting work and waits for running jobs to notice the
// cancellation, up to the context deadline.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stop()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates the parameters, persists a pending job, and hands it to
// the worker pool. The returned job is the pending snapshot.
func (o *Orchestrator) Submit(ctx context.Context, kind models.JobKind, params interface{}) (*models.Job, error) {
	if err := validateParams(kind, params); err != nil {
		return nil, err
	}

	job, err := models.NewJob(uuid.NewString(), kind, params)
	if err != nil {
		return nil, models.ConfigurationError("unencodable job parameters: %v", err)
	}
	if err := o.store.Create(ctx, job); err != nil {
		return nil, err
	}
	o.metrics.RecordJobSubmitted(string(kind))
	o.publish(job)
	o.logger.Info("job submitted",
		logger.String("job_id", job.ID),
		logger.String("kind", string(kind)),
	)

	o.wg.Add(1)
	go o.run(job.ID, kind)
	return job, nil
}

// Status returns the current snapshot of a job.
func (o *Orchestrator) Status(ctx context.Context, id string) (*models.Job, error) {
	return o.store.Get(ctx, id)
}

// List returns snapshots of all stored jobs.
func (o *Orchestrator) List(ctx context.Context) ([]*models.Job, error) {
	return o.store.List(ctx)
}

// Cancel requests cooperative cancellation. The worker observes the flag at
// its next checkpoint; a pending job is cancelled before it ever runs.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	err := o.store.Update(ctx, id, func(job *models.Job) error {
		if job.Status.Terminal() {
			return models.ErrJobTerminal
		}
		job.CancelRequested = true
		return nil
	})
	if err != nil {
		return err
	}
	o.logger.Info("job cancellation requested", logger.String("job_id", id))
	return nil
}

func validateParams(kind models.JobKind, params interface{}) error {
	switch kind {
	case models.JobBacktest:
		spec, ok := params.(models.BacktestSpec)
		if !ok {
			return models.ConfigurationError("backtest job needs backtest parameters")
		}
		if !spec.Type.Valid() {
			return models.ConfigurationError("unknown equilibrium type %q", spec.Type)
		}
		if !spec.Frequency.Valid() {
			return models.ConfigurationError("unknown sampling frequency %q", spec.Frequency)
		}
		if spec.End.Before(spec.Start) {
			return models.ConfigurationError("backtest end %s precedes start %s",
				spec.End.Format("2006-01-02"), spec.Start.Format("2006-01-02"))
		}
	case models.JobSensitivity:
		spec, ok := params.(models.SensitivitySpec)
		if !ok {
			return models.ConfigurationError("sensitivity job needs sensitivity parameters")
		}
		for _, lv := range spec.NoiseLevels {
			if lv < 0 {
				return models.ConfigurationError("noise level %v is negative", lv)
			}
		}
		if spec.Trials < 0 {
			return models.ConfigurationError("trials %d is negative", spec.Trials)
		}
	default:
		return models.ConfigurationError("unknown job kind %q", kind)
	}
	return nil
}

func (o *Orchestrator) run(id string, kind models.JobKind) {
	defer o.wg.Done()

	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-o.ctx.Done():
		o.finalize(id, kind, time.Now(), o.ctx.Err())
		return
	}

	started := time.Now()
	var cancelledEarly bool
	err := o.store.Update(o.ctx, id, func(job *models.Job) error {
		if job.CancelRequested {
			cancelledEarly = true
			return models.ErrCancelled
		}
		if job.Status != models.JobPending {
			return fmt.Errorf("job %s is %s, expected pending", id, job.Status)
		}
		job.Status = models.JobRunning
		return nil
	})
	if cancelledEarly {
		o.finalize(id, kind, started, models.ErrCancelled)
		return
	}
	if err != nil {
		o.finalize(id, kind, started, &models.JobExecutionError{JobID: id, Err: err})
		return
	}
	o.publishByID(id)

	result, execErr := o.execute(id, kind)
	if execErr != nil {
		o.finalize(id, kind, started, execErr)
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		o.finalize(id, kind, started, &models.JobExecutionError{JobID: id, Err: err})
		return
	}
	finErr := o.store.Update(o.ctx, id, func(job *models.Job) error {
		job.Status = models.JobCompleted
		job.Progress = 1
		job.Step = "done"
		job.Result = raw
		return nil
	})
	if finErr != nil {
		o.logger.Error("job completion write failed",
			logger.String("job_id", id), logger.Error(finErr))
	}
	o.metrics.RecordJobFinished(string(kind), string(models.JobCompleted), time.Since(started).Seconds())
	o.publishByID(id)
	o.logger.Info("job completed",
		logger.String("job_id", id),
		logger.Duration("elapsed", time.Since(started)),
	)
}

func (o *Orchestrator) execute(id string, kind models.JobKind) (interface{}, error) {
	job, err := o.store.Get(o.ctx, id)
	if err != nil {
		return nil, &models.JobExecutionError{JobID: id, Err: err}
	}

	progress := o.checkpoint(id)
	switch kind {
	case models.JobBacktest:
		var spec models.BacktestSpec
		if err := json.Unmarshal(job.Params, &spec); err != nil {
			return nil, &models.JobExecutionError{JobID: id, Err: err}
		}
		return o.backtests.Run(o.ctx, spec, backtest.ProgressFunc(progress))
	case models.JobSensitivity:
		var spec models.SensitivitySpec
		if err := json.Unmarshal(job.Params, &spec); err != nil {
			return nil, &models.JobExecutionError{JobID: id, Err: err}
		}
		return o.sweeps.Run(o.ctx, spec, sensitivity.ProgressFunc(progress))
	default:
		return nil, models.ConfigurationError("unknown job kind %q", kind)
	}
}

// checkpoint returns the progress callback for one job. Each call is a
// cancellation point: the progress write and the cancel-flag check happen in
// the same atomic store update.
func (o *Orchestrator) checkpoint(id string) func(done, total int, step string) error {
	return func(done, total int, step string) error {
		return o.store.Update(o.ctx, id, func(job *models.Job) error {
			if job.CancelRequested {
				return models.ErrCancelled
			}
			job.Progress = float64(done) / float64(total)
			job.Step = step
			return nil
		})
	}
}

func (o *Orchestrator) finalize(id string, kind models.JobKind, started time.Time, cause error) {
	status := models.JobFailed
	reason := cause.Error()
	switch {
	case errors.Is(cause, models.ErrCancelled):
		// Cancelled is reserved for client requests.
		status = models.JobCancelled
	case errors.Is(cause, context.Canceled):
		// Orchestrator shutdown, same policy as orphan recovery.
		reason = "interrupted by shutdown"
	}

	err := o.store.Update(context.Background(), id, func(job *models.Job) error {
		if job.Status.Terminal() {
			return models.ErrJobTerminal
		}
		job.Status = status
		if status == models.JobFailed {
			job.Error = reason
		}
		return nil
	})
	if err != nil && !errors.Is(err, models.ErrJobTerminal) {
		o.logger.Error("job finalize write failed",
			logger.String("job_id", id), logger.Error(err))
	}
	o.metrics.RecordJobFinished(string(kind), string(status), time.Since(started).Seconds())
	if status == models.JobFailed {
		o.metrics.RecordError("job_execution")
		o.logger.Error("job failed",
			logger.String("job_id", id),
			logger.Bool("retryable", models.Retryable(cause)),
			logger.Error(cause),
		)
	} else {
		o.logger.Info("job cancelled", logger.String("job_id", id))
	}
	o.publishByID(id)
}

// recoverOrphans fails jobs a dead process left non-terminal. Their workers
// are gone, so completing them is impossible; failing them keeps the status
// endpoint truthful.
func (o *Orchestrator) recoverOrphans(ctx context.Context) error {
	all, err := o.store.List(ctx)
	if err != nil {
		return err
	}
	var recovered int
	for _, job := range all {
		if job.Status.Terminal() {
			continue
		}
		err := o.store.Update(ctx, job.ID, func(j *models.Job) error {
			if j.Status.Terminal() {
				return models.ErrJobTerminal
			}
			j.Status = models.JobFailed
			j.Error = "interrupted by restart"
			return nil
		})
		if err != nil && !errors.Is(err, models.ErrJobTerminal) {
			return err
		}
		recovered++
	}
	if recovered > 0 {
		o.logger.Warn("orphaned jobs failed on startup", logger.Int("count", recovered))
	}
	return nil
}

func (o *Orchestrator) gcLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-o.cfg.Retention)
			removed, err := o.store.DeleteOlderThan(o.ctx, cutoff)
			if err != nil {
				o.logger.Error("job retention sweep failed", logger.Error(err))
				continue
			}
			if removed > 0 {
				o.logger.Info("expired jobs removed", logger.Int("count", removed))
			}
		}
	}
}

func (o *Orchestrator) publishByID(id string) {
	job, err := o.store.Get(context.Background(), id)
	if err != nil {
		return
	}
	o.publish(job)
}

func (o *Orchestrator) publish(job *models.Job) {
	if o.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.events.PublishJobEvent(ctx, job); err != nil {
		o.logger.Warn("job event publish failed",
			logger.String("job_id", job.ID), logger.Error(err))
	}
}
