package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"StratEq/internal/backtest"
	"StratEq/internal/domain/models"
	"StratEq/internal/game"
	"StratEq/internal/sensitivity"
	"StratEq/pkg/logger"
	"StratEq/pkg/metrics"
)

type gatedProvider struct {
	mu     sync.Mutex
	gate   chan struct{} // nil means no gating
	stress float64
}

func (p *gatedProvider) Get(ctx context.Context, date time.Time) (*models.MarketFeatures, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &models.MarketFeatures{
		Date:    date,
		Returns: map[string]float64{"USA": -0.01, "China": -0.015},
		Stress:  p.stress,
		Gold:    0.03,
	}, nil
}

func (p *gatedProvider) open() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gate != nil {
		close(p.gate)
		p.gate = nil
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.Job
}

func (r *recordingPublisher) PublishJobEvent(_ context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, job.Clone())
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) statuses() []models.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.JobStatus, len(r.events))
	for i, e := range r.events {
		out[i] = e.Status
	}
	return out
}

func testOrchestrator(t *testing.T, provider *gatedProvider, store *MemoryStore, events *recordingPublisher) *Orchestrator {
	t.Helper()
	all := []models.Action{models.ActionHawkish, models.ActionDeescalate, models.ActionStimulus, models.ActionMilitary}
	caps := models.Capabilities{
		EconomicPower: 0.9, MilitaryPower: 1.0, DiplomaticInfluence: 0.5,
		DomesticStability: 0.5, ExportDependency: 0.1, EnergyDependency: 0.1,
	}
	profiles := []models.Profile{
		{Name: "USA", Caps: caps, Allowed: all},
		{Name: "China", Caps: caps, Allowed: all},
	}
	builder, err := game.NewPayoffBuilder(profiles, models.NewAllianceGraph(nil))
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	solver := game.NewSolver(builder.Graph(), game.DefaultParams())
	nop := logger.NewNop()
	runner := backtest.NewRunner(provider, builder, solver, nop, metrics.Noop{})
	engine := sensitivity.NewEngine(provider, builder, solver, nop, metrics.Noop{})

	cfg := Config{Workers: 2} // no GC loop in tests
	o := NewOrchestrator(cfg, store, events, runner, engine, nop, metrics.Noop{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func waitTerminal(t *testing.T, o *Orchestrator, id string) *models.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := o.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func backtestParams() models.BacktestSpec {
	return models.BacktestSpec{
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Frequency: models.FreqWeekly,
		Type:      models.EquilibriumNash,
	}
}

func TestSubmitBacktestRunsToCompletion(t *testing.T) {
	provider := &gatedProvider{stress: 35.0}
	events := &recordingPublisher{}
	o := testOrchestrator(t, provider, NewMemoryStore(), events)

	job, err := o.Submit(context.Background(), models.JobBacktest, backtestParams())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != models.JobPending {
		t.Errorf("submitted status = %s, want pending", job.Status)
	}

	final := waitTerminal(t, o, job.ID)
	if final.Status != models.JobCompleted {
		t.Fatalf("status = %s (error %q), want completed", final.Status, final.Error)
	}
	if final.Progress != 1 {
		t.Errorf("progress = %v, want 1", final.Progress)
	}

	var result models.BacktestResult
	if err := json.Unmarshal(final.Result, &result); err != nil {
		t.Fatalf("result decode: %v", err)
	}
	if result.TotalWeeks != 13 || result.Accuracy != 1.0 {
		t.Errorf("result = %d weeks, accuracy %v", result.TotalWeeks, result.Accuracy)
	}

	statuses := events.statuses()
	if len(statuses) < 3 {
		t.Fatalf("published %d events, want at least pending/running/completed", len(statuses))
	}
	if statuses[0] != models.JobPending || statuses[len(statuses)-1] != models.JobCompleted {
		t.Errorf("event statuses = %v", statuses)
	}
}

func TestSubmitSensitivityRunsToCompletion(t *testing.T) {
	provider := &gatedProvider{stress: 28.0}
	o := testOrchestrator(t, provider, NewMemoryStore(), &recordingPublisher{})

	params := models.SensitivitySpec{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		NoiseLevels: []float64{0.0, 0.2},
		Trials:      5,
		Seed:        1,
	}
	job, err := o.Submit(context.Background(), models.JobSensitivity, params)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitTerminal(t, o, job.ID)
	if final.Status != models.JobCompleted {
		t.Fatalf("status = %s (error %q), want completed", final.Status, final.Error)
	}
	var result models.SensitivityResult
	if err := json.Unmarshal(final.Result, &result); err != nil {
		t.Fatalf("result decode: %v", err)
	}
	if len(result.Levels) != 2 {
		t.Errorf("levels = %d, want 2", len(result.Levels))
	}
}

func TestSubmitRejectsInvalidParams(t *testing.T) {
	o := testOrchestrator(t, &gatedProvider{stress: 20}, NewMemoryStore(), &recordingPublisher{})

	bad := backtestParams()
	bad.Frequency = "hourly"
	if _, err := o.Submit(context.Background(), models.JobBacktest, bad); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("bad frequency: got %v", err)
	}

	inverted := backtestParams()
	inverted.Start, inverted.End = inverted.End, inverted.Start
	if _, err := o.Submit(context.Background(), models.JobBacktest, inverted); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("inverted range: got %v", err)
	}

	if _, err := o.Submit(context.Background(), "transmute", backtestParams()); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("unknown kind: got %v", err)
	}

	if _, err := o.Submit(context.Background(), models.JobSensitivity, backtestParams()); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("mismatched params: got %v", err)
	}
}

func TestCancelRunningJob(t *testing.T) {
	provider := &gatedProvider{stress: 35.0, gate: make(chan struct{})}
	o := testOrchestrator(t, provider, NewMemoryStore(), &recordingPublisher{})

	job, err := o.Submit(context.Background(), models.JobBacktest, backtestParams())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Wait until the worker holds the job, then flag it and unblock the data
	// source; the first checkpoint must observe the flag.
	deadline := time.Now().Add(5 * time.Second)
	for {
		cur, err := o.Status(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if cur.Status == models.JobRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never started running")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := o.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	provider.open()

	final := waitTerminal(t, o, job.ID)
	if final.Status != models.JobCancelled {
		t.Fatalf("status = %s, want cancelled", final.Status)
	}
	if !final.CancelRequested {
		t.Error("cancel_requested flag not persisted")
	}
}

func TestShutdownFailsInFlightJobs(t *testing.T) {
	provider := &gatedProvider{stress: 35.0, gate: make(chan struct{})}
	o := testOrchestrator(t, provider, NewMemoryStore(), &recordingPublisher{})

	job, err := o.Submit(context.Background(), models.JobBacktest, backtestParams())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		cur, err := o.Status(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if cur.Status == models.JobRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never started running")
		}
		time.Sleep(2 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// A shutdown interrupt is a failure; cancelled is reserved for client
	// requests.
	final, err := o.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if final.Status != models.JobFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if final.Error != "interrupted by shutdown" {
		t.Errorf("error = %q, want interrupted by shutdown", final.Error)
	}
}

func TestCancelErrors(t *testing.T) {
	provider := &gatedProvider{stress: 35.0}
	o := testOrchestrator(t, provider, NewMemoryStore(), &recordingPublisher{})

	if err := o.Cancel(context.Background(), "no-such-job"); !errors.Is(err, models.ErrJobNotFound) {
		t.Errorf("unknown id: got %v", err)
	}

	job, err := o.Submit(context.Background(), models.JobBacktest, backtestParams())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, o, job.ID)
	if err := o.Cancel(context.Background(), job.ID); !errors.Is(err, models.ErrJobTerminal) {
		t.Errorf("terminal job: got %v", err)
	}
}

func TestStartFailsOrphanedJobs(t *testing.T) {
	store := NewMemoryStore()
	orphan, err := models.NewJob("orphan-1", models.JobBacktest, backtestParams())
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := store.Create(context.Background(), orphan); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Update(context.Background(), orphan.ID, func(j *models.Job) error {
		j.Status = models.JobRunning
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	o := testOrchestrator(t, &gatedProvider{stress: 20}, store, &recordingPublisher{})
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	job, err := o.Status(context.Background(), orphan.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if job.Status != models.JobFailed || job.Error != "interrupted by restart" {
		t.Errorf("orphan = %s (%q), want failed/interrupted", job.Status, job.Error)
	}
}

func TestMemoryStoreSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job, err := models.NewJob("j1", models.JobBacktest, backtestParams())
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, job); !errors.Is(err, models.ErrJobExists) {
		t.Errorf("duplicate create: got %v", err)
	}

	// An update whose fn errors must not leave partial writes behind.
	wantErr := errors.New("refused")
	err = store.Update(ctx, "j1", func(j *models.Job) error {
		j.Status = models.JobRunning
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("update: got %v", err)
	}
	got, err := store.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.JobPending {
		t.Errorf("aborted update leaked: status = %s", got.Status)
	}

	// Mutating a returned snapshot must not touch the stored copy.
	got.Status = models.JobFailed
	again, _ := store.Get(ctx, "j1")
	if again.Status != models.JobPending {
		t.Error("store returned an aliased job")
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, models.ErrJobNotFound) {
		t.Errorf("missing get: got %v", err)
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	old, _ := models.NewJob("old", models.JobBacktest, backtestParams())
	fresh, _ := models.NewJob("fresh", models.JobBacktest, backtestParams())
	live, _ := models.NewJob("live", models.JobBacktest, backtestParams())
	for _, j := range []*models.Job{old, fresh, live} {
		if err := store.Create(ctx, j); err != nil {
			t.Fatalf("create %s: %v", j.ID, err)
		}
	}
	for _, id := range []string{"old", "fresh"} {
		if err := store.Update(ctx, id, func(j *models.Job) error {
			j.Status = models.JobCompleted
			return nil
		}); err != nil {
			t.Fatalf("update %s: %v", id, err)
		}
	}
	if err := store.Update(ctx, "live", func(j *models.Job) error {
		j.Status = models.JobRunning
		return nil
	}); err != nil {
		t.Fatalf("update live: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	removed, err := store.DeleteOlderThan(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d, want 2 terminal jobs", removed)
	}
	if _, err := store.Get(ctx, "live"); err != nil {
		t.Error("running job must survive retention sweeps")
	}
}
