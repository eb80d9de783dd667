package models

import (
	"encoding/json"
	"time"
)

// JobKind names the long-running computation a job executes.
type JobKind string

const (
	JobBacktest    JobKind = "backtest"
	JobSensitivity JobKind = "sensitivity"
)

// JobStatus is the job state machine: pending -> running -> terminal.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final and immutable.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Frequency is the backtest sampling frequency.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly" // Fridays
	FreqMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	return f == FreqDaily || f == FreqWeekly || f == FreqMonthly
}

// BacktestSpec parameterizes a historical backtest job.
type BacktestSpec struct {
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Frequency Frequency       `json:"frequency"`
	Type      EquilibriumType `json:"equilibrium_type"`
}

// SensitivitySpec parameterizes a Monte Carlo sensitivity job.
type SensitivitySpec struct {
	Date        time.Time `json:"date"`
	NoiseLevels []float64 `json:"noise_levels"`
	Trials      int       `json:"trials"`
	Seed        int64     `json:"seed"`
}

// BacktestRecord is one replayed date's prediction versus realized outcome.
type BacktestRecord struct {
	Date      time.Time `json:"date"`
	Scenario  string    `json:"predicted_scenario"`
	Dominant  []string  `json:"dominant_actions"`
	RiskOff   bool      `json:"predicted_risk_off"`
	Realized  bool      `json:"actual_risk_off"`
	Correct   bool      `json:"correct"`
	Converged bool      `json:"converged"`
}

// BacktestResult is the completed payload of a backtest job.
type BacktestResult struct {
	Records          []BacktestRecord `json:"records"`
	TotalWeeks       int              `json:"total_weeks"` // sampled dates actually evaluated
	SkippedDates     []string         `json:"skipped_dates,omitempty"`
	Accuracy         float64          `json:"accuracy"`
	RiskOffPredicted int              `json:"risk_off_predicted"`
	RiskOffRealized  int              `json:"risk_off_realized"`
	HitRateRiskOff   float64          `json:"hit_rate_risk_off"`
	HitRateRiskOn    float64          `json:"hit_rate_risk_on"`
}

// SensitivityLevelResult aggregates all trials at one noise level.
type SensitivityLevelResult struct {
	NoiseLevel float64 `json:"noise_level"`
	Trials     int     `json:"trials"`
	// MeanProbs[actor][action] is the mean equilibrium probability across trials.
	MeanProbs map[string][]float64 `json:"mean_probs"`
	// ScenarioShare[label] is the fraction of trials in which the label dominated.
	ScenarioShare map[string]float64 `json:"scenario_share"`
}

// SensitivityResult is the completed payload of a sensitivity job.
type SensitivityResult struct {
	Date             time.Time                `json:"date"`
	BaselineScenario string                   `json:"baseline_scenario"`
	Levels           []SensitivityLevelResult `json:"levels"`
	// RobustUpTo is the highest noise level at which the baseline scenario
	// still dominates more than half of the trials; -1 if never.
	RobustUpTo float64 `json:"robust_up_to"`
}

// Job is the durable entity behind a pollable long-running computation.
// Mutated only by its own worker; immutable once terminal.
type Job struct {
	ID              string          `json:"id"`
	Kind            JobKind         `json:"kind"`
	Status          JobStatus       `json:"status"`
	Params          json.RawMessage `json:"params"`
	Progress        float64         `json:"progress"` // [0,1], monotonically non-decreasing while running
	Step            string          `json:"current_step"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	CancelRequested bool            `json:"cancel_requested"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewJob builds a pending job with marshalled parameters.
func NewJob(id string, kind JobKind, params interface{}) (*Job, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		Kind:      kind,
		Status:    JobPending,
		Params:    raw,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone returns a deep copy so store reads never alias worker-owned state.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Params = append(json.RawMessage(nil), j.Params...)
	cp.Result = append(json.RawMessage(nil), j.Result...)
	return &cp
}
