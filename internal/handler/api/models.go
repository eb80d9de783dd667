package api

// PredictRequest parameterizes the synchronous prediction endpoint.
type PredictRequest struct {
	Date string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Type string `query:"type" json:"type" default:"nash" validate:"oneof=nash bayesian repeated_game"`
}

// BacktestRequest submits an asynchronous backtest job.
type BacktestRequest struct {
	Start     string `json:"start" validate:"required,datetime=2006-01-02"`
	End       string `json:"end" validate:"required,datetime=2006-01-02"`
	Frequency string `json:"frequency" default:"weekly" validate:"oneof=daily weekly monthly"`
	Type      string `json:"equilibrium_type" default:"nash" validate:"oneof=nash bayesian repeated_game"`
}

// SensitivityRequest submits an asynchronous Monte Carlo sweep job.
type SensitivityRequest struct {
	Date        string    `json:"date" validate:"required,datetime=2006-01-02"`
	NoiseLevels []float64 `json:"noise_levels" validate:"omitempty,dive,gte=0,lte=5"`
	Trials      int       `json:"trials" default:"100" validate:"gte=1,lte=10000"`
	Seed        int64     `json:"seed"`
}

// JobSubmitted is the accepted-response body for job submissions.
type JobSubmitted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}
