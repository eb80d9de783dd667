package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StratEq/internal/domain/models"
	"StratEq/internal/domain/repository"
	"StratEq/internal/game"
	"StratEq/pkg/logger"
	"StratEq/pkg/util"
)

// RiskOffThreshold is the raw stress-index level above which the following
// period counts as realized risk-off.
const RiskOffThreshold = 20.0

// ProgressFunc is invoked after each processed date with done/total counts.
// Returning an error aborts the run at the next checkpoint.
type ProgressFunc func(done, total int, step string) error

// Runner replays historical dates: builds the payoff matrix with data
// available as of each date, solves the equilibrium, and scores the global
// scenario against the realized market outcome of the following period.
type Runner struct {
	provider repository.FeatureProvider
	builder  *game.PayoffBuilder
	solver   *game.Solver
	logger   *logger.Logger
	metrics  repository.Metrics
}

func NewRunner(provider repository.FeatureProvider, builder *game.PayoffBuilder, solver *game.Solver, l *logger.Logger, m repository.Metrics) *Runner {
	return &Runner{provider: provider, builder: builder, solver: solver, logger: l, metrics: m}
}

// Run executes the backtest. A date with missing market data is a recoverable
// gap; the run fails only when every date in the range is unusable.
func (r *Runner) Run(ctx context.Context, spec models.BacktestSpec, progress ProgressFunc) (*models.BacktestResult, error) {
	if !spec.Type.Valid() {
		return nil, models.ConfigurationError("unknown equilibrium type %q", spec.Type)
	}
	if !spec.Frequency.Valid() {
		return nil, models.ConfigurationError("unknown sampling frequency %q", spec.Frequency)
	}
	dates, err := util.SampleDates(spec.Start, spec.End, string(spec.Frequency))
	if err != nil {
		return nil, models.ConfigurationError("%v", err)
	}
	if len(dates) == 0 {
		return nil, models.ConfigurationError("date range %s..%s contains no sample dates",
			spec.Start.Format(util.DateLayout), spec.End.Format(util.DateLayout))
	}

	r.logger.Info("backtest started",
		logger.String("start", spec.Start.Format(util.DateLayout)),
		logger.String("end", spec.End.Format(util.DateLayout)),
		logger.String("freq", string(spec.Frequency)),
		logger.Int("dates", len(dates)),
	)

	result := &models.BacktestResult{}
	total := len(dates)
	for idx, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := r.evaluateDate(ctx, date, spec)
		switch {
		case err == nil:
			result.Records = append(result.Records, *rec)
		case errors.Is(err, models.ErrDataUnavailable):
			result.SkippedDates = append(result.SkippedDates, date.Format(util.DateLayout))
			r.logger.Warn("backtest date skipped, market data unavailable",
				logger.String("date", date.Format(util.DateLayout)))
		default:
			return nil, fmt.Errorf("backtest date %s: %w", date.Format(util.DateLayout), err)
		}

		if progress != nil {
			step := fmt.Sprintf("processed %s (%d/%d)", date.Format(util.DateLayout), idx+1, total)
			if err := progress(idx+1, total, step); err != nil {
				return nil, err
			}
		}
	}

	if len(result.Records) == 0 {
		return nil, fmt.Errorf("%w: no usable dates in %s..%s",
			models.ErrDataUnavailable, spec.Start.Format(util.DateLayout), spec.End.Format(util.DateLayout))
	}

	summarize(result)
	r.logger.Info("backtest finished",
		logger.Int("evaluated", result.TotalWeeks),
		logger.Int("skipped", len(result.SkippedDates)),
		logger.Float64("accuracy", result.Accuracy),
	)
	return result, nil
}

// evaluateDate predicts one date and scores it against the following period.
// Only data available as of the sample date feeds the prediction; the outcome
// window is read separately so there is no lookahead in the matrix.
func (r *Runner) evaluateDate(ctx context.Context, date time.Time, spec models.BacktestSpec) (*models.BacktestRecord, error) {
	features, err := r.provider.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	matrix, err := r.builder.Build(features)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := r.solver.Solve(matrix, spec.Type)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordSolve(string(spec.Type), res.Convergence.Iterations, time.Since(start).Seconds())

	outcome, err := r.provider.Get(ctx, util.PeriodEnd(date, string(spec.Frequency)))
	if err != nil {
		return nil, err
	}
	realized := outcome.Stress > RiskOffThreshold

	rec := &models.BacktestRecord{
		Date:      date,
		Scenario:  res.Scenario,
		Dominant:  make([]string, len(res.Dominant)),
		RiskOff:   res.RiskOff(),
		Realized:  realized,
		Converged: res.Convergence.Converged,
	}
	for i, a := range res.Dominant {
		rec.Dominant[i] = a.String()
	}
	rec.Correct = rec.RiskOff == rec.Realized
	return rec, nil
}

func summarize(result *models.BacktestResult) {
	var correct, predOff, predOn, hitOff, hitOn int
	for _, rec := range result.Records {
		if rec.Correct {
			correct++
		}
		if rec.RiskOff {
			predOff++
			if rec.Realized {
				hitOff++
			}
		} else {
			predOn++
			if !rec.Realized {
				hitOn++
			}
		}
		if rec.Realized {
			result.RiskOffRealized++
		}
	}
	result.TotalWeeks = len(result.Records)
	result.Accuracy = float64(correct) / float64(result.TotalWeeks)
	result.RiskOffPredicted = predOff
	if predOff > 0 {
		result.HitRateRiskOff = float64(hitOff) / float64(predOff)
	}
	if predOn > 0 {
		result.HitRateRiskOn = float64(hitOn) / float64(predOn)
	}
}
