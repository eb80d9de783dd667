package sensitivity

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"StratEq/internal/domain/models"
	"StratEq/internal/domain/repository"
	"StratEq/internal/game"
	"StratEq/pkg/logger"
	"StratEq/pkg/util"
)

const (
	defaultTrials = 100
	maxTrials     = 10000

	// seedStride separates the RNG streams of adjacent noise levels so that
	// trial t of level k never shares a seed with any trial of level k+1.
	seedStride = 1_000_003
)

// ProgressFunc is invoked after each completed noise level.
type ProgressFunc func(done, total int, step string) error

// Engine measures how stable an equilibrium prediction is under payoff
// uncertainty: it re-solves the game many times with Gaussian noise injected
// into the payoff matrix and aggregates how often the baseline scenario
// survives at each noise level.
type Engine struct {
	provider repository.FeatureProvider
	builder  *game.PayoffBuilder
	solver   *game.Solver
	logger   *logger.Logger
	metrics  repository.Metrics
}

func NewEngine(provider repository.FeatureProvider, builder *game.PayoffBuilder, solver *game.Solver, l *logger.Logger, m repository.Metrics) *Engine {
	return &Engine{provider: provider, builder: builder, solver: solver, logger: l, metrics: m}
}

// DefaultNoiseLevels returns the standard sweep 0.0, 0.1, ..., 1.0.
func DefaultNoiseLevels() []float64 {
	levels := make([]float64, 11)
	for i := range levels {
		levels[i] = float64(i) / 10
	}
	return levels
}

// Run executes the sweep. Noise is scaled by the spread of the baseline
// matrix, so a level of 0.3 means perturbations of roughly 30% of the
// typical payoff magnitude regardless of the day's market regime.
func (e *Engine) Run(ctx context.Context, spec models.SensitivitySpec, progress ProgressFunc) (*models.SensitivityResult, error) {
	levels := spec.NoiseLevels
	if len(levels) == 0 {
		levels = DefaultNoiseLevels()
	}
	for _, lv := range levels {
		if lv < 0 {
			return nil, models.ConfigurationError("noise level %v is negative", lv)
		}
	}
	trials := spec.Trials
	if trials <= 0 {
		trials = defaultTrials
	}
	if trials > maxTrials {
		return nil, models.ConfigurationError("trials %d exceeds limit %d", trials, maxTrials)
	}

	features, err := e.provider.Get(ctx, spec.Date)
	if err != nil {
		return nil, err
	}
	baseMatrix, err := e.builder.Build(features)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	baseline, err := e.solver.Solve(baseMatrix, models.EquilibriumNash)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordSolve(string(models.EquilibriumNash), baseline.Convergence.Iterations, time.Since(start).Seconds())

	scale := payoffScale(baseMatrix)
	e.logger.Info("sensitivity sweep started",
		logger.String("date", spec.Date.Format(util.DateLayout)),
		logger.Int("levels", len(levels)),
		logger.Int("trials", trials),
		logger.Float64("payoff_scale", scale),
		logger.String("baseline", baseline.Scenario),
	)

	result := &models.SensitivityResult{
		Date:             spec.Date,
		BaselineScenario: baseline.Scenario,
		RobustUpTo:       -1,
	}
	for idx, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lr, err := e.runLevel(baseMatrix, level, trials, scale, spec.Seed+int64(idx)*seedStride)
		if err != nil {
			return nil, fmt.Errorf("noise level %v: %w", level, err)
		}
		result.Levels = append(result.Levels, *lr)

		if progress != nil {
			step := fmt.Sprintf("noise level %.2f (%d/%d)", level, idx+1, len(levels))
			if err := progress(idx+1, len(levels), step); err != nil {
				return nil, err
			}
		}
	}

	result.RobustUpTo = robustUpTo(result.BaselineScenario, levels, result.Levels)
	e.logger.Info("sensitivity sweep finished",
		logger.String("date", spec.Date.Format(util.DateLayout)),
		logger.Float64("robust_up_to", result.RobustUpTo),
	)
	return result, nil
}

func (e *Engine) runLevel(base *models.PayoffMatrix, level float64, trials int, scale float64, seed int64) (*models.SensitivityLevelResult, error) {
	sums := make(map[string][]float64, len(base.Actors))
	for _, a := range base.Actors {
		sums[a.Name] = make([]float64, models.NumActions)
	}
	share := make(map[string]float64)

	for trial := 0; trial < trials; trial++ {
		m := perturb(base, level, scale, seed+int64(trial))
		res, err := e.solver.Solve(m, models.EquilibriumNash)
		if err != nil {
			return nil, err
		}
		for ai, name := range res.Actors {
			row := sums[name]
			for i, p := range res.Strategies[ai] {
				row[i] += p
			}
		}
		share[res.Scenario]++
	}

	lr := &models.SensitivityLevelResult{
		NoiseLevel:    level,
		Trials:        trials,
		MeanProbs:     sums,
		ScenarioShare: share,
	}
	for _, row := range sums {
		for i := range row {
			row[i] /= float64(trials)
		}
	}
	for label := range share {
		share[label] /= float64(trials)
	}
	return lr, nil
}

// perturb adds N(0, level*scale) noise to every playable payoff entry.
// Masked entries stay zero so noise cannot resurrect a forbidden action.
func perturb(base *models.PayoffMatrix, level, scale float64, seed int64) *models.PayoffMatrix {
	m := base.Clone()
	if level == 0 {
		return m
	}
	rng := rand.New(rand.NewSource(seed))
	for i, actor := range m.Actors {
		for j := 0; j < models.NumActions; j++ {
			if !actor.AllowsAction(models.Action(j)) {
				continue
			}
			m.Payoffs[i][j] += rng.NormFloat64() * level * scale
		}
	}
	return m
}

// payoffScale is the noise unit: the larger of the matrix's standard
// deviation and mean magnitude over playable entries, floored at 1.
func payoffScale(m *models.PayoffMatrix) float64 {
	var sum, sumSq float64
	var n int
	for i, actor := range m.Actors {
		for j := 0; j < models.NumActions; j++ {
			if !actor.AllowsAction(models.Action(j)) {
				continue
			}
			v := m.Payoffs[i][j]
			sum += v
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return 1.0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Max(math.Max(math.Sqrt(variance), math.Abs(mean)), 1.0)
}

// robustUpTo scans the sweep in ascending noise order and returns the last
// level before the baseline scenario first loses its majority; -1 if it
// never holds one.
func robustUpTo(baseline string, levels []float64, results []models.SensitivityLevelResult) float64 {
	robust := -1.0
	for i, lr := range results {
		if lr.ScenarioShare[baseline] > 0.5 {
			robust = levels[i]
		} else {
			break
		}
	}
	return robust
}
