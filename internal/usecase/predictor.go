package usecase

import (
	"context"
	"fmt"
	"time"

	"StratEq/internal/domain/models"
	"StratEq/internal/domain/repository"
	"StratEq/internal/game"
	"StratEq/pkg/logger"
	"StratEq/pkg/util"
)

// PredictorUseCase serves the synchronous prediction path: one date, one
// equilibrium concept, full strategy profile with human-readable reasoning.
type PredictorUseCase struct {
	provider repository.FeatureProvider
	builder  *game.PayoffBuilder
	solver   *game.Solver
	logger   *logger.Logger
	metrics  repository.Metrics
	timeout  time.Duration
}

func NewPredictorUseCase(provider repository.FeatureProvider, builder *game.PayoffBuilder, solver *game.Solver, l *logger.Logger, m repository.Metrics) *PredictorUseCase {
	return &PredictorUseCase{
		provider: provider,
		builder:  builder,
		solver:   solver,
		logger:   l,
		metrics:  m,
		timeout:  30 * time.Second,
	}
}

// ActorPrediction is one actor's slice of the equilibrium.
type ActorPrediction struct {
	Dominant      string             `json:"dominant_action"`
	Probabilities map[string]float64 `json:"probabilities"` // action key -> probability
	Explanation   string             `json:"explanation"`
}

// MarketContext echoes the inputs the prediction was conditioned on.
type MarketContext struct {
	Stress    float64            `json:"stress"`
	RiskOff   bool               `json:"risk_off"`
	Gold      float64            `json:"gold"`
	AvgReturn float64            `json:"avg_return"`
	Returns   map[string]float64 `json:"returns"`
}

// Prediction is the full response for one date.
type Prediction struct {
	Date        string                     `json:"date"`
	Type        models.EquilibriumType     `json:"equilibrium_type"`
	Scenario    string                     `json:"global_scenario"`
	RiskOff     bool                       `json:"predicted_risk_off"`
	Actors      map[string]ActorPrediction `json:"actors"`
	Market      MarketContext              `json:"market"`
	Convergence models.Convergence         `json:"convergence"`
}

// Predict builds the payoff matrix for the date and solves the equilibrium.
func (uc *PredictorUseCase) Predict(ctx context.Context, date time.Time, typ models.EquilibriumType) (*Prediction, error) {
	if !typ.Valid() {
		return nil, models.ConfigurationError("unknown equilibrium type %q", typ)
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	features, err := uc.provider.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	matrix, err := uc.builder.Build(features)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := uc.solver.Solve(matrix, typ)
	if err != nil {
		return nil, err
	}
	uc.metrics.RecordSolve(string(typ), res.Convergence.Iterations, time.Since(start).Seconds())
	uc.logger.Info("prediction solved",
		logger.String("date", date.Format(util.DateLayout)),
		logger.String("type", string(typ)),
		logger.String("scenario", res.Scenario),
		logger.Int("iterations", res.Convergence.Iterations),
	)

	return uc.assemble(matrix, features, res), nil
}

func (uc *PredictorUseCase) assemble(matrix *models.PayoffMatrix, features *models.MarketFeatures, res *models.EquilibriumResult) *Prediction {
	var avg float64
	for _, r := range features.Returns {
		avg += r
	}
	if len(features.Returns) > 0 {
		avg /= float64(len(features.Returns))
	}

	pred := &Prediction{
		Date:        res.Date.Format(util.DateLayout),
		Type:        res.Type,
		Scenario:    res.Scenario,
		RiskOff:     res.RiskOff(),
		Actors:      make(map[string]ActorPrediction, len(res.Actors)),
		Convergence: res.Convergence,
		Market: MarketContext{
			Stress:    features.Stress,
			RiskOff:   features.Stress > 20.0,
			Gold:      features.Gold,
			AvgReturn: avg,
			Returns:   features.Returns,
		},
	}
	for i, name := range res.Actors {
		actor := matrix.Actors[i]
		probs := make(map[string]float64, len(actor.Allowed))
		for _, a := range actor.Allowed {
			probs[a.Key()] = res.Strategies[i][a]
		}
		dominant := res.Dominant[i]
		pred.Actors[name] = ActorPrediction{
			Dominant:      dominant.String(),
			Probabilities: probs,
			Explanation:   explain(actor, dominant, res.Strategies[i][dominant], features),
		}
	}
	return pred
}

// explain states in one sentence why the dominant action fits the actor's
// capabilities under the date's market conditions.
func explain(actor models.Actor, dominant models.Action, prob float64, features *models.MarketFeatures) string {
	var driver string
	switch dominant {
	case models.ActionHawkish:
		if features.Stress > 20.0 {
			driver = fmt.Sprintf("elevated market stress (%.1f) rewards pressure tactics", features.Stress)
		} else {
			driver = "safe-haven flows reward pressure tactics"
		}
		if actor.Caps.MilitaryPower >= 0.7 {
			driver += " backed by strong military capability"
		}
	case models.ActionDeescalate:
		if actor.Caps.ExportDependency >= 0.5 {
			driver = fmt.Sprintf("high export dependency (%.2f) makes confrontation costly", actor.Caps.ExportDependency)
		} else {
			driver = "calm markets favor dialogue over confrontation"
		}
		if actor.Caps.DiplomaticInfluence >= 0.7 {
			driver += " and its diplomatic weight makes dialogue credible"
		}
	case models.ActionStimulus:
		if actor.Signal < 0 {
			driver = fmt.Sprintf("its market proxy is down (%.2f%%), favoring domestic support", actor.Signal*100)
		} else {
			driver = "economic capacity favors domestic stimulus"
		}
	case models.ActionMilitary:
		driver = fmt.Sprintf("acute stress (%.1f) and safe-haven demand reward force projection", features.Stress)
		if actor.Caps.MilitaryPower >= 0.7 {
			driver += " given its military advantage"
		}
	}
	return fmt.Sprintf("%s favors %s (p=%.2f): %s.", actor.Name, dominant.String(), prob, driver)
}
