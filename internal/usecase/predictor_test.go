package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"StratEq/internal/domain/models"
	"StratEq/internal/game"
	"StratEq/pkg/logger"
	"StratEq/pkg/metrics"
)

type stubProvider struct {
	features *models.MarketFeatures
}

func (s *stubProvider) Get(_ context.Context, date time.Time) (*models.MarketFeatures, error) {
	if s.features == nil {
		return nil, models.DataUnavailableError(date)
	}
	return s.features, nil
}

func predictorFixture(t *testing.T, provider *stubProvider) *PredictorUseCase {
	t.Helper()
	all := []models.Action{models.ActionHawkish, models.ActionDeescalate, models.ActionStimulus, models.ActionMilitary}
	profiles := []models.Profile{
		{
			Name: "USA",
			Caps: models.Capabilities{
				EconomicPower: 1.0, MilitaryPower: 1.0, DiplomaticInfluence: 0.9,
				DomesticStability: 0.7, ExportDependency: 0.3, EnergyDependency: 0.2,
				ConstraintTolerance: 0.4,
			},
			Allowed: all,
		},
		{
			Name: "Taiwan",
			Caps: models.Capabilities{
				EconomicPower: 0.3, MilitaryPower: 0.2, DiplomaticInfluence: 0.3,
				DomesticStability: 0.7, ExportDependency: 0.9, EnergyDependency: 0.9,
				ConstraintTolerance: 0.6,
			},
			Allowed: []models.Action{models.ActionDeescalate, models.ActionStimulus},
		},
	}
	graph := models.NewAllianceGraph([]models.AllianceEdge{
		{Source: "USA", Target: "Taiwan", Strength: 0.85, Kind: "security"},
	})
	builder, err := game.NewPayoffBuilder(profiles, graph)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	solver := game.NewSolver(graph, game.DefaultParams())
	return NewPredictorUseCase(provider, builder, solver, logger.NewNop(), metrics.Noop{})
}

func TestPredictReturnsFullProfile(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	provider := &stubProvider{features: &models.MarketFeatures{
		Date:    date,
		Returns: map[string]float64{"USA": -0.01, "Taiwan": -0.03},
		Stress:  28.0,
		Gold:    0.02,
	}}
	uc := predictorFixture(t, provider)

	pred, err := uc.Predict(context.Background(), date, models.EquilibriumNash)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Date != "2024-03-15" {
		t.Errorf("date = %q", pred.Date)
	}
	if !pred.Market.RiskOff {
		t.Error("stress 28 must be flagged risk-off in market context")
	}
	if len(pred.Actors) != 2 {
		t.Fatalf("actors = %d, want 2", len(pred.Actors))
	}

	tw, ok := pred.Actors["Taiwan"]
	if !ok {
		t.Fatal("Taiwan missing from prediction")
	}
	if len(tw.Probabilities) != 2 {
		t.Errorf("Taiwan probabilities = %v, want its 2 allowed actions only", tw.Probabilities)
	}
	var sum float64
	for key, p := range tw.Probabilities {
		if key != "deescalate" && key != "stimulus" {
			t.Errorf("Taiwan has probability for forbidden action %q", key)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("Taiwan probabilities sum to %v", sum)
	}
	if tw.Explanation == "" || tw.Dominant == "" {
		t.Error("missing explanation or dominant action")
	}

	usa := pred.Actors["USA"]
	if len(usa.Probabilities) != 4 {
		t.Errorf("USA probabilities = %v, want all 4 actions", usa.Probabilities)
	}
}

func TestPredictRejectsUnknownType(t *testing.T) {
	uc := predictorFixture(t, &stubProvider{})
	_, err := uc.Predict(context.Background(), time.Now(), "minimax")
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPredictPropagatesMissingData(t *testing.T) {
	uc := predictorFixture(t, &stubProvider{})
	_, err := uc.Predict(context.Background(), time.Now(), models.EquilibriumNash)
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected data-unavailable, got %v", err)
	}
}
