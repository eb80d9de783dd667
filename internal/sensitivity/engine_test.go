package sensitivity

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"StratEq/internal/domain/models"
	"StratEq/internal/game"
	"StratEq/pkg/logger"
	"StratEq/pkg/metrics"
)

type fixedProvider struct {
	features *models.MarketFeatures
}

func (f *fixedProvider) Get(_ context.Context, date time.Time) (*models.MarketFeatures, error) {
	if f.features == nil {
		return nil, models.DataUnavailableError(date)
	}
	return f.features, nil
}

func testDate() time.Time {
	return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
}

func testEngine(t *testing.T, provider *fixedProvider) *Engine {
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
			Name: "China",
			Caps: models.Capabilities{
				EconomicPower: 0.85, MilitaryPower: 0.8, DiplomaticInfluence: 0.7,
				DomesticStability: 0.8, ExportDependency: 0.6, EnergyDependency: 0.7,
				ConstraintTolerance: 0.2,
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
		{Source: "China", Target: "USA", Strength: -0.6, Kind: "rivalry"},
		{Source: "China", Target: "Taiwan", Strength: -0.8, Kind: "territorial"},
	})
	builder, err := game.NewPayoffBuilder(profiles, graph)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	solver := game.NewSolver(graph, game.DefaultParams())
	return NewEngine(provider, builder, solver, logger.NewNop(), metrics.Noop{})
}

func stressedProvider() *fixedProvider {
	return &fixedProvider{features: &models.MarketFeatures{
		Date:    testDate(),
		Returns: map[string]float64{"USA": -0.012, "China": -0.02, "Taiwan": -0.03},
		Stress:  28.0,
		Gold:    0.025,
	}}
}

func TestRunZeroNoiseMatchesBaseline(t *testing.T) {
	e := testEngine(t, stressedProvider())
	spec := models.SensitivitySpec{
		Date:        testDate(),
		NoiseLevels: []float64{0.0},
		Trials:      5,
		Seed:        7,
	}
	result, err := e.Run(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Levels) != 1 {
		t.Fatalf("levels = %d, want 1", len(result.Levels))
	}
	lv := result.Levels[0]
	if share := lv.ScenarioShare[result.BaselineScenario]; share != 1.0 {
		t.Errorf("zero-noise baseline share = %v, want 1.0", share)
	}
	if result.RobustUpTo != 0.0 {
		t.Errorf("robust_up_to = %v, want 0.0", result.RobustUpTo)
	}
	for actor, probs := range lv.MeanProbs {
		var sum float64
		for _, p := range probs {
			if p < 0 {
				t.Errorf("%s has negative mean probability %v", actor, p)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("%s mean probs sum to %v", actor, sum)
		}
	}

	// Without noise every trial solves the unperturbed matrix, so the mean
	// strategies must reproduce a direct solve. Tolerance covers the one-ulp
	// drift from summing N identical values and dividing by N.
	features, err := e.provider.Get(context.Background(), testDate())
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	base, err := e.builder.Build(features)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	direct, err := e.solver.Solve(base, models.EquilibriumNash)
	if err != nil {
		t.Fatalf("direct solve: %v", err)
	}
	if direct.Scenario != result.BaselineScenario {
		t.Errorf("baseline scenario %q != direct solve scenario %q", result.BaselineScenario, direct.Scenario)
	}
	for ai, actor := range direct.Actors {
		mean, ok := lv.MeanProbs[actor]
		if !ok {
			t.Fatalf("no mean strategy for %s", actor)
		}
		for j, want := range direct.Strategies[ai] {
			if math.Abs(mean[j]-want) > 1e-9 {
				t.Errorf("%s action %d: mean %v, direct solve %v", actor, j, mean[j], want)
			}
		}
	}
}

func TestRunDefaultsSweepElevenLevels(t *testing.T) {
	e := testEngine(t, stressedProvider())
	spec := models.SensitivitySpec{Date: testDate(), Trials: 4, Seed: 11}
	result, err := e.Run(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Levels) != 11 {
		t.Fatalf("levels = %d, want 11", len(result.Levels))
	}
	for i, lv := range result.Levels {
		want := float64(i) / 10
		if math.Abs(lv.NoiseLevel-want) > 1e-12 {
			t.Errorf("level %d = %v, want %v", i, lv.NoiseLevel, want)
		}
		var total float64
		for _, share := range lv.ScenarioShare {
			total += share
		}
		if math.Abs(total-1.0) > 1e-9 {
			t.Errorf("level %v scenario shares sum to %v", lv.NoiseLevel, total)
		}
	}
}

func TestRunIsSeedReproducible(t *testing.T) {
	spec := models.SensitivitySpec{
		Date:        testDate(),
		NoiseLevels: []float64{0.2, 0.5},
		Trials:      10,
		Seed:        42,
	}
	first, err := testEngine(t, stressedProvider()).Run(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := testEngine(t, stressedProvider()).Run(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical seeds produced different sweeps")
	}
}

func TestRunRejectsBadSpec(t *testing.T) {
	e := testEngine(t, stressedProvider())

	spec := models.SensitivitySpec{Date: testDate(), NoiseLevels: []float64{-0.1}}
	if _, err := e.Run(context.Background(), spec, nil); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("negative noise: got %v", err)
	}

	spec = models.SensitivitySpec{Date: testDate(), Trials: maxTrials + 1}
	if _, err := e.Run(context.Background(), spec, nil); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("excess trials: got %v", err)
	}
}

func TestRunPropagatesMissingData(t *testing.T) {
	e := testEngine(t, &fixedProvider{})
	spec := models.SensitivitySpec{Date: testDate(), Trials: 2}
	if _, err := e.Run(context.Background(), spec, nil); !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected data-unavailable, got %v", err)
	}
}

func TestRunReportsProgressAndHonorsAbort(t *testing.T) {
	e := testEngine(t, stressedProvider())
	spec := models.SensitivitySpec{
		Date:        testDate(),
		NoiseLevels: []float64{0.0, 0.1, 0.2},
		Trials:      3,
	}

	var calls int
	if _, err := e.Run(context.Background(), spec, func(done, total int, step string) error {
		calls++
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		return nil
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 3 {
		t.Errorf("progress reported %d times, want 3", calls)
	}

	abort := errors.New("cancelled")
	_, err := e.Run(context.Background(), spec, func(done, total int, step string) error {
		if done == 2 {
			return abort
		}
		return nil
	})
	if !errors.Is(err, abort) {
		t.Fatalf("expected abort, got %v", err)
	}
}
