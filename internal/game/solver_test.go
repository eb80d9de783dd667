package game

import (
	"math"
	"testing"
	"time"

	"StratEq/internal/domain/models"
)

const probTolerance = 1e-6

func solveFixture(t *testing.T, typ models.EquilibriumType) *models.EquilibriumResult {
	t.Helper()
	b := testBuilder(t)
	m, err := b.Build(testFeatures(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	s := NewSolver(b.Graph(), DefaultParams())
	res, err := s.Solve(m, typ)
	if err != nil {
		t.Fatalf("solve %s: %v", typ, err)
	}
	return res
}

func TestSolveDistributionsAreValid(t *testing.T) {
	for _, typ := range []models.EquilibriumType{
		models.EquilibriumNash, models.EquilibriumBayesian, models.EquilibriumRepeated,
	} {
		t.Run(string(typ), func(t *testing.T) {
			res := solveFixture(t, typ)
			profiles := testProfiles()
			for i, row := range res.Strategies {
				var sum float64
				for a := models.Action(0); a < models.NumActions; a++ {
					p := row[a]
					if p < 0 {
						t.Errorf("%s: negative probability %v for %s", res.Actors[i], p, a)
					}
					if !profiles[i].AllowsAction(a) && p != 0 {
						t.Errorf("%s: probability %v for disallowed action %s", res.Actors[i], p, a)
					}
					sum += p
				}
				if math.Abs(sum-1.0) > probTolerance {
					t.Errorf("%s: probabilities sum to %v", res.Actors[i], sum)
				}
			}
		})
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	a := solveFixture(t, models.EquilibriumNash)
	b := solveFixture(t, models.EquilibriumNash)
	for i := range a.Strategies {
		for j := range a.Strategies[i] {
			if a.Strategies[i][j] != b.Strategies[i][j] {
				t.Fatalf("nash solve not deterministic at [%d][%d]", i, j)
			}
		}
	}
	if a.Scenario != b.Scenario {
		t.Fatalf("scenario differs: %q vs %q", a.Scenario, b.Scenario)
	}
}

func TestBayesianSeedReproducibility(t *testing.T) {
	b := testBuilder(t)
	m, err := b.Build(testFeatures(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	s := NewSolver(b.Graph(), DefaultParams())

	r1, err := s.SolveSeeded(m, models.EquilibriumBayesian, 42)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	r2, err := s.SolveSeeded(m, models.EquilibriumBayesian, 42)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	for i := range r1.Strategies {
		for j := range r1.Strategies[i] {
			if r1.Strategies[i][j] != r2.Strategies[i][j] {
				t.Fatalf("same seed produced different strategies at [%d][%d]", i, j)
			}
		}
	}
}

func TestRepeatedGameFavorsDeescalation(t *testing.T) {
	nash := solveFixture(t, models.EquilibriumNash)
	rep := solveFixture(t, models.EquilibriumRepeated)

	// USA carries strong positive alliance edges, so the continuation bonus
	// must not lower its de-escalation probability.
	if rep.Strategies[0][models.ActionDeescalate] < nash.Strategies[0][models.ActionDeescalate]-probTolerance {
		t.Errorf("repeated game lowered USA de-escalation: nash=%v repeated=%v",
			nash.Strategies[0][models.ActionDeescalate], rep.Strategies[0][models.ActionDeescalate])
	}
}

func TestExhaustedBudgetReturnsBestIterate(t *testing.T) {
	b := testBuilder(t)
	m, err := b.Build(testFeatures(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p := DefaultParams()
	p.MaxIterations = 2
	s := NewSolver(b.Graph(), p)

	res, err := s.Solve(m, models.EquilibriumNash)
	if err != nil {
		t.Fatalf("solver must not raise on budget exhaustion: %v", err)
	}
	if res.Convergence.Converged {
		t.Errorf("expected converged=false with a 2-iteration budget")
	}
	for i, row := range res.Strategies {
		var sum float64
		for _, p := range row {
			sum += p
		}
		if math.Abs(sum-1.0) > probTolerance {
			t.Errorf("row %d sums to %v on unconverged result", i, sum)
		}
	}
}

func TestUnknownEquilibriumType(t *testing.T) {
	b := testBuilder(t)
	m, _ := b.Build(testFeatures(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	s := NewSolver(b.Graph(), DefaultParams())
	if _, err := s.Solve(m, models.EquilibriumType("minimax")); err == nil {
		t.Fatal("expected error for unknown equilibrium type")
	}
}

func TestScenarioLabel(t *testing.T) {
	actors := []models.Actor{
		{Profile: models.Profile{Name: "A", Caps: models.Capabilities{EconomicPower: 0.9, MilitaryPower: 0.9}}},
		{Profile: models.Profile{Name: "B", Caps: models.Capabilities{EconomicPower: 0.2, MilitaryPower: 0.1}}},
		{Profile: models.Profile{Name: "C", Caps: models.Capabilities{EconomicPower: 0.2, MilitaryPower: 0.1}}},
	}

	tests := []struct {
		name     string
		dominant []models.Action
		want     string
	}{
		{
			name:     "heavyweight carries the label",
			dominant: []models.Action{models.ActionHawkish, models.ActionDeescalate, models.ActionStimulus},
			want:     models.ActionHawkish.String(),
		},
		{
			name:     "unanimous",
			dominant: []models.Action{models.ActionDeescalate, models.ActionDeescalate, models.ActionDeescalate},
			want:     models.ActionDeescalate.String(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScenarioLabel(actors, tt.dominant); got != tt.want {
				t.Errorf("ScenarioLabel = %q, want %q", got, tt.want)
			}
			// Identical input must always yield the identical label.
			if again := ScenarioLabel(actors, tt.dominant); again != ScenarioLabel(actors, tt.dominant) {
				t.Errorf("ScenarioLabel not deterministic: %q vs %q", again, ScenarioLabel(actors, tt.dominant))
			}
		})
	}
}

func TestScenarioLabelMixed(t *testing.T) {
	actors := []models.Actor{
		{Profile: models.Profile{Name: "A", Caps: models.Capabilities{EconomicPower: 0.5, MilitaryPower: 0.5}}},
		{Profile: models.Profile{Name: "B", Caps: models.Capabilities{EconomicPower: 0.5, MilitaryPower: 0.5}}},
	}
	// A 50/50 weight split never exceeds the strict majority threshold.
	got := ScenarioLabel(actors, []models.Action{models.ActionHawkish, models.ActionStimulus})
	if got != models.ScenarioMixed {
		t.Errorf("ScenarioLabel = %q, want %q", got, models.ScenarioMixed)
	}
}
