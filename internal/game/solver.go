package game

import (
	"fmt"

	"StratEq/internal/domain/models"
)

// Params tunes the equilibrium solvers. All variants are pure functions of
// (matrix, params); the Bayesian variant additionally consumes Seed.
type Params struct {
	Tolerance     float64 // max unilateral improvement accepted as converged
	MaxIterations int
	LearningRate  float64
	Uncertainty   float64 // Bayesian: noise fraction of entry magnitude
	Draws         int     // Bayesian: perturbed draws averaged per solve
	Discount      float64 // repeated game: discount factor
	Seed          int64
}

// DefaultParams returns the production solver settings.
func DefaultParams() Params {
	return Params{
		Tolerance:     1e-6,
		MaxIterations: 5000,
		LearningRate:  0.1,
		Uncertainty:   0.2,
		Draws:         16,
		Discount:      0.95,
	}
}

// SolveFunc is one equilibrium concept: pure (matrix, params) -> result.
type SolveFunc func(m *models.PayoffMatrix, graph *models.AllianceGraph, p Params) (*models.EquilibriumResult, error)

// Solver dispatches per-equilibrium-type through a strategy table.
type Solver struct {
	graph  *models.AllianceGraph
	params Params
	table  map[models.EquilibriumType]SolveFunc
}

func NewSolver(graph *models.AllianceGraph, params Params) *Solver {
	return &Solver{
		graph:  graph,
		params: params,
		table: map[models.EquilibriumType]SolveFunc{
			models.EquilibriumNash:     solveNash,
			models.EquilibriumBayesian: solveBayesian,
			models.EquilibriumRepeated: solveRepeated,
		},
	}
}

// Solve runs the selected equilibrium concept against the matrix.
func (s *Solver) Solve(m *models.PayoffMatrix, typ models.EquilibriumType) (*models.EquilibriumResult, error) {
	fn, ok := s.table[typ]
	if !ok {
		return nil, models.ConfigurationError("unknown equilibrium type %q", typ)
	}
	return fn(m, s.graph, s.params)
}

// SolveSeeded runs with an explicit seed, for reproducible Monte Carlo trials.
func (s *Solver) SolveSeeded(m *models.PayoffMatrix, typ models.EquilibriumType, seed int64) (*models.EquilibriumResult, error) {
	fn, ok := s.table[typ]
	if !ok {
		return nil, models.ConfigurationError("unknown equilibrium type %q", typ)
	}
	p := s.params
	p.Seed = seed
	return fn(m, s.graph, p)
}

// Params returns the solver settings.
func (s *Solver) Params() Params { return s.params }

func validateMatrix(m *models.PayoffMatrix) error {
	if len(m.Actors) == 0 || len(m.Payoffs) != len(m.Actors) {
		return fmt.Errorf("malformed payoff matrix: %d actors, %d rows", len(m.Actors), len(m.Payoffs))
	}
	for _, a := range m.Actors {
		if len(a.Allowed) == 0 {
			return models.ConfigurationError("actor %s has an empty allowed-action set", a.Name)
		}
	}
	return nil
}
