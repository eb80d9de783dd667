package game

import (
	"math/rand"

	"StratEq/internal/domain/models"
)

// solveBayesian models incomplete information: each draw perturbs every
// payoff entry with independent Gaussian noise scaled to a fixed fraction of
// the entry magnitude, solves Nash on the perturbed matrix, and the final
// strategies are the expectation over draws. The seed makes runs reproducible.
func solveBayesian(m *models.PayoffMatrix, graph *models.AllianceGraph, p Params) (*models.EquilibriumResult, error) {
	if err := validateMatrix(m); err != nil {
		return nil, err
	}
	draws := p.Draws
	if draws < 1 {
		draws = 1
	}
	rng := rand.New(rand.NewSource(p.Seed))

	n := len(m.Actors)
	mean := make([][]float64, n)
	for i := range mean {
		mean[i] = make([]float64, models.NumActions)
	}
	conv := models.Convergence{Converged: true}

	for d := 0; d < draws; d++ {
		perturbed := m.Clone()
		for i, actor := range perturbed.Actors {
			for _, a := range actor.Allowed {
				entry := perturbed.Payoffs[i][a]
				scale := p.Uncertainty * abs(entry)
				perturbed.Payoffs[i][a] = entry + rng.NormFloat64()*scale
			}
		}

		res, err := solveNash(perturbed, graph, p)
		if err != nil {
			return nil, err
		}
		for i := range mean {
			for _, a := range m.Actors[i].Allowed {
				mean[i][a] += res.Strategies[i][a]
			}
		}
		if res.Convergence.Iterations > conv.Iterations {
			conv.Iterations = res.Convergence.Iterations
		}
		if res.Convergence.Residual > conv.Residual {
			conv.Residual = res.Convergence.Residual
		}
		conv.Converged = conv.Converged && res.Convergence.Converged
	}

	for i, actor := range m.Actors {
		for _, a := range actor.Allowed {
			mean[i][a] /= float64(draws)
		}
		normalizeRow(mean[i], actor.Allowed)
	}

	return buildResult(m, models.EquilibriumBayesian, mean, conv), nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
