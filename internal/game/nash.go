package game

import (
	"math"

	"StratEq/internal/domain/models"
)

// Mean-field interaction coefficients: playing into a crowded action is
// penalized, hawkish and de-escalation moves feed off each other.
const (
	crowdingPenalty  = 0.10
	hawkDoveCoupling = 0.15
)

// solveNash runs damped best-response iteration over each actor's mixed
// strategy. Opponents are summarized by an alliance-weighted average stance
// rather than the full joint profile, which keeps each sweep linear in the
// number of actors. Stops when no actor can improve expected payoff by more
// than the tolerance, or returns the best iterate with Converged=false once
// the iteration budget runs out.
func solveNash(m *models.PayoffMatrix, graph *models.AllianceGraph, p Params) (*models.EquilibriumResult, error) {
	if err := validateMatrix(m); err != nil {
		return nil, err
	}

	n := len(m.Actors)
	strategies := initialStrategies(m)
	lr := p.LearningRate

	var iter int
	residual := math.Inf(1)
	for iter = 0; iter < p.MaxIterations; iter++ {
		residual = 0
		for i := 0; i < n; i++ {
			utilities := expectedUtilities(m, graph, strategies, i)

			best, bestU := bestAllowed(m.Actors[i], utilities)
			var expU float64
			for _, a := range m.Actors[i].Allowed {
				expU += strategies[i][a] * utilities[a]
			}
			if gap := bestU - expU; gap > residual {
				residual = gap
			}

			// Damped move toward the best response, zero outside allowed.
			for _, a := range m.Actors[i].Allowed {
				target := 0.0
				if a == best {
					target = 1.0
				}
				strategies[i][a] = (1-lr)*strategies[i][a] + lr*target
			}
			normalizeRow(strategies[i], m.Actors[i].Allowed)
		}

		if residual <= p.Tolerance {
			iter++
			break
		}
		if iter > 0 && iter%500 == 0 {
			lr *= 0.95
		}
	}

	return buildResult(m, models.EquilibriumNash, strategies, models.Convergence{
		Iterations: iter,
		Residual:   residual,
		Converged:  residual <= p.Tolerance,
	}), nil
}

// expectedUtilities returns actor i's utility per action given the current
// strategy profile: base payoff plus the mean-field interaction term computed
// from the alliance-weighted average opponent stance.
func expectedUtilities(m *models.PayoffMatrix, graph *models.AllianceGraph, strategies [][]float64, i int) [models.NumActions]float64 {
	var agg [models.NumActions]float64
	var totalW float64
	for j := range m.Actors {
		if j == i {
			continue
		}
		// Allied opponents weigh heavier in the perceived aggregate stance.
		w := 1.0 + graph.Between(m.Actors[i].Name, m.Actors[j].Name)
		if w < 0.1 {
			w = 0.1
		}
		for a := 0; a < models.NumActions; a++ {
			agg[a] += w * strategies[j][a]
		}
		totalW += w
	}
	if totalW > 0 {
		for a := 0; a < models.NumActions; a++ {
			agg[a] /= totalW
		}
	}

	var utilities [models.NumActions]float64
	for _, a := range m.Actors[i].Allowed {
		u := m.Payoffs[i][a] - crowdingPenalty*agg[a]
		switch a {
		case models.ActionHawkish:
			u += hawkDoveCoupling * agg[models.ActionDeescalate]
		case models.ActionDeescalate:
			u += hawkDoveCoupling * agg[models.ActionHawkish]
		}
		utilities[a] = u
	}
	return utilities
}

// bestAllowed picks the highest-utility allowed action; ties break toward the
// lexicographically first action since Allowed is kept in ascending order.
func bestAllowed(actor models.Actor, utilities [models.NumActions]float64) (models.Action, float64) {
	best := actor.Allowed[0]
	bestU := utilities[best]
	for _, a := range actor.Allowed[1:] {
		if utilities[a] > bestU {
			best, bestU = a, utilities[a]
		}
	}
	return best, bestU
}

// initialStrategies seeds each actor with a softmax over its base payoffs,
// restricted to the allowed set.
func initialStrategies(m *models.PayoffMatrix) [][]float64 {
	strategies := make([][]float64, len(m.Actors))
	for i, actor := range m.Actors {
		row := make([]float64, models.NumActions)
		maxP := math.Inf(-1)
		for _, a := range actor.Allowed {
			if m.Payoffs[i][a] > maxP {
				maxP = m.Payoffs[i][a]
			}
		}
		var sum float64
		for _, a := range actor.Allowed {
			row[a] = math.Exp(2.0 * (m.Payoffs[i][a] - maxP))
			sum += row[a]
		}
		for _, a := range actor.Allowed {
			row[a] /= sum
		}
		strategies[i] = row
	}
	return strategies
}

func normalizeRow(row []float64, allowed []models.Action) {
	var sum float64
	for _, a := range allowed {
		if row[a] < 0 {
			row[a] = 0
		}
		sum += row[a]
	}
	if sum <= 0 {
		// Degenerate row; fall back to uniform over allowed.
		for _, a := range allowed {
			row[a] = 1.0 / float64(len(allowed))
		}
		return
	}
	for _, a := range allowed {
		row[a] /= sum
	}
}

func buildResult(m *models.PayoffMatrix, typ models.EquilibriumType, strategies [][]float64, conv models.Convergence) *models.EquilibriumResult {
	n := len(m.Actors)
	res := &models.EquilibriumResult{
		Date:        m.Date,
		Type:        typ,
		Actors:      make([]string, n),
		Strategies:  strategies,
		Dominant:    make([]models.Action, n),
		Convergence: conv,
	}
	for i, actor := range m.Actors {
		res.Actors[i] = actor.Name
		res.Dominant[i] = dominantAction(actor, strategies[i])
	}
	res.Scenario = ScenarioLabel(m.Actors, res.Dominant)
	return res
}

// dominantAction is the argmax over the allowed set with lexicographic
// tie-breaking by the fixed action order.
func dominantAction(actor models.Actor, row []float64) models.Action {
	best := actor.Allowed[0]
	for _, a := range actor.Allowed[1:] {
		if row[a] > row[best] {
			best = a
		}
	}
	return best
}
