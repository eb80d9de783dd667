package game

import "StratEq/internal/domain/models"

// Scales the continuation value so the discount/(1-discount) horizon factor
// lands in the same magnitude range as the baseline payoffs.
const continuationWeight = 0.05

// solveRepeated values the future of each relationship: cooperative play
// (de-escalation) earns a continuation bonus proportional to
// discount/(1-discount), weighted by the actor's mean positive alliance
// strength, then the adjusted matrix is solved as a one-shot Nash game.
func solveRepeated(m *models.PayoffMatrix, graph *models.AllianceGraph, p Params) (*models.EquilibriumResult, error) {
	if err := validateMatrix(m); err != nil {
		return nil, err
	}
	horizon := p.Discount / (1.0 - p.Discount)

	adjusted := m.Clone()
	for i, actor := range adjusted.Actors {
		if !actor.AllowsAction(models.ActionDeescalate) {
			continue
		}
		var coop, count float64
		for _, e := range graph.Touching(actor.Name) {
			if e.Strength > 0 {
				coop += e.Strength
				count++
			}
		}
		if count > 0 {
			coop /= count
		}
		adjusted.Payoffs[i][models.ActionDeescalate] += continuationWeight * coop * horizon
	}

	res, err := solveNash(adjusted, graph, p)
	if err != nil {
		return nil, err
	}
	res.Type = models.EquilibriumRepeated
	return res, nil
}
