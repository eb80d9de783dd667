package game

import "StratEq/internal/domain/models"

// ScenarioLabel reduces per-actor dominant actions to one global label. Each
// actor contributes its capability weight (economic plus military power); an
// action wins global dominance when its weighted share exceeds half of the
// total weight, otherwise the scenario is Mixed. Pure and deterministic.
func ScenarioLabel(actors []models.Actor, dominant []models.Action) string {
	var weights [models.NumActions]float64
	var total float64
	for i, actor := range actors {
		w := actor.Caps.Weight()
		weights[dominant[i]] += w
		total += w
	}
	if total <= 0 {
		return models.ScenarioMixed
	}
	for a := models.Action(0); a < models.NumActions; a++ {
		if weights[a] > 0.5*total {
			return a.String()
		}
	}
	return models.ScenarioMixed
}
