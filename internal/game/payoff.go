package game

import (
	"math"

	"StratEq/internal/domain/models"
)

// Alliance multiplier table, indexed by action. An edge of strength s scales
// the action payoff by 1 + (mult-1)*|s|, compounding across edges.
var allyMultiplier = [models.NumActions]float64{
	models.ActionHawkish:    1.30,
	models.ActionDeescalate: 1.20,
	models.ActionStimulus:   1.15,
	models.ActionMilitary:   1.40,
}

var adversaryMultiplier = [models.NumActions]float64{
	models.ActionHawkish:    1.0,
	models.ActionDeescalate: 1.0,
	models.ActionStimulus:   1.0,
	models.ActionMilitary:   0.40,
}

// PayoffBuilder turns a market feature vector, static actor profiles and the
// alliance graph into a per-actor payoff matrix.
type PayoffBuilder struct {
	profiles []models.Profile
	graph    *models.AllianceGraph
}

// NewPayoffBuilder validates the static configuration once; builder errors
// are configuration errors and never reach the solver.
func NewPayoffBuilder(profiles []models.Profile, graph *models.AllianceGraph) (*PayoffBuilder, error) {
	if len(profiles) == 0 {
		return nil, models.ConfigurationError("no actor profiles configured")
	}
	known := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if len(p.Allowed) == 0 {
			return nil, models.ConfigurationError("actor %s has an empty allowed-action set", p.Name)
		}
		if known[p.Name] {
			return nil, models.ConfigurationError("duplicate actor %s", p.Name)
		}
		known[p.Name] = true
	}
	for _, e := range graph.Edges() {
		if !known[e.Source] || !known[e.Target] {
			return nil, models.ConfigurationError("alliance edge %s->%s references an unknown actor", e.Source, e.Target)
		}
	}
	return &PayoffBuilder{profiles: profiles, graph: graph}, nil
}

// Actors binds the static profiles to one date's market signals.
func (b *PayoffBuilder) Actors(features *models.MarketFeatures) []models.Actor {
	actors := make([]models.Actor, len(b.profiles))
	for i, p := range b.profiles {
		actors[i] = models.Actor{Profile: p, Signal: features.Returns[p.Name]}
	}
	return actors
}

// Profiles returns the static actor configuration in fixed order.
func (b *PayoffBuilder) Profiles() []models.Profile { return b.profiles }

// Graph returns the alliance graph.
func (b *PayoffBuilder) Graph() *models.AllianceGraph { return b.graph }

// Build computes the payoff matrix for one prediction date.
func (b *PayoffBuilder) Build(features *models.MarketFeatures) (*models.PayoffMatrix, error) {
	actors := b.Actors(features)

	var avg float64
	for _, a := range actors {
		avg += a.Signal
	}
	avg /= float64(len(actors))

	// Normalize the raw stress index: center at 20, scale by 10, clamp.
	stress := clamp((features.Stress-20.0)/10.0, -2.0, 2.0)
	gold := features.Gold

	m := &models.PayoffMatrix{Date: features.Date, Actors: actors}
	m.Payoffs = make([][]float64, len(actors))
	for i, actor := range actors {
		row := make([]float64, models.NumActions)
		for _, action := range actor.Allowed {
			p := b.baseline(actor, action, stress, gold, avg)
			p *= b.allianceFactor(actor.Name, action)
			if action.Aggressive() {
				p *= 1.0 - actor.Caps.ConstraintTolerance
			}
			row[action] = p
		}
		m.Payoffs[i] = row
	}
	return m, nil
}

// baseline is the capability-weighted payoff before alliance and constraint
// adjustments. Coefficients follow the qualitative rules: hawkishness rises
// with military power and market stress, stimulus with economic power and a
// falling market, de-escalation with export dependency under volatility.
func (b *PayoffBuilder) baseline(actor models.Actor, action models.Action, stress, gold, avg float64) float64 {
	caps := actor.Caps
	r := actor.Signal
	relPerf := r - avg

	switch action {
	case models.ActionHawkish:
		return 2.0*stress*caps.MilitaryPower +
			1.5*gold*caps.EconomicPower -
			0.8*math.Abs(r)*caps.ExportDependency +
			0.3*(avg-r)*caps.EconomicPower

	case models.ActionDeescalate:
		p := 1.5*r*caps.EconomicPower -
			1.2*stress*caps.ExportDependency +
			0.4*relPerf*caps.DiplomaticInfluence +
			0.3*caps.DomesticStability
		if stress > 0.5 {
			p += 1.0 * caps.ExportDependency
		}
		return p

	case models.ActionStimulus:
		p := 2.5*math.Max(0, -r)*caps.EconomicPower +
			1.2*r*caps.EconomicPower +
			0.5*caps.EconomicPower -
			0.3*caps.EnergyDependency*math.Abs(gold)
		if relPerf < -0.01 {
			p += 1.0 * caps.EconomicPower
		}
		return p

	case models.ActionMilitary:
		p := 3.0*stress*caps.MilitaryPower +
			2.0*gold*caps.MilitaryPower -
			1.5*math.Abs(r)*caps.ExportDependency -
			0.5*r*caps.EnergyDependency
		if stress > 1.0 && gold > 0.02 {
			p += 2.0 * caps.MilitaryPower
		} else {
			p -= 1.0 * (1.0 - caps.MilitaryPower)
		}
		return p
	}
	return 0
}

// allianceFactor compounds the per-action multiplier over every edge touching
// the actor, scaled by the edge strength magnitude.
func (b *PayoffBuilder) allianceFactor(name string, action models.Action) float64 {
	factor := 1.0
	for _, e := range b.graph.Touching(name) {
		s := e.Strength
		if s > 0 {
			factor *= 1.0 + (allyMultiplier[action]-1.0)*s
		} else if s < 0 {
			factor *= 1.0 + (adversaryMultiplier[action]-1.0)*(-s)
		}
	}
	return factor
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
