package models

import "time"

// EquilibriumType selects the solver variant.
type EquilibriumType string

const (
	EquilibriumNash     EquilibriumType = "nash"
	EquilibriumBayesian EquilibriumType = "bayesian"
	EquilibriumRepeated EquilibriumType = "repeated_game"
)

// Valid reports whether the type names a known solver variant.
func (t EquilibriumType) Valid() bool {
	switch t {
	case EquilibriumNash, EquilibriumBayesian, EquilibriumRepeated:
		return true
	}
	return false
}

// MarketFeatures is the per-date feature vector consumed from the market-data
// collaborator: one trailing-return signal per actor plus global stress gauges.
type MarketFeatures struct {
	Date    time.Time          `json:"date"`
	Returns map[string]float64 `json:"returns"` // actor name -> trailing return
	Stress  float64            `json:"stress"`  // raw volatility-index level (VIX-like, ~10-40)
	Gold    float64            `json:"gold"`    // trailing gold return, flight-to-safety proxy
}

// PayoffMatrix maps (actor, own action) to a scalar payoff for one prediction
// date, under the mean-field opponent-stance assumption. Row order is the fixed
// actor order; entries for disallowed actions are zero and masked by the
// actor's allowed set.
type PayoffMatrix struct {
	Date    time.Time
	Actors  []Actor
	Payoffs [][]float64 // [actor][action]
}

// Clone deep-copies the matrix so a solver variant can perturb it freely.
func (m *PayoffMatrix) Clone() *PayoffMatrix {
	cp := &PayoffMatrix{Date: m.Date, Actors: m.Actors}
	cp.Payoffs = make([][]float64, len(m.Payoffs))
	for i, row := range m.Payoffs {
		cp.Payoffs[i] = append([]float64(nil), row...)
	}
	return cp
}

// Convergence carries the solver's fixed-point diagnostics.
type Convergence struct {
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"`
	Converged  bool    `json:"converged"`
}

// ScenarioMixed is the global label when no action reaches weighted dominance.
const ScenarioMixed = "Mixed"

// EquilibriumResult is the per-actor mixed-strategy profile for one date.
// Each row of Strategies sums to 1 and is zero outside the actor's allowed set.
type EquilibriumResult struct {
	Date        time.Time       `json:"date"`
	Type        EquilibriumType `json:"equilibrium_type"`
	Actors      []string        `json:"actors"`
	Strategies  [][]float64     `json:"strategies"` // [actor][action]
	Dominant    []Action        `json:"dominant_actions"`
	Scenario    string          `json:"global_scenario"`
	Convergence Convergence     `json:"convergence"`
}

// DominantOf returns the named actor's dominant action.
func (r *EquilibriumResult) DominantOf(actor string) (Action, bool) {
	for i, name := range r.Actors {
		if name == actor {
			return r.Dominant[i], true
		}
	}
	return 0, false
}

// RiskOff reports whether the global scenario maps to a risk-off market stance.
func (r *EquilibriumResult) RiskOff() bool {
	return r.Scenario == ActionHawkish.String() || r.Scenario == ActionMilitary.String()
}
