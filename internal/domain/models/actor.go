package models

import "fmt"

// Action is a member of the fixed global action catalog.
type Action int

const (
	ActionHawkish Action = iota
	ActionDeescalate
	ActionStimulus
	ActionMilitary

	NumActions = 4
)

var actionNames = [NumActions]string{
	"Hawkish Rhetoric / Sanctions",
	"De-escalate / Dialogue",
	"Economic Stimulus",
	"Military Posturing",
}

var actionKeys = [NumActions]string{"hawkish", "deescalate", "stimulus", "military"}

func (a Action) String() string {
	if a < 0 || a >= NumActions {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// Key returns the short machine-readable name used in config and JSON.
func (a Action) Key() string {
	if a < 0 || a >= NumActions {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionKeys[a]
}

// Aggressive reports whether the action is subject to domestic constraint damping.
func (a Action) Aggressive() bool {
	return a == ActionHawkish || a == ActionMilitary
}

// ParseAction resolves a short action key.
func ParseAction(s string) (Action, error) {
	for i, k := range actionKeys {
		if k == s {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrConfiguration, s)
}

// Capabilities holds an actor's static capability vector, each dimension in [0,1].
type Capabilities struct {
	EconomicPower       float64 `yaml:"economic_power" json:"economic_power" validate:"gte=0,lte=1"`
	MilitaryPower       float64 `yaml:"military_power" json:"military_power" validate:"gte=0,lte=1"`
	DiplomaticInfluence float64 `yaml:"diplomatic_influence" json:"diplomatic_influence" validate:"gte=0,lte=1"`
	DomesticStability   float64 `yaml:"domestic_stability" json:"domestic_stability" validate:"gte=0,lte=1"`
	ExportDependency    float64 `yaml:"export_dependency" json:"export_dependency" validate:"gte=0,lte=1"`
	EnergyDependency    float64 `yaml:"energy_dependency" json:"energy_dependency" validate:"gte=0,lte=1"`
	TechLeadership      float64 `yaml:"tech_leadership" json:"tech_leadership" validate:"gte=0,lte=1"`
	AllianceStrength    float64 `yaml:"alliance_strength" json:"alliance_strength" validate:"gte=0,lte=1"`
	// ConstraintTolerance is high for actors with limited domestic latitude;
	// aggressive-action payoffs are damped by (1 - ConstraintTolerance).
	ConstraintTolerance float64 `yaml:"constraint_tolerance" json:"constraint_tolerance" validate:"gte=0,lte=1"`
}

// Weight is the actor's capability weight used by the scenario aggregator.
func (c Capabilities) Weight() float64 {
	return c.EconomicPower + c.MilitaryPower
}

// Profile is the static part of an actor: capabilities plus the allowed-action
// subset of the global catalog.
type Profile struct {
	Name    string
	Caps    Capabilities
	Allowed []Action // ascending action order, non-empty
}

// AllowsAction reports whether the action belongs to the profile's allowed set.
func (p Profile) AllowsAction(a Action) bool {
	for _, x := range p.Allowed {
		if x == a {
			return true
		}
	}
	return false
}

// Actor is a profile bound to one prediction date's market signal.
// Built once per date and immutable thereafter.
type Actor struct {
	Profile
	Signal float64 // trailing return of the actor's market proxy
}

// AllianceEdge is a directed, signed relationship between two actors.
// Strength is in [-1, 1]: positive for allies, negative for adversaries.
type AllianceEdge struct {
	Source   string  `yaml:"source" json:"source" validate:"required"`
	Target   string  `yaml:"target" json:"target" validate:"required"`
	Strength float64 `yaml:"strength" json:"strength" validate:"gte=-1,lte=1"`
	Kind     string  `yaml:"kind" json:"kind"` // military, economic, diplomatic
}

// AllianceGraph stores directed edges but answers symmetric queries.
type AllianceGraph struct {
	edges []AllianceEdge
}

func NewAllianceGraph(edges []AllianceEdge) *AllianceGraph {
	return &AllianceGraph{edges: edges}
}

// Between returns the signed strength between two actors, searching both
// directions. The first matching edge wins; zero means no relationship.
func (g *AllianceGraph) Between(a, b string) float64 {
	for _, e := range g.edges {
		if (e.Source == a && e.Target == b) || (e.Source == b && e.Target == a) {
			return e.Strength
		}
	}
	return 0
}

// Touching returns every edge incident to the actor.
func (g *AllianceGraph) Touching(name string) []AllianceEdge {
	var out []AllianceEdge
	for _, e := range g.edges {
		if e.Source == name || e.Target == name {
			out = append(out, e)
		}
	}
	return out
}

// Edges returns the raw directed edge list.
func (g *AllianceGraph) Edges() []AllianceEdge { return g.edges }
