// Package strategy holds the three scheduling-strategy profiles: overtime
// policy and priority weighting. The kernel is strategy-agnostic; it only
// ever consumes a Config.
package strategy

import "fmt"

// Name identifies a strategy profile.
type Name string

const (
	MeetDeadlines Name = "meet_deadlines"
	MinimizeCost  Name = "minimize_cost"
	Balanced      Name = "balanced"
)

// Config is everything the kernel needs to know about a strategy: whether it
// may use overtime, the daily overtime cap, and the weight applied to demand
// priority during tie-breaking.
type Config struct {
	Name                     Name
	AllowOvertime            bool
	OvertimeCapMinutesPerDay int
	PriorityWeight           float64
}

var table = map[Name]Config{
	MeetDeadlines: {Name: MeetDeadlines, AllowOvertime: true, OvertimeCapMinutesPerDay: 4 * 60, PriorityWeight: 1.5},
	MinimizeCost:  {Name: MinimizeCost, AllowOvertime: false, OvertimeCapMinutesPerDay: 0, PriorityWeight: 1.0},
	Balanced:      {Name: Balanced, AllowOvertime: true, OvertimeCapMinutesPerDay: 2 * 60, PriorityWeight: 1.2},
}

// Get returns the Config for a known strategy name.
func Get(name Name) (Config, error) {
	cfg, ok := table[name]
	if !ok {
		return Config{}, fmt.Errorf("strategy: unknown strategy %q", name)
	}
	return cfg, nil
}

// All returns the three built-in strategies in the canonical order a
// planning run generates scenarios: meet_deadlines, minimize_cost, balanced.
func All() []Config {
	return []Config{table[MeetDeadlines], table[MinimizeCost], table[Balanced]}
}
