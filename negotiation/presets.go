package negotiation

import (
	"fmt"
	"sort"
)

// Preset is a canned scenario used by the CLI.
type Preset struct {
	Name        string
	Description string
	New         func() *Session
}

var presets = map[string]Preset{
	"project": {
		Name:        "project",
		Description: "competitive client against a cooperative provider over budget, timeline and scope",
		New: func() *Session {
			return &Session{
				A:         NewNegotiator("client", "Client", Competitive, map[string]float64{"budget": 40, "timeline": 30, "scope": 30}, 50),
				B:         NewNegotiator("provider", "Provider", Cooperative, map[string]float64{"budget": 50, "timeline": 25, "scope": 25}, 45),
				MaxRounds: 5,
			}
		},
	},
	"salary": {
		Name:        "salary",
		Description: "balanced employee and employer over base salary, bonus and vacation",
		New: func() *Session {
			return &Session{
				A:         NewNegotiator("employee", "Employee", Balanced, map[string]float64{"base_salary": 50, "bonus": 30, "vacation": 20}, 55),
				B:         NewNegotiator("employer", "Employer", Balanced, map[string]float64{"base_salary": 40, "bonus": 35, "vacation": 25}, 50),
				MaxRounds: 8,
			}
		},
	},
	"resource": {
		Name:        "resource",
		Description: "competitive agent against an adaptive agent over usage time, cost and priority",
		New: func() *Session {
			return &Session{
				A:         NewNegotiator("a", "Agent A", Competitive, map[string]float64{"usage_time": 40, "cost": 35, "priority": 25}, 52),
				B:         NewNegotiator("b", "Agent B", Adaptive, map[string]float64{"usage_time": 35, "cost": 40, "priority": 25}, 50),
				MaxRounds: 10,
			}
		},
	},
}

// PresetNames lists the presets, sorted.
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (have %v)", name, PresetNames())
	}
	return p, nil
}
