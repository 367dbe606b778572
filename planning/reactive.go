package planning

import (
	"fmt"
	"maps"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Rule fires Action when Condition holds.
type Rule struct {
	Description string
	Condition   func(state map[string]any) bool
	Action      func(state map[string]any) string
}

type Reaction struct {
	Rule      string    `json:"rule"`
	Result    string    `json:"result,omitempty"`
	Err       string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HistoryEntry struct {
	State    map[string]any `json:"state"`
	Rule     string         `json:"rule"`
	Response string         `json:"action"`
}

// ReactiveAgent matches rules against the latest known state.
type ReactiveAgent struct {
	Name  string
	Rules []Rule

	state   map[string]any
	history []HistoryEntry
}

func NewReactiveAgent(name string, rules ...Rule) *ReactiveAgent {
	return &ReactiveAgent{Name: name, Rules: rules, state: map[string]any{}}
}

func (a *ReactiveAgent) AddRule(r Rule) { a.Rules = append(a.Rules, r) }

// Update merges changes into the state.
func (a *ReactiveAgent) Update(changes map[string]any) {
	if a.state == nil {
		a.state = map[string]any{}
	}
	for k, v := range changes {
		if old, ok := a.state[k]; ok {
			log.Debug().Str("agent", a.Name).Str("key", k).Interface("from", old).Interface("to", v).Msg("state updated")
		}
		a.state[k] = v
	}
}

func (a *ReactiveAgent) State() map[string]any { return maps.Clone(a.state) }

func (a *ReactiveAgent) History() []HistoryEntry { return append([]HistoryEntry(nil), a.history...) }

// React evaluates every rule in order. A rule that panics is reported as
// a failed reaction and does not stop the others.
func (a *ReactiveAgent) React() []Reaction {
	var out []Reaction
	for _, r := range a.Rules {
		fired, result, err := a.fire(r)
		if err != nil {
			log.Warn().Err(err).Str("agent", a.Name).Str("rule", r.Description).Msg("rule failed")
			out = append(out, Reaction{Rule: r.Description, Err: err.Error(), Timestamp: time.Now()})
			continue
		}
		if !fired {
			continue
		}
		out = append(out, Reaction{Rule: r.Description, Result: result, Timestamp: time.Now()})
		a.history = append(a.history, HistoryEntry{State: maps.Clone(a.state), Rule: r.Description, Response: result})
	}
	return out
}

func (a *ReactiveAgent) fire(r Rule) (fired bool, result string, err error) {
	defer func() {
		if p := recover(); p != nil {
			fired, err = false, fmt.Errorf("rule %q panicked: %v", r.Description, p)
		}
	}()
	if r.Condition == nil || !r.Condition(a.state) {
		return false, "", nil
	}
	if r.Action == nil {
		return true, "", nil
	}
	return true, r.Action(a.state), nil
}

// Num reads a numeric state value; missing or non-numeric keys yield def.
func Num(state map[string]any, key string, def float64) float64 {
	switch v := state[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Flag reads a boolean state value.
func Flag(state map[string]any, key string) bool {
	b, _ := state[key].(bool)
	return b
}

type Range struct{ Min, Max float64 }

// Environment produces sensor readings and drifts them over time.
type Environment struct {
	Variables []string
	Ranges    map[string]Range
	rng       *rand.Rand
}

// NewEnvironment simulates temperature, humidity, pressure and light.
func NewEnvironment(rng *rand.Rand) *Environment {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Environment{
		Variables: []string{"temperature", "humidity", "pressure", "light"},
		Ranges: map[string]Range{
			"temperature": {15, 35},
			"humidity":    {30, 90},
			"pressure":    {950, 1050},
			"light":       {0, 1000},
		},
		rng: rng,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Generate draws every variable uniformly from its range.
func (e *Environment) Generate() map[string]any {
	out := make(map[string]any, len(e.Variables))
	for _, v := range e.Variables {
		r := e.Ranges[v]
		out[v] = round2(r.Min + e.rng.Float64()*(r.Max-r.Min))
	}
	return out
}

// Drift moves one or two variables by up to ±5, clamped to range.
func (e *Environment) Drift(current map[string]any) map[string]any {
	next := maps.Clone(current)
	n := 1 + e.rng.Intn(2)
	for _, i := range e.rng.Perm(len(e.Variables))[:n] {
		v := e.Variables[i]
		r := e.Ranges[v]
		val := Num(current, v, 20) + (e.rng.Float64()*10 - 5)
		next[v] = round2(max(r.Min, min(r.Max, val)))
	}
	return next
}

// ClimateRules react to heat, humidity, darkness and low pressure.
func ClimateRules() []Rule {
	return []Rule{
		{
			Description: "temperature > 30°C: turn on A/C",
			Condition:   func(s map[string]any) bool { return Num(s, "temperature", 0) > 30 },
			Action: func(s map[string]any) string {
				return fmt.Sprintf("turn on air conditioning (temp: %v°C)", s["temperature"])
			},
		},
		{
			Description: "humidity > 70%: turn on dehumidifier",
			Condition:   func(s map[string]any) bool { return Num(s, "humidity", 0) > 70 },
			Action: func(s map[string]any) string {
				return fmt.Sprintf("turn on dehumidifier (humidity: %v%%)", s["humidity"])
			},
		},
		{
			Description: "light < 200 lux: turn on lights",
			Condition:   func(s map[string]any) bool { return Num(s, "light", 1000) < 200 },
			Action: func(s map[string]any) string {
				return fmt.Sprintf("turn on lights (light: %v lux)", s["light"])
			},
		},
		{
			Description: "pressure < 980 hPa: storm alert",
			Condition:   func(s map[string]any) bool { return Num(s, "pressure", 1000) < 980 },
			Action: func(s map[string]any) string {
				return fmt.Sprintf("storm alert (pressure: %v hPa)", s["pressure"])
			},
		},
	}
}

// SmartHomeRules cover security, energy, comfort and weather.
func SmartHomeRules() []Rule {
	return []Rule{
		{
			Description: "unauthorized motion: raise alarm",
			Condition:   func(s map[string]any) bool { return Flag(s, "motion_detected") && !Flag(s, "authorized_person") },
			Action:      func(map[string]any) string { return "sound the security alarm and notify the owner" },
		},
		{
			Description: "empty room with lights on: switch off",
			Condition:   func(s map[string]any) bool { return Flag(s, "room_empty") && Flag(s, "lights_on") },
			Action:      func(map[string]any) string { return "switch off lights to save energy" },
		},
		{
			Description: "after 22h with loud TV: lower volume",
			Condition:   func(s map[string]any) bool { return Num(s, "hour", 0) >= 22 && Num(s, "tv_volume", 0) > 50 },
			Action:      func(map[string]any) string { return "lower the volume (night mode)" },
		},
		{
			Description: "rain with windows open: close windows",
			Condition:   func(s map[string]any) bool { return Flag(s, "windows_open") && Flag(s, "raining") },
			Action:      func(map[string]any) string { return "close the windows" },
		},
	}
}
