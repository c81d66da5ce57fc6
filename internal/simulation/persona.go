package simulation

import (
	"math"
	"math/rand"

	"github.com/quantumlife/focuscoach/internal/core"
)

// Persona is a kind of synthetic user. Affinity is hidden from the engine:
// it shifts how likely the persona is to act on each intervention category.
type Persona struct {
	Name           string             `json:"name"`
	Preset         string             `json:"preset"` // key into core.TraitPresets
	BaseAcceptance float64            `json:"base_acceptance"`
	Affinity       map[string]float64 `json:"affinity"`

	// Work habits used to generate context
	MeanComplexity   float64 `json:"mean_complexity"`
	MeanDistractions float64 `json:"mean_distractions"`
	MeetingLoad      float64 `json:"meeting_load"`
}

// Personas are the built-in synthetic user kinds.
var Personas = []Persona{
	{
		Name:             "developer",
		Preset:           "INTJ",
		BaseAcceptance:   0.72,
		Affinity:         map[string]float64{"focus": 0.15, "deep_work": 0.2, "rest": -0.1, "planning": -0.05},
		MeanComplexity:   0.65,
		MeanDistractions: 2,
		MeetingLoad:      0.1,
	},
	{
		Name:             "analyst",
		Preset:           "balanced",
		BaseAcceptance:   0.68,
		Affinity:         map[string]float64{"planning": 0.15, "focus": 0.1, "energy": -0.05},
		MeanComplexity:   0.55,
		MeanDistractions: 2.5,
		MeetingLoad:      0.25,
	},
	{
		Name:             "manager",
		Preset:           "ENFP",
		BaseAcceptance:   0.45,
		Affinity:         map[string]float64{"stress": 0.2, "rest": 0.15, "deep_work": -0.2},
		MeanComplexity:   0.45,
		MeanDistractions: 4,
		MeetingLoad:      0.6,
	},
	{
		Name:             "designer",
		Preset:           "ENFP",
		BaseAcceptance:   0.75,
		Affinity:         map[string]float64{"energy": 0.15, "rest": 0.1, "planning": -0.15},
		MeanComplexity:   0.5,
		MeanDistractions: 3,
		MeetingLoad:      0.2,
	},
}

// Acceptance modifiers by situation
const (
	deepSessionPenalty  = -0.25
	interruptedBonus    = 0.35
	deadlineBonus       = 0.2
	endOfDayPenalty     = -0.15
	fatiguePenalty      = -0.1
	fatiguePerDismissal = 0.2
)

// user is one simulated person. It is only touched by the goroutine
// running its step.
type user struct {
	id      core.UserID
	persona Persona
	rng     *rand.Rand
	fatigue float64

	streak     float64 // minutes of uninterrupted work
	sinceBreak float64
}

// observation is the context generated for one step plus the hidden
// situation flags the acceptance model uses.
type observation struct {
	context     map[string]interface{}
	distracted  bool
	deadline    bool
	deepSession bool
	endOfDay    bool
}

func (u *user) observe(hour int, stepMinutes float64) observation {
	p := u.persona
	r := u.rng

	inMeeting := r.Float64() < p.MeetingLoad
	complexity := clamp(p.MeanComplexity+r.NormFloat64()*0.15, 0, 1)
	pressure := clamp(0.3+r.NormFloat64()*0.25, 0, 1)
	distractions := int(math.Max(0, math.Round(p.MeanDistractions+r.NormFloat64()*1.5)))
	energy := clamp(0.75-0.04*float64(hour-9)+r.NormFloat64()*0.1, 0, 1)

	if inMeeting || distractions >= 3 {
		u.streak = 0
	} else {
		u.streak += stepMinutes
	}
	if r.Float64() < 0.2 {
		u.sinceBreak = 0
	} else {
		u.sinceBreak += stepMinutes
	}

	ctx := map[string]interface{}{
		"task_complexity":          round2(complexity),
		"time_pressure":            round2(pressure),
		"distractions":             distractions,
		"deep_work_streak_minutes": u.streak,
		"minutes_since_break":      u.sinceBreak,
		"energy_level":             round2(energy),
		"time_of_day":              string(core.TimeOfDayForHour(hour)),
	}
	if inMeeting {
		ctx["interruptions"] = 1 + r.Intn(3)
	}

	return observation{
		context:     ctx,
		distracted:  distractions >= 3 || inMeeting,
		deadline:    pressure >= 0.7,
		deepSession: u.streak >= 30,
		endOfDay:    hour >= 16,
	}
}

// respond decides whether the user acts on an intervention and builds
// the feedback they would give.
func (u *user) respond(category string, confidence float64, obs observation) (accepted bool, fb core.Feedback) {
	p := u.persona
	prob := p.BaseAcceptance + p.Affinity[category] + (confidence-0.5)*0.3 + fatiguePenalty*u.fatigue
	if obs.deepSession {
		prob += deepSessionPenalty
	}
	if obs.distracted {
		prob += interruptedBonus
	}
	if obs.deadline {
		prob += deadlineBonus
	}
	if obs.endOfDay {
		prob += endOfDayPenalty
	}
	prob = clamp(prob, 0.1, 0.9)

	if u.rng.Float64() < prob {
		engagement := round2(clamp(0.6+p.Affinity[category]+u.rng.NormFloat64()*0.1, 0, 1))
		u.fatigue = math.Max(0, u.fatigue-fatiguePerDismissal/2)
		return true, core.Feedback{
			Completion:   u.rng.Float64() < 0.7+(confidence-0.5)*0.4,
			Satisfaction: round2(clamp(0.65+p.Affinity[category]+u.rng.NormFloat64()*0.1, 0, 1)),
			Engagement:   &engagement,
		}
	}

	u.fatigue += fatiguePerDismissal
	engagement := round2(u.rng.Float64() * 0.2)
	return false, core.Feedback{
		Completion:   false,
		Satisfaction: round2(0.1 + u.rng.Float64()*0.2),
		Engagement:   &engagement,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
