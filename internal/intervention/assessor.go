package intervention

import (
	"math"
	"time"

	"github.com/quantumlife/focuscoach/internal/core"
)

// Trigger tags produced by the assessor. Templates list the tags they answer.
const (
	TriggerCognitiveOverload = "cognitive_overload"
	TriggerHighStress        = "high_stress"
	TriggerTimePressure      = "time_pressure"
	TriggerOverwhelm         = "overwhelm"
	TriggerDistraction       = "distraction"
	TriggerTaskSwitching     = "task_switching"
	TriggerLowEnergy         = "low_energy"
	TriggerLongSession       = "long_session"
	TriggerUnderStimulated   = "under_stimulated"
	TriggerHighEnergy        = "high_energy"
	TriggerFlow              = "flow"
)

// AssessorConfig configures state assessment
type AssessorConfig struct {
	// Neutral defaults for missing context fields
	DefaultComplexity float64 `json:"default_complexity" mapstructure:"default_complexity"`
	DefaultPressure   float64 `json:"default_pressure" mapstructure:"default_pressure"`
	DefaultEnergy     float64 `json:"default_energy" mapstructure:"default_energy"`

	// Cognitive load weights
	ComplexityWeight float64 `json:"complexity_weight" mapstructure:"complexity_weight"`
	PressureWeight   float64 `json:"pressure_weight" mapstructure:"pressure_weight"`
	SwitchWeight     float64 `json:"switch_weight" mapstructure:"switch_weight"`
	SwitchSaturation int     `json:"switch_saturation" mapstructure:"switch_saturation"` // switches that count as fully fragmented

	// Focus state cut points
	OverloadLoad        float64 `json:"overload_load" mapstructure:"overload_load"`
	UnderStimulatedLoad float64 `json:"under_stimulated_load" mapstructure:"under_stimulated_load"`
	FlowStreakMinutes   float64 `json:"flow_streak_minutes" mapstructure:"flow_streak_minutes"`
	FlowMaxSwitches     int     `json:"flow_max_switches" mapstructure:"flow_max_switches"`
	FocusStreakMinutes  float64 `json:"focus_streak_minutes" mapstructure:"focus_streak_minutes"`
	DistractedSwitch    float64 `json:"distracted_switch" mapstructure:"distracted_switch"`

	// Energy
	LongSessionMinutes float64 `json:"long_session_minutes" mapstructure:"long_session_minutes"`
	FatiguePerHalfHour float64 `json:"fatigue_per_half_hour" mapstructure:"fatigue_per_half_hour"`
	MaxFatigue         float64 `json:"max_fatigue" mapstructure:"max_fatigue"`

	// Trigger thresholds
	HighStress       float64 `json:"high_stress" mapstructure:"high_stress"`
	HighPressure     float64 `json:"high_pressure" mapstructure:"high_pressure"`
	OverwhelmLoad    float64 `json:"overwhelm_load" mapstructure:"overwhelm_load"`
	LowEnergy        float64 `json:"low_energy" mapstructure:"low_energy"`
	HighEnergy       float64 `json:"high_energy" mapstructure:"high_energy"`
	DistractionCount int     `json:"distraction_count" mapstructure:"distraction_count"`
	SwitchingCount   int     `json:"switching_count" mapstructure:"switching_count"`

	// Signals needed for full confidence
	ConfidenceSignals int `json:"confidence_signals" mapstructure:"confidence_signals"`
}

// DefaultAssessorConfig returns sensible defaults
func DefaultAssessorConfig() AssessorConfig {
	return AssessorConfig{
		DefaultComplexity:   0.5,
		DefaultPressure:     0.5,
		DefaultEnergy:       0.5,
		ComplexityWeight:    0.55,
		PressureWeight:      0.45,
		SwitchWeight:        0.25,
		SwitchSaturation:    10,
		OverloadLoad:        0.8,
		UnderStimulatedLoad: 0.3,
		FlowStreakMinutes:   30,
		FlowMaxSwitches:     1,
		FocusStreakMinutes:  10,
		DistractedSwitch:    0.5,
		LongSessionMinutes:  90,
		FatiguePerHalfHour:  0.1,
		MaxFatigue:          0.3,
		HighStress:          0.6,
		HighPressure:        0.7,
		OverwhelmLoad:       0.7,
		LowEnergy:           0.35,
		HighEnergy:          0.7,
		DistractionCount:    3,
		SwitchingCount:      5,
		ConfidenceSignals:   3,
	}
}

// Assessor turns a context snapshot into normalized state signals.
// It reads profile history but never mutates it.
type Assessor struct {
	config AssessorConfig
}

// NewAssessor creates a new assessor
func NewAssessor(config AssessorConfig) *Assessor {
	return &Assessor{config: config}
}

// Assess derives the assessed state. Missing fields take neutral defaults and
// out-of-range values are clamped.
func (a *Assessor) Assess(profile *core.UserProfile, snap core.ContextSnapshot, now time.Time) core.AssessedState {
	cfg := a.config

	complexity := clamp01(floatOr(snap.TaskComplexity, cfg.DefaultComplexity))
	pressure := clamp01(floatOr(snap.TimePressure, cfg.DefaultPressure))
	interruptions := intOr(snap.Interruptions, 0)
	distractions := intOr(snap.Distractions, 0)
	switches := saturatingAdd(interruptions, distractions)
	streak := math.Max(0, floatOr(snap.DeepWorkStreakMinutes, 0))
	sinceBreak := math.Max(0, floatOr(snap.MinutesSinceBreak, 0))

	switchNorm := 0.0
	if cfg.SwitchSaturation > 0 {
		switchNorm = clamp01(float64(switches) / float64(cfg.SwitchSaturation))
	}

	load := clamp01(cfg.ComplexityWeight*complexity + cfg.PressureWeight*pressure + cfg.SwitchWeight*switchNorm)

	energy := clamp01(floatOr(snap.EnergyLevel, cfg.DefaultEnergy))
	if snap.TimeOfDay != nil {
		energy += timeOfDayAdjustment(*snap.TimeOfDay)
	}
	energy = clamp01(energy - a.fatigue(sinceBreak))

	stress := clamp01(0.45*pressure + 0.35*load + 0.2*switchNorm + 0.1*(1-energy))
	if snap.StressLevel != nil {
		stress = clamp01((stress + clamp01(*snap.StressLevel)) / 2)
	}

	responseRate := 0.5
	if profile != nil {
		responseRate = profile.ResponseRate()
	}

	state := core.AssessedState{
		CognitiveLoad: load,
		EnergyLevel:   energy,
		StressLevel:   stress,
		Receptivity:   Receptivity(load, energy, stress, responseRate),
		At:            now,
	}
	state.FocusState = a.focusState(load, streak, switches, switchNorm)
	state.Triggers = a.triggers(state, snap, pressure, sinceBreak, interruptions, distractions)
	if cfg.ConfidenceSignals > 0 {
		state.Confidence = clamp01(float64(snap.SignalCount()) / float64(cfg.ConfidenceSignals))
	} else {
		state.Confidence = 1
	}
	return state
}

// Receptivity combines the signals into openness to coaching. It is
// non-increasing in load and stress and non-decreasing in energy.
func Receptivity(load, energy, stress, responseRate float64) float64 {
	return clamp01(0.45 + 0.5*clamp01(energy) - 0.3*clamp01(load) - 0.2*clamp01(stress) + 0.2*(clamp01(responseRate)-0.5))
}

func (a *Assessor) fatigue(sinceBreak float64) float64 {
	over := sinceBreak - a.config.LongSessionMinutes
	if over <= 0 {
		return 0
	}
	return math.Min(a.config.MaxFatigue, over/30*a.config.FatiguePerHalfHour)
}

func timeOfDayAdjustment(tod core.TimeOfDay) float64 {
	switch tod {
	case core.TimeMorning:
		return 0.1
	case core.TimeEvening:
		return -0.1
	case core.TimeNight:
		return -0.2
	default:
		return 0
	}
}

func (a *Assessor) focusState(load, streak float64, switches int, switchNorm float64) core.FocusState {
	cfg := a.config
	switch {
	case load > cfg.OverloadLoad:
		return core.FocusOverloaded
	case streak >= cfg.FlowStreakMinutes && switches <= cfg.FlowMaxSwitches && load >= cfg.UnderStimulatedLoad:
		return core.FocusFlow
	case switchNorm >= cfg.DistractedSwitch:
		return core.FocusDistracted
	case load >= cfg.UnderStimulatedLoad && streak >= cfg.FocusStreakMinutes:
		return core.FocusFocused
	default:
		return core.FocusNeutral
	}
}

func (a *Assessor) triggers(s core.AssessedState, snap core.ContextSnapshot, pressure, sinceBreak float64, interruptions, distractions int) []string {
	cfg := a.config
	var tags []string
	add := func(cond bool, tag string) {
		if cond {
			tags = append(tags, tag)
		}
	}

	add(s.CognitiveLoad > cfg.OverloadLoad, TriggerCognitiveOverload)
	add(s.StressLevel > cfg.HighStress, TriggerHighStress)
	add(pressure >= cfg.HighPressure, TriggerTimePressure)
	add(s.CognitiveLoad > cfg.OverwhelmLoad && pressure >= cfg.HighPressure, TriggerOverwhelm)
	add(distractions >= cfg.DistractionCount || s.FocusState == core.FocusDistracted, TriggerDistraction)
	add(interruptions >= cfg.SwitchingCount, TriggerTaskSwitching)
	add(s.EnergyLevel < cfg.LowEnergy, TriggerLowEnergy)
	add(sinceBreak >= cfg.LongSessionMinutes, TriggerLongSession)
	add(s.CognitiveLoad < cfg.UnderStimulatedLoad, TriggerUnderStimulated)
	add(s.EnergyLevel >= cfg.HighEnergy, TriggerHighEnergy)
	add(s.FocusState == core.FocusFlow, TriggerFlow)

	for _, explicit := range snap.Triggers {
		if !containsString(tags, explicit) {
			tags = append(tags, explicit)
		}
	}
	return tags
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil || *v < 0 {
		return def
	}
	return *v
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
