package intervention

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantumlife/focuscoach/internal/core"
)

func TestAssessNeutralDefaults(t *testing.T) {
	a := NewAssessor(DefaultAssessorConfig())
	s := a.Assess(newTestProfile(), core.ContextSnapshot{}, t0)

	assert.InDelta(t, 0.5, s.CognitiveLoad, 1e-9)
	assert.InDelta(t, 0.5, s.EnergyLevel, 1e-9)
	assert.InDelta(t, 0.45, s.StressLevel, 1e-9)
	assert.InDelta(t, 0.46, s.Receptivity, 1e-9)
	assert.Equal(t, core.FocusNeutral, s.FocusState)
	assert.Empty(t, s.Triggers)
	assert.Equal(t, 0.0, s.Confidence)
	assert.Equal(t, t0, s.At)
}

func TestAssessClampsEveryField(t *testing.T) {
	a := NewAssessor(DefaultAssessorConfig())
	rng := rand.New(rand.NewSource(7))
	wild := func() *float64 { return fp(rng.Float64()*6 - 3) }
	tods := []core.TimeOfDay{core.TimeMorning, core.TimeAfternoon, core.TimeEvening, core.TimeNight}

	for i := 0; i < 1000; i++ {
		tod := tods[rng.Intn(len(tods))]
		snap := core.ContextSnapshot{
			TaskComplexity:        wild(),
			TimePressure:          wild(),
			Interruptions:         ip(rng.Intn(60) - 10),
			Distractions:          ip(rng.Intn(60) - 10),
			DeepWorkStreakMinutes: fp(rng.Float64()*400 - 50),
			MinutesSinceBreak:     fp(rng.Float64()*600 - 50),
			EnergyLevel:           wild(),
			StressLevel:           wild(),
			TimeOfDay:             &tod,
		}
		s := a.Assess(newTestProfile(), snap, t0)
		for name, v := range map[string]float64{
			"load":        s.CognitiveLoad,
			"energy":      s.EnergyLevel,
			"stress":      s.StressLevel,
			"receptivity": s.Receptivity,
			"confidence":  s.Confidence,
		} {
			if v < 0 || v > 1 {
				t.Fatalf("iteration %d: %s=%v out of [0,1] for %+v", i, name, v, snap)
			}
		}
	}
}

func TestAssessHugeCountsSaturateLoad(t *testing.T) {
	cfg := DefaultAssessorConfig()
	a := NewAssessor(cfg)
	load := func(interruptions, distractions int) float64 {
		return a.Assess(newTestProfile(), core.ContextSnapshot{
			Interruptions: ip(interruptions),
			Distractions:  ip(distractions),
		}, t0).CognitiveLoad
	}

	saturated := load(cfg.SwitchSaturation, 0)
	assert.Greater(t, saturated, load(0, 0))

	tests := []struct {
		name                        string
		interruptions, distractions int
	}{
		{"huge interruptions", math.MaxInt, 0},
		{"huge distractions", 0, math.MaxInt},
		{"sum would overflow", math.MaxInt - 1, math.MaxInt - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, saturated, load(tt.interruptions, tt.distractions))
		})
	}

	// Parsed out-of-range counts behave the same way.
	snap, _ := ParseContext(map[string]interface{}{"interruptions": 1e19})
	assert.Equal(t, saturated, a.Assess(newTestProfile(), snap, t0).CognitiveLoad)
}

func TestCognitiveLoadMonotonic(t *testing.T) {
	a := NewAssessor(DefaultAssessorConfig())
	levels := []float64{-0.5, 0, 0.1, 0.3, 0.5, 0.7, 0.9, 1, 1.5}

	for _, switches := range []int{0, 3, 12} {
		for i, c1 := range levels {
			for _, c2 := range levels[i:] {
				for j, p1 := range levels {
					for _, p2 := range levels[j:] {
						low := a.Assess(nil, core.ContextSnapshot{TaskComplexity: fp(c1), TimePressure: fp(p1), Interruptions: ip(switches)}, t0)
						high := a.Assess(nil, core.ContextSnapshot{TaskComplexity: fp(c2), TimePressure: fp(p2), Interruptions: ip(switches)}, t0)
						if high.CognitiveLoad < low.CognitiveLoad {
							t.Fatalf("load decreased: (%v,%v)=%v > (%v,%v)=%v", c1, p1, low.CognitiveLoad, c2, p2, high.CognitiveLoad)
						}
					}
				}
			}
		}
	}
}

func TestReceptivityMonotonic(t *testing.T) {
	grid := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}
	for _, load := range grid {
		for _, energy := range grid {
			for _, stress := range grid {
				base := Receptivity(load, energy, stress, 0.5)
				if load < 1 {
					assert.LessOrEqual(t, Receptivity(load+0.2, energy, stress, 0.5), base)
				}
				if stress < 1 {
					assert.LessOrEqual(t, Receptivity(load, energy, stress+0.2, 0.5), base)
				}
				if energy < 1 {
					assert.GreaterOrEqual(t, Receptivity(load, energy+0.2, stress, 0.5), base)
				}
			}
		}
	}
}

func TestAssessOverloadedScenario(t *testing.T) {
	a := NewAssessor(DefaultAssessorConfig())
	morning := core.TimeMorning
	s := a.Assess(newTestProfile(), core.ContextSnapshot{
		TaskComplexity: fp(0.9),
		TimePressure:   fp(0.8),
		TimeOfDay:      &morning,
	}, t0)

	assert.InDelta(t, 0.855, s.CognitiveLoad, 1e-9)
	assert.Greater(t, s.CognitiveLoad, 0.7)
	assert.InDelta(t, 0.6, s.EnergyLevel, 1e-9)
	assert.InDelta(t, 0.69925, s.StressLevel, 1e-9)
	assert.Equal(t, core.FocusOverloaded, s.FocusState)
	assert.Subset(t, s.Triggers, []string{TriggerCognitiveOverload, TriggerHighStress, TriggerTimePressure, TriggerOverwhelm})
	assert.Equal(t, 1.0, s.Confidence)
}

func TestAssessFocusStates(t *testing.T) {
	a := NewAssessor(DefaultAssessorConfig())
	tests := []struct {
		name string
		snap core.ContextSnapshot
		want core.FocusState
	}{
		{"flow", core.ContextSnapshot{DeepWorkStreakMinutes: fp(40), Distractions: ip(0)}, core.FocusFlow},
		{"flow tolerates one switch", core.ContextSnapshot{DeepWorkStreakMinutes: fp(35), Interruptions: ip(1)}, core.FocusFlow},
		{"streak broken by switches", core.ContextSnapshot{DeepWorkStreakMinutes: fp(35), Interruptions: ip(2)}, core.FocusFocused},
		{"focused", core.ContextSnapshot{DeepWorkStreakMinutes: fp(15)}, core.FocusFocused},
		{"distracted", core.ContextSnapshot{Distractions: ip(6)}, core.FocusDistracted},
		{"overloaded beats flow", core.ContextSnapshot{TaskComplexity: fp(1), TimePressure: fp(1), DeepWorkStreakMinutes: fp(60)}, core.FocusOverloaded},
		{"under-stimulated is neutral", core.ContextSnapshot{TaskComplexity: fp(0.1), TimePressure: fp(0.1), DeepWorkStreakMinutes: fp(60)}, core.FocusNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Assess(nil, tt.snap, t0).FocusState)
		})
	}
}

func TestAssessTriggers(t *testing.T) {
	a := NewAssessor(DefaultAssessorConfig())
	tests := []struct {
		name string
		snap core.ContextSnapshot
		want []string
	}{
		{"distraction count", core.ContextSnapshot{Distractions: ip(3)}, []string{TriggerDistraction}},
		{"task switching", core.ContextSnapshot{Interruptions: ip(5)}, []string{TriggerTaskSwitching}},
		{"long session", core.ContextSnapshot{MinutesSinceBreak: fp(150)}, []string{TriggerLongSession, TriggerLowEnergy}},
		{"under-stimulated", core.ContextSnapshot{TaskComplexity: fp(0.1), TimePressure: fp(0.1)}, []string{TriggerUnderStimulated}},
		{"high energy", core.ContextSnapshot{EnergyLevel: fp(0.9)}, []string{TriggerHighEnergy}},
		{"explicit", core.ContextSnapshot{Triggers: []string{"missed_deadlines"}}, []string{"missed_deadlines"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Assess(nil, tt.snap, t0).Triggers
			assert.Subset(t, got, tt.want)
		})
	}
}

func TestAssessEnergyAdjustments(t *testing.T) {
	a := NewAssessor(DefaultAssessorConfig())
	night := core.TimeNight
	s := a.Assess(nil, core.ContextSnapshot{EnergyLevel: fp(0.6), TimeOfDay: &night}, t0)
	assert.InDelta(t, 0.4, s.EnergyLevel, 1e-9)

	// 150 minutes since break is 60 minutes of fatigue, 0.2.
	s = a.Assess(nil, core.ContextSnapshot{MinutesSinceBreak: fp(150)}, t0)
	assert.InDelta(t, 0.3, s.EnergyLevel, 1e-9)

	// Fatigue is capped.
	s = a.Assess(nil, core.ContextSnapshot{EnergyLevel: fp(1), MinutesSinceBreak: fp(600)}, t0)
	assert.InDelta(t, 0.7, s.EnergyLevel, 1e-9)
}

func TestAssessReportedStressBlends(t *testing.T) {
	a := NewAssessor(DefaultAssessorConfig())
	base := a.Assess(nil, core.ContextSnapshot{}, t0).StressLevel
	s := a.Assess(nil, core.ContextSnapshot{StressLevel: fp(1)}, t0)
	assert.InDelta(t, (base+1)/2, s.StressLevel, 1e-9)
}

func TestAssessUsesResponseHistory(t *testing.T) {
	a := NewAssessor(DefaultAssessorConfig())
	engaged := newTestProfile()
	engaged.ResponsesRecorded, engaged.ResponsesEngaged = 10, 10
	ignored := newTestProfile()
	ignored.ResponsesRecorded = 10

	hi := a.Assess(engaged, core.ContextSnapshot{}, t0).Receptivity
	lo := a.Assess(ignored, core.ContextSnapshot{}, t0).Receptivity
	assert.Greater(t, hi, lo)

	// Reading history must not change it.
	assert.Equal(t, 10, engaged.ResponsesEngaged)
}
