package intervention

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/focuscoach/internal/catalog"
	"github.com/quantumlife/focuscoach/internal/core"
)

func TestPersonalizeMonotonicInLoad(t *testing.T) {
	p := NewPersonalizer(DefaultPersonalConfig())
	profile := newTestProfile()
	loads := []float64{0, 0.2, 0.39, 0.4, 0.55, 0.69, 0.7, 0.9, 1}

	for _, tmpl := range catalog.MustBuiltin().Templates() {
		tmpl := tmpl
		t.Run(string(tmpl.ID), func(t *testing.T) {
			prevSteps := len(tmpl.Actions) + 1
			prevTotal := tmpl.TotalDuration() + time.Second
			for _, load := range loads {
				out := p.Personalize(&tmpl, profile, core.AssessedState{CognitiveLoad: load}, false)
				require.NotEmpty(t, out.Steps, "load %v", load)
				assert.LessOrEqual(t, len(out.Steps), prevSteps, "load %v", load)
				assert.LessOrEqual(t, out.TotalDuration(), prevTotal, "load %v", load)
				prevSteps, prevTotal = len(out.Steps), out.TotalDuration()
			}
		})
	}
}

func TestPersonalizeHighLoadShorterThanLowLoad(t *testing.T) {
	p := NewPersonalizer(DefaultPersonalConfig())
	focus, ok := catalog.MustBuiltin().Get("focus")
	require.True(t, ok)

	low := p.Personalize(focus, newTestProfile(), core.AssessedState{CognitiveLoad: 0.2}, false)
	mid := p.Personalize(focus, newTestProfile(), core.AssessedState{CognitiveLoad: 0.5}, false)
	high := p.Personalize(focus, newTestProfile(), core.AssessedState{CognitiveLoad: 0.9}, false)

	assert.Len(t, low.Steps, 3)
	assert.Equal(t, 6*time.Minute, low.TotalDuration())

	// Priorities 1 and 2 at 75%, the one-minute step held at its floor.
	assert.Len(t, mid.Steps, 2)
	assert.Equal(t, 150*time.Second, mid.TotalDuration())

	assert.Len(t, high.Steps, 1)
	assert.Equal(t, time.Minute, high.TotalDuration())
	assert.Equal(t, 1, high.Steps[0].Priority)

	assert.LessOrEqual(t, high.TotalDuration(), low.TotalDuration())
}

func TestPersonalizeMinimal(t *testing.T) {
	p := NewPersonalizer(DefaultPersonalConfig())
	planning, _ := catalog.MustBuiltin().Get("planning")

	out := p.Personalize(planning, newTestProfile(), core.AssessedState{CognitiveLoad: 0.1}, true)
	assert.Len(t, out.Steps, 1)
	assert.Equal(t, core.IntensityMinimal, out.Intensity)
	assert.Equal(t, 150*time.Second, out.TotalDuration())
}

func TestPersonalizeFormatAndTone(t *testing.T) {
	p := NewPersonalizer(DefaultPersonalConfig())
	focus, _ := catalog.MustBuiltin().Get("focus")

	tests := []struct {
		preset     string
		wantFormat core.StepFormat
		wantPrefix string
		wantHead   string
	}{
		{"INTJ", core.FormatNumbered, "1. Close", "do this now"},
		{"ENFP", core.FormatSuggested, "Try this: close", "Quick win ahead"},
		{"balanced", core.FormatBulleted, "- Close", "You're doing fine"},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			profile := newTestProfile()
			profile.Traits = core.TraitPresets[tt.preset]
			out := p.Personalize(focus, profile, core.AssessedState{CognitiveLoad: 0.2}, false)

			assert.Equal(t, tt.wantFormat, out.Format)
			assert.True(t, strings.HasPrefix(out.Steps[0].Text, tt.wantPrefix), out.Steps[0].Text)
			assert.Contains(t, out.Headline, tt.wantHead)
			assert.Equal(t, profile.Traits.Communication, out.Tone)
		})
	}
}

func TestPersonalizeSuggestedKeepsUnicode(t *testing.T) {
	p := NewPersonalizer(DefaultPersonalConfig())
	tmpl := testTemplate("etirement", "movement", "x")
	tmpl.Actions = []core.ActionSkeleton{
		skeleton("Étirez-vous", 2*time.Minute, 1),
		skeleton("Ωmega breath", 2*time.Minute, 2),
	}
	profile := newTestProfile()
	profile.Traits = core.TraitPresets["ENFP"]

	out := p.Personalize(&tmpl, profile, core.AssessedState{CognitiveLoad: 0.2}, false)
	require.Len(t, out.Steps, 2)
	assert.Equal(t, "Try this: étirez-vous, about 2 min", out.Steps[0].Text)
	assert.Equal(t, "Try this: ωmega breath, about 2 min", out.Steps[1].Text)
	for _, s := range out.Steps {
		assert.True(t, utf8.ValidString(s.Text), s.Text)
	}
}

func TestPersonalizeNeverMutatesTemplate(t *testing.T) {
	p := NewPersonalizer(DefaultPersonalConfig())
	tmpl := testTemplate("a", "a", "x")
	before := tmpl.Actions[0]

	p.Personalize(&tmpl, newTestProfile(), core.AssessedState{CognitiveLoad: 0.9}, false)
	assert.Equal(t, before, tmpl.Actions[0])
}

func TestPersonalizeShortStepsKeepLength(t *testing.T) {
	p := NewPersonalizer(DefaultPersonalConfig())
	tmpl := testTemplate("a", "a", "x")
	tmpl.Actions = []core.ActionSkeleton{skeleton("blink", 30*time.Second, 1)}

	out := p.Personalize(&tmpl, newTestProfile(), core.AssessedState{CognitiveLoad: 0.95}, false)
	assert.Equal(t, 30*time.Second, out.TotalDuration())
}

func TestPersonalizeIntensity(t *testing.T) {
	p := NewPersonalizer(DefaultPersonalConfig())
	long := testTemplate("long", "a", "x")
	long.Actions = []core.ActionSkeleton{
		skeleton("one", 4*time.Minute, 1),
		skeleton("two", 4*time.Minute, 1),
		skeleton("three", 4*time.Minute, 2),
	}

	assert.Equal(t, core.IntensityHigh, p.Personalize(&long, newTestProfile(), core.AssessedState{CognitiveLoad: 0.1}, false).Intensity)
	assert.Equal(t, core.IntensityModerate, p.Personalize(&long, newTestProfile(), core.AssessedState{CognitiveLoad: 0.5}, false).Intensity)
	assert.Equal(t, core.IntensityLow, p.Personalize(&long, newTestProfile(), core.AssessedState{CognitiveLoad: 0.9}, false).Intensity)
}
