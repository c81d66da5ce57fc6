package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife/focuscoach/internal/core"
)

// RandomID generates a random ID for testing.
func RandomID() string {
	return uuid.New().String()[:8]
}

// ProfileBuilder builds user profiles for tests.
type ProfileBuilder struct {
	profile *core.UserProfile
}

// NewProfileBuilder starts from a profile with neutral traits created at Epoch.
func NewProfileBuilder(id core.UserID) *ProfileBuilder {
	return &ProfileBuilder{profile: core.NewUserProfile(id, core.DefaultTraits(), Epoch)}
}

// WithPreset applies one of core.TraitPresets. Unknown names are ignored.
func (b *ProfileBuilder) WithPreset(name string) *ProfileBuilder {
	if traits, ok := core.TraitPresets[name]; ok {
		b.profile.Traits = traits.Clone()
	}
	return b
}

// WithThreshold sets the cognitive load threshold.
func (b *ProfileBuilder) WithThreshold(v float64) *ProfileBuilder {
	b.profile.Traits.CognitiveLoadThreshold = v
	return b
}

// WithEffectiveness records a learned score for a template.
func (b *ProfileBuilder) WithEffectiveness(id core.TemplateID, score float64, samples int) *ProfileBuilder {
	b.profile.EffectivenessScores[id] = score
	b.profile.EffectivenessSamples[id] = samples
	return b
}

// WithPreference sets a category weight.
func (b *ProfileBuilder) WithPreference(category string, weight float64) *ProfileBuilder {
	b.profile.PreferenceWeights[category] = weight
	return b
}

// WithLastIntervention marks an intervention issued at the given time.
func (b *ProfileBuilder) WithLastIntervention(at time.Time, dailyCount int) *ProfileBuilder {
	b.profile.LastInterventionAt = at
	b.profile.DailyCount = dailyCount
	y, m, d := at.Date()
	b.profile.DailyCountResetAt = time.Date(y, m, d+1, 0, 0, 0, 0, at.Location())
	return b
}

// WithIssued adds an open ledger entry.
func (b *ProfileBuilder) WithIssued(id core.InterventionID, template core.TemplateID, category string, at time.Time) *ProfileBuilder {
	b.profile.Issued[id] = &core.IssuedIntervention{
		ID:         id,
		TemplateID: template,
		Category:   category,
		IssuedAt:   at,
		ExpiresAt:  at.Add(30 * time.Minute),
	}
	return b
}

// Build returns the profile.
func (b *ProfileBuilder) Build() *core.UserProfile {
	return b.profile
}

// Context fixtures for decision requests.

// DistractedContext raises the distraction trigger at moderate load.
func DistractedContext() map[string]interface{} {
	return map[string]interface{}{
		"distractions":    4,
		"task_complexity": 0.5,
		"energy_level":    0.7,
	}
}

// OverloadedContext crosses the stress override.
func OverloadedContext() map[string]interface{} {
	return map[string]interface{}{
		"task_complexity": 0.9,
		"time_pressure":   0.8,
		"time_of_day":     "morning",
	}
}

// FlowContext is a long deep work streak without distractions.
func FlowContext() map[string]interface{} {
	return map[string]interface{}{
		"deep_work_streak_minutes": 40,
		"distractions":             0,
	}
}
