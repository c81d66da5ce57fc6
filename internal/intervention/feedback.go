package intervention

import (
	"time"

	"github.com/quantumlife/focuscoach/internal/core"
)

// FeedbackConfig configures adaptation from outcomes
type FeedbackConfig struct {
	Alpha float64 `json:"alpha" mapstructure:"alpha"` // EWMA weight of the newest outcome
	Prior float64 `json:"prior" mapstructure:"prior"` // effectiveness of a never-rated template

	CompletionWeight   float64 `json:"completion_weight" mapstructure:"completion_weight"`
	SatisfactionWeight float64 `json:"satisfaction_weight" mapstructure:"satisfaction_weight"`
	EngagementWeight   float64 `json:"engagement_weight" mapstructure:"engagement_weight"`
	DefaultEngagement  float64 `json:"default_engagement" mapstructure:"default_engagement"`

	SuccessThreshold  float64 `json:"success_threshold" mapstructure:"success_threshold"`
	FailureThreshold  float64 `json:"failure_threshold" mapstructure:"failure_threshold"`
	PreferenceStep    float64 `json:"preference_step" mapstructure:"preference_step"`
	PreferencePrior   float64 `json:"preference_prior" mapstructure:"preference_prior"`
	DismissEngagement float64 `json:"dismiss_engagement" mapstructure:"dismiss_engagement"`

	Retention time.Duration `json:"retention" mapstructure:"retention"`
}

// DefaultFeedbackConfig returns sensible defaults
func DefaultFeedbackConfig() FeedbackConfig {
	return FeedbackConfig{
		Alpha:              0.3,
		Prior:              0.5,
		CompletionWeight:   0.4,
		SatisfactionWeight: 0.35,
		EngagementWeight:   0.25,
		DefaultEngagement:  0.5,
		SuccessThreshold:   0.7,
		FailureThreshold:   0.3,
		PreferenceStep:     0.1,
		PreferencePrior:    0.5,
		DismissEngagement:  0.3,
		Retention:          30 * 24 * time.Hour,
	}
}

// FeedbackProcessor owns every mutation of a profile's adaptive state:
// issuance bookkeeping and outcome-driven updates.
type FeedbackProcessor struct {
	config FeedbackConfig
	loc    *time.Location
}

// NewFeedbackProcessor creates a new feedback processor. Daily counters roll
// over at midnight in loc.
func NewFeedbackProcessor(config FeedbackConfig, loc *time.Location) *FeedbackProcessor {
	if loc == nil {
		loc = time.UTC
	}
	return &FeedbackProcessor{config: config, loc: loc}
}

// RecordIssued books an emitted intervention against the profile: cooldown
// timestamp, daily counter and the ledger entry feedback will match against.
func (f *FeedbackProcessor) RecordIssued(profile *core.UserProfile, iv *core.Intervention, now time.Time) {
	if profile.DailyCountResetAt.IsZero() || !now.Before(profile.DailyCountResetAt) {
		profile.DailyCount = 0
		profile.DailyCountResetAt = f.nextMidnight(now)
	}
	profile.DailyCount++
	profile.LastInterventionAt = now
	profile.Issued[iv.ID] = &core.IssuedIntervention{
		ID:         iv.ID,
		TemplateID: iv.TemplateID,
		Category:   iv.Category,
		IssuedAt:   now,
		ExpiresAt:  iv.Timing.Expiry,
	}
	profile.UpdatedAt = now
}

// Apply records feedback for an issued intervention. A second call for the
// same id is a no-op returning FeedbackAlreadyRecorded.
func (f *FeedbackProcessor) Apply(profile *core.UserProfile, id core.InterventionID, fb core.Feedback, now time.Time) core.FeedbackStatus {
	entry, ok := profile.Issued[id]
	if !ok {
		return core.FeedbackUnknownIntervention
	}
	if entry.FeedbackAt != nil {
		return core.FeedbackAlreadyRecorded
	}

	cfg := f.config
	outcome := f.Outcome(fb)

	prev, rated := profile.EffectivenessScores[entry.TemplateID]
	if !rated {
		prev = cfg.Prior
	}
	profile.EffectivenessScores[entry.TemplateID] = clamp01(prev*(1-cfg.Alpha) + outcome*cfg.Alpha)
	profile.EffectivenessSamples[entry.TemplateID]++

	if entry.Category != "" {
		pref, ok := profile.PreferenceWeights[entry.Category]
		if !ok {
			pref = cfg.PreferencePrior
		}
		switch {
		case outcome >= cfg.SuccessThreshold:
			pref += cfg.PreferenceStep
		case outcome <= cfg.FailureThreshold:
			pref -= cfg.PreferenceStep
		}
		profile.PreferenceWeights[entry.Category] = clamp01(pref)
	}

	engagement := f.engagement(fb)
	profile.ResponsesRecorded++
	if fb.Completion || engagement >= 0.5 {
		profile.ResponsesEngaged++
	}
	if !fb.Completion && engagement < cfg.DismissEngagement {
		profile.ConsecutiveDismissals++
	} else {
		profile.ConsecutiveDismissals = 0
	}

	at := now
	if !fb.Timestamp.IsZero() {
		at = fb.Timestamp
	}
	entry.FeedbackAt = &at
	entry.Outcome = outcome
	profile.UpdatedAt = now
	return core.FeedbackOK
}

// Outcome scores feedback in [0,1].
func (f *FeedbackProcessor) Outcome(fb core.Feedback) float64 {
	completion := 0.0
	if fb.Completion {
		completion = 1
	}
	cfg := f.config
	return clamp01(cfg.CompletionWeight*completion +
		cfg.SatisfactionWeight*clamp01(fb.Satisfaction) +
		cfg.EngagementWeight*f.engagement(fb))
}

func (f *FeedbackProcessor) engagement(fb core.Feedback) float64 {
	if fb.Engagement == nil {
		return f.config.DefaultEngagement
	}
	return clamp01(*fb.Engagement)
}

// Prune drops ledger entries older than the retention window and returns how
// many were removed. Feedback for a pruned id reports an unknown intervention.
func (f *FeedbackProcessor) Prune(profile *core.UserProfile, now time.Time) int {
	if f.config.Retention <= 0 {
		return 0
	}
	cutoff := now.Add(-f.config.Retention)
	removed := 0
	for id, entry := range profile.Issued {
		if entry.IssuedAt.Before(cutoff) {
			delete(profile.Issued, id)
			removed++
		}
	}
	return removed
}

func (f *FeedbackProcessor) nextMidnight(now time.Time) time.Time {
	local := now.In(f.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, f.loc).AddDate(0, 0, 1)
}
