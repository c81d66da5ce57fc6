// Package intervention implements the contextual intervention decision engine:
// state assessment, eligibility gating, template selection, personalization,
// delivery timing and feedback-driven adaptation.
package intervention

import (
	"fmt"
	"time"

	"github.com/quantumlife/focuscoach/internal/core"
)

// PolicyConfig holds every tunable of the engine. One engine, many policies.
type PolicyConfig struct {
	Assessor AssessorConfig `json:"assessor" mapstructure:"assessor"`
	Gate     GateConfig     `json:"gate" mapstructure:"gate"`
	Selector SelectorConfig `json:"selector" mapstructure:"selector"`
	Personal PersonalConfig `json:"personalization" mapstructure:"personalization"`
	Timing   TimingConfig   `json:"timing" mapstructure:"timing"`
	Feedback FeedbackConfig `json:"feedback" mapstructure:"feedback"`
}

// DefaultPolicyConfig returns sensible defaults
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Assessor: DefaultAssessorConfig(),
		Gate:     DefaultGateConfig(),
		Selector: DefaultSelectorConfig(),
		Personal: DefaultPersonalConfig(),
		Timing:   DefaultTimingConfig(),
		Feedback: DefaultFeedbackConfig(),
	}
}

// Validate reports the first out-of-range setting.
func (p PolicyConfig) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"gate.crisis_stress", p.Gate.CrisisStress},
		{"gate.default_load_threshold", p.Gate.DefaultLoadThreshold},
		{"gate.min_receptivity", p.Gate.MinReceptivity},
		{"gate.min_confidence", p.Gate.MinConfidence},
		{"personalization.low_load", p.Personal.LowLoad},
		{"personalization.high_load", p.Personal.HighLoad},
		{"personalization.medium_scale", p.Personal.MediumScale},
		{"personalization.high_scale", p.Personal.HighScale},
		{"feedback.alpha", p.Feedback.Alpha},
		{"feedback.prior", p.Feedback.Prior},
		{"feedback.success_threshold", p.Feedback.SuccessThreshold},
		{"feedback.failure_threshold", p.Feedback.FailureThreshold},
		{"feedback.dismiss_engagement", p.Feedback.DismissEngagement},
	}
	for _, c := range checks {
		if c.v < 0 || c.v > 1 {
			return fmt.Errorf("%w: %s=%v not in [0,1]", core.ErrConfiguration, c.name, c.v)
		}
	}
	if p.Feedback.Alpha == 0 {
		return fmt.Errorf("%w: feedback.alpha must be positive", core.ErrConfiguration)
	}
	if p.Gate.DefaultLoadThreshold == 0 {
		return fmt.Errorf("%w: gate.default_load_threshold must be positive", core.ErrConfiguration)
	}
	if p.Gate.MaxDaily < 1 {
		return fmt.Errorf("%w: gate.max_daily must be at least 1", core.ErrConfiguration)
	}
	if p.Gate.MinInterval < 0 {
		return fmt.Errorf("%w: gate.min_interval is negative", core.ErrConfiguration)
	}
	if p.Gate.MaxBackoff < 1 {
		return fmt.Errorf("%w: gate.max_backoff must be at least 1", core.ErrConfiguration)
	}
	// Heavier load must never render longer steps
	if p.Personal.LowLoad > p.Personal.HighLoad {
		return fmt.Errorf("%w: personalization.low_load exceeds high_load", core.ErrConfiguration)
	}
	if p.Personal.HighScale <= 0 || p.Personal.HighScale > p.Personal.MediumScale {
		return fmt.Errorf("%w: personalization scales must satisfy 0 < high_scale <= medium_scale <= 1", core.ErrConfiguration)
	}
	if p.Personal.MinStepDuration < 0 {
		return fmt.Errorf("%w: personalization.min_step_duration is negative", core.ErrConfiguration)
	}
	if p.Personal.LowIntensityMax > p.Personal.ModerateMax {
		return fmt.Errorf("%w: personalization.low_intensity_max exceeds moderate_max", core.ErrConfiguration)
	}
	if p.Timing.MinDelay > p.Timing.MaxDelay {
		return fmt.Errorf("%w: timing.min_delay exceeds timing.max_delay", core.ErrConfiguration)
	}
	if p.Timing.MinExpiry > p.Timing.MaxExpiry || p.Timing.MinExpiry <= 0 {
		return fmt.Errorf("%w: timing expiry bounds invalid", core.ErrConfiguration)
	}
	if p.Timing.BreakInterval <= 0 {
		return fmt.Errorf("%w: timing.break_interval must be positive", core.ErrConfiguration)
	}
	if h := p.Timing.QuietHoursStart; h < 0 || h > 23 {
		return fmt.Errorf("%w: timing.quiet_hours_start=%d", core.ErrConfiguration, h)
	}
	if h := p.Timing.QuietHoursEnd; h < 0 || h > 23 {
		return fmt.Errorf("%w: timing.quiet_hours_end=%d", core.ErrConfiguration, h)
	}
	if p.Timing.Timezone != "" {
		if _, err := time.LoadLocation(p.Timing.Timezone); err != nil {
			return fmt.Errorf("%w: timing.timezone: %v", core.ErrConfiguration, err)
		}
	}
	if p.Feedback.FailureThreshold >= p.Feedback.SuccessThreshold {
		return fmt.Errorf("%w: feedback.failure_threshold must be below success_threshold", core.ErrConfiguration)
	}
	return nil
}

// clamp01 bounds v to [0,1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
