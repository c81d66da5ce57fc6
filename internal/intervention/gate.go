package intervention

import (
	"time"

	"github.com/quantumlife/focuscoach/internal/core"
)

// GateConfig configures eligibility gating
type GateConfig struct {
	MaxDaily             int           `json:"max_daily" mapstructure:"max_daily"`
	MinInterval          time.Duration `json:"min_interval" mapstructure:"min_interval"`
	MaxBackoff           int           `json:"max_backoff" mapstructure:"max_backoff"` // cooldown multiplier cap after repeated dismissals
	DefaultLoadThreshold float64       `json:"default_load_threshold" mapstructure:"default_load_threshold"`
	CrisisStress         float64       `json:"crisis_stress" mapstructure:"crisis_stress"`
	MinReceptivity       float64       `json:"min_receptivity" mapstructure:"min_receptivity"`
	MinConfidence        float64       `json:"min_confidence" mapstructure:"min_confidence"`
	ContextRetry         time.Duration `json:"context_retry" mapstructure:"context_retry"`
}

// DefaultGateConfig returns sensible defaults
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxDaily:             8,
		MinInterval:          30 * time.Minute,
		MaxBackoff:           4,
		DefaultLoadThreshold: 0.8,
		CrisisStress:         0.65,
		MinReceptivity:       0.4,
		MinConfidence:        0.3,
		ContextRetry:         5 * time.Minute,
	}
}

// GateState is the terminal state of one gate evaluation.
type GateState string

const (
	GateEligible           GateState = "eligible"
	GateDeferred           GateState = "deferred"
	GateSkippedFlow        GateState = "skipped_flow"
	GateSkippedCap         GateState = "skipped_cap"
	GateSkippedLoad        GateState = "skipped_load"
	GateSkippedReceptivity GateState = "skipped_receptivity"
)

// Decision is the gate's verdict. Minimal is set when the stress override
// lets an overloaded user receive a low-intensity intervention.
type Decision struct {
	State      GateState
	Outcome    core.Outcome
	Reason     core.Reason
	RetryAfter time.Duration
	Minimal    bool
}

// Gate decides whether to intervene. It is a pure function of its inputs;
// the assessment timestamp serves as "now".
type Gate struct {
	config GateConfig
}

// NewGate creates a new gate
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// ShouldIntervene applies the rules in order; the first match wins.
func (g *Gate) ShouldIntervene(profile *core.UserProfile, assessed core.AssessedState) Decision {
	now := assessed.At

	if assessed.FocusState == core.FocusFlow {
		return skip(GateSkippedFlow, core.ReasonFlow)
	}

	if profile.EffectiveDailyCount(now) >= g.config.MaxDaily {
		return skip(GateSkippedCap, core.ReasonFrequencyCap)
	}

	if remaining := g.CooldownRemaining(profile, now); remaining > 0 {
		return Decision{
			State:      GateDeferred,
			Outcome:    core.OutcomeDeferred,
			Reason:     core.ReasonCooldown,
			RetryAfter: remaining,
		}
	}

	if assessed.Confidence < g.config.MinConfidence {
		return Decision{
			State:      GateDeferred,
			Outcome:    core.OutcomeDeferred,
			Reason:     core.ReasonInsufficientContext,
			RetryAfter: g.config.ContextRetry,
		}
	}

	if assessed.CognitiveLoad > g.loadThreshold(profile) {
		if assessed.StressLevel > g.config.CrisisStress {
			return Decision{
				State:   GateEligible,
				Outcome: core.OutcomeIntervene,
				Reason:  core.ReasonStressOverride,
				Minimal: true,
			}
		}
		return skip(GateSkippedLoad, core.ReasonOverloaded)
	}

	if assessed.Receptivity < g.minReceptivity(profile) {
		return skip(GateSkippedReceptivity, core.ReasonLowReceptivity)
	}

	return Decision{State: GateEligible, Outcome: core.OutcomeIntervene}
}

// CooldownInterval is the minimum gap after the last intervention. Each
// consecutive dismissal stretches it, up to MaxBackoff times the base.
func (g *Gate) CooldownInterval(profile *core.UserProfile) time.Duration {
	factor := 1 + profile.ConsecutiveDismissals
	if factor > g.config.MaxBackoff {
		factor = g.config.MaxBackoff
	}
	if factor < 1 {
		factor = 1
	}
	return g.config.MinInterval * time.Duration(factor)
}

// CooldownRemaining returns how long until the cooldown ends, or 0.
func (g *Gate) CooldownRemaining(profile *core.UserProfile, now time.Time) time.Duration {
	if profile.LastInterventionAt.IsZero() {
		return 0
	}
	remaining := g.CooldownInterval(profile) - now.Sub(profile.LastInterventionAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (g *Gate) loadThreshold(profile *core.UserProfile) float64 {
	if t := profile.Traits.CognitiveLoadThreshold; t > 0 && t <= 1 {
		return t
	}
	return g.config.DefaultLoadThreshold
}

func (g *Gate) minReceptivity(profile *core.UserProfile) float64 {
	if r := profile.Traits.MinReceptivity; r > 0 {
		return r
	}
	return g.config.MinReceptivity
}

func skip(state GateState, reason core.Reason) Decision {
	return Decision{State: state, Outcome: core.OutcomeSkipped, Reason: reason}
}
