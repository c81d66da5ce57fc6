package intervention

import (
	"math"
	"time"

	"github.com/quantumlife/focuscoach/internal/core"
)

// TimingConfig configures delivery timing
type TimingConfig struct {
	ImmediateLoad      float64  `json:"immediate_load" mapstructure:"immediate_load"`
	CrisisStress       float64  `json:"crisis_stress" mapstructure:"crisis_stress"`
	UrgentCategories   []string `json:"urgent_categories" mapstructure:"urgent_categories"`
	BreakStreakMinutes float64  `json:"break_streak_minutes" mapstructure:"break_streak_minutes"`

	BreakInterval time.Duration `json:"break_interval" mapstructure:"break_interval"`
	MinDelay      time.Duration `json:"min_delay" mapstructure:"min_delay"`
	MaxDelay      time.Duration `json:"max_delay" mapstructure:"max_delay"`

	// Delivery preferences
	QuietHoursStart int    `json:"quiet_hours_start" mapstructure:"quiet_hours_start"` // Hour to start quiet mode (default: 22)
	QuietHoursEnd   int    `json:"quiet_hours_end" mapstructure:"quiet_hours_end"`     // Hour to end quiet mode (default: 7)
	Timezone        string `json:"timezone" mapstructure:"timezone"`                   // IANA name, empty for UTC

	// Staleness windows
	ImmediateWindow time.Duration `json:"immediate_window" mapstructure:"immediate_window"`
	BreakWindow     time.Duration `json:"break_window" mapstructure:"break_window"`
	WithinWindow    time.Duration `json:"within_window" mapstructure:"within_window"`
	MinExpiry       time.Duration `json:"min_expiry" mapstructure:"min_expiry"`
	MaxExpiry       time.Duration `json:"max_expiry" mapstructure:"max_expiry"`
}

// DefaultTimingConfig returns sensible defaults
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		ImmediateLoad:      0.9,
		CrisisStress:       0.65,
		UrgentCategories:   []string{"stress", "energy"},
		BreakStreakMinutes: 20,
		BreakInterval:      25 * time.Minute,
		MinDelay:           time.Minute,
		MaxDelay:           30 * time.Minute,
		QuietHoursStart:    22,
		QuietHoursEnd:      7,
		ImmediateWindow:    10 * time.Minute,
		BreakWindow:        30 * time.Minute,
		WithinWindow:       15 * time.Minute,
		MinExpiry:          5 * time.Minute,
		MaxExpiry:          30 * time.Minute,
	}
}

// Plan describes the intervention being timed.
type Plan struct {
	Category string
	Minimal  bool
	Duration time.Duration
}

// TimingOptimizer computes when an intervention should be delivered and when
// it goes stale.
type TimingOptimizer struct {
	config   TimingConfig
	maxDaily int
	loc      *time.Location
}

// NewTimingOptimizer creates a new timing optimizer. An unknown timezone
// falls back to UTC; PolicyConfig.Validate rejects it up front.
func NewTimingOptimizer(config TimingConfig, maxDaily int) *TimingOptimizer {
	loc := time.UTC
	if config.Timezone != "" {
		if l, err := time.LoadLocation(config.Timezone); err == nil {
			loc = l
		}
	}
	return &TimingOptimizer{config: config, maxDaily: maxDaily, loc: loc}
}

// Optimize returns the delivery window. The assessment time is "now".
func (o *TimingOptimizer) Optimize(profile *core.UserProfile, assessed core.AssessedState, snap core.ContextSnapshot, plan Plan) core.Timing {
	now := assessed.At
	cfg := o.config
	streak := math.Max(0, floatOr(snap.DeepWorkStreakMinutes, 0))

	var t core.Timing
	switch {
	case o.needsImmediate(assessed, plan):
		t.Mode = core.DeliverImmediately
		t.Urgency = core.UrgencyImmediate
	case assessed.FocusState == core.FocusFocused || streak >= cfg.BreakStreakMinutes:
		t.Mode = core.DeliverNaturalBreak
		t.Urgency = core.UrgencyLow
		t.Delay = o.untilNextBreak(streak)
	default:
		t.Mode = core.DeliverWithin
		t.Delay = cfg.MinDelay + time.Duration(float64(cfg.MaxDelay-cfg.MinDelay)*(1-clamp01(assessed.Receptivity)))
		t.Delay = t.Delay.Round(time.Second)
		switch {
		case t.Delay <= 5*time.Minute:
			t.Urgency = core.UrgencyHigh
		case t.Delay <= 15*time.Minute:
			t.Urgency = core.UrgencyNormal
		default:
			t.Urgency = core.UrgencyLow
		}
	}

	t.DeliverAt = now.Add(t.Delay)
	if t.Mode != core.DeliverImmediately {
		if end, quiet := o.quietUntil(t.DeliverAt); quiet {
			t.DeliverAt = end
			t.Delay = end.Sub(now)
			t.QuietShifted = true
		}
	}

	t.Expiry = t.DeliverAt.Add(o.window(t.Mode))
	t.Duration = plan.Duration

	t.DailyRemaining = o.maxDaily - profile.EffectiveDailyCount(now) - 1
	if t.DailyRemaining < 0 {
		t.DailyRemaining = 0
	}
	return t
}

func (o *TimingOptimizer) needsImmediate(assessed core.AssessedState, plan Plan) bool {
	if plan.Minimal || assessed.CognitiveLoad >= o.config.ImmediateLoad {
		return true
	}
	if !containsString(o.config.UrgentCategories, plan.Category) {
		return false
	}
	return assessed.StressLevel > o.config.CrisisStress || assessed.FocusState == core.FocusOverloaded
}

// untilNextBreak is the time to the next multiple of the break interval,
// measured along the current streak.
func (o *TimingOptimizer) untilNextBreak(streakMinutes float64) time.Duration {
	interval := o.config.BreakInterval.Minutes()
	left := interval - math.Mod(streakMinutes, interval)
	d := time.Duration(left * float64(time.Minute)).Round(time.Second)
	if d < o.config.MinDelay {
		d = o.config.MinDelay
	}
	return d
}

func (o *TimingOptimizer) window(mode core.DeliveryMode) time.Duration {
	var w time.Duration
	switch mode {
	case core.DeliverImmediately:
		w = o.config.ImmediateWindow
	case core.DeliverNaturalBreak:
		w = o.config.BreakWindow
	default:
		w = o.config.WithinWindow
	}
	if w < o.config.MinExpiry {
		w = o.config.MinExpiry
	}
	if w > o.config.MaxExpiry {
		w = o.config.MaxExpiry
	}
	return w
}

// quietUntil reports whether at falls in quiet hours and, if so, when they end.
func (o *TimingOptimizer) quietUntil(at time.Time) (time.Time, bool) {
	start, end := o.config.QuietHoursStart, o.config.QuietHoursEnd
	if start == end {
		return time.Time{}, false
	}

	local := at.In(o.loc)
	hour := local.Hour()

	var quiet bool
	if start > end {
		// Quiet hours span midnight (e.g., 22:00 to 07:00)
		quiet = hour >= start || hour < end
	} else {
		quiet = hour >= start && hour < end
	}
	if !quiet {
		return time.Time{}, false
	}

	wake := time.Date(local.Year(), local.Month(), local.Day(), end, 0, 0, 0, o.loc)
	if !wake.After(local) {
		wake = wake.AddDate(0, 0, 1)
	}
	return wake, true
}
