package intervention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantumlife/focuscoach/internal/core"
)

func TestOptimizeModes(t *testing.T) {
	o := NewTimingOptimizer(DefaultTimingConfig(), 8)
	plan := Plan{Category: "focus", Duration: 4 * time.Minute}

	tests := []struct {
		name        string
		assessed    func(a *core.AssessedState)
		snap        core.ContextSnapshot
		plan        Plan
		wantMode    core.DeliveryMode
		wantUrgency core.Urgency
		wantDelay   time.Duration
		wantWindow  time.Duration
	}{
		{
			name:        "very high load",
			assessed:    func(a *core.AssessedState) { a.CognitiveLoad = 0.95 },
			plan:        plan,
			wantMode:    core.DeliverImmediately,
			wantUrgency: core.UrgencyImmediate,
			wantWindow:  10 * time.Minute,
		},
		{
			name:        "minimal plan",
			plan:        Plan{Category: "rest", Minimal: true},
			wantMode:    core.DeliverImmediately,
			wantUrgency: core.UrgencyImmediate,
			wantWindow:  10 * time.Minute,
		},
		{
			name:        "stress category under stress",
			assessed:    func(a *core.AssessedState) { a.StressLevel = 0.7 },
			plan:        Plan{Category: "stress"},
			wantMode:    core.DeliverImmediately,
			wantUrgency: core.UrgencyImmediate,
			wantWindow:  10 * time.Minute,
		},
		{
			name:        "stress alone does not rush other categories",
			assessed:    func(a *core.AssessedState) { a.StressLevel, a.Receptivity = 0.7, 1 },
			plan:        plan,
			wantMode:    core.DeliverWithin,
			wantUrgency: core.UrgencyHigh,
			wantDelay:   time.Minute,
			wantWindow:  15 * time.Minute,
		},
		{
			name:        "long streak waits for a break",
			snap:        core.ContextSnapshot{DeepWorkStreakMinutes: fp(22)},
			plan:        plan,
			wantMode:    core.DeliverNaturalBreak,
			wantUrgency: core.UrgencyLow,
			wantDelay:   3 * time.Minute,
			wantWindow:  30 * time.Minute,
		},
		{
			name:        "focused",
			assessed:    func(a *core.AssessedState) { a.FocusState = core.FocusFocused },
			snap:        core.ContextSnapshot{DeepWorkStreakMinutes: fp(10)},
			plan:        plan,
			wantMode:    core.DeliverNaturalBreak,
			wantUrgency: core.UrgencyLow,
			wantDelay:   15 * time.Minute,
			wantWindow:  30 * time.Minute,
		},
		{
			name:        "receptive",
			assessed:    func(a *core.AssessedState) { a.Receptivity = 1 },
			plan:        plan,
			wantMode:    core.DeliverWithin,
			wantUrgency: core.UrgencyHigh,
			wantDelay:   time.Minute,
			wantWindow:  15 * time.Minute,
		},
		{
			name:        "half receptive",
			assessed:    func(a *core.AssessedState) { a.Receptivity = 0.5 },
			plan:        plan,
			wantMode:    core.DeliverWithin,
			wantUrgency: core.UrgencyLow,
			wantDelay:   15*time.Minute + 30*time.Second,
			wantWindow:  15 * time.Minute,
		},
		{
			name:        "unreceptive",
			assessed:    func(a *core.AssessedState) { a.Receptivity = 0 },
			plan:        plan,
			wantMode:    core.DeliverWithin,
			wantUrgency: core.UrgencyLow,
			wantDelay:   30 * time.Minute,
			wantWindow:  15 * time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := favorable()
			if tt.assessed != nil {
				tt.assessed(&a)
			}
			got := o.Optimize(newTestProfile(), a, tt.snap, tt.plan)

			assert.Equal(t, tt.wantMode, got.Mode)
			assert.Equal(t, tt.wantUrgency, got.Urgency)
			assert.Equal(t, tt.wantDelay, got.Delay)
			assert.Equal(t, t0.Add(tt.wantDelay), got.DeliverAt)
			assert.Equal(t, got.DeliverAt.Add(tt.wantWindow), got.Expiry)
			assert.True(t, got.Expiry.After(got.DeliverAt))
			assert.Equal(t, tt.plan.Duration, got.Duration)
			assert.False(t, got.QuietShifted)
		})
	}
}

func TestOptimizeQuietHours(t *testing.T) {
	o := NewTimingOptimizer(DefaultTimingConfig(), 8)
	late := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)

	a := favorable()
	a.At = late
	got := o.Optimize(newTestProfile(), a, core.ContextSnapshot{}, Plan{Category: "focus"})
	assert.True(t, got.QuietShifted)
	assert.Equal(t, time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC), got.DeliverAt)
	assert.Equal(t, 8*time.Hour, got.Delay)
	assert.Equal(t, got.DeliverAt.Add(15*time.Minute), got.Expiry)

	// Urgent delivery ignores quiet hours.
	a.CognitiveLoad = 0.95
	got = o.Optimize(newTestProfile(), a, core.ContextSnapshot{}, Plan{Category: "focus"})
	assert.False(t, got.QuietShifted)
	assert.Equal(t, late, got.DeliverAt)
}

func TestOptimizeQuietHoursDisabled(t *testing.T) {
	cfg := DefaultTimingConfig()
	cfg.QuietHoursStart, cfg.QuietHoursEnd = 0, 0
	o := NewTimingOptimizer(cfg, 8)

	a := favorable()
	a.At = time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	got := o.Optimize(newTestProfile(), a, core.ContextSnapshot{}, Plan{})
	assert.False(t, got.QuietShifted)
}

func TestOptimizeDailyRemaining(t *testing.T) {
	o := NewTimingOptimizer(DefaultTimingConfig(), 8)

	tests := []struct {
		count   int
		resetAt time.Time
		want    int
	}{
		{0, time.Time{}, 7},
		{3, t0.Add(time.Hour), 4},
		{3, t0.Add(-time.Hour), 7},
		{8, t0.Add(time.Hour), 0},
	}
	for _, tt := range tests {
		p := newTestProfile()
		p.DailyCount, p.DailyCountResetAt = tt.count, tt.resetAt
		got := o.Optimize(p, favorable(), core.ContextSnapshot{}, Plan{})
		assert.Equal(t, tt.want, got.DailyRemaining, "count=%d reset=%v", tt.count, tt.resetAt)
	}
}
