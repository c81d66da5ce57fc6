package intervention

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/focuscoach/internal/core"
)

func issue(t *testing.T, proc *FeedbackProcessor, p *core.UserProfile, id core.InterventionID, at time.Time) {
	t.Helper()
	iv := &core.Intervention{ID: id, TemplateID: "focus", Category: "focus"}
	iv.Timing.Expiry = at.Add(15 * time.Minute)
	proc.RecordIssued(p, iv, at)
}

func TestRecordIssued(t *testing.T) {
	proc := NewFeedbackProcessor(DefaultFeedbackConfig(), time.UTC)
	p := newTestProfile()

	issue(t, proc, p, "iv-1", t0)
	assert.Equal(t, 1, p.DailyCount)
	assert.Equal(t, t0, p.LastInterventionAt)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), p.DailyCountResetAt)
	require.Contains(t, p.Issued, core.InterventionID("iv-1"))
	assert.Equal(t, t0.Add(15*time.Minute), p.Issued["iv-1"].ExpiresAt)

	issue(t, proc, p, "iv-2", t0.Add(time.Hour))
	assert.Equal(t, 2, p.DailyCount)

	// The next day starts a fresh count.
	issue(t, proc, p, "iv-3", t0.Add(24*time.Hour))
	assert.Equal(t, 1, p.DailyCount)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), p.DailyCountResetAt)
}

func TestFeedbackOutcome(t *testing.T) {
	proc := NewFeedbackProcessor(DefaultFeedbackConfig(), time.UTC)

	tests := []struct {
		name string
		fb   core.Feedback
		want float64
	}{
		{"completed and happy", core.Feedback{Completion: true, Satisfaction: 0.9}, 0.84},
		{"completed, fully engaged", core.Feedback{Completion: true, Satisfaction: 1, Engagement: fp(1)}, 1},
		{"dismissed", core.Feedback{Engagement: fp(0.1)}, 0.025},
		{"out of range inputs clamp", core.Feedback{Satisfaction: 3, Engagement: fp(-2)}, 0.35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, proc.Outcome(tt.fb), 1e-9)
		})
	}
}

func TestApplyPositiveFeedback(t *testing.T) {
	proc := NewFeedbackProcessor(DefaultFeedbackConfig(), time.UTC)
	p := newTestProfile()
	p.ConsecutiveDismissals = 2
	issue(t, proc, p, "iv-1", t0)

	status := proc.Apply(p, "iv-1", core.Feedback{Completion: true, Satisfaction: 0.9}, t0.Add(5*time.Minute))
	require.Equal(t, core.FeedbackOK, status)

	assert.InDelta(t, 0.602, p.EffectivenessScores["focus"], 1e-9)
	assert.Equal(t, 1, p.EffectivenessSamples["focus"])
	assert.InDelta(t, 0.6, p.PreferenceWeights["focus"], 1e-9)
	assert.Equal(t, 1, p.ResponsesRecorded)
	assert.Equal(t, 1, p.ResponsesEngaged)
	assert.Equal(t, 0, p.ConsecutiveDismissals)

	entry := p.Issued["iv-1"]
	require.NotNil(t, entry.FeedbackAt)
	assert.Equal(t, t0.Add(5*time.Minute), *entry.FeedbackAt)
	assert.InDelta(t, 0.84, entry.Outcome, 1e-9)
}

func TestApplyDismissal(t *testing.T) {
	proc := NewFeedbackProcessor(DefaultFeedbackConfig(), time.UTC)
	p := newTestProfile()
	issue(t, proc, p, "iv-1", t0)

	require.Equal(t, core.FeedbackOK, proc.Apply(p, "iv-1", core.Feedback{Engagement: fp(0.1)}, t0))
	assert.InDelta(t, 0.3575, p.EffectivenessScores["focus"], 1e-9)
	assert.InDelta(t, 0.4, p.PreferenceWeights["focus"], 1e-9)
	assert.Equal(t, 1, p.ConsecutiveDismissals)
	assert.Equal(t, 1, p.ResponsesRecorded)
	assert.Equal(t, 0, p.ResponsesEngaged)
}

func TestApplyIsIdempotent(t *testing.T) {
	proc := NewFeedbackProcessor(DefaultFeedbackConfig(), time.UTC)
	p := newTestProfile()
	issue(t, proc, p, "iv-1", t0)

	fb := core.Feedback{Completion: true, Satisfaction: 0.9}
	require.Equal(t, core.FeedbackOK, proc.Apply(p, "iv-1", fb, t0))
	snapshot := p.Clone()

	assert.Equal(t, core.FeedbackAlreadyRecorded, proc.Apply(p, "iv-1", fb, t0.Add(time.Minute)))
	assert.Equal(t, snapshot, p)
}

func TestApplyUnknownIntervention(t *testing.T) {
	proc := NewFeedbackProcessor(DefaultFeedbackConfig(), time.UTC)
	p := newTestProfile()
	snapshot := p.Clone()

	assert.Equal(t, core.FeedbackUnknownIntervention, proc.Apply(p, "nope", core.Feedback{Completion: true}, t0))
	assert.Equal(t, snapshot, p)
}

func TestApplyUsesFeedbackTimestamp(t *testing.T) {
	proc := NewFeedbackProcessor(DefaultFeedbackConfig(), time.UTC)
	p := newTestProfile()
	issue(t, proc, p, "iv-1", t0)

	at := t0.Add(3 * time.Minute)
	proc.Apply(p, "iv-1", core.Feedback{Completion: true, Timestamp: at}, t0.Add(10*time.Minute))
	assert.Equal(t, at, *p.Issued["iv-1"].FeedbackAt)
}

func TestScoresStayBounded(t *testing.T) {
	proc := NewFeedbackProcessor(DefaultFeedbackConfig(), time.UTC)
	p := newTestProfile()

	for i := 0; i < 50; i++ {
		id := core.InterventionID(fmt.Sprintf("iv-%d", i))
		issue(t, proc, p, id, t0)
		fb := core.Feedback{Completion: true, Satisfaction: 1, Engagement: fp(1)}
		if i%2 == 1 {
			fb = core.Feedback{Engagement: fp(0)}
		}
		proc.Apply(p, id, fb, t0)

		for _, v := range p.EffectivenessScores {
			require.True(t, v >= 0 && v <= 1, "score %v", v)
		}
		for _, v := range p.PreferenceWeights {
			require.True(t, v >= 0 && v <= 1, "preference %v", v)
		}
	}
}

func TestPrune(t *testing.T) {
	proc := NewFeedbackProcessor(DefaultFeedbackConfig(), time.UTC)
	p := newTestProfile()
	issue(t, proc, p, "old", t0.Add(-31*24*time.Hour))
	issue(t, proc, p, "recent", t0.Add(-time.Hour))

	assert.Equal(t, 1, proc.Prune(p, t0))
	assert.NotContains(t, p.Issued, core.InterventionID("old"))
	assert.Contains(t, p.Issued, core.InterventionID("recent"))
	assert.Equal(t, core.FeedbackUnknownIntervention, proc.Apply(p, "old", core.Feedback{}, t0))
}
