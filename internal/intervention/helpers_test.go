package intervention

import (
	"sync"
	"time"

	"github.com/quantumlife/focuscoach/internal/core"
)

// Monday 10:00 UTC, well outside quiet hours.
var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func newTestProfile() *core.UserProfile {
	return core.NewUserProfile("u1", core.DefaultTraits(), t0)
}

// favorable is an assessed state every gate rule lets through.
func favorable() core.AssessedState {
	return core.AssessedState{
		CognitiveLoad: 0.5,
		EnergyLevel:   0.6,
		StressLevel:   0.4,
		Receptivity:   0.6,
		FocusState:    core.FocusNeutral,
		Confidence:    1,
		At:            t0,
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(at time.Time) *testClock {
	return &testClock{now: at}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func skeleton(text string, d time.Duration, priority int) core.ActionSkeleton {
	return core.ActionSkeleton{Text: text, Duration: d, Priority: priority}
}

func testTemplate(id, category string, triggers ...string) core.InterventionTemplate {
	return core.InterventionTemplate{
		ID:       core.TemplateID(id),
		Title:    id,
		Category: category,
		Triggers: triggers,
		LoadBand: core.LoadBand{Min: 0, Max: 1},
		Actions: []core.ActionSkeleton{
			skeleton("first", 2*time.Minute, 1),
			skeleton("second", 2*time.Minute, 2),
		},
		FollowUp: core.FollowUpPolicy{After: 20 * time.Minute, Kind: "check_in"},
	}
}

func defaultTemplate() core.InterventionTemplate {
	t := testTemplate("fallback", "rest")
	t.Default = true
	t.LowIntensity = true
	return t
}

// staticCatalog lets tests build catalogs the validating constructor rejects.
type staticCatalog struct {
	templates []core.InterventionTemplate
	def       *core.InterventionTemplate
}

func (c staticCatalog) Templates() []core.InterventionTemplate { return c.templates }
func (c staticCatalog) Default() *core.InterventionTemplate    { return c.def }
