// Package core defines the fundamental types for focuscoach.
// Every other package speaks in these terms.
package core

import (
	"time"
)

// UserID identifies a coached user
type UserID string

// TemplateID identifies an intervention template in the catalog
type TemplateID string

// InterventionID identifies a single issued intervention
type InterventionID string

// -----------------------------------------------------------------------------
// CONTEXT - What the caller tells us about the user right now
// -----------------------------------------------------------------------------

// TimeOfDay is a coarse time bucket.
type TimeOfDay string

const (
	TimeMorning   TimeOfDay = "morning"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
	TimeNight     TimeOfDay = "night"
)

// TimeOfDayForHour buckets a 24h clock hour.
func TimeOfDayForHour(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return TimeMorning
	case hour >= 12 && hour < 17:
		return TimeAfternoon
	case hour >= 17 && hour < 22:
		return TimeEvening
	default:
		return TimeNight
	}
}

// ContextSnapshot is the per-call situational input. Every field is optional;
// a nil field means the caller did not supply it.
type ContextSnapshot struct {
	TaskComplexity        *float64   `json:"task_complexity,omitempty"`
	TimePressure          *float64   `json:"time_pressure,omitempty"`
	Interruptions         *int       `json:"interruptions,omitempty"`
	Distractions          *int       `json:"distractions,omitempty"`
	DeepWorkStreakMinutes *float64   `json:"deep_work_streak_minutes,omitempty"`
	MinutesSinceBreak     *float64   `json:"minutes_since_break,omitempty"`
	EnergyLevel           *float64   `json:"energy_level,omitempty"`
	StressLevel           *float64   `json:"stress_level,omitempty"`
	TimeOfDay             *TimeOfDay `json:"time_of_day,omitempty"`
	Triggers              []string   `json:"triggers,omitempty"`
}

// SignalCount reports how many recognized signals were supplied.
func (c ContextSnapshot) SignalCount() int {
	n := 0
	for _, set := range []bool{
		c.TaskComplexity != nil,
		c.TimePressure != nil,
		c.Interruptions != nil,
		c.Distractions != nil,
		c.DeepWorkStreakMinutes != nil,
		c.MinutesSinceBreak != nil,
		c.EnergyLevel != nil,
		c.StressLevel != nil,
		c.TimeOfDay != nil,
		len(c.Triggers) > 0,
	} {
		if set {
			n++
		}
	}
	return n
}

// FocusState is the attention partition derived from the assessed signals.
type FocusState string

const (
	FocusFlow       FocusState = "flow"
	FocusFocused    FocusState = "focused"
	FocusNeutral    FocusState = "neutral"
	FocusDistracted FocusState = "distracted"
	FocusOverloaded FocusState = "overloaded"
)

// AssessedState is the normalized view of a ContextSnapshot.
// All numeric fields are in [0,1].
type AssessedState struct {
	CognitiveLoad float64    `json:"cognitive_load"`
	EnergyLevel   float64    `json:"energy_level"`
	StressLevel   float64    `json:"stress_level"`
	Receptivity   float64    `json:"receptivity"`
	FocusState    FocusState `json:"focus_state"`
	Triggers      []string   `json:"triggers"`
	Confidence    float64    `json:"confidence"`
	At            time.Time  `json:"at"`
}

// HasTrigger reports whether tag is active.
func (a AssessedState) HasTrigger(tag string) bool {
	for _, t := range a.Triggers {
		if t == tag {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// CATALOG - Immutable intervention templates
// -----------------------------------------------------------------------------

// LoadBand is the cognitive load range a template is designed for.
type LoadBand struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Fit returns 1 inside the band, decaying linearly to 0 half a unit outside it.
func (b LoadBand) Fit(load float64) float64 {
	var dist float64
	switch {
	case load < b.Min:
		dist = b.Min - load
	case load > b.Max:
		dist = load - b.Max
	}
	fit := 1 - 2*dist
	if fit < 0 {
		return 0
	}
	return fit
}

// ActionSkeleton is one unrendered step of a template.
type ActionSkeleton struct {
	Text          string        `json:"text" yaml:"text"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	Priority      int           `json:"priority" yaml:"priority"` // 1 is most important
	SuccessMetric string        `json:"success_metric,omitempty" yaml:"success_metric,omitempty"`
}

// FollowUpPolicy says when to check back after delivery.
type FollowUpPolicy struct {
	After time.Duration `json:"after" yaml:"after"`
	Kind  string        `json:"kind" yaml:"kind"`
}

// InterventionTemplate is a reusable intervention definition. Templates are
// never mutated after the catalog is built.
type InterventionTemplate struct {
	ID             TemplateID          `json:"id" yaml:"id"`
	Title          string              `json:"title" yaml:"title"`
	Category       string              `json:"category" yaml:"category"`
	Description    string              `json:"description,omitempty" yaml:"description,omitempty"`
	Default        bool                `json:"default,omitempty" yaml:"default,omitempty"`
	LowIntensity   bool                `json:"low_intensity,omitempty" yaml:"low_intensity,omitempty"`
	Triggers       []string            `json:"triggers" yaml:"triggers"`
	LoadBand       LoadBand            `json:"load_band" yaml:"load_band"`
	Motivations    []MotivationTrigger `json:"motivations,omitempty" yaml:"motivations,omitempty"`
	Actions        []ActionSkeleton    `json:"actions" yaml:"actions"`
	SuccessMetrics []string            `json:"success_metrics,omitempty" yaml:"success_metrics,omitempty"`
	FollowUp       FollowUpPolicy      `json:"follow_up" yaml:"follow_up"`
}

// TotalDuration sums the action durations.
func (t *InterventionTemplate) TotalDuration() time.Duration {
	var total time.Duration
	for _, a := range t.Actions {
		total += a.Duration
	}
	return total
}

// TriggerOverlap counts how many of the active triggers this template responds to.
func (t *InterventionTemplate) TriggerOverlap(active []string) int {
	n := 0
	for _, want := range t.Triggers {
		for _, have := range active {
			if want == have {
				n++
				break
			}
		}
	}
	return n
}

// -----------------------------------------------------------------------------
// INTERVENTION - What the pipeline emits
// -----------------------------------------------------------------------------

// Intensity summarizes how demanding a rendered intervention is.
type Intensity string

const (
	IntensityMinimal  Intensity = "minimal"
	IntensityLow      Intensity = "low"
	IntensityModerate Intensity = "moderate"
	IntensityHigh     Intensity = "high"
)

// StepFormat is the structure chosen for rendered steps.
type StepFormat string

const (
	FormatNumbered  StepFormat = "numbered"
	FormatSuggested StepFormat = "suggested"
	FormatBulleted  StepFormat = "bulleted"
)

// Urgency levels for delivery
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyHigh      Urgency = "high"
	UrgencyNormal    Urgency = "normal"
	UrgencyLow       Urgency = "low"
)

// DeliveryMode says how DeliverAt was chosen.
type DeliveryMode string

const (
	DeliverImmediately  DeliveryMode = "immediate"
	DeliverNaturalBreak DeliveryMode = "natural_break"
	DeliverWithin       DeliveryMode = "within"
)

// RenderedStep is a concrete action step shown to the user.
type RenderedStep struct {
	Text          string        `json:"text"`
	Duration      time.Duration `json:"duration"`
	Priority      int           `json:"priority"`
	SuccessMetric string        `json:"success_metric,omitempty"`
}

// Timing is the delivery window of an intervention.
type Timing struct {
	DeliverAt      time.Time     `json:"deliver_at"`
	Expiry         time.Time     `json:"expiry"`
	Mode           DeliveryMode  `json:"mode"`
	Urgency        Urgency       `json:"urgency"`
	Delay          time.Duration `json:"delay"`
	Duration       time.Duration `json:"duration"`
	DailyRemaining int           `json:"daily_remaining"`
	QuietShifted   bool          `json:"quiet_shifted,omitempty"`
}

// FollowUpPlan is a scheduled check-in after delivery.
type FollowUpPlan struct {
	At   time.Time `json:"at"`
	Kind string    `json:"kind"`
}

// Intervention is a single personalized, timed intervention. The engine hands
// it to the caller and keeps only a ledger entry for feedback matching.
type Intervention struct {
	ID             InterventionID    `json:"id"`
	UserID         UserID            `json:"user_id"`
	TemplateID     TemplateID        `json:"template_id"`
	Category       string            `json:"category"`
	Headline       string            `json:"headline"`
	Tone           CommunicationPref `json:"tone"`
	Format         StepFormat        `json:"format"`
	Steps          []RenderedStep    `json:"steps"`
	Intensity      Intensity         `json:"intensity"`
	Timing         Timing            `json:"timing"`
	SuccessMetrics []string          `json:"success_metrics,omitempty"`
	FollowUp       FollowUpPlan      `json:"follow_up"`
	Assessed       AssessedState     `json:"assessed"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Expired reports whether the delivery window has closed.
func (i *Intervention) Expired(now time.Time) bool {
	return !now.Before(i.Timing.Expiry)
}

// TotalDuration sums the rendered step durations.
func (i *Intervention) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range i.Steps {
		total += s.Duration
	}
	return total
}

// -----------------------------------------------------------------------------
// DECISION
// -----------------------------------------------------------------------------

// Outcome is the top-level result of a decision.
type Outcome string

const (
	OutcomeIntervene Outcome = "intervene"
	OutcomeDeferred  Outcome = "deferred"
	OutcomeSkipped   Outcome = "skipped"
)

// Reason explains a decision.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonFlow                Reason = "flow"
	ReasonFrequencyCap        Reason = "frequency_cap"
	ReasonCooldown            Reason = "cooldown"
	ReasonInsufficientContext Reason = "insufficient_context"
	ReasonOverloaded          Reason = "overloaded"
	ReasonLowReceptivity      Reason = "low_receptivity"
	ReasonStressOverride      Reason = "stress_override"
)

// DecisionResult is what assess-and-decide returns. Intervention is set only
// when Outcome is OutcomeIntervene; RetryAfter only when deferred.
type DecisionResult struct {
	Outcome      Outcome       `json:"outcome"`
	Reason       Reason        `json:"reason,omitempty"`
	RetryAfter   time.Duration `json:"retry_after,omitempty"`
	Intervention *Intervention `json:"intervention,omitempty"`
	Assessed     AssessedState `json:"assessed"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// -----------------------------------------------------------------------------
// FEEDBACK
// -----------------------------------------------------------------------------

// Feedback is the user's response to a delivered intervention.
type Feedback struct {
	Completion   bool      `json:"completion"`
	Satisfaction float64   `json:"satisfaction"`
	Engagement   *float64  `json:"engagement,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// FeedbackStatus is the typed result of recording feedback.
type FeedbackStatus string

const (
	FeedbackOK                  FeedbackStatus = "ok"
	FeedbackAlreadyRecorded     FeedbackStatus = "already_recorded"
	FeedbackUnknownIntervention FeedbackStatus = "unknown_intervention"
)

// -----------------------------------------------------------------------------
// PROFILE - Persisted per-user state
// -----------------------------------------------------------------------------

// IssuedIntervention is the ledger entry kept for each emitted intervention
// so feedback can be matched and applied exactly once.
type IssuedIntervention struct {
	ID         InterventionID `json:"id"`
	TemplateID TemplateID     `json:"template_id"`
	Category   string         `json:"category"`
	IssuedAt   time.Time      `json:"issued_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	FeedbackAt *time.Time     `json:"feedback_at,omitempty"`
	Outcome    float64        `json:"outcome,omitempty"`
}

// UserProfile is everything the engine remembers about a user.
type UserProfile struct {
	UserID UserID `json:"user_id"`
	Traits Traits `json:"traits"`

	EffectivenessScores  map[TemplateID]float64 `json:"effectiveness_scores"`
	EffectivenessSamples map[TemplateID]int     `json:"effectiveness_samples"`
	PreferenceWeights    map[string]float64     `json:"preference_weights"` // by template category

	LastInterventionAt    time.Time `json:"last_intervention_at"`
	DailyCount            int       `json:"daily_count"`
	DailyCountResetAt     time.Time `json:"daily_count_reset_at"`
	ConsecutiveDismissals int       `json:"consecutive_dismissals"`
	ResponsesRecorded     int       `json:"responses_recorded"`
	ResponsesEngaged      int       `json:"responses_engaged"`

	Issued map[InterventionID]*IssuedIntervention `json:"issued"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserProfile returns an empty profile with the given traits.
func NewUserProfile(id UserID, traits Traits, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:               id,
		Traits:               traits.Clone(),
		EffectivenessScores:  make(map[TemplateID]float64),
		EffectivenessSamples: make(map[TemplateID]int),
		PreferenceWeights:    make(map[string]float64),
		Issued:               make(map[InterventionID]*IssuedIntervention),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// ResponseRate is the share of recorded feedback that showed engagement.
// With no history it is 0.5.
func (p *UserProfile) ResponseRate() float64 {
	if p.ResponsesRecorded == 0 {
		return 0.5
	}
	return float64(p.ResponsesEngaged) / float64(p.ResponsesRecorded)
}

// EffectiveDailyCount is the daily counter as of now, treating an elapsed
// reset time as a fresh day.
func (p *UserProfile) EffectiveDailyCount(now time.Time) int {
	if p.DailyCountResetAt.IsZero() || !now.Before(p.DailyCountResetAt) {
		return 0
	}
	return p.DailyCount
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Traits = p.Traits.Clone()
	out.EffectivenessScores = make(map[TemplateID]float64, len(p.EffectivenessScores))
	for k, v := range p.EffectivenessScores {
		out.EffectivenessScores[k] = v
	}
	out.EffectivenessSamples = make(map[TemplateID]int, len(p.EffectivenessSamples))
	for k, v := range p.EffectivenessSamples {
		out.EffectivenessSamples[k] = v
	}
	out.PreferenceWeights = make(map[string]float64, len(p.PreferenceWeights))
	for k, v := range p.PreferenceWeights {
		out.PreferenceWeights[k] = v
	}
	out.Issued = make(map[InterventionID]*IssuedIntervention, len(p.Issued))
	for k, v := range p.Issued {
		entry := *v
		if v.FeedbackAt != nil {
			at := *v.FeedbackAt
			entry.FeedbackAt = &at
		}
		out.Issued[k] = &entry
	}
	return &out
}
