package intervention

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/quantumlife/focuscoach/internal/core"
)

// PersonalConfig configures load-based step scaling
type PersonalConfig struct {
	LowLoad           float64       `json:"low_load" mapstructure:"low_load"`   // below: every step, full length
	HighLoad          float64       `json:"high_load" mapstructure:"high_load"` // at or above: one step only
	MediumScale       float64       `json:"medium_scale" mapstructure:"medium_scale"`
	HighScale         float64       `json:"high_scale" mapstructure:"high_scale"`
	MediumMaxPriority int           `json:"medium_max_priority" mapstructure:"medium_max_priority"`
	MinStepDuration   time.Duration `json:"min_step_duration" mapstructure:"min_step_duration"`
	LowIntensityMax   time.Duration `json:"low_intensity_max" mapstructure:"low_intensity_max"`
	ModerateMax       time.Duration `json:"moderate_max" mapstructure:"moderate_max"`
}

// DefaultPersonalConfig returns sensible defaults
func DefaultPersonalConfig() PersonalConfig {
	return PersonalConfig{
		LowLoad:           0.4,
		HighLoad:          0.7,
		MediumScale:       0.75,
		HighScale:         0.5,
		MediumMaxPriority: 2,
		MinStepDuration:   time.Minute,
		LowIntensityMax:   5 * time.Minute,
		ModerateMax:       10 * time.Minute,
	}
}

// RenderedContent is a template adapted to one user and moment.
type RenderedContent struct {
	Headline       string
	Tone           core.CommunicationPref
	Format         core.StepFormat
	Steps          []core.RenderedStep
	Intensity      core.Intensity
	SuccessMetrics []string
}

// TotalDuration sums the rendered steps.
func (r RenderedContent) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range r.Steps {
		total += s.Duration
	}
	return total
}

// Personalizer adapts templates to a user's tone, structure and current load.
type Personalizer struct {
	config PersonalConfig
}

// NewPersonalizer creates a new personalizer
func NewPersonalizer(config PersonalConfig) *Personalizer {
	return &Personalizer{config: config}
}

// Personalize renders a template. For the same template the number of steps
// and their total duration never grow as cognitive load rises.
func (p *Personalizer) Personalize(t *core.InterventionTemplate, profile *core.UserProfile, assessed core.AssessedState, minimal bool) RenderedContent {
	tone := profile.Traits.Communication
	if tone == "" {
		tone = core.CommSupportive
	}
	format := formatFor(profile.Traits.LearningStyle)

	steps := p.scaleSteps(t.Actions, assessed.CognitiveLoad, minimal)
	for i := range steps {
		steps[i].Text = renderStep(format, i, steps[i])
	}

	out := RenderedContent{
		Headline:       headline(tone, t.Title),
		Tone:           tone,
		Format:         format,
		Steps:          steps,
		SuccessMetrics: append([]string(nil), t.SuccessMetrics...),
	}
	out.Intensity = p.intensity(out, minimal)
	return out
}

func (p *Personalizer) scaleSteps(actions []core.ActionSkeleton, load float64, minimal bool) []core.RenderedStep {
	minPriority := math.MaxInt
	for _, a := range actions {
		if a.Priority < minPriority {
			minPriority = a.Priority
		}
	}

	var keep func(core.ActionSkeleton) bool
	scale := 1.0
	single := false

	switch {
	case minimal || load >= p.config.HighLoad:
		single = true
		scale = p.config.HighScale
		keep = func(a core.ActionSkeleton) bool { return a.Priority == minPriority }
	case load >= p.config.LowLoad:
		limit := p.config.MediumMaxPriority
		if minPriority > limit {
			limit = minPriority
		}
		scale = p.config.MediumScale
		keep = func(a core.ActionSkeleton) bool { return a.Priority <= limit }
	default:
		keep = func(core.ActionSkeleton) bool { return true }
	}

	var steps []core.RenderedStep
	for _, a := range actions {
		if !keep(a) {
			continue
		}
		steps = append(steps, core.RenderedStep{
			Text:          a.Text,
			Duration:      p.scaleDuration(a.Duration, scale),
			Priority:      a.Priority,
			SuccessMetric: a.SuccessMetric,
		})
		if single {
			break
		}
	}
	return steps
}

// scaleDuration shrinks d but never below the floor, and never above d.
func (p *Personalizer) scaleDuration(d time.Duration, scale float64) time.Duration {
	scaled := time.Duration(float64(d) * scale).Round(time.Second)
	floor := p.config.MinStepDuration
	if d < floor {
		floor = d
	}
	if scaled < floor {
		return floor
	}
	return scaled
}

func (p *Personalizer) intensity(r RenderedContent, minimal bool) core.Intensity {
	total := r.TotalDuration()
	switch {
	case minimal:
		return core.IntensityMinimal
	case len(r.Steps) <= 1 || total <= p.config.LowIntensityMax:
		return core.IntensityLow
	case total <= p.config.ModerateMax:
		return core.IntensityModerate
	default:
		return core.IntensityHigh
	}
}

func formatFor(style core.LearningStyle) core.StepFormat {
	switch style {
	case core.LearningSystematic:
		return core.FormatNumbered
	case core.LearningExploratory:
		return core.FormatSuggested
	default:
		return core.FormatBulleted
	}
}

func renderStep(format core.StepFormat, i int, s core.RenderedStep) string {
	mins := int(math.Ceil(s.Duration.Minutes()))
	switch format {
	case core.FormatNumbered:
		return fmt.Sprintf("%d. %s (%d min)", i+1, s.Text, mins)
	case core.FormatSuggested:
		return fmt.Sprintf("Try this: %s, about %d min", lowerFirst(s.Text), mins)
	default:
		return fmt.Sprintf("- %s (~%d min)", s.Text, mins)
	}
}

func headline(tone core.CommunicationPref, title string) string {
	switch tone {
	case core.CommDirect:
		return fmt.Sprintf("%s: do this now.", title)
	case core.CommEnthusiastic:
		return fmt.Sprintf("Quick win ahead! Time for a %s!", strings.ToLower(title))
	case core.CommConsultative:
		return fmt.Sprintf("Would a short %s help right now?", strings.ToLower(title))
	default:
		return fmt.Sprintf("You're doing fine. A short %s could help.", strings.ToLower(title))
	}
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
