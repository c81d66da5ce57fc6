package intervention

import (
	"sort"

	"github.com/quantumlife/focuscoach/internal/core"
)

// Catalog is the read-only template source the selector draws from.
type Catalog interface {
	Templates() []core.InterventionTemplate
	Default() *core.InterventionTemplate
}

// SelectorConfig weights the candidate score components.
type SelectorConfig struct {
	EffectivenessWeight float64 `json:"effectiveness_weight" mapstructure:"effectiveness_weight"`
	LoadFitWeight       float64 `json:"load_fit_weight" mapstructure:"load_fit_weight"`
	MotivationWeight    float64 `json:"motivation_weight" mapstructure:"motivation_weight"`
	PreferenceWeight    float64 `json:"preference_weight" mapstructure:"preference_weight"`
	TriggerWeight       float64 `json:"trigger_weight" mapstructure:"trigger_weight"`

	EffectivenessPrior float64 `json:"effectiveness_prior" mapstructure:"effectiveness_prior"`
	PreferencePrior    float64 `json:"preference_prior" mapstructure:"preference_prior"`
}

// DefaultSelectorConfig returns sensible defaults
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		EffectivenessWeight: 0.4,
		LoadFitWeight:       0.25,
		MotivationWeight:    0.15,
		PreferenceWeight:    0.1,
		TriggerWeight:       0.1,
		EffectivenessPrior:  0.5,
		PreferencePrior:     0.5,
	}
}

// Candidate is a scored template.
type Candidate struct {
	Template      core.InterventionTemplate `json:"template"`
	Score         float64                   `json:"score"`
	Effectiveness float64                   `json:"effectiveness"`
	LoadFit       float64                   `json:"load_fit"`
	Motivation    float64                   `json:"motivation"`
	Preference    float64                   `json:"preference"`
	TriggerMatch  float64                   `json:"trigger_match"`
}

// Selector picks the best template for an assessed state.
type Selector struct {
	config SelectorConfig
}

// NewSelector creates a new selector
func NewSelector(config SelectorConfig) *Selector {
	return &Selector{config: config}
}

// Select returns the best matching template, or the catalog default when no
// template answers the active triggers. A catalog without a default is a
// configuration error.
func (s *Selector) Select(profile *core.UserProfile, assessed core.AssessedState, cat Catalog, minimal bool) (*core.InterventionTemplate, error) {
	if cat == nil {
		return nil, &core.CatalogConfigurationError{Reason: "no catalog registered"}
	}
	def := cat.Default()
	if def == nil {
		return nil, &core.CatalogConfigurationError{Reason: "no default template"}
	}

	ranked := s.Rank(profile, assessed, cat, minimal)
	if len(ranked) == 0 {
		return def, nil
	}
	best := ranked[0].Template
	return &best, nil
}

// Rank scores every candidate whose triggers intersect the active ones,
// best first. When minimal is set only low-intensity templates qualify.
func (s *Selector) Rank(profile *core.UserProfile, assessed core.AssessedState, cat Catalog, minimal bool) []Candidate {
	var out []Candidate
	for _, t := range cat.Templates() {
		overlap := t.TriggerOverlap(assessed.Triggers)
		if overlap == 0 {
			continue
		}
		if minimal && !t.LowIntensity {
			continue
		}
		out = append(out, s.score(profile, assessed, t, overlap))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Effectiveness != b.Effectiveness {
			return a.Effectiveness > b.Effectiveness
		}
		da, db := a.Template.TotalDuration(), b.Template.TotalDuration()
		if da != db {
			return da < db
		}
		return a.Template.ID < b.Template.ID
	})
	return out
}

func (s *Selector) score(profile *core.UserProfile, assessed core.AssessedState, t core.InterventionTemplate, overlap int) Candidate {
	c := Candidate{
		Template:      t,
		Effectiveness: s.config.EffectivenessPrior,
		LoadFit:       t.LoadBand.Fit(assessed.CognitiveLoad),
		Motivation:    motivationAlignment(profile.Traits, t.Motivations),
		Preference:    s.config.PreferencePrior,
		TriggerMatch:  float64(overlap) / float64(len(t.Triggers)),
	}
	if v, ok := profile.EffectivenessScores[t.ID]; ok {
		c.Effectiveness = v
	}
	if v, ok := profile.PreferenceWeights[t.Category]; ok {
		c.Preference = v
	}

	cfg := s.config
	c.Score = cfg.EffectivenessWeight*c.Effectiveness +
		cfg.LoadFitWeight*c.LoadFit +
		cfg.MotivationWeight*c.Motivation +
		cfg.PreferenceWeight*c.Preference +
		cfg.TriggerWeight*c.TriggerMatch
	return c
}

// motivationAlignment is the share of a template's motivations the user
// declared, or 0.5 when either side declares none.
func motivationAlignment(traits core.Traits, motivations []core.MotivationTrigger) float64 {
	if len(motivations) == 0 || len(traits.Motivations) == 0 {
		return 0.5
	}
	matched := 0
	for _, m := range motivations {
		if traits.HasMotivation(m) {
			matched++
		}
	}
	return float64(matched) / float64(len(motivations))
}
