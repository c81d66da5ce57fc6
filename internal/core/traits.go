package core

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// TRAITS - Closed sets describing how a user likes to be coached
// -----------------------------------------------------------------------------

// LearningStyle controls how action steps are structured.
type LearningStyle string

const (
	LearningSystematic  LearningStyle = "systematic"
	LearningExploratory LearningStyle = "exploratory"
	LearningBalanced    LearningStyle = "balanced"
)

// CommunicationPref controls the tone of an intervention.
type CommunicationPref string

const (
	CommDirect       CommunicationPref = "direct"
	CommEnthusiastic CommunicationPref = "enthusiastic"
	CommSupportive   CommunicationPref = "supportive"
	CommConsultative CommunicationPref = "consultative"
)

// WorkPattern describes how the user prefers to organize work time.
type WorkPattern string

const (
	WorkDeepFocus     WorkPattern = "deep_focus"
	WorkFlexible      WorkPattern = "flexible"
	WorkCollaborative WorkPattern = "collaborative"
)

// MotivationTrigger is something that energizes the user.
type MotivationTrigger string

const (
	MotivationMastery     MotivationTrigger = "mastery"
	MotivationAutonomy    MotivationTrigger = "autonomy"
	MotivationAchievement MotivationTrigger = "achievement"
	MotivationCreativity  MotivationTrigger = "creativity"
	MotivationConnection  MotivationTrigger = "connection"
	MotivationNovelty     MotivationTrigger = "novelty"
	MotivationWellbeing   MotivationTrigger = "wellbeing"
)

// ParseLearningStyle converts a string into a LearningStyle.
func ParseLearningStyle(s string) (LearningStyle, error) {
	switch v := LearningStyle(normalize(s)); v {
	case LearningSystematic, LearningExploratory, LearningBalanced:
		return v, nil
	}
	return "", fmt.Errorf("%w: learning style %q", ErrInvalidTrait, s)
}

// ParseCommunicationPref converts a string into a CommunicationPref.
func ParseCommunicationPref(s string) (CommunicationPref, error) {
	switch v := CommunicationPref(normalize(s)); v {
	case CommDirect, CommEnthusiastic, CommSupportive, CommConsultative:
		return v, nil
	}
	return "", fmt.Errorf("%w: communication preference %q", ErrInvalidTrait, s)
}

// ParseWorkPattern converts a string into a WorkPattern.
func ParseWorkPattern(s string) (WorkPattern, error) {
	switch v := WorkPattern(normalize(s)); v {
	case WorkDeepFocus, WorkFlexible, WorkCollaborative:
		return v, nil
	}
	return "", fmt.Errorf("%w: work pattern %q", ErrInvalidTrait, s)
}

// ParseMotivationTrigger converts a string into a MotivationTrigger.
func ParseMotivationTrigger(s string) (MotivationTrigger, error) {
	switch v := MotivationTrigger(normalize(s)); v {
	case MotivationMastery, MotivationAutonomy, MotivationAchievement, MotivationCreativity,
		MotivationConnection, MotivationNovelty, MotivationWellbeing:
		return v, nil
	}
	return "", fmt.Errorf("%w: motivation trigger %q", ErrInvalidTrait, s)
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

// Traits is the static part of a user profile.
type Traits struct {
	LearningStyle          LearningStyle       `json:"learning_style" yaml:"learning_style"`
	Communication          CommunicationPref   `json:"communication" yaml:"communication"`
	WorkPattern            WorkPattern         `json:"work_pattern" yaml:"work_pattern"`
	Motivations            []MotivationTrigger `json:"motivations" yaml:"motivations"`
	CognitiveLoadThreshold float64             `json:"cognitive_load_threshold" yaml:"cognitive_load_threshold"`
	MinReceptivity         float64             `json:"min_receptivity,omitempty" yaml:"min_receptivity,omitempty"` // 0 uses the policy default
}

// DefaultTraits returns the neutral profile given to users seen for the first time.
func DefaultTraits() Traits {
	return Traits{
		LearningStyle:          LearningBalanced,
		Communication:          CommSupportive,
		WorkPattern:            WorkFlexible,
		Motivations:            []MotivationTrigger{MotivationWellbeing},
		CognitiveLoadThreshold: 0.8,
	}
}

// TraitPresets are named starting profiles.
var TraitPresets = map[string]Traits{
	"INTJ": {
		LearningStyle:          LearningSystematic,
		Communication:          CommDirect,
		WorkPattern:            WorkDeepFocus,
		Motivations:            []MotivationTrigger{MotivationMastery, MotivationAchievement},
		CognitiveLoadThreshold: 0.8,
	},
	"ENFP": {
		LearningStyle:          LearningExploratory,
		Communication:          CommEnthusiastic,
		WorkPattern:            WorkFlexible,
		Motivations:            []MotivationTrigger{MotivationNovelty, MotivationConnection},
		CognitiveLoadThreshold: 0.6,
	},
	"balanced": DefaultTraits(),
}

// Validate checks that every enum holds a known value and thresholds are in range.
func (t Traits) Validate() error {
	if _, err := ParseLearningStyle(string(t.LearningStyle)); err != nil {
		return err
	}
	if _, err := ParseCommunicationPref(string(t.Communication)); err != nil {
		return err
	}
	if _, err := ParseWorkPattern(string(t.WorkPattern)); err != nil {
		return err
	}
	for _, m := range t.Motivations {
		if _, err := ParseMotivationTrigger(string(m)); err != nil {
			return err
		}
	}
	if t.CognitiveLoadThreshold <= 0 || t.CognitiveLoadThreshold > 1 {
		return fmt.Errorf("%w: cognitive load threshold %v not in (0,1]", ErrInvalidTrait, t.CognitiveLoadThreshold)
	}
	if t.MinReceptivity < 0 || t.MinReceptivity > 1 {
		return fmt.Errorf("%w: min receptivity %v not in [0,1]", ErrInvalidTrait, t.MinReceptivity)
	}
	return nil
}

// HasMotivation reports whether m is among the declared motivations.
func (t Traits) HasMotivation(m MotivationTrigger) bool {
	for _, have := range t.Motivations {
		if have == m {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with t.
func (t Traits) Clone() Traits {
	out := t
	out.Motivations = append([]MotivationTrigger(nil), t.Motivations...)
	return out
}
