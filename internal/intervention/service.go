package intervention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife/focuscoach/internal/catalog"
	"github.com/quantumlife/focuscoach/internal/core"
	"github.com/quantumlife/focuscoach/internal/logging"
	"github.com/quantumlife/focuscoach/internal/metrics"
	"github.com/quantumlife/focuscoach/internal/userstate"
)

// Service coordinates the decision pipeline for every user. Calls for the
// same user are serialized; calls for different users run in parallel.
type Service struct {
	updater *userstate.Updater
	policy  PolicyConfig

	assessor     *Assessor
	gate         *Gate
	selector     *Selector
	personalizer *Personalizer
	timing       *TimingOptimizer
	feedback     *FeedbackProcessor

	catMu   sync.RWMutex
	catalog Catalog

	clock   func() time.Time
	newID   func() core.InterventionID
	metrics *metrics.Metrics
	log     *logging.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithMetrics records decisions and feedback.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithIDGenerator replaces the intervention id source.
func WithIDGenerator(fn func() core.InterventionID) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a new decision service. The policy is validated and the
// catalog must be non-nil.
func NewService(store userstate.Store, cat Catalog, policy PolicyConfig, opts ...Option) (*Service, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, &core.CatalogConfigurationError{Reason: "no catalog registered"}
	}

	timing := NewTimingOptimizer(policy.Timing, policy.Gate.MaxDaily)
	s := &Service{
		updater:      userstate.NewUpdater(store),
		policy:       policy,
		assessor:     NewAssessor(policy.Assessor),
		gate:         NewGate(policy.Gate),
		selector:     NewSelector(policy.Selector),
		personalizer: NewPersonalizer(policy.Personal),
		timing:       timing,
		feedback:     NewFeedbackProcessor(policy.Feedback, timing.loc),
		catalog:      cat,
		clock:        time.Now,
		newID:        func() core.InterventionID { return core.InterventionID(uuid.New().String()) },
		log:          logging.WithField("component", "engine"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Policy returns the active policy.
func (s *Service) Policy() PolicyConfig {
	return s.policy
}

// Catalog returns the active catalog.
func (s *Service) Catalog() Catalog {
	s.catMu.RLock()
	defer s.catMu.RUnlock()
	return s.catalog
}

// RegisterCatalog validates templates and makes them the active catalog.
func (s *Service) RegisterCatalog(templates []core.InterventionTemplate) error {
	c, err := catalog.New(templates)
	if err != nil {
		return err
	}
	s.catMu.Lock()
	s.catalog = c
	s.catMu.Unlock()
	s.log.Info("registered catalog with %d templates", c.Len())
	return nil
}

func (s *Service) freshProfile(id core.UserID) func() *core.UserProfile {
	return func() *core.UserProfile {
		return core.NewUserProfile(id, core.DefaultTraits(), s.clock())
	}
}

// AssessAndDecide parses a raw context map and runs the decision pipeline.
// Unknown users are initialized with neutral traits.
func (s *Service) AssessAndDecide(ctx context.Context, userID core.UserID, raw map[string]interface{}) (*core.DecisionResult, error) {
	snap, warnings := ParseContext(raw)
	for _, w := range warnings {
		s.log.WithField("user_id", userID).Warn("context: %s", w)
	}

	result, err := s.Decide(ctx, userID, snap)
	if err != nil {
		return nil, err
	}
	result.Warnings = warnings
	return result, nil
}

// Decide runs the pipeline on an already parsed snapshot.
func (s *Service) Decide(ctx context.Context, userID core.UserID, snap core.ContextSnapshot) (*core.DecisionResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", core.ErrInvalidInput)
	}
	start := time.Now()
	cat := s.Catalog()

	var result *core.DecisionResult
	_, err := s.updater.Update(ctx, userID, s.freshProfile(userID), func(p *core.UserProfile, created bool) (bool, error) {
		now := s.clock()
		pruned := s.feedback.Prune(p, now)

		assessed := s.assessor.Assess(p, snap, now)
		decision := s.gate.ShouldIntervene(p, assessed)

		result = &core.DecisionResult{
			Outcome:    decision.Outcome,
			Reason:     decision.Reason,
			RetryAfter: decision.RetryAfter,
			Assessed:   assessed,
		}
		if decision.Outcome != core.OutcomeIntervene {
			return pruned > 0, nil
		}

		iv, err := s.build(p, assessed, snap, cat, decision.Minimal, now)
		if err != nil {
			return false, err
		}
		s.feedback.RecordIssued(p, iv, now)
		result.Intervention = iv
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveDecision(string(result.Outcome), string(result.Reason), time.Since(start))
	log := s.log.WithFields(map[string]interface{}{
		"user_id": userID,
		"outcome": result.Outcome,
		"load":    result.Assessed.CognitiveLoad,
		"focus":   result.Assessed.FocusState,
	})
	if iv := result.Intervention; iv != nil {
		s.metrics.IncSelection(string(iv.TemplateID))
		log.Debug("issued %s (%s, %s)", iv.TemplateID, iv.Intensity, iv.Timing.Mode)
	} else {
		log.Debug("no intervention: %s", result.Reason)
	}
	return result, nil
}

func (s *Service) build(p *core.UserProfile, assessed core.AssessedState, snap core.ContextSnapshot, cat Catalog, minimal bool, now time.Time) (*core.Intervention, error) {
	tmpl, err := s.selector.Select(p, assessed, cat, minimal)
	if err != nil {
		s.log.Error("selection failed: %v", err)
		return nil, err
	}

	content := s.personalizer.Personalize(tmpl, p, assessed, minimal)
	timing := s.timing.Optimize(p, assessed, snap, Plan{
		Category: tmpl.Category,
		Minimal:  minimal,
		Duration: content.TotalDuration(),
	})

	return &core.Intervention{
		ID:             s.newID(),
		UserID:         p.UserID,
		TemplateID:     tmpl.ID,
		Category:       tmpl.Category,
		Headline:       content.Headline,
		Tone:           content.Tone,
		Format:         content.Format,
		Steps:          content.Steps,
		Intensity:      content.Intensity,
		Timing:         timing,
		SuccessMetrics: content.SuccessMetrics,
		FollowUp: core.FollowUpPlan{
			At:   timing.DeliverAt.Add(content.TotalDuration()).Add(tmpl.FollowUp.After),
			Kind: tmpl.FollowUp.Kind,
		},
		Assessed:  assessed,
		CreatedAt: now,
	}, nil
}

// RecordFeedback applies feedback for an issued intervention exactly once.
// Unknown users and unknown ids yield FeedbackUnknownIntervention.
func (s *Service) RecordFeedback(ctx context.Context, userID core.UserID, id core.InterventionID, fb core.Feedback) (core.FeedbackStatus, error) {
	if userID == "" || id == "" {
		return "", fmt.Errorf("%w: empty user or intervention id", core.ErrInvalidInput)
	}

	var (
		status   core.FeedbackStatus
		template core.TemplateID
		outcome  float64
	)
	_, err := s.updater.Update(ctx, userID, nil, func(p *core.UserProfile, _ bool) (bool, error) {
		now := s.clock()
		status = s.feedback.Apply(p, id, fb, now)
		if status != core.FeedbackOK {
			return false, nil
		}
		entry := p.Issued[id]
		template, outcome = entry.TemplateID, entry.Outcome
		return true, nil
	})
	switch {
	case isUnknownUser(err):
		status = core.FeedbackUnknownIntervention
	case err != nil:
		return "", err
	}

	s.metrics.ObserveFeedback(string(status), string(template), outcome, status == core.FeedbackOK)
	log := s.log.WithFields(map[string]interface{}{"user_id": userID, "intervention_id": id})
	if status == core.FeedbackOK {
		log.Debug("feedback for %s scored %.2f", template, outcome)
	} else {
		log.Info("feedback not applied: %s", status)
	}
	return status, nil
}

// SetTraits validates and stores a user's traits, creating the user if needed.
func (s *Service) SetTraits(ctx context.Context, userID core.UserID, traits core.Traits) (*core.UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", core.ErrInvalidInput)
	}
	if err := traits.Validate(); err != nil {
		return nil, err
	}
	p, err := s.updater.Update(ctx, userID, s.freshProfile(userID), func(p *core.UserProfile, _ bool) (bool, error) {
		p.Traits = traits.Clone()
		p.UpdatedAt = s.clock()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Profile returns a copy of the stored profile, or core.ErrUnknownUser.
func (s *Service) Profile(ctx context.Context, userID core.UserID) (*core.UserProfile, error) {
	return s.updater.Store().Load(ctx, userID)
}

// ResetUser forgets everything about a user. It waits for any in-flight
// decision or feedback for the same user to finish first.
func (s *Service) ResetUser(ctx context.Context, userID core.UserID) error {
	return s.updater.Delete(ctx, userID)
}

// Rank exposes the selector's scoring for a user and context without
// changing any state.
func (s *Service) Rank(ctx context.Context, userID core.UserID, snap core.ContextSnapshot) ([]Candidate, core.AssessedState, error) {
	p, err := s.updater.Store().Load(ctx, userID)
	if isUnknownUser(err) {
		p, err = s.freshProfile(userID)(), nil
	}
	if err != nil {
		return nil, core.AssessedState{}, err
	}
	assessed := s.assessor.Assess(p, snap, s.clock())
	return s.selector.Rank(p, assessed, s.Catalog(), false), assessed, nil
}

func isUnknownUser(err error) bool {
	return errors.Is(err, core.ErrUnknownUser)
}
