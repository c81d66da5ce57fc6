// Package simulation drives the decision engine with synthetic users over
// simulated work days and reports how the engine's choices landed.
package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantumlife/focuscoach/internal/core"
	"github.com/quantumlife/focuscoach/internal/intervention"
	"github.com/quantumlife/focuscoach/internal/logging"
	"github.com/quantumlife/focuscoach/internal/userstate"
)

// Config controls a simulation run.
type Config struct {
	Users        int           `json:"users"`
	Steps        int           `json:"steps"` // decisions per user
	Seed         int64         `json:"seed"`
	StepInterval time.Duration `json:"step_interval"`
	Start        time.Time     `json:"start"`
	DayStartHour int           `json:"day_start_hour"`
	DayEndHour   int           `json:"day_end_hour"`
	Parallelism  int           `json:"parallelism"`
}

// DefaultConfig returns a small run starting on a Monday morning.
func DefaultConfig() Config {
	return Config{
		Users:        20,
		Steps:        200,
		Seed:         1,
		StepInterval: 15 * time.Minute,
		Start:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		DayStartHour: 9,
		DayEndHour:   17,
		Parallelism:  8,
	}
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	switch {
	case c.Users <= 0:
		return fmt.Errorf("%w: users must be positive", core.ErrInvalidInput)
	case c.Steps <= 0:
		return fmt.Errorf("%w: steps must be positive", core.ErrInvalidInput)
	case c.StepInterval <= 0:
		return fmt.Errorf("%w: step interval must be positive", core.ErrInvalidInput)
	case c.DayStartHour < 0 || c.DayEndHour > 24 || c.DayStartHour >= c.DayEndHour:
		return fmt.Errorf("%w: work day %d-%d", core.ErrInvalidInput, c.DayStartHour, c.DayEndHour)
	}
	return nil
}

// Simulator owns a Service whose clock it advances step by step.
type Simulator struct {
	config Config
	svc    *intervention.Service
	store  userstate.Store
	log    *logging.Logger

	mu  sync.Mutex
	now time.Time
}

// New builds a simulator over a fresh engine. A nil store uses memory.
// The simulator's clock replaces any clock option.
func New(cfg Config, store userstate.Store, cat intervention.Catalog, policy intervention.PolicyConfig, opts ...intervention.Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultConfig().Start
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if store == nil {
		store = userstate.NewMemoryStore()
	}

	s := &Simulator{
		config: cfg,
		store:  store,
		now:    cfg.Start,
		log:    logging.WithField("component", "simulation"),
	}
	svc, err := intervention.NewService(store, cat, policy, append(opts, intervention.WithClock(s.Now))...)
	if err != nil {
		return nil, err
	}
	s.svc = svc
	return s, nil
}

// Now is the simulated time.
func (s *Simulator) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// advance moves to the next step, skipping nights.
func (s *Simulator) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.now.Add(s.config.StepInterval)
	if next.Hour() >= s.config.DayEndHour || next.Day() != s.now.Day() {
		y, m, d := s.now.Date()
		next = time.Date(y, m, d+1, s.config.DayStartHour, 0, 0, 0, s.now.Location())
	}
	s.now = next
}

// Service exposes the engine under simulation.
func (s *Simulator) Service() *intervention.Service {
	return s.svc
}

// Run simulates every user for the configured number of steps. Users in
// the same step run concurrently; steps run in order.
func (s *Simulator) Run(ctx context.Context) (*Report, error) {
	users := s.population()
	tallies := make([]*tally, len(users))
	for i := range tallies {
		tallies[i] = newTally()
	}

	for i, u := range users {
		traits := core.TraitPresets[u.persona.Preset]
		if _, err := s.svc.SetTraits(ctx, u.id, traits); err != nil {
			return nil, fmt.Errorf("seed %s: %w", u.id, err)
		}
		tallies[i].persona = u.persona.Name
	}

	stepMinutes := s.config.StepInterval.Minutes()
	for step := 0; step < s.config.Steps; step++ {
		hour := s.Now().Hour()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.config.Parallelism)
		for i, u := range users {
			u, t := u, tallies[i]
			g.Go(func() error {
				return s.step(gctx, u, t, hour, stepMinutes)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		s.advance()
	}

	report, err := s.report(ctx, users, tallies)
	if err != nil {
		return nil, err
	}
	s.log.Info("simulated %d users for %d steps: %d issued, %.0f%% accepted",
		report.Users, report.Steps, report.Issued, report.AcceptanceRate*100)
	return report, nil
}

func (s *Simulator) population() []*user {
	users := make([]*user, s.config.Users)
	for i := range users {
		p := Personas[i%len(Personas)]
		users[i] = &user{
			id:      core.UserID(fmt.Sprintf("sim-%s-%03d", p.Name, i)),
			persona: p,
			rng:     rand.New(rand.NewSource(s.config.Seed + int64(i))),
		}
	}
	return users
}

func (s *Simulator) step(ctx context.Context, u *user, t *tally, hour int, stepMinutes float64) error {
	obs := u.observe(hour, stepMinutes)

	res, err := s.svc.AssessAndDecide(ctx, u.id, obs.context)
	if err != nil {
		return fmt.Errorf("decide for %s: %w", u.id, err)
	}
	t.outcomes[res.Outcome]++
	if res.Reason != core.ReasonNone {
		t.reasons[res.Reason]++
	}

	iv := res.Intervention
	if iv == nil {
		return nil
	}
	accepted, fb := u.respond(iv.Category, res.Assessed.Confidence, obs)
	fb.Timestamp = s.Now().Add(time.Duration(5+u.rng.Intn(55)) * time.Second)

	status, err := s.svc.RecordFeedback(ctx, u.id, iv.ID, fb)
	if err != nil {
		return fmt.Errorf("feedback for %s: %w", u.id, err)
	}
	if status != core.FeedbackOK {
		return fmt.Errorf("feedback for %s: unexpected status %s", u.id, status)
	}
	t.record(iv.TemplateID, accepted)
	return nil
}

// -----------------------------------------------------------------------------
// REPORT
// -----------------------------------------------------------------------------

// TemplateStats summarizes one template across all users.
type TemplateStats struct {
	TemplateID     core.TemplateID `json:"template_id"`
	Issued         int             `json:"issued"`
	Accepted       int             `json:"accepted"`
	AcceptanceRate float64         `json:"acceptance_rate"`
	LearnedScore   float64         `json:"learned_score"` // mean effectiveness over users who saw it
}

// PersonaStats summarizes one persona.
type PersonaStats struct {
	Persona        string  `json:"persona"`
	Users          int     `json:"users"`
	Issued         int     `json:"issued"`
	Accepted       int     `json:"accepted"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// Report is the outcome of a run.
type Report struct {
	Users          int                  `json:"users"`
	Steps          int                  `json:"steps"`
	Seed           int64                `json:"seed"`
	Outcomes       map[core.Outcome]int `json:"outcomes"`
	Reasons        map[core.Reason]int  `json:"reasons"`
	Issued         int                  `json:"issued"`
	Accepted       int                  `json:"accepted"`
	AcceptanceRate float64              `json:"acceptance_rate"`
	Templates      []TemplateStats      `json:"templates"`
	Personas       []PersonaStats       `json:"personas"`
	Start          time.Time            `json:"start"`
	End            time.Time            `json:"end"`
}

type tally struct {
	persona  string
	outcomes map[core.Outcome]int
	reasons  map[core.Reason]int
	issued   map[core.TemplateID]int
	accepted map[core.TemplateID]int
}

func newTally() *tally {
	return &tally{
		outcomes: make(map[core.Outcome]int),
		reasons:  make(map[core.Reason]int),
		issued:   make(map[core.TemplateID]int),
		accepted: make(map[core.TemplateID]int),
	}
}

func (t *tally) record(id core.TemplateID, accepted bool) {
	t.issued[id]++
	if accepted {
		t.accepted[id]++
	}
}

func rate(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func (s *Simulator) report(ctx context.Context, users []*user, tallies []*tally) (*Report, error) {
	r := &Report{
		Users:    len(users),
		Steps:    s.config.Steps,
		Seed:     s.config.Seed,
		Outcomes: make(map[core.Outcome]int),
		Reasons:  make(map[core.Reason]int),
		Start:    s.config.Start,
		End:      s.Now(),
	}

	templates := make(map[core.TemplateID]*TemplateStats)
	scoreSums := make(map[core.TemplateID]float64)
	scoreUsers := make(map[core.TemplateID]int)
	personas := make(map[string]*PersonaStats)

	for i, t := range tallies {
		ps := personas[t.persona]
		if ps == nil {
			ps = &PersonaStats{Persona: t.persona}
			personas[t.persona] = ps
		}
		ps.Users++

		for k, v := range t.outcomes {
			r.Outcomes[k] += v
		}
		for k, v := range t.reasons {
			r.Reasons[k] += v
		}
		for id, n := range t.issued {
			ts := templates[id]
			if ts == nil {
				ts = &TemplateStats{TemplateID: id}
				templates[id] = ts
			}
			ts.Issued += n
			ts.Accepted += t.accepted[id]
			ps.Issued += n
			ps.Accepted += t.accepted[id]
			r.Issued += n
			r.Accepted += t.accepted[id]
		}

		p, err := s.store.Load(ctx, users[i].id)
		if err != nil {
			return nil, err
		}
		for id, score := range p.EffectivenessScores {
			scoreSums[id] += score
			scoreUsers[id]++
		}
	}

	r.AcceptanceRate = rate(r.Accepted, r.Issued)
	for id, ts := range templates {
		ts.AcceptanceRate = rate(ts.Accepted, ts.Issued)
		if scoreUsers[id] > 0 {
			ts.LearnedScore = scoreSums[id] / float64(scoreUsers[id])
		}
		r.Templates = append(r.Templates, *ts)
	}
	sort.Slice(r.Templates, func(i, j int) bool {
		if r.Templates[i].Issued != r.Templates[j].Issued {
			return r.Templates[i].Issued > r.Templates[j].Issued
		}
		return r.Templates[i].TemplateID < r.Templates[j].TemplateID
	})

	for _, ps := range personas {
		ps.AcceptanceRate = rate(ps.Accepted, ps.Issued)
		r.Personas = append(r.Personas, *ps)
	}
	sort.Slice(r.Personas, func(i, j int) bool { return r.Personas[i].Persona < r.Personas[j].Persona })

	return r, nil
}
