package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quantumlife/focuscoach/internal/core"
)

// ProfileStore persists user profiles across four tables. It satisfies
// userstate.Store.
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a new profile store
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Load returns the profile for id, or core.ErrUnknownUser.
func (s *ProfileStore) Load(ctx context.Context, id core.UserID) (*core.UserProfile, error) {
	p := &core.UserProfile{UserID: id}
	var motivations string
	var lastAt, resetAt, createdAt, updatedAt int64

	err := s.db.conn.QueryRowContext(ctx, `
		SELECT learning_style, communication, work_pattern, motivations,
		       cognitive_load_threshold, min_receptivity,
		       last_intervention_at, daily_count, daily_count_reset_at,
		       consecutive_dismissals, responses_recorded, responses_engaged,
		       created_at, updated_at
		FROM user_profiles WHERE user_id = ?
	`, id).Scan(
		&p.Traits.LearningStyle, &p.Traits.Communication, &p.Traits.WorkPattern, &motivations,
		&p.Traits.CognitiveLoadThreshold, &p.Traits.MinReceptivity,
		&lastAt, &p.DailyCount, &resetAt,
		&p.ConsecutiveDismissals, &p.ResponsesRecorded, &p.ResponsesEngaged,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(motivations), &p.Traits.Motivations); err != nil {
		return nil, fmt.Errorf("load profile %s: motivations: %w", id, err)
	}
	p.LastInterventionAt = fromNanos(lastAt)
	p.DailyCountResetAt = fromNanos(resetAt)
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updatedAt)

	if err := s.loadScores(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadPreferences(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadIssued(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileStore) loadScores(ctx context.Context, p *core.UserProfile) error {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT template_id, score, samples FROM effectiveness_scores WHERE user_id = ?
	`, p.UserID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.EffectivenessScores = make(map[core.TemplateID]float64)
	p.EffectivenessSamples = make(map[core.TemplateID]int)
	for rows.Next() {
		var id core.TemplateID
		var score sql.NullFloat64
		var samples sql.NullInt64
		if err := rows.Scan(&id, &score, &samples); err != nil {
			return err
		}
		if score.Valid {
			p.EffectivenessScores[id] = score.Float64
		}
		if samples.Valid {
			p.EffectivenessSamples[id] = int(samples.Int64)
		}
	}
	return rows.Err()
}

func (s *ProfileStore) loadPreferences(ctx context.Context, p *core.UserProfile) error {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT category, weight FROM preference_weights WHERE user_id = ?
	`, p.UserID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.PreferenceWeights = make(map[string]float64)
	for rows.Next() {
		var category string
		var weight float64
		if err := rows.Scan(&category, &weight); err != nil {
			return err
		}
		p.PreferenceWeights[category] = weight
	}
	return rows.Err()
}

func (s *ProfileStore) loadIssued(ctx context.Context, p *core.UserProfile) error {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, template_id, category, issued_at, expires_at, feedback_at, outcome
		FROM issued_interventions WHERE user_id = ?
	`, p.UserID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.Issued = make(map[core.InterventionID]*core.IssuedIntervention)
	for rows.Next() {
		entry := &core.IssuedIntervention{}
		var issuedAt, expiresAt int64
		var feedbackAt sql.NullInt64
		if err := rows.Scan(&entry.ID, &entry.TemplateID, &entry.Category, &issuedAt, &expiresAt, &feedbackAt, &entry.Outcome); err != nil {
			return err
		}
		entry.IssuedAt = fromNanos(issuedAt)
		entry.ExpiresAt = fromNanos(expiresAt)
		if feedbackAt.Valid {
			at := fromNanos(feedbackAt.Int64)
			entry.FeedbackAt = &at
		}
		p.Issued[entry.ID] = entry
	}
	return rows.Err()
}

// Save replaces the stored profile in one transaction.
func (s *ProfileStore) Save(ctx context.Context, p *core.UserProfile) error {
	if p == nil || p.UserID == "" {
		return core.ErrInvalidInput
	}
	motivations, err := json.Marshal(p.Traits.Motivations)
	if err != nil {
		return err
	}
	if p.Traits.Motivations == nil {
		motivations = []byte("[]")
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_profiles (user_id, learning_style, communication, work_pattern, motivations,
			                           cognitive_load_threshold, min_receptivity,
			                           last_intervention_at, daily_count, daily_count_reset_at,
			                           consecutive_dismissals, responses_recorded, responses_engaged,
			                           created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
			    learning_style = excluded.learning_style,
			    communication = excluded.communication,
			    work_pattern = excluded.work_pattern,
			    motivations = excluded.motivations,
			    cognitive_load_threshold = excluded.cognitive_load_threshold,
			    min_receptivity = excluded.min_receptivity,
			    last_intervention_at = excluded.last_intervention_at,
			    daily_count = excluded.daily_count,
			    daily_count_reset_at = excluded.daily_count_reset_at,
			    consecutive_dismissals = excluded.consecutive_dismissals,
			    responses_recorded = excluded.responses_recorded,
			    responses_engaged = excluded.responses_engaged,
			    updated_at = excluded.updated_at
		`,
			p.UserID, p.Traits.LearningStyle, p.Traits.Communication, p.Traits.WorkPattern, string(motivations),
			p.Traits.CognitiveLoadThreshold, p.Traits.MinReceptivity,
			toNanos(p.LastInterventionAt), p.DailyCount, toNanos(p.DailyCountResetAt),
			p.ConsecutiveDismissals, p.ResponsesRecorded, p.ResponsesEngaged,
			toNanos(p.CreatedAt), toNanos(p.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("save profile %s: %w", p.UserID, err)
		}

		for _, table := range []string{"effectiveness_scores", "preference_weights", "issued_interventions"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", p.UserID); err != nil {
				return fmt.Errorf("save profile %s: clear %s: %w", p.UserID, table, err)
			}
		}

		templates := make(map[core.TemplateID]bool)
		for id := range p.EffectivenessScores {
			templates[id] = true
		}
		for id := range p.EffectivenessSamples {
			templates[id] = true
		}
		for id := range templates {
			var score sql.NullFloat64
			var samples sql.NullInt64
			if v, ok := p.EffectivenessScores[id]; ok {
				score = sql.NullFloat64{Float64: v, Valid: true}
			}
			if n, ok := p.EffectivenessSamples[id]; ok {
				samples = sql.NullInt64{Int64: int64(n), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO effectiveness_scores (user_id, template_id, score, samples) VALUES (?, ?, ?, ?)
			`, p.UserID, id, score, samples); err != nil {
				return err
			}
		}

		for category, weight := range p.PreferenceWeights {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO preference_weights (user_id, category, weight) VALUES (?, ?, ?)
			`, p.UserID, category, weight); err != nil {
				return err
			}
		}

		for _, entry := range p.Issued {
			var feedbackAt sql.NullInt64
			if entry.FeedbackAt != nil {
				feedbackAt = sql.NullInt64{Int64: toNanos(*entry.FeedbackAt), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO issued_interventions (id, user_id, template_id, category, issued_at, expires_at, feedback_at, outcome)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				entry.ID, p.UserID, entry.TemplateID, entry.Category,
				toNanos(entry.IssuedAt), toNanos(entry.ExpiresAt), feedbackAt, entry.Outcome,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a profile and everything hanging off it.
func (s *ProfileStore) Delete(ctx context.Context, id core.UserID) error {
	result, err := s.db.conn.ExecContext(ctx, "DELETE FROM user_profiles WHERE user_id = ?", id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrUnknownUser
	}
	return nil
}

// List returns every stored user id in ascending order.
func (s *ProfileStore) List(ctx context.Context) ([]core.UserID, error) {
	rows, err := s.db.conn.QueryContext(ctx, "SELECT user_id FROM user_profiles ORDER BY user_id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []core.UserID{}
	for rows.Next() {
		var id core.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
