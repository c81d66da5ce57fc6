package userstate

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/quantumlife/focuscoach/internal/core"
)

// MemoryStore keeps profiles in process memory. Profiles are copied on the way
// in and out so callers never alias stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[core.UserID]*core.UserProfile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[core.UserID]*core.UserProfile)}
}

func (s *MemoryStore) Load(ctx context.Context, id core.UserID) (*core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, core.ErrUnknownUser
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, profile *core.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return core.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.UserID] = profile.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id core.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return core.ErrUnknownUser
	}
	delete(s.profiles, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]core.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]core.UserID, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func isUnknownUser(err error) bool {
	return errors.Is(err, core.ErrUnknownUser)
}
