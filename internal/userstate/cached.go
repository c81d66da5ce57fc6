package userstate

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/quantumlife/focuscoach/internal/core"
)

// CachedStore is a read-through, write-through cache in front of another store.
type CachedStore struct {
	backend Store
	cache   *cache.Cache
}

// NewCachedStore wraps backend with a profile cache. Entries expire after ttl
// without access; expired entries are purged every cleanup interval.
func NewCachedStore(backend Store, ttl, cleanup time.Duration) *CachedStore {
	return &CachedStore{
		backend: backend,
		cache:   cache.New(ttl, cleanup),
	}
}

func (s *CachedStore) Load(ctx context.Context, id core.UserID) (*core.UserProfile, error) {
	if v, ok := s.cache.Get(string(id)); ok {
		return v.(*core.UserProfile).Clone(), nil
	}

	p, err := s.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(string(id), p.Clone())
	return p, nil
}

func (s *CachedStore) Save(ctx context.Context, profile *core.UserProfile) error {
	if err := s.backend.Save(ctx, profile); err != nil {
		s.cache.Delete(string(profile.UserID))
		return err
	}
	s.cache.SetDefault(string(profile.UserID), profile.Clone())
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, id core.UserID) error {
	// Evict only once the backend no longer has the profile
	err := s.backend.Delete(ctx, id)
	s.cache.Delete(string(id))
	return err
}

func (s *CachedStore) List(ctx context.Context) ([]core.UserID, error) {
	return s.backend.List(ctx)
}

// Cached reports how many profiles are currently cached.
func (s *CachedStore) Cached() int {
	return s.cache.ItemCount()
}
