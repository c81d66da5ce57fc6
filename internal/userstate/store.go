// Package userstate owns per-user persisted state and the single-writer
// discipline around it.
package userstate

import (
	"context"
	"sync"

	"github.com/quantumlife/focuscoach/internal/core"
)

// Store persists user profiles. Load returns core.ErrUnknownUser for a user
// that has never been saved. Implementations must not retain or share the
// profiles passed in or returned.
type Store interface {
	Load(ctx context.Context, id core.UserID) (*core.UserProfile, error)
	Save(ctx context.Context, profile *core.UserProfile) error
	Delete(ctx context.Context, id core.UserID) error
	List(ctx context.Context) ([]core.UserID, error)
}

// KeyedMutex hands out one exclusive lock per user id. Entries are reference
// counted and dropped when the last holder unlocks.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[core.UserID]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[core.UserID]*keyedEntry)}
}

// Lock blocks until the lock for id is held and returns its release func.
func (k *KeyedMutex) Lock(id core.UserID) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &keyedEntry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.locks, id)
			}
			k.mu.Unlock()
		})
	}
}

// Len reports how many ids currently have holders or waiters.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// Updater performs atomic read-modify-write cycles against a Store.
type Updater struct {
	store Store
	locks *KeyedMutex
}

// NewUpdater wraps store with per-user locking.
func NewUpdater(store Store) *Updater {
	return &Updater{store: store, locks: NewKeyedMutex()}
}

// Store returns the underlying store.
func (u *Updater) Store() Store {
	return u.store
}

// Update loads the profile for id, or builds one with fresh when the user
// is unknown, and runs fn while holding the user's lock. The profile is saved
// when fn reports a change. The lock is released on every path.
func (u *Updater) Update(ctx context.Context, id core.UserID, fresh func() *core.UserProfile, fn func(p *core.UserProfile, created bool) (changed bool, err error)) (*core.UserProfile, error) {
	unlock := u.locks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := false
	profile, err := u.store.Load(ctx, id)
	switch {
	case err == nil:
	case isUnknownUser(err) && fresh != nil:
		profile = fresh()
		created = true
	default:
		return nil, err
	}

	changed, err := fn(profile, created)
	if err != nil {
		return nil, err
	}
	if changed || created {
		if err := u.store.Save(ctx, profile); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

// Delete removes the profile for id while holding the user's lock, so it
// cannot interleave with an Update for the same user.
func (u *Updater) Delete(ctx context.Context, id core.UserID) error {
	unlock := u.locks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return u.store.Delete(ctx, id)
}
