package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var ErrInvalidSessionID = errors.New("invalid session id")

// Registry maps session ids to histories. Idle sessions expire after the TTL.
type Registry struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewRegistry(ttl, cleanupInterval time.Duration) *Registry {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Registry{cache: cache.New(ttl, cleanupInterval)}
}

func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// Open returns the history for id, creating it when missing. An empty id
// starts a new session with a generated id.
func (r *Registry) Open(id string) (string, *History, error) {
	if id == "" {
		id = uuid.NewString()
	} else if err := ValidateID(id); err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	history, ok := r.lookup(id)
	if !ok {
		history = &History{}
	}
	r.cache.Set(id, history, cache.DefaultExpiration)
	return id, history, nil
}

func (r *Registry) Get(id string) (*History, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(id)
}

// Clear empties a session's history and reports whether the session existed.
func (r *Registry) Clear(id string) bool {
	history, ok := r.Get(id)
	if !ok {
		return false
	}
	history.Clear()
	return true
}

func (r *Registry) Delete(id string) {
	r.cache.Delete(id)
}

func (r *Registry) Count() int {
	return r.cache.ItemCount()
}

func (r *Registry) lookup(id string) (*History, bool) {
	if x, found := r.cache.Get(id); found {
		return x.(*History), true
	}
	return nil, false
}
