package store

import (
	"log"
	"sort"
	"strings"
	"sync"

	"plantpal-backend/internal/task/domain"
	"plantpal-backend/internal/task/repository"
)

// Registry keeps one TaskStore per signed-in user. A store lives from the
// first authenticated request until the session ends.
type Registry struct {
	repo repository.TaskRepository

	mu       sync.Mutex
	stores   map[string]*TaskStore
	observer func(userID string, state State)
}

// NewRegistry creates an empty registry backed by repo
func NewRegistry(repo repository.TaskRepository) *Registry {
	return &Registry{
		repo:   repo,
		stores: make(map[string]*TaskStore),
	}
}

// SetObserver registers fn on every store opened from now on
func (r *Registry) SetObserver(fn func(userID string, state State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
	for userID, s := range r.stores {
		s.SetObserver(r.bind(userID, fn))
	}
}

// Open returns the store of userID, creating it on first use
func (r *Registry) Open(userID string) (*TaskStore, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Errorf(domain.KindUnauthenticated, "no user session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[userID]; ok {
		return s, nil
	}
	s := New(userID, r.repo)
	if r.observer != nil {
		s.SetObserver(r.bind(userID, r.observer))
	}
	r.stores[userID] = s
	log.Printf("[Registry] opened task store for user %s", userID)
	return s, nil
}

// Get returns the store of userID if a session is open
func (r *Registry) Get(userID string) (*TaskStore, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[userID]
	return s, ok
}

// Transient returns the open store of userID or, when there is none, a new
// store that is not registered. Background jobs use it so they do not open
// sessions on behalf of signed-out users.
func (r *Registry) Transient(userID string) (*TaskStore, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Errorf(domain.KindUnauthenticated, "no user session")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[userID]; ok {
		return s, nil
	}
	return New(userID, r.repo), nil
}

// Close ends the session of userID and discards its store
func (r *Registry) Close(userID string) bool {
	r.mu.Lock()
	s, ok := r.stores[userID]
	delete(r.stores, userID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	log.Printf("[Registry] closed task store for user %s", userID)
	return true
}

// Users lists the users with an open store, sorted
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.stores))
	for id := range r.stores {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

func (r *Registry) bind(userID string, fn func(string, State)) func(State) {
	if fn == nil {
		return nil
	}
	return func(st State) { fn(userID, st) }
}
