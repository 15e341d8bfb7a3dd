package jobs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sevigo/metroid/internal/core"
)

// Registry maps stable job keys to statically linked job implementations.
// Subscription handlers reference jobs by key; every key is resolved once at
// startup. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]core.Job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]core.Job)}
}

// Register adds job under key. Registering a key twice is an error.
func (r *Registry) Register(key string, job core.Job) error {
	if key == "" {
		return fmt.Errorf("job key must not be empty")
	}
	if job == nil {
		return fmt.Errorf("job %q must not be nil", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[key]; exists {
		return fmt.Errorf("job %q is already registered", key)
	}
	r.jobs[key] = job
	return nil
}

// Get returns the job registered under key.
func (r *Registry) Get(key string) (core.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[key]
	return job, ok
}

// Has reports whether key has a registered job.
func (r *Registry) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns all registered job keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.jobs))
	for key := range r.jobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
