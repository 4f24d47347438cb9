package brain

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	defaultSessionTTL = 30 * time.Minute

	registryCounters  = 10_000
	registryMaxBrains = 1_000
	registryBuffer    = 64
)

// Registry hands out per-user brains, caching them with a TTL so a chatty
// user reuses one brain while idle users age out. Brains hold no
// conversation state, so an evicted or not-yet-admitted entry just gets
// rebuilt on the next request.
type Registry struct {
	cache *ristretto.Cache
	build func(userID string) (*Brain, error)
	ttl   time.Duration

	// mu serializes builds for the same cold key so concurrent first
	// requests don't each construct a brain.
	mu sync.Mutex
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSessionTTL overrides the default 30 minute idle lifetime.
func WithSessionTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) { r.ttl = ttl }
}

// NewRegistry creates a registry that builds brains with build on cache miss.
func NewRegistry(build func(userID string) (*Brain, error), opts ...RegistryOption) (*Registry, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: registryCounters,
		MaxCost:     registryMaxBrains,
		BufferItems: registryBuffer,
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}

	r := &Registry{cache: cache, build: build, ttl: defaultSessionTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Session returns the cached brain for userID, building one on miss.
func (r *Registry) Session(userID string) (*Brain, error) {
	if val, ok := r.cache.Get(userID); ok {
		return val.(*Brain), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have built it while we waited on the lock.
	// ristretto admission is asynchronous, so a racing miss here is still
	// possible; rebuilding is harmless.
	if val, ok := r.cache.Get(userID); ok {
		return val.(*Brain), nil
	}

	b, err := r.build(userID)
	if err != nil {
		return nil, fmt.Errorf("build brain for %s: %w", userID, err)
	}
	r.cache.SetWithTTL(userID, b, 1, r.ttl)
	return b, nil
}

// Close releases the underlying cache.
func (r *Registry) Close() {
	r.cache.Close()
}
