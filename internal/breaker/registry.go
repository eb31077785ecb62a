package breaker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/product"
)

// Registry owns one breaker per named upstream service, created on
// demand so one failing upstream cannot starve unrelated ones.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      Config
	clock    product.Clock
	logger   *zap.Logger
}

// NewRegistry builds a Registry applying cfg to every breaker it creates.
func NewRegistry(cfg Config, clock product.Clock, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		breakers: make(map[string]*Breaker),
		cfg:      cfg.withDefaults(),
		clock:    clock,
		logger:   logger,
	}
}

// Get returns the breaker for service, creating it if needed.
func (r *Registry) Get(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[service]
	if !ok {
		b = New(service, r.cfg, r.clock, r.logger)
		r.breakers[service] = b
	}
	return b
}

// Stats returns a snapshot for every known breaker.
func (r *Registry) Stats() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Stats()
	}
	return out
}

// Reset resets the named breaker if it exists.
func (r *Registry) Reset(service string) {
	r.mu.Lock()
	b, ok := r.breakers[service]
	r.mu.Unlock()
	if ok {
		b.Reset()
	}
}
