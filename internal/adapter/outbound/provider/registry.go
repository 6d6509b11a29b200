package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
)

// Registry manages the configured payment providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[model.Provider]outbound.PaymentProviderPort
}

// NewRegistry creates a registry with the given providers.
func NewRegistry(providers ...outbound.PaymentProviderPort) *Registry {
	r := &Registry{providers: make(map[model.Provider]outbound.PaymentProviderPort)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register registers or replaces a provider.
func (r *Registry) Register(p outbound.PaymentProviderPort) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Provider()] = p
}

// Get returns a provider by tag.
func (r *Registry) Get(tag model.Provider) (outbound.PaymentProviderPort, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", outbound.ErrProviderNotFound, tag)
	}
	return p, nil
}

// List returns all registered provider tags in stable order.
func (r *Registry) List() []model.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]model.Provider, 0, len(r.providers))
	for tag := range r.providers {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

var _ outbound.PaymentProviderRegistryPort = (*Registry)(nil)
