package chat

import (
	"fmt"
	"sync"
)

// Registry maps provider ids to adapters, preserving registration order.
type Registry struct {
	mu        sync.RWMutex
	order     []ID
	providers map[ID]Provider
}

// NewRegistry creates a registry holding providers in the given order.
func NewRegistry(providers ...Provider) *Registry {
	registry := &Registry{providers: make(map[ID]Provider, len(providers))}
	for _, provider := range providers {
		registry.Register(provider)
	}
	return registry
}

// Register adds provider, replacing any adapter with the same id in place.
func (registry *Registry) Register(provider Provider) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	id := provider.ID()
	if _, exists := registry.providers[id]; !exists {
		registry.order = append(registry.order, id)
	}
	registry.providers[id] = provider
}

// Get resolves id at call time.
func (registry *Registry) Get(id ID) (Provider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	provider, ok := registry.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return provider, nil
}

// Providers returns the registered adapters in registration order.
func (registry *Registry) Providers() []Provider {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	providers := make([]Provider, 0, len(registry.order))
	for _, id := range registry.order {
		providers = append(providers, registry.providers[id])
	}
	return providers
}

// ResolveLocalID resolves the adapter owning a namespaced conversation id
// and returns the backend-native id alongside it.
func (registry *Registry) ResolveLocalID(localID string) (Provider, string, error) {
	id, nativeID, ok := SplitLocalID(localID)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q is not a namespaced id", ErrUnknownProvider, localID)
	}
	provider, err := registry.Get(id)
	if err != nil {
		return nil, "", err
	}
	return provider, nativeID, nil
}
