// Package registry implements the process-wide Plugin Registry: a keyed
// table per adapter kind, populated by a plain sequence of function calls
// at program startup. There is no dynamic load/unload (§4.2, §9).
package registry

import (
	"sync"

	"github.com/deskribe/deskribe/pkg/model"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

// Registry holds the four capability tables. The zero value is not ready
// for use; construct with New.
type Registry struct {
	mu sync.RWMutex

	resourceProviders  map[string]model.ResourceProvider
	backendAdapters    map[string]model.BackendAdapter
	runtimeAdapters    map[string]model.RuntimeAdapter
	messagingProviders map[string]model.MessagingProvider

	logger *telemetry.Logger
}

// New returns an empty Registry. logger may be nil, in which case
// registration overwrite warnings are logged to a default logger.
func New(logger *telemetry.Logger) *Registry {
	if logger == nil {
		logger = telemetry.NewDefaultLogger()
	}
	return &Registry{
		resourceProviders:  map[string]model.ResourceProvider{},
		backendAdapters:    map[string]model.BackendAdapter{},
		runtimeAdapters:    map[string]model.RuntimeAdapter{},
		messagingProviders: map[string]model.MessagingProvider{},
		logger:             logger.NewComponentLogger("registry"),
	}
}

// RegisterResourceProvider registers p under p.ResourceType(). Registration
// is idempotent on key: the last registration wins and a warning is
// logged on overwrite.
func (r *Registry) RegisterResourceProvider(p model.ResourceProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := p.ResourceType()
	if _, exists := r.resourceProviders[key]; exists {
		r.logger.Warnf("resource provider %q re-registered; last registration wins", key)
	}
	r.resourceProviders[key] = p
}

// GetResourceProvider looks up a Resource Provider by type. The bool
// return reports presence.
func (r *Registry) GetResourceProvider(resourceType string) (model.ResourceProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.resourceProviders[resourceType]
	return p, ok
}

// ResourceProviderTypes returns the set of currently registered resource
// types, used by the Loader's polymorphic dispatch (§4.2). Reference
// validation checks against the manifest's declared types, not this set.
func (r *Registry) ResourceProviderTypes() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.resourceProviders))
	for k := range r.resourceProviders {
		out[k] = true
	}
	return out
}

// RegisterBackendAdapter registers b under b.Name().
func (r *Registry) RegisterBackendAdapter(b model.BackendAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := b.Name()
	if _, exists := r.backendAdapters[key]; exists {
		r.logger.Warnf("backend adapter %q re-registered; last registration wins", key)
	}
	r.backendAdapters[key] = b
}

// GetBackendAdapter looks up a Backend Adapter by name.
func (r *Registry) GetBackendAdapter(name string) (model.BackendAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backendAdapters[name]
	return b, ok
}

// RegisterRuntimeAdapter registers rt under rt.Name().
func (r *Registry) RegisterRuntimeAdapter(rt model.RuntimeAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rt.Name()
	if _, exists := r.runtimeAdapters[key]; exists {
		r.logger.Warnf("runtime adapter %q re-registered; last registration wins", key)
	}
	r.runtimeAdapters[key] = rt
}

// GetRuntimeAdapter looks up a Runtime Adapter by name.
func (r *Registry) GetRuntimeAdapter(name string) (model.RuntimeAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.runtimeAdapters[name]
	return rt, ok
}

// RegisterMessagingProvider registers m under m.ProviderType().
func (r *Registry) RegisterMessagingProvider(m model.MessagingProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := m.ProviderType()
	if _, exists := r.messagingProviders[key]; exists {
		r.logger.Warnf("messaging provider %q re-registered; last registration wins", key)
	}
	r.messagingProviders[key] = m
}

// GetMessagingProvider looks up a Messaging Provider by type.
func (r *Registry) GetMessagingProvider(providerType string) (model.MessagingProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messagingProviders[providerType]
	return m, ok
}
