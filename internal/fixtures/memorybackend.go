package fixtures

import (
	"context"
	"sync"

	"github.com/deskribe/deskribe/pkg/model"
)

// MemoryBackend is an in-memory Backend Adapter (§4.7) that fabricates
// plausible outputs from a plan's already-computed PlannedOutputs,
// giving Apply's reference-resolution path real data to resolve
// against without any external system.
type MemoryBackend struct {
	mu      sync.Mutex
	applied map[string]bool // appName/env pairs that have been applied
}

// NewMemoryBackend returns a ready MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{applied: map[string]bool{}}
}

// Name implements model.BackendAdapter.
func (*MemoryBackend) Name() string { return "memory" }

// Apply implements model.BackendAdapter. It never performs real I/O: it
// echoes each resource plan's PlannedOutputs back as ResourceOutputs, as
// a stand-in for a real backend's provisioning response.
func (b *MemoryBackend) Apply(ctx context.Context, plan *model.DeskribePlan) (model.BackendApplyResult, error) {
	if err := ctx.Err(); err != nil {
		return model.BackendApplyResult{}, err
	}

	outputs := make(map[string]map[string]string, len(plan.ResourcePlans))
	for _, rp := range plan.ResourcePlans {
		outputs[rp.ResourceType] = rp.PlannedOutputs
	}

	b.mu.Lock()
	b.applied[plan.AppName+"/"+plan.Environment] = true
	b.mu.Unlock()

	return model.BackendApplyResult{Success: true, ResourceOutputs: outputs}, nil
}

// Destroy implements model.BackendAdapter. Idempotent: destroying an
// app/env pair that was never applied is not an error.
func (b *MemoryBackend) Destroy(ctx context.Context, appName, env string, platform model.PlatformConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.applied, appName+"/"+env)
	return nil
}

// WasApplied reports whether Apply has run for the given app/env pair,
// for use in test assertions.
func (b *MemoryBackend) WasApplied(appName, env string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applied[appName+"/"+env]
}
