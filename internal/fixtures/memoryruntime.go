package fixtures

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/deskribe/deskribe/pkg/model"
)

// MemoryRuntime is an in-memory Runtime Adapter (§4.7) that renders a
// deterministic YAML-ish manifest string and records "applied"
// namespaces, so tests can assert on deployment outcomes without a real
// cluster.
type MemoryRuntime struct {
	mu      sync.Mutex
	applied map[string]model.WorkloadManifest
}

// NewMemoryRuntime returns a ready MemoryRuntime.
func NewMemoryRuntime() *MemoryRuntime {
	return &MemoryRuntime{applied: map[string]model.WorkloadManifest{}}
}

// Name implements model.RuntimeAdapter.
func (*MemoryRuntime) Name() string { return "memory" }

// Render implements model.RuntimeAdapter. Pure: the output depends only
// on workload's fields, in a fixed field order, so repeated calls with
// an identical workload produce byte-identical manifests.
func (*MemoryRuntime) Render(ctx context.Context, workload *model.WorkloadPlan) (model.WorkloadManifest, error) {
	if err := ctx.Err(); err != nil {
		return model.WorkloadManifest{}, err
	}

	names := make([]string, 0, len(workload.EnvironmentVariables))
	for name := range workload.EnvironmentVariables {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "namespace: %s\n", workload.Namespace)
	fmt.Fprintf(&b, "app: %s\n", workload.AppName)
	fmt.Fprintf(&b, "image: %s\n", workload.Image)
	fmt.Fprintf(&b, "replicas: %d\n", workload.Replicas)
	fmt.Fprintf(&b, "resources:\n  cpu: %s\n  memory: %s\n", workload.CPU, workload.Memory)
	b.WriteString("env:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %q\n", name, workload.EnvironmentVariables[name])
	}

	return model.WorkloadManifest{
		Namespace:     workload.Namespace,
		YAML:          b.String(),
		ResourceNames: []string{workload.AppName},
	}, nil
}

// Apply implements model.RuntimeAdapter. Create-or-update: re-applying
// the same namespace overwrites the recorded manifest.
func (r *MemoryRuntime) Apply(ctx context.Context, manifest model.WorkloadManifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied[manifest.Namespace] = manifest
	return nil
}

// Destroy implements model.RuntimeAdapter. Idempotent.
func (r *MemoryRuntime) Destroy(ctx context.Context, namespace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.applied, namespace)
	return nil
}

// AppliedManifest returns the manifest recorded for namespace, if any,
// for use in test assertions.
func (r *MemoryRuntime) AppliedManifest(namespace string) (model.WorkloadManifest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.applied[namespace]
	return m, ok
}
