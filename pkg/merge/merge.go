// Package merge computes the WorkloadPlan from the three configuration
// layers — platform defaults, environment overlay, and developer
// per-environment service overrides — using "present wins" semantics
// (§4.5, §9): optional fields on the overlay types distinguish "unset"
// from "set to the zero value", replacing the source's sentinel-literal
// comparison, which is a known defect (§9 Open Question 2).
package merge

import (
	"strings"

	"github.com/deskribe/deskribe/pkg/model"
)

// Merger computes a WorkloadPlan from the loaded records.
type Merger struct{}

// New returns a ready Merger. Merger holds no state.
func New() *Merger {
	return &Merger{}
}

// Merge implements §4.5 steps 1-6.
//
// Layering for {replicas, cpu, memory}: developer override (if the first
// service's Overrides[environment] sets the field) > environment overlay
// (if EnvironmentDefaults sets the field) > platform default (§4.5
// Invariant I4). "ha" follows the same layering but has no developer
// override slot. "runtime", "region", "namespacePattern",
// "secretsStrategy", "externalSecretsStore", and "backends" are
// platform-only: an environment overlay's Defaults may syntactically
// carry values for these fields (EnvironmentConfig.Defaults is
// PlatformDefaults-shaped per §3) but the merge engine does not honor
// them, per §4.5's explicit "platform-only" list.
func (m *Merger) Merge(manifest model.Manifest, platform model.PlatformConfig, env model.EnvironmentConfig, images map[string]string) *model.WorkloadPlan {
	d := platform.Defaults

	wp := &model.WorkloadPlan{
		AppName:              manifest.Name,
		Environment:          env.Name,
		Replicas:             d.Replicas,
		CPU:                  d.CPU,
		Memory:               d.Memory,
		HA:                   d.HA,
		SecretsStrategy:      d.SecretsStrategy,
		ExternalSecretsStore: d.ExternalSecretsStore,
		EnvironmentVariables: map[string]string{},
	}

	// Step 2: environment overlay wins over platform for the
	// overridable-by-environment set.
	if env.Defaults.Replicas != nil {
		wp.Replicas = *env.Defaults.Replicas
	}
	if env.Defaults.CPU != nil {
		wp.CPU = *env.Defaults.CPU
	}
	if env.Defaults.Memory != nil {
		wp.Memory = *env.Defaults.Memory
	}
	if env.Defaults.HA != nil {
		wp.HA = *env.Defaults.HA
	}

	// Step 3: first service's environment-specific override wins over
	// both environment and platform, for {replicas, cpu, memory} only.
	var svc *model.Service
	if len(manifest.Services) > 0 {
		svc = &manifest.Services[0]
		if ov, ok := svc.Overrides[env.Name]; ok {
			if ov.Replicas != nil {
				wp.Replicas = *ov.Replicas
			}
			if ov.CPU != nil {
				wp.CPU = *ov.CPU
			}
			if ov.Memory != nil {
				wp.Memory = *ov.Memory
			}
		}
	}

	// Step 4: expand the namespace template. Platform-only field.
	wp.Namespace = expandNamespace(d.NamespacePattern, manifest.Name, env.Name)

	// Step 5: select the image by service name, defaulting to "api".
	if len(images) > 0 {
		key := "api"
		if svc != nil && svc.Name != nil && *svc.Name != "" {
			key = *svc.Name
		}
		if image, ok := images[key]; ok {
			wp.Image = image
		}
	}

	// Step 6: attach the raw, unresolved env mapping.
	if svc != nil {
		for k, v := range svc.Env {
			wp.EnvironmentVariables[k] = v
		}
	}

	return wp
}

// expandNamespace substitutes only the two documented placeholders,
// {app} and {env}; no other substitution occurs (Invariant I5).
func expandNamespace(pattern, app, env string) string {
	r := strings.NewReplacer("{app}", app, "{env}", env)
	return r.Replace(pattern)
}

// EffectiveBackends builds platform.backends ∪ envConfig.backends with the
// environment winning on key conflict (§4.6 Apply step 1).
func EffectiveBackends(platform model.PlatformConfig, env model.EnvironmentConfig) map[string]string {
	out := make(map[string]string, len(platform.Backends)+len(env.Backends))
	for k, v := range platform.Backends {
		out[k] = v
	}
	for k, v := range env.Backends {
		out[k] = v
	}
	return out
}
