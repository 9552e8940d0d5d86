// Package policy implements the Policy Validator (§4.4): the mandatory
// static checks on the merged configuration, plus two optional,
// domain-stack extensions — per-resource-type JSON Schema validation and
// org-wide OPA/Rego policy bundles (SPEC_FULL.md §5.4).
package policy

import (
	"fmt"

	"github.com/deskribe/deskribe/pkg/model"
	"github.com/deskribe/deskribe/pkg/reference"
)

// Validator runs the fixed checks of §4.4.
type Validator struct{}

// New returns a ready Validator.
func New() *Validator {
	return &Validator{}
}

// ValidatorInput bundles everything the fixed checks need. Named distinctly
// from policy.Input (the OPA Engine's evaluation input, pkg/policy/types.go)
// since the two serve different evaluators and carry different shapes.
type ValidatorInput struct {
	Manifest model.Manifest
	Platform model.PlatformConfig
	Env      model.EnvironmentConfig
}

// Validate runs the checks of §4.4 in the order documented there.
func (v *Validator) Validate(in ValidatorInput) model.PolicyResult {
	result := model.PolicyResult{IsValid: true}

	// Manifest name must be set and non-blank.
	if in.Manifest.Name == "" {
		result.IsValid = false
		result.Errors = append(result.Errors, string(model.ErrorKindPolicyMissingName)+": manifest name is required")
	}

	// Every resource type must appear as a key in either backend map.
	backends := mergeKeys(in.Platform.Backends, in.Env.Backends)
	for _, r := range in.Manifest.Resources {
		if !backends[r.Type] {
			result.Warnings = append(result.Warnings, model.Warning{
				Kind:    model.ErrorKindPolicyNoBackend,
				Message: "resource type has no backend routing entry",
				Subject: r.Type,
			})
		}
	}

	// Legacy cross-check of env values against declared types, kept
	// for defense in depth alongside the Reference Validator's own
	// pass (§4.4).
	if len(in.Manifest.Services) > 0 {
		declared := reference.DeclaredTypes(in.Manifest.Resources)
		refs := reference.Extract(in.Manifest.Services[0].Env)
		refCheck := reference.ValidateAgainstDeclaredTypes(refs, declared)
		if !refCheck.IsValid {
			result.IsValid = false
			result.Errors = append(result.Errors, refCheck.Errors...)
		}
	}

	// Optional policy knobs: allowedRegions. Region lives on the platform
	// base layer, so this check runs whether or not a WorkloadPlan has
	// been produced yet (the orchestrator runs the Validator only from
	// Validate(); Plan() and Apply() do not call it).
	if len(in.Platform.Policies.AllowedRegions) > 0 {
		if !contains(in.Platform.Policies.AllowedRegions, in.Platform.Defaults.Region) {
			result.IsValid = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"region %q is not in the allowed regions list", in.Platform.Defaults.Region))
		}
	}

	// secretsStrategy / externalSecretsStore invariant (§3): if
	// external-secrets, externalSecretsStore must be set. Both fields are
	// platform-only (§4.5): the merge engine never changes them, so this
	// reads in.Platform.Defaults directly rather than waiting on a
	// WorkloadPlan that Validate() never has reason to produce.
	if in.Platform.Defaults.SecretsStrategy == model.SecretsStrategyExternalSecrets && in.Platform.Defaults.ExternalSecretsStore == "" {
		result.IsValid = false
		result.Errors = append(result.Errors, "secretsStrategy is external-secrets but externalSecretsStore is unset")
	}

	return result
}

func mergeKeys(a, b map[string]string) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
