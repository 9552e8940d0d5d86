package policy

import (
	"testing"

	"github.com/deskribe/deskribe/pkg/model"
)

func basePlatform() model.PlatformConfig {
	return model.PlatformConfig{
		Defaults: model.PlatformDefaults{
			Region:          "us-east-1",
			SecretsStrategy: model.SecretsStrategyOpaque,
		},
	}
}

func TestValidateRequiresManifestName(t *testing.T) {
	v := New()
	result := v.Validate(ValidatorInput{Manifest: model.Manifest{}, Platform: basePlatform()})
	if result.IsValid {
		t.Fatal("expected an unnamed manifest to fail validation")
	}
}

func TestValidateWarnsOnMissingBackendRouting(t *testing.T) {
	v := New()
	in := ValidatorInput{
		Manifest: model.Manifest{Name: "orders", Resources: []model.Resource{{Type: "postgres"}}},
		Platform: basePlatform(),
	}
	result := v.Validate(in)
	if !result.IsValid {
		t.Fatalf("missing backend routing is a warning, not an error: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for the unrouted resource type")
	}
}

func TestValidateRegionOutsideAllowlistFails(t *testing.T) {
	v := New()
	platform := basePlatform()
	platform.Policies.AllowedRegions = []string{"eu-west-1"}
	result := v.Validate(ValidatorInput{Manifest: model.Manifest{Name: "orders"}, Platform: platform})
	if result.IsValid {
		t.Fatal("expected a region outside the allowlist to fail validation")
	}
}

// TestValidateExternalSecretsRequiresStore exercises spec.md §3's
// secretsStrategy/externalSecretsStore invariant and §8 scenario 6:
// external-secrets with no store configured must fail validation. Both
// fields live on platform.defaults and are untouched by the merge
// engine, so the check runs directly against the platform layer.
func TestValidateExternalSecretsRequiresStore(t *testing.T) {
	v := New()
	platform := basePlatform()
	platform.Defaults.SecretsStrategy = model.SecretsStrategyExternalSecrets
	platform.Defaults.ExternalSecretsStore = ""

	result := v.Validate(ValidatorInput{Manifest: model.Manifest{Name: "orders"}, Platform: platform})
	if result.IsValid {
		t.Fatal("expected external-secrets with an unset externalSecretsStore to fail validation")
	}

	found := false
	for _, e := range result.Errors {
		if e == "secretsStrategy is external-secrets but externalSecretsStore is unset" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the secretsStrategy error, got: %v", result.Errors)
	}
}

func TestValidateExternalSecretsWithStoreSucceeds(t *testing.T) {
	v := New()
	platform := basePlatform()
	platform.Defaults.SecretsStrategy = model.SecretsStrategyExternalSecrets
	platform.Defaults.ExternalSecretsStore = "vault://team-a/orders"

	result := v.Validate(ValidatorInput{Manifest: model.Manifest{Name: "orders"}, Platform: platform})
	if !result.IsValid {
		t.Fatalf("expected external-secrets with a store set to pass, got errors: %v", result.Errors)
	}
}
