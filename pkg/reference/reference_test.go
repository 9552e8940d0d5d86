package reference

import (
	"testing"

	"github.com/deskribe/deskribe/pkg/model"
)

func TestExtractFindsReferencesInDeterministicOrder(t *testing.T) {
	env := map[string]string{
		"DB_URL":    "@resource(postgres).connectionString",
		"CACHE_URL": "redis://@resource(redis).host:@resource(redis).port",
	}

	refs := Extract(env)

	if len(refs) != 3 {
		t.Fatalf("len(refs) = %d, want 3", len(refs))
	}
	// Sorted by env var name: CACHE_URL before DB_URL.
	if refs[0].EnvVarName != "CACHE_URL" || refs[2].EnvVarName != "DB_URL" {
		t.Fatalf("refs not sorted by env var name: %+v", refs)
	}
	if refs[0].ResourceType != "redis" || refs[0].Property != "host" {
		t.Fatalf("refs[0] = %+v, want redis.host", refs[0])
	}
}

func TestValidateAgainstDeclaredTypesFlagsUndeclared(t *testing.T) {
	refs := []Reference{{EnvVarName: "DB_URL", ResourceType: "postgres", Property: "connectionString"}}
	declared := map[string]bool{"redis": true}

	result := ValidateAgainstDeclaredTypes(refs, declared)

	if result.IsValid {
		t.Fatal("IsValid = true, want false (postgres is undeclared)")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
	}
}

func TestValidateAgainstDeclaredTypesCollectsAllViolations(t *testing.T) {
	refs := []Reference{
		{EnvVarName: "A", ResourceType: "postgres"},
		{EnvVarName: "B", ResourceType: "kafka.messaging"},
	}
	result := ValidateAgainstDeclaredTypes(refs, map[string]bool{})

	if len(result.Errors) != 2 {
		t.Fatalf("len(Errors) = %d, want 2 (no short-circuit)", len(result.Errors))
	}
}

func TestResolveSubstitutesKnownOutputs(t *testing.T) {
	env := map[string]string{"DB_URL": "@resource(postgres).connectionString"}
	outputs := map[string]map[string]string{"postgres": {"connectionString": "postgres://orders-dev.internal:5432/orders"}}

	resolved, warnings := Resolve(env, outputs, nil)

	if resolved["DB_URL"] != "postgres://orders-dev.internal:5432/orders" {
		t.Fatalf("DB_URL = %q", resolved["DB_URL"])
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
}

func TestResolveLeavesUnresolvableReferencesVerbatimAndWarns(t *testing.T) {
	env := map[string]string{"DB_URL": "@resource(postgres).connectionString"}
	outputs := map[string]map[string]string{} // no postgres outputs at all

	resolved, warnings := Resolve(env, outputs, nil)

	if resolved["DB_URL"] != "@resource(postgres).connectionString" {
		t.Fatalf("DB_URL = %q, want verbatim", resolved["DB_URL"])
	}
	if len(warnings) != 1 || warnings[0].Kind != model.ErrorKindReferenceUnresolved {
		t.Fatalf("warnings = %+v, want one ReferenceUnresolved", warnings)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	env := map[string]string{"DB_URL": "@resource(postgres).connectionString", "OTHER": "plain-value"}
	outputs := map[string]map[string]string{"postgres": {"connectionString": "postgres://x"}}

	first, _ := Resolve(env, outputs, nil)
	second, _ := Resolve(first, outputs, nil)

	if first["DB_URL"] != second["DB_URL"] || first["OTHER"] != second["OTHER"] {
		t.Fatalf("Resolve not idempotent: first=%v second=%v", first, second)
	}
}

func TestDeclaredTypesReturnsManifestResourceTypes(t *testing.T) {
	declared := DeclaredTypes([]model.Resource{{Type: "postgres"}, {Type: "redis"}})
	if !declared["postgres"] || !declared["redis"] || len(declared) != 2 {
		t.Fatalf("declared = %v", declared)
	}
}
