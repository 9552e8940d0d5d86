package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deskribe/deskribe/internal/fixtures"
	"github.com/deskribe/deskribe/pkg/registry"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

const testManifest = `{
	"name": "orders",
	"resources": [
		{"type": "postgres", "size": "small", "labels": {"owner": "team-a"}}
	],
	"services": [
		{"env": {"DATABASE_URL": "@resource(postgres).connectionString"}}
	]
}`

const testPlatformBase = `{
	"organization": "acme",
	"defaults": {
		"runtime": "memory",
		"region": "us-east-1",
		"replicas": 2,
		"cpu": "500m",
		"memory": "512Mi",
		"namespacePattern": "{app}-{env}",
		"secretsStrategy": "opaque"
	},
	"backends": {"postgres": "memory"},
	"policies": {"allowedRegions": ["us-east-1"]}
}`

const testEnvOverlay = `{"name": "dev"}`

// setupTestRepo writes a manifest and platform tree to a temp dir and
// returns their paths.
func setupTestRepo(t *testing.T) (manifestPath, platformPath string) {
	t.Helper()
	dir := t.TempDir()

	manifestPath = filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifestPath, []byte(testManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	platformPath = filepath.Join(dir, "platform")
	if err := os.MkdirAll(filepath.Join(platformPath, "envs"), 0o755); err != nil {
		t.Fatalf("mkdir platform: %v", err)
	}
	if err := os.WriteFile(filepath.Join(platformPath, "base.json"), []byte(testPlatformBase), 0o644); err != nil {
		t.Fatalf("write base.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(platformPath, "envs", "dev.json"), []byte(testEnvOverlay), 0o644); err != nil {
		t.Fatalf("write dev.json: %v", err)
	}

	return manifestPath, platformPath
}

func newTestEngine(t *testing.T) (*Engine, *fixtures.MemoryBackend, *fixtures.MemoryRuntime) {
	t.Helper()
	reg := registry.New(telemetry.NewSilentLogger())
	reg.RegisterResourceProvider(fixtures.PostgresProvider{})
	reg.RegisterResourceProvider(fixtures.RedisProvider{})
	kafka := fixtures.KafkaMessagingProvider{MinPartitions: 3}
	reg.RegisterResourceProvider(kafka)
	reg.RegisterMessagingProvider(kafka)

	backend := fixtures.NewMemoryBackend()
	reg.RegisterBackendAdapter(backend)

	rt := fixtures.NewMemoryRuntime()
	reg.RegisterRuntimeAdapter(rt)

	return New(reg, nil, nil), backend, rt
}

func TestValidateSucceeds(t *testing.T) {
	manifestPath, platformPath := setupTestRepo(t)
	eng, _, _ := newTestEngine(t)

	result, err := eng.Validate(context.Background(), manifestPath, platformPath, "dev")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
}

func TestValidateRegionOutsideAllowlistFails(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	os.WriteFile(manifestPath, []byte(testManifest), 0o644)

	platformPath := filepath.Join(dir, "platform")
	os.MkdirAll(filepath.Join(platformPath, "envs"), 0o755)
	badBase := `{
		"defaults": {
			"runtime": "memory", "region": "eu-west-1", "replicas": 1,
			"cpu": "100m", "memory": "128Mi", "namespacePattern": "{app}-{env}",
			"secretsStrategy": "opaque"
		},
		"backends": {"postgres": "memory"},
		"policies": {"allowedRegions": ["us-east-1"]}
	}`
	os.WriteFile(filepath.Join(platformPath, "base.json"), []byte(badBase), 0o644)
	os.WriteFile(filepath.Join(platformPath, "envs", "dev.json"), []byte(testEnvOverlay), 0o644)

	eng, _, _ := newTestEngine(t)
	result, err := eng.Validate(context.Background(), manifestPath, platformPath, "dev")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatalf("expected invalid result for out-of-allowlist region")
	}
}

// TestValidateExternalSecretsWithoutStoreFails exercises spec.md §8
// scenario 6 end to end through Engine.Validate: secretsStrategy set to
// external-secrets with no externalSecretsStore must fail, not silently
// pass because no WorkloadPlan has been produced yet.
func TestValidateExternalSecretsWithoutStoreFails(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	os.WriteFile(manifestPath, []byte(testManifest), 0o644)

	platformPath := filepath.Join(dir, "platform")
	os.MkdirAll(filepath.Join(platformPath, "envs"), 0o755)
	base := `{
		"defaults": {
			"runtime": "memory", "region": "us-east-1", "replicas": 1,
			"cpu": "100m", "memory": "128Mi", "namespacePattern": "{app}-{env}",
			"secretsStrategy": "external-secrets"
		},
		"backends": {"postgres": "memory"},
		"policies": {"allowedRegions": ["us-east-1"]}
	}`
	os.WriteFile(filepath.Join(platformPath, "base.json"), []byte(base), 0o644)
	os.WriteFile(filepath.Join(platformPath, "envs", "dev.json"), []byte(testEnvOverlay), 0o644)

	eng, _, _ := newTestEngine(t)
	result, err := eng.Validate(context.Background(), manifestPath, platformPath, "dev")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("expected external-secrets with no externalSecretsStore to fail validation")
	}
}

// TestMessagingProviderDispatchedThroughRegistry exercises spec.md §4.7:
// Validate and Plan must look up the Messaging Provider through the
// registry for a messaging resource type, not rely on the Resource
// Provider to delegate to itself.
func TestMessagingProviderDispatchedThroughRegistry(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	manifest := `{
		"name": "orders",
		"resources": [
			{"type": "kafka.messaging", "topics": [{"name": "orders.created", "partitions": 1, "owners": ["team-a"], "consumers": ["team-b"]}]}
		],
		"services": [{"env": {}}]
	}`
	os.WriteFile(manifestPath, []byte(manifest), 0o644)

	platformPath := filepath.Join(dir, "platform")
	os.MkdirAll(filepath.Join(platformPath, "envs"), 0o755)
	base := `{
		"defaults": {
			"runtime": "memory", "region": "us-east-1", "replicas": 1,
			"cpu": "100m", "memory": "128Mi", "namespacePattern": "{app}-{env}",
			"secretsStrategy": "opaque"
		},
		"backends": {"kafka.messaging": "memory"}
	}`
	os.WriteFile(filepath.Join(platformPath, "base.json"), []byte(base), 0o644)
	os.WriteFile(filepath.Join(platformPath, "envs", "dev.json"), []byte(testEnvOverlay), 0o644)

	eng, _, _ := newTestEngine(t)

	// newTestEngine registers a KafkaMessagingProvider with MinPartitions
	// 3; the topic above declares 1, so only the registry-dispatched
	// ValidateTopics call can catch this — the KafkaMessagingProvider's
	// own Validate only checks that at least one topic is present.
	result, err := eng.Validate(context.Background(), manifestPath, platformPath, "dev")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("expected a below-minimum-partitions topic to fail validation via the dispatched Messaging Provider")
	}

	plan, err := eng.Plan(context.Background(), manifestPath, platformPath, "dev", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.ResourcePlans) != 1 {
		t.Fatalf("expected 1 resource plan, got %d", len(plan.ResourcePlans))
	}
	rp := plan.ResourcePlans[0]
	acls, ok := rp.Configuration["acls"]
	if !ok {
		t.Fatalf("expected Plan to fold in ACLs from the dispatched Messaging Provider, got Configuration = %v", rp.Configuration)
	}
	aclMap, ok := acls.(map[string]interface{})
	if !ok {
		t.Fatalf("expected acls to be a map, got %T", acls)
	}
	topicACL, ok := aclMap["orders.created"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected an ACL entry for orders.created, got %v", aclMap)
	}
	if consumers, _ := topicACL["read"].([]string); len(consumers) != 1 || consumers[0] != "team-b" {
		t.Errorf("expected read=[team-b], got %v", topicACL["read"])
	}
}

func TestPlanPreservesDeclaredOrder(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	multi := `{
		"name": "orders",
		"resources": [
			{"type": "redis", "size": "small"},
			{"type": "postgres", "size": "small"}
		],
		"services": [{"env": {}}]
	}`
	os.WriteFile(manifestPath, []byte(multi), 0o644)

	platformPath := filepath.Join(dir, "platform")
	os.MkdirAll(filepath.Join(platformPath, "envs"), 0o755)
	base := `{
		"defaults": {
			"runtime": "memory", "region": "us-east-1", "replicas": 1,
			"cpu": "100m", "memory": "128Mi", "namespacePattern": "{app}-{env}",
			"secretsStrategy": "opaque"
		},
		"backends": {"postgres": "memory", "redis": "memory"}
	}`
	os.WriteFile(filepath.Join(platformPath, "base.json"), []byte(base), 0o644)
	os.WriteFile(filepath.Join(platformPath, "envs", "dev.json"), []byte(testEnvOverlay), 0o644)

	eng, _, _ := newTestEngine(t)
	plan, err := eng.Plan(context.Background(), manifestPath, platformPath, "dev", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.ResourcePlans) != 2 {
		t.Fatalf("expected 2 resource plans, got %d", len(plan.ResourcePlans))
	}
	if plan.ResourcePlans[0].ResourceType != "redis" || plan.ResourcePlans[1].ResourceType != "postgres" {
		t.Errorf("expected declared order [redis, postgres], got [%s, %s]",
			plan.ResourcePlans[0].ResourceType, plan.ResourcePlans[1].ResourceType)
	}
	if plan.ID == "" {
		t.Errorf("expected a generated plan ID")
	}
}

func TestApplyResolvesReferencesAndDeploysRuntime(t *testing.T) {
	manifestPath, platformPath := setupTestRepo(t)
	eng, backend, rt := newTestEngine(t)

	plan, err := eng.Plan(context.Background(), manifestPath, platformPath, "dev", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if err := eng.Apply(context.Background(), plan); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if !backend.WasApplied("orders", "dev") {
		t.Errorf("expected the memory backend to have been applied")
	}

	manifest, ok := rt.AppliedManifest("orders-dev")
	if !ok {
		t.Fatalf("expected a manifest applied under namespace orders-dev")
	}
	if !strings.Contains(manifest.YAML, "postgres://orders-dev.internal:5432/orders") {
		t.Errorf("expected the resolved connection string in the rendered manifest, got:\n%s", manifest.YAML)
	}
}

func TestDestroyIsBestEffortAndIdempotent(t *testing.T) {
	manifestPath, platformPath := setupTestRepo(t)
	eng, backend, rt := newTestEngine(t)

	plan, err := eng.Plan(context.Background(), manifestPath, platformPath, "dev", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if err := eng.Apply(context.Background(), plan); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := eng.Destroy(context.Background(), manifestPath, platformPath, "dev"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if backend.WasApplied("orders", "dev") {
		t.Errorf("expected backend state to be torn down")
	}
	if _, ok := rt.AppliedManifest("orders-dev"); ok {
		t.Errorf("expected runtime manifest to be torn down")
	}

	// Idempotent: destroying again is not an error.
	if err := eng.Destroy(context.Background(), manifestPath, platformPath, "dev"); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}
}
