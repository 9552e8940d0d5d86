package merge

import (
	"testing"

	"github.com/deskribe/deskribe/pkg/model"
)

func basePlatform() model.PlatformConfig {
	return model.PlatformConfig{
		Defaults: model.PlatformDefaults{
			Runtime:          "kubernetes",
			Region:           "us-east-1",
			Replicas:         1,
			CPU:              "250m",
			Memory:           "256Mi",
			NamespacePattern: "{app}-{env}",
			SecretsStrategy:  model.SecretsStrategyOpaque,
		},
		Backends: map[string]string{"postgres": "aws-rds"},
	}
}

func TestMergePlatformOnlyUsesPlatformDefaults(t *testing.T) {
	m := New()
	manifest := model.Manifest{Name: "orders"}
	env := model.EnvironmentConfig{Name: "dev"}

	wp := m.Merge(manifest, basePlatform(), env, nil)

	if wp.Replicas != 1 {
		t.Fatalf("Replicas = %d, want 1 (platform default)", wp.Replicas)
	}
	if wp.Namespace != "orders-dev" {
		t.Fatalf("Namespace = %q, want orders-dev", wp.Namespace)
	}
}

func TestMergeEnvironmentOverlayWinsOverPlatform(t *testing.T) {
	m := New()
	manifest := model.Manifest{Name: "orders"}
	replicas := 5
	env := model.EnvironmentConfig{Name: "prod", Defaults: model.EnvironmentDefaults{Replicas: &replicas}}

	wp := m.Merge(manifest, basePlatform(), env, nil)

	if wp.Replicas != 5 {
		t.Fatalf("Replicas = %d, want 5 (environment overlay)", wp.Replicas)
	}
}

func TestMergeServiceOverrideWinsOverEnvironmentAndPlatform(t *testing.T) {
	m := New()
	svcName := "api"
	envReplicas := 5
	svcReplicas := 9
	manifest := model.Manifest{
		Name: "orders",
		Services: []model.Service{{
			Name:      &svcName,
			Overrides: map[string]model.ServiceOverride{"prod": {Replicas: &svcReplicas}},
		}},
	}
	env := model.EnvironmentConfig{Name: "prod", Defaults: model.EnvironmentDefaults{Replicas: &envReplicas}}

	wp := m.Merge(manifest, basePlatform(), env, nil)

	if wp.Replicas != 9 {
		t.Fatalf("Replicas = %d, want 9 (service override)", wp.Replicas)
	}
}

func TestMergeUnsetOverlayFieldDoesNotZeroPlatformValue(t *testing.T) {
	m := New()
	manifest := model.Manifest{Name: "orders"}
	// Environment overlay sets nothing: CPU must stay the platform default,
	// not fall back to Go's zero value for string ("").
	env := model.EnvironmentConfig{Name: "dev"}

	wp := m.Merge(manifest, basePlatform(), env, nil)

	if wp.CPU != "250m" {
		t.Fatalf("CPU = %q, want 250m (platform default preserved when overlay is unset)", wp.CPU)
	}
}

func TestMergeSelectsImageByServiceName(t *testing.T) {
	m := New()
	svcName := "worker"
	manifest := model.Manifest{Name: "orders", Services: []model.Service{{Name: &svcName}}}
	env := model.EnvironmentConfig{Name: "dev"}
	images := map[string]string{"worker": "registry/orders-worker:v2", "api": "registry/orders-api:v2"}

	wp := m.Merge(manifest, basePlatform(), env, images)

	if wp.Image != "registry/orders-worker:v2" {
		t.Fatalf("Image = %q, want worker image", wp.Image)
	}
}

func TestMergeNamespaceExpandsOnlyDocumentedPlaceholders(t *testing.T) {
	m := New()
	manifest := model.Manifest{Name: "orders"}
	platform := basePlatform()
	platform.Defaults.NamespacePattern = "team-{app}-{env}-{app}"
	env := model.EnvironmentConfig{Name: "dev"}

	wp := m.Merge(manifest, platform, env, nil)

	if wp.Namespace != "team-orders-dev-orders" {
		t.Fatalf("Namespace = %q, want team-orders-dev-orders", wp.Namespace)
	}
}

func TestEffectiveBackendsEnvironmentWinsOnConflict(t *testing.T) {
	platform := model.PlatformConfig{Backends: map[string]string{"postgres": "aws-rds", "redis": "aws-elasticache"}}
	env := model.EnvironmentConfig{Backends: map[string]string{"postgres": "gcp-cloudsql"}}

	backends := EffectiveBackends(platform, env)

	if backends["postgres"] != "gcp-cloudsql" {
		t.Fatalf("backends[postgres] = %q, want gcp-cloudsql (env wins)", backends["postgres"])
	}
	if backends["redis"] != "aws-elasticache" {
		t.Fatalf("backends[redis] = %q, want aws-elasticache (platform-only entry preserved)", backends["redis"])
	}
}
