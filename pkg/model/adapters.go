package model

import "context"

// ResourceProvider is the capability registered per resource type. Both
// methods are pure: they must not perform I/O and Plan must be
// deterministic for identical inputs (§4.7).
type ResourceProvider interface {
	ResourceType() string
	Validate(ctx context.Context, resource Resource, rc ResourceContext) ValidationResult
	Plan(ctx context.Context, resource Resource, pc PlanContext) (ResourcePlanResult, error)

	// Schema optionally returns a JSON Schema (as a json.RawMessage-
	// compatible byte slice) describing the provider's resource
	// object. Neither the orchestrator nor the Policy Validator calls
	// it; pkg/policy.SchemaRegistry carries its own built-in schemas.
	Schema() []byte
}

// BackendAdapter provisions infrastructure for resources routed to it and
// tears it down on Destroy. Apply may perform I/O and must be cancellable.
type BackendAdapter interface {
	Name() string
	Apply(ctx context.Context, plan *DeskribePlan) (BackendApplyResult, error)
	Destroy(ctx context.Context, appName, env string, platform PlatformConfig) error
}

// RuntimeAdapter turns a resolved WorkloadPlan into a deployed workload.
type RuntimeAdapter interface {
	Name() string
	Render(ctx context.Context, workload *WorkloadPlan) (WorkloadManifest, error)
	Apply(ctx context.Context, manifest WorkloadManifest) error
	Destroy(ctx context.Context, namespace string) error
}

// MessagingProvider is parallel to ResourceProvider, specialized for
// messaging resources (e.g. kafka.messaging): additional policy checks
// such as minimum partition counts and ACL planning.
type MessagingProvider interface {
	ProviderType() string
	ValidateTopics(ctx context.Context, topics []KafkaTopic) ValidationResult
	PlanACLs(ctx context.Context, topics []KafkaTopic) (map[string]interface{}, error)
}
