package fixtures

import (
	"context"
	"fmt"

	"github.com/deskribe/deskribe/pkg/model"
)

// RedisProvider is a pure Resource Provider for the "redis" kind.
type RedisProvider struct{}

// ResourceType implements model.ResourceProvider.
func (RedisProvider) ResourceType() string { return "redis" }

// Validate implements model.ResourceProvider.
func (RedisProvider) Validate(ctx context.Context, r model.Resource, rc model.ResourceContext) model.ValidationResult {
	result := model.NewValidationResult()
	if r.Size == "" {
		result.AddError(`redis resource requires "size"`)
	}
	if r.MaxMemoryMB != nil && *r.MaxMemoryMB <= 0 {
		result.AddError("maxMemoryMb must be a positive integer")
	}
	return result
}

// Plan implements model.ResourceProvider.
func (RedisProvider) Plan(ctx context.Context, r model.Resource, pc model.PlanContext) (model.ResourcePlanResult, error) {
	maxMem := 256
	if r.MaxMemoryMB != nil {
		maxMem = *r.MaxMemoryMB
	}
	ha := false
	if r.HA != nil {
		ha = *r.HA
	}

	return model.ResourcePlanResult{
		ResourceType: r.Type,
		Action:       model.PlanActionCreate,
		PlannedOutputs: map[string]string{
			"host": fmt.Sprintf("%s-%s-redis.internal", pc.AppName, pc.EnvConfig.Name),
			"port": "6379",
		},
		Configuration: map[string]interface{}{"maxMemoryMb": maxMem, "ha": ha},
	}, nil
}

// Schema implements model.ResourceProvider.
func (RedisProvider) Schema() []byte { return []byte(redisResourceSchema) }

const redisResourceSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type", "size"],
	"properties": {
		"type": {"const": "redis"},
		"size": {"type": "string"},
		"version": {"type": "string"},
		"ha": {"type": "boolean"},
		"maxMemoryMb": {"type": "integer", "minimum": 1}
	}
}`
