package fixtures

import (
	"context"
	"fmt"

	"github.com/deskribe/deskribe/pkg/model"
)

// PostgresProvider is a pure Resource Provider for the "postgres" kind.
type PostgresProvider struct{}

// ResourceType implements model.ResourceProvider.
func (PostgresProvider) ResourceType() string { return "postgres" }

var validPostgresSizes = map[string]bool{"small": true, "medium": true, "large": true, "xlarge": true}

// Validate implements model.ResourceProvider. Pure; no I/O.
func (PostgresProvider) Validate(ctx context.Context, r model.Resource, rc model.ResourceContext) model.ValidationResult {
	result := model.NewValidationResult()
	if r.Size == "" {
		result.AddError(`postgres resource requires "size"`)
		return result
	}
	if !validPostgresSizes[r.Size] {
		result.AddWarning(model.ErrorKindProviderValidation, "unrecognized size; the backend may reject it", r.Size)
	}
	return result
}

// Plan implements model.ResourceProvider. Deterministic for identical
// inputs: the connection string is derived only from AppName and
// EnvConfig.Name, never from a clock or random source.
func (PostgresProvider) Plan(ctx context.Context, r model.Resource, pc model.PlanContext) (model.ResourcePlanResult, error) {
	ha := false
	if r.HA != nil {
		ha = *r.HA
	}
	sku := postgresSKU(r.Size, ha)

	return model.ResourcePlanResult{
		ResourceType: r.Type,
		Action:       model.PlanActionCreate,
		PlannedOutputs: map[string]string{
			"connectionString": fmt.Sprintf("postgres://%s-%s.internal:5432/%s", pc.AppName, pc.EnvConfig.Name, pc.AppName),
			"sku":              sku,
		},
		Configuration: map[string]interface{}{"size": r.Size, "ha": ha, "sku": sku},
	}, nil
}

// Schema implements model.ResourceProvider, feeding the Policy
// Validator's optional per-resource-type JSON Schema check (§5.4).
func (PostgresProvider) Schema() []byte { return []byte(postgresResourceSchema) }

func postgresSKU(size string, ha bool) string {
	base := map[string]string{
		"small":  "db.t3.small",
		"medium": "db.m5.large",
		"large":  "db.m5.xlarge",
		"xlarge": "db.m5.2xlarge",
	}[size]
	if base == "" {
		base = "db.t3.small"
	}
	if ha {
		return base + "-ha"
	}
	return base
}

const postgresResourceSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type", "size"],
	"properties": {
		"type": {"const": "postgres"},
		"size": {"type": "string", "enum": ["small", "medium", "large", "xlarge"]},
		"version": {"type": "string"},
		"ha": {"type": "boolean"},
		"sku": {"type": "string"}
	}
}`
