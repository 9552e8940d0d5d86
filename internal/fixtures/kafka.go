package fixtures

import (
	"context"
	"fmt"
	"strings"

	"github.com/deskribe/deskribe/pkg/model"
)

// KafkaMessagingProvider is a pure Resource Provider for the
// "kafka.messaging" kind. It also implements model.MessagingProvider,
// the parallel interface spec.md §4.7 describes for additional
// messaging-specific policy checks and ACL planning.
type KafkaMessagingProvider struct {
	// MinPartitions is the minimum partition count ValidateTopics
	// enforces per topic. Zero means no minimum.
	MinPartitions int
}

// ResourceType implements model.ResourceProvider.
func (KafkaMessagingProvider) ResourceType() string { return "kafka.messaging" }

// ProviderType implements model.MessagingProvider.
func (KafkaMessagingProvider) ProviderType() string { return "kafka.messaging" }

// Validate implements model.ResourceProvider. The per-topic checks
// (name present, minimum partitions) are the Messaging Provider's
// responsibility (§4.7) and run separately when the Orchestration Engine
// dispatches to the registry's Messaging Provider for this resource type;
// this method only enforces the resource-level shape.
func (p KafkaMessagingProvider) Validate(ctx context.Context, r model.Resource, rc model.ResourceContext) model.ValidationResult {
	result := model.NewValidationResult()
	if len(r.Topics) == 0 {
		result.AddError("kafka.messaging resource requires at least one topic")
	}
	return result
}

// ValidateTopics implements model.MessagingProvider.
func (p KafkaMessagingProvider) ValidateTopics(ctx context.Context, topics []model.KafkaTopic) model.ValidationResult {
	result := model.NewValidationResult()
	for _, t := range topics {
		if t.Name == "" {
			result.AddError("kafka topic is missing a name")
			continue
		}
		if t.Partitions != nil && p.MinPartitions > 0 && *t.Partitions < p.MinPartitions {
			result.AddError(fmt.Sprintf("topic %q requests %d partitions, below the minimum of %d", t.Name, *t.Partitions, p.MinPartitions))
		}
	}
	return result
}

// Plan implements model.ResourceProvider. ACL planning is the Messaging
// Provider's responsibility (§4.7) and is folded in separately by the
// Orchestration Engine when it dispatches to the registry's Messaging
// Provider for this resource type; this method only computes the
// connection-level outputs.
func (p KafkaMessagingProvider) Plan(ctx context.Context, r model.Resource, pc model.PlanContext) (model.ResourcePlanResult, error) {
	names := make([]string, 0, len(r.Topics))
	outputs := map[string]string{
		"bootstrapServers": fmt.Sprintf("%s-%s-kafka.internal:9092", pc.AppName, pc.EnvConfig.Name),
	}
	for _, t := range r.Topics {
		names = append(names, t.Name)
	}
	outputs["topics"] = strings.Join(names, ",")

	return model.ResourcePlanResult{
		ResourceType:   r.Type,
		Action:         model.PlanActionCreate,
		PlannedOutputs: outputs,
	}, nil
}

// PlanACLs implements model.MessagingProvider: grants read to each
// topic's declared consumers and write to its declared owners.
func (p KafkaMessagingProvider) PlanACLs(ctx context.Context, topics []model.KafkaTopic) (map[string]interface{}, error) {
	acls := make(map[string]interface{}, len(topics))
	for _, t := range topics {
		acls[t.Name] = map[string]interface{}{
			"read":  t.Consumers,
			"write": t.Owners,
		}
	}
	return map[string]interface{}{"acls": acls}, nil
}

// Schema implements model.ResourceProvider.
func (KafkaMessagingProvider) Schema() []byte { return []byte(kafkaResourceSchema) }

const kafkaResourceSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type", "topics"],
	"properties": {
		"type": {"const": "kafka.messaging"},
		"topics": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string"},
					"partitions": {"type": "integer", "minimum": 1},
					"retentionHours": {"type": "integer", "minimum": 1}
				}
			}
		}
	}
}`
