package policy

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/deskribe/deskribe/pkg/model"
)

// SchemaRegistry holds one JSON Schema per resource type, checked in
// addition to the struct-tag validation the Loader already runs
// (§4.1, §5.4). A resource type with no registered schema passes
// silently: schema coverage is opt-in, not required.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewSchemaRegistry returns a registry with the built-in schemas for the
// three recognized resource kinds already compiled.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{schemas: make(map[string]*jsonschema.Schema)}
	for typ, raw := range builtinResourceSchemas {
		if err := sr.RegisterSchema(typ, raw); err != nil {
			panic(fmt.Sprintf("built-in schema %s does not compile: %v", typ, err))
		}
	}
	return sr
}

// RegisterSchema compiles and registers a JSON Schema for resourceType,
// overwriting any existing schema for that type.
func (sr *SchemaRegistry) RegisterSchema(resourceType, schemaJSON string) error {
	c := jsonschema.NewCompiler()
	url := "mem://" + resourceType
	if err := c.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("failed to add schema resource %s: %w", resourceType, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", resourceType, err)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.schemas[resourceType] = compiled
	return nil
}

// Validate checks resource against its registered schema, if any.
func (sr *SchemaRegistry) Validate(resource model.Resource) error {
	sr.mu.RLock()
	schema, ok := sr.schemas[resource.Type]
	sr.mu.RUnlock()
	if !ok {
		return nil
	}

	raw, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("failed to marshal resource for schema validation: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to decode resource for schema validation: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("resource %q failed schema validation: %w", resource.Type, err)
	}
	return nil
}

// ListSchemas returns the resource types with a registered schema.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

var builtinResourceSchemas = map[string]string{
	"postgres": `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["type", "size"],
		"properties": {
			"type": {"const": "postgres"},
			"size": {"type": "string", "minLength": 1},
			"version": {"type": "string"},
			"ha": {"type": "boolean"},
			"sku": {"type": "string"}
		}
	}`,
	"redis": `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["type", "size"],
		"properties": {
			"type": {"const": "redis"},
			"size": {"type": "string", "minLength": 1},
			"version": {"type": "string"},
			"ha": {"type": "boolean"},
			"maxMemoryMb": {"type": "integer", "minimum": 1}
		}
	}`,
	"kafka.messaging": `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["type", "topics"],
		"properties": {
			"type": {"const": "kafka.messaging"},
			"topics": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["name"],
					"properties": {
						"name": {"type": "string", "minLength": 1},
						"partitions": {"type": "integer", "minimum": 1},
						"retentionHours": {"type": "integer", "minimum": 1}
					}
				}
			}
		}
	}`,
}
