package policy

import (
	"testing"

	"github.com/deskribe/deskribe/pkg/model"
)

func TestSchemaRegistryBuiltins(t *testing.T) {
	sr := NewSchemaRegistry()
	names := sr.ListSchemas()
	if len(names) != 3 {
		t.Fatalf("got %d built-in schemas, want 3", len(names))
	}

	valid := model.Resource{Type: "postgres", Size: "small"}
	if err := sr.Validate(valid); err != nil {
		t.Errorf("Validate(%+v) = %v, want nil", valid, err)
	}

	missingSize := model.Resource{Type: "postgres"}
	if err := sr.Validate(missingSize); err == nil {
		t.Errorf("expected an error for a postgres resource with no size")
	}
}

func TestSchemaRegistryUnknownTypePasses(t *testing.T) {
	sr := NewSchemaRegistry()
	r := model.Resource{Type: "custom.thing"}
	if err := sr.Validate(r); err != nil {
		t.Errorf("Validate on a type with no registered schema should pass, got %v", err)
	}
}

func TestSchemaRegistryCustomSchema(t *testing.T) {
	sr := NewSchemaRegistry()
	err := sr.RegisterSchema("custom.thing", `{
		"type": "object",
		"required": ["type", "size"]
	}`)
	if err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	if err := sr.Validate(model.Resource{Type: "custom.thing"}); err == nil {
		t.Errorf("expected an error, size is required by the newly registered schema")
	}
	if err := sr.Validate(model.Resource{Type: "custom.thing", Size: "large"}); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}
