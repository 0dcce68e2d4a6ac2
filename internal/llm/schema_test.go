package llm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidateObject(t *testing.T) {
	schema := Object(map[string]*Schema{
		"purpose": String(),
		"goals":   Array(String()),
		"count":   Number(),
		"flag":    Boolean(),
	}, "purpose")

	ok := map[string]any{
		"purpose": "protect payment flow",
		"goals":   []any{"availability", "integrity"},
		"count":   float64(3),
		"flag":    true,
	}
	assert.NoError(t, schema.Validate(ok))

	missing := map[string]any{"goals": []any{}}
	err := schema.Validate(missing)
	require.Error(t, err)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "$", se.Path)
}

func TestSchemaValidateEnum(t *testing.T) {
	schema := Object(map[string]*Schema{
		"category": String("financial", "privacy", "mission"),
	}, "category")

	assert.NoError(t, schema.Validate(map[string]any{"category": "privacy"}))

	err := schema.Validate(map[string]any{"category": "cosmic"})
	require.Error(t, err)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "$.category", se.Path)
}

func TestSchemaValidateNestedPath(t *testing.T) {
	schema := Object(map[string]*Schema{
		"losses": Array(Object(map[string]*Schema{
			"description": String(),
		}, "description")),
	}, "losses")

	err := schema.Validate(map[string]any{
		"losses": []any{
			map[string]any{"description": "ok"},
			map[string]any{"wrong": "key"},
		},
	})
	require.Error(t, err)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "$.losses[1]", se.Path)
}

func TestSchemaOptionalFieldsSkipped(t *testing.T) {
	schema := Object(map[string]*Schema{
		"required_one": String(),
		"optional_one": Number(),
	}, "required_one")

	// Absent and null optional fields pass; wrong types fail.
	assert.NoError(t, schema.Validate(map[string]any{"required_one": "x"}))
	assert.NoError(t, schema.Validate(map[string]any{"required_one": "x", "optional_one": nil}))
	assert.Error(t, schema.Validate(map[string]any{"required_one": "x", "optional_one": "not a number"}))
}

func TestSchemaMarshalShape(t *testing.T) {
	schema := Object(map[string]*Schema{"kind": String("controller", "controlled_process")}, "kind")
	data, err := json.Marshal(schema)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "object", raw["type"])
	assert.Contains(t, raw, "properties")
	assert.Contains(t, raw, "required")
}
