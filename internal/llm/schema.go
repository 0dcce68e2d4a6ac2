package llm

import (
	"fmt"
	"strings"
)

// Schema is the subset of JSON Schema the engine uses to constrain and
// validate structured outputs: type, properties, required, items, enum.
// It marshals to the raw schema shape providers expect.
type Schema struct {
	Type       string             `json:"type,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
	Description string            `json:"description,omitempty"`
}

// Object builds an object schema with the given required keys.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

// Array builds an array schema.
func Array(items *Schema) *Schema { return &Schema{Type: "array", Items: items} }

// String builds a string schema, optionally enum-constrained.
func String(enum ...string) *Schema { return &Schema{Type: "string", Enum: enum} }

// Number builds a number schema.
func Number() *Schema { return &Schema{Type: "number"} }

// Boolean builds a boolean schema.
func Boolean() *Schema { return &Schema{Type: "boolean"} }

// SchemaError reports the first point where a value violated the schema.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

// Validate checks a decoded JSON value against the schema.
func (s *Schema) Validate(v any) error {
	return s.validate(v, "$")
}

func (s *Schema) validate(v any, path string) error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case "object":
		obj, ok := v.(map[string]any)
		if !ok {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("expected object, got %T", v)}
		}
		for _, key := range s.Required {
			if _, present := obj[key]; !present {
				return &SchemaError{Path: path, Reason: fmt.Sprintf("missing required field %q", key)}
			}
		}
		for key, sub := range s.Properties {
			val, present := obj[key]
			if !present || val == nil {
				continue
			}
			if err := sub.validate(val, path+"."+key); err != nil {
				return err
			}
		}
	case "array":
		arr, ok := v.([]any)
		if !ok {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("expected array, got %T", v)}
		}
		for i, item := range arr {
			if err := s.Items.validate(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case "string":
		str, ok := v.(string)
		if !ok {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("expected string, got %T", v)}
		}
		if len(s.Enum) > 0 {
			for _, e := range s.Enum {
				if str == e {
					return nil
				}
			}
			return &SchemaError{Path: path, Reason: fmt.Sprintf("%q not in enum [%s]", str, strings.Join(s.Enum, ", "))}
		}
	case "number":
		switch v.(type) {
		case float64, int, int64:
		default:
			return &SchemaError{Path: path, Reason: fmt.Sprintf("expected number, got %T", v)}
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("expected boolean, got %T", v)}
		}
	}
	return nil
}
