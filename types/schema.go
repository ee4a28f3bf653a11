package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// FieldType represents JSON Schema primitive type tags.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeInteger FieldType = "integer"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeNull    FieldType = "null"
	FieldTypeObject  FieldType = "object"
	FieldTypeArray   FieldType = "array"
)

// FieldSpec describes one named parameter of a remote command: its type
// tag, whether it is required, an optional declared default, and an
// optional enumeration of allowed values. A list of FieldSpec is
// interpreted by a generic validator at call time instead of generating
// new types per command at runtime.
type FieldSpec struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	HasDefault  bool      `json:"has_default,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
}

// ParameterSchema is the ordered set of field descriptors for one
// command. Immutable once parsed from a catalog response. A command
// with no declared parameters yields an empty schema.
type ParameterSchema struct {
	Fields []FieldSpec
}

// rawParameters mirrors the wire shape of a command's parameter block:
// {"properties": {<field>: {type, description?, enum?, default?}}, "required": [...]}.
type rawParameters struct {
	Properties map[string]rawProperty `json:"properties"`
	Required   []string               `json:"required"`
}

type rawProperty struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Enum        []any           `json:"enum"`
	Default     json.RawMessage `json:"default"`
}

// ParseParameterSchema builds a ParameterSchema from a JSON-schema-like
// parameter block. Absence of "properties" means zero parameters.
// Fields are ordered by name so the schema is deterministic regardless
// of JSON object iteration order.
func ParseParameterSchema(raw json.RawMessage) (ParameterSchema, error) {
	if len(raw) == 0 {
		return ParameterSchema{}, nil
	}

	var rp rawParameters
	if err := json.Unmarshal(raw, &rp); err != nil {
		return ParameterSchema{}, NewError(ErrProtocol, "invalid parameter schema").WithCause(err)
	}
	if len(rp.Properties) == 0 {
		return ParameterSchema{}, nil
	}

	required := make(map[string]bool, len(rp.Required))
	for _, name := range rp.Required {
		required[name] = true
	}

	names := make([]string, 0, len(rp.Properties))
	for name := range rp.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]FieldSpec, 0, len(names))
	for _, name := range names {
		prop := rp.Properties[name]

		typ := FieldType(prop.Type)
		if prop.Type == "" {
			typ = FieldTypeString
		}

		spec := FieldSpec{
			Name:        name,
			Type:        typ,
			Description: prop.Description,
			Required:    required[name],
			Enum:        prop.Enum,
		}
		if len(prop.Default) > 0 {
			var def any
			if err := json.Unmarshal(prop.Default, &def); err != nil {
				return ParameterSchema{}, NewError(ErrProtocol,
					fmt.Sprintf("invalid default for field %q", name)).WithCause(err)
			}
			spec.Default = def
			spec.HasDefault = true
		}
		fields = append(fields, spec)
	}

	return ParameterSchema{Fields: fields}, nil
}

// IsEmpty reports whether the schema declares no parameters.
func (s ParameterSchema) IsEmpty() bool {
	return len(s.Fields) == 0
}

// Validate checks the supplied arguments against the schema and returns
// a validated copy: required fields present with the right type, enum
// membership enforced, declared defaults filled in for absent optional
// fields. Unknown argument names are dropped rather than forwarded.
// Any violation fails with an ARGUMENT_VALIDATION error before the
// caller performs network I/O.
func (s ParameterSchema) Validate(args map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(s.Fields))

	for _, field := range s.Fields {
		value, present := args[field.Name]
		if !present {
			if field.Required {
				return nil, NewError(ErrArgumentValidation,
					fmt.Sprintf("missing required parameter %q", field.Name))
			}
			if field.HasDefault {
				validated[field.Name] = field.Default
			}
			continue
		}

		if err := checkType(field, value); err != nil {
			return nil, err
		}
		if len(field.Enum) > 0 && !enumContains(field.Enum, value) {
			return nil, NewError(ErrArgumentValidation,
				fmt.Sprintf("parameter %q: value %v not in allowed set %v", field.Name, value, field.Enum))
		}
		validated[field.Name] = value
	}

	return validated, nil
}

// ToJSONSchema serializes the schema back into the JSON-schema fragment
// expected by LLM tool declarations.
func (s ParameterSchema) ToJSONSchema() json.RawMessage {
	properties := make(map[string]map[string]any, len(s.Fields))
	var required []string

	for _, field := range s.Fields {
		prop := map[string]any{"type": string(field.Type)}
		if field.Description != "" {
			prop["description"] = field.Description
		}
		if len(field.Enum) > 0 {
			prop["enum"] = field.Enum
		}
		if field.HasDefault {
			prop["default"] = field.Default
		}
		properties[field.Name] = prop
		if field.Required {
			required = append(required, field.Name)
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}

	data, _ := json.Marshal(out)
	return data
}

// checkType validates one value against a field's declared type tag.
// Values arrive as JSON-decoded Go values, so numbers are float64 and
// objects are map[string]any. Native Go ints are also accepted for
// numeric tags since tests and direct callers construct argument maps
// in Go.
func checkType(field FieldSpec, value any) error {
	ok := false
	switch field.Type {
	case FieldTypeString:
		_, ok = value.(string)
	case FieldTypeNumber:
		ok = isNumeric(value)
	case FieldTypeInteger:
		ok = isIntegral(value)
	case FieldTypeBoolean:
		_, ok = value.(bool)
	case FieldTypeArray:
		_, ok = value.([]any)
	case FieldTypeObject:
		_, ok = value.(map[string]any)
	case FieldTypeNull:
		ok = value == nil
	default:
		// Unknown type tag: accept anything, the server validates further.
		ok = true
	}
	if !ok {
		return NewError(ErrArgumentValidation,
			fmt.Sprintf("parameter %q: expected %s, got %T", field.Name, field.Type, value))
	}
	return nil
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}

func isIntegral(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == math.Trunc(n)
	case float32:
		return float64(n) == math.Trunc(float64(n))
	}
	return false
}

// enumContains reports membership with numeric normalization, since
// enum values parsed from catalog JSON are float64 while caller-supplied
// arguments may be Go ints.
func enumContains(enum []any, value any) bool {
	for _, allowed := range enum {
		if valueEqual(allowed, value) {
			return true
		}
	}
	return false
}

func valueEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
