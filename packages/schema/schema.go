package schema

import (
	"fmt"
	"strings"
)

// FieldType is the declared type of a record field.
type FieldType string

const (
	String  FieldType = "string"
	Integer FieldType = "integer"
	Number  FieldType = "number"
	Boolean FieldType = "boolean"
	Array   FieldType = "array"
	Object  FieldType = "object"
	Any     FieldType = "any"
)

func (t FieldType) valid() bool {
	switch t {
	case String, Integer, Number, Boolean, Array, Object, Any:
		return true
	}
	return false
}

// ParseFieldType maps a type name (as written in suite files) to a FieldType.
func ParseFieldType(name string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "str":
		return String, nil
	case "integer", "int":
		return Integer, nil
	case "number", "float":
		return Number, nil
	case "boolean", "bool":
		return Boolean, nil
	case "array", "list":
		return Array, nil
	case "object", "map":
		return Object, nil
	case "any", "":
		return Any, nil
	}
	return "", fmt.Errorf("unknown field type %q", name)
}

// Field describes one key of a record.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Nullable lets a required field carry an explicit null.
	Nullable bool
	// Default is recorded for absent optional fields.
	Default any
}

// Required returns a required field descriptor.
func Required(name string, t FieldType) Field {
	return Field{Name: name, Type: t, Required: true}
}

// Optional returns an optional field descriptor.
func Optional(name string, t FieldType) Field {
	return Field{Name: name, Type: t}
}

type Schema struct {
	Name   string
	Fields []Field
	Strict bool
}

func New(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// Field returns the descriptor for name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields lists the required field names in table order.
func (s *Schema) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Check reports descriptor tables that cannot be used for validation.
func (s *Schema) Check() error {
	if s.Name == "" {
		return fmt.Errorf("schema has no name")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %q has no fields", s.Name)
	}
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %q: field %d has no name", s.Name, i)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %q: duplicate field %q", s.Name, f.Name)
		}
		seen[f.Name] = true
		if !f.Type.valid() {
			return fmt.Errorf("schema %q: field %q has unknown type %q", s.Name, f.Name, f.Type)
		}
	}
	return nil
}
