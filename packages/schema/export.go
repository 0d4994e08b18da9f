package schema

import (
	"encoding/json"
	"fmt"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// JSONSchema renders the descriptor table as a draft-07 JSON Schema
// document describing a single record. Lax coercions are not expressed:
// the document describes the canonical JSON type of every field.
func (s *Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		prop := map[string]any{}
		if f.Type != Any {
			if !f.Required || f.Nullable {
				prop["type"] = []string{string(f.Type), "null"}
			} else {
				prop["type"] = string(f.Type)
			}
		}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		properties[f.Name] = prop
	}

	doc := map[string]any{
		"$schema":              draft07,
		"title":                s.Name,
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": !s.Strict,
	}
	if required := s.RequiredFields(); len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// MarshalJSONSchema returns the indented JSON Schema document.
func (s *Schema) MarshalJSONSchema() ([]byte, error) {
	data, err := json.MarshalIndent(s.JSONSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schema %q: %w", s.Name, err)
	}
	return data, nil
}

// Decode converts validated records into typed values. Field names map
// through the json tags of T.
func Decode[T any](r *Result) ([]T, error) {
	if r == nil {
		return nil, nil
	}
	if !r.Valid {
		return nil, fmt.Errorf("decoding %s: %w", r.Schema, r.Err())
	}
	data, err := json.Marshal(r.Records)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", r.Schema, err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", r.Schema, err)
	}
	return out, nil
}
