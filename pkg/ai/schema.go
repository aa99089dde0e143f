package ai

import "strings"

// Schema type names, in the Gemini (OpenAPI subset) spelling.
const (
	TypeObject = "OBJECT"
	TypeString = "STRING"
	TypeArray  = "ARRAY"
)

// Schema describes the structure a generated JSON response must follow.
// It marshals directly into Gemini's responseSchema.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// JSONSchema converts s to a standard JSON Schema document for providers
// that accept one (Ollama format, OpenAI json_schema).
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{"type": strings.ToLower(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.JSONSchema()
		}
		out["properties"] = props
		out["additionalProperties"] = false
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	if len(s.Required) > 0 {
		out["required"] = append([]string(nil), s.Required...)
	}
	return out
}
