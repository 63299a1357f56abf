package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// templateSchemaJSON is the structural contract for template documents.
// Semantic rules (duplicate keys, nesting depth) live in Validate.
const templateSchemaJSON = `{
  "type": "object",
  "required": ["meta", "phases"],
  "properties": {
    "meta": {
      "type": "object",
      "required": ["slug"],
      "properties": {
        "slug": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "version": {"type": "string"}
      }
    },
    "destination": {
      "type": "object",
      "properties": {
        "space_id": {"type": "string"},
        "space_name": {"type": "string"},
        "folder_id": {"type": "string"},
        "folder_name": {"type": "string"},
        "list_id": {"type": "string"},
        "list_name": {"type": "string"}
      }
    },
    "defaults": {
      "type": "object",
      "properties": {
        "status": {"type": "string"},
        "priority": {"type": "integer", "minimum": 1, "maximum": 4},
        "tags": {"type": "array", "items": {"type": "string"}},
        "custom_fields": {"type": "object"}
      }
    },
    "roles_map": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "phases": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "name"],
        "properties": {
          "key": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "assignee_role": {"type": "string"},
          "status": {"type": "string"},
          "priority": {"type": "integer", "minimum": 1, "maximum": 4},
          "tags": {"type": "array", "items": {"type": "string"}},
          "custom_fields": {"type": "object"},
          "actions": {"type": "array", "items": {"$ref": "#/definitions/action"}}
        }
      }
    }
  },
  "definitions": {
    "action": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "assignee_role": {"type": "string"},
        "priority": {"type": "integer", "minimum": 1, "maximum": 4},
        "tags": {"type": "array", "items": {"type": "string"}},
        "custom_fields": {"type": "object"},
        "watchers": {"type": "array", "items": {"type": "string"}},
        "checklist": {
          "type": "object",
          "required": ["title"],
          "properties": {
            "title": {"type": "string"},
            "items": {"type": "array", "items": {"type": "string"}}
          }
        },
        "actions": {"type": "array", "items": {"$ref": "#/definitions/action"}}
      }
    }
  }
}`

var templateSchemaLoader = gojsonschema.NewStringLoader(templateSchemaJSON)

// Parse decodes a template document from JSON or YAML and checks it against
// the structural schema. Malformed documents are rejected here, before any
// orchestration begins.
func Parse(data []byte) (*Template, error) {
	jsonData := data
	if !looksLikeJSON(data) {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse template yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert template yaml: %w", err)
		}
		jsonData = converted
	}

	result, err := gojsonschema.Validate(templateSchemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("validate template document: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("template document is malformed: %s", strings.Join(msgs, "; "))
	}

	var tpl Template
	dec := json.NewDecoder(bytes.NewReader(jsonData))
	if err := dec.Decode(&tpl); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return &tpl, nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
