// Package validation checks inbound JSON documents (editor events, source
// bindings) against embedded JSON Schemas, and graphs against the rules the
// evaluator relies on.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/bonsai/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	eventSchemaURL   = "https://bonsai.dev/schemas/event.json"
	sourcesSchemaURL = "https://bonsai.dev/schemas/sources.json"
)

// eventSchemaJSON describes the editor event envelope: a "type" discriminator
// plus the fields that type requires.
const eventSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://bonsai.dev/schemas/event.json",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {
      "enum": ["wheel", "pointer_down", "pointer_move", "pointer_up", "double_activate",
               "text_commit", "edge_activate", "resize", "remove_node"]
    }
  },
  "allOf": [
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "wheel" } } },
      "then": {
        "required": ["delta", "cursor"],
        "properties": { "delta": { "type": "number" }, "cursor": { "$ref": "#/$defs/point" } }
      }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "pointer_down" } } },
      "then": {
        "required": ["position"],
        "properties": { "target": { "type": "string" }, "position": { "$ref": "#/$defs/point" } }
      }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "pointer_move" } } },
      "then": {
        "required": ["position"],
        "properties": { "position": { "$ref": "#/$defs/point" } }
      }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "pointer_up" } } },
      "then": { "properties": { "position": { "$ref": "#/$defs/point" } } }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "double_activate" } } },
      "then": { "required": ["target"], "properties": { "target": { "$ref": "#/$defs/id" } } }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "text_commit" } } },
      "then": {
        "required": ["text"],
        "properties": {
          "target": { "type": "string" },
          "text": { "type": "string" },
          "dialect": { "enum": ["", "expr", "cel", "jq", "hcl"] }
        }
      }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "edge_activate" } } },
      "then": {
        "required": ["from", "to"],
        "properties": { "from": { "$ref": "#/$defs/id" }, "to": { "$ref": "#/$defs/id" } }
      }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "resize" } } },
      "then": {
        "required": ["width", "height"],
        "properties": {
          "width": { "type": "number", "exclusiveMinimum": 0 },
          "height": { "type": "number", "exclusiveMinimum": 0 }
        }
      }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "remove_node" } } },
      "then": { "required": ["target"], "properties": { "target": { "$ref": "#/$defs/id" } } }
    }
  ],
  "$defs": {
    "id": { "type": "string", "minLength": 1 },
    "point": {
      "type": "object",
      "required": ["x", "y"],
      "properties": { "x": { "type": "number" }, "y": { "type": "number" } },
      "additionalProperties": false
    }
  }
}`

// sourcesSchemaJSON describes the external source values keyed by input name.
const sourcesSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://bonsai.dev/schemas/sources.json",
  "type": "object",
  "propertyNames": { "pattern": "^[A-Za-z_][A-Za-z0-9_]*$" }
}`

// Validator validates inbound documents. It is safe for concurrent use.
type Validator struct {
	event   *jsonschema.Schema
	sources *jsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	compiled := map[string]*jsonschema.Schema{}
	for url, doc := range map[string]string{
		eventSchemaURL:   eventSchemaJSON,
		sourcesSchemaURL: sourcesSchemaJSON,
	} {
		parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", url, err)
		}
		if err := c.AddResource(url, parsed); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", url, err)
		}
	}
	for _, url := range []string{eventSchemaURL, sourcesSchemaURL} {
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", url, err)
		}
		compiled[url] = s
	}

	return &Validator{
		event:   compiled[eventSchemaURL],
		sources: compiled[sourcesSchemaURL],
	}, nil
}

var defaultValidator = sync.OnceValues(NewValidator)

// Default returns a process-wide Validator, compiled on first use.
func Default() (*Validator, error) {
	return defaultValidator()
}

// ValidateEvent checks raw against the event envelope schema. Failures are
// INVALID_EVENT errors listing every violation.
func (v *Validator) ValidateEvent(raw []byte) error {
	return validate(v.event, raw, schema.ErrCodeInvalidEvent)
}

// ValidateSources checks raw against the source bindings schema.
func (v *Validator) ValidateSources(raw []byte) error {
	return validate(v.sources, raw, schema.ErrCodeValidation)
}

func validate(s *jsonschema.Schema, raw []byte, code string) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(code, "document is not valid JSON").WithCause(err)
	}
	if err := s.Validate(doc); err != nil {
		return toBonsaiError(err, code)
	}
	return nil
}

// toBonsaiError flattens a jsonschema.ValidationError into one message per
// violated leaf, each prefixed with its instance location.
func toBonsaiError(err error, code string) *schema.BonsaiError {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return schema.NewError(code, err.Error()).WithCause(err)
	}

	violations := collectViolations(verr)
	switch len(violations) {
	case 0:
		return schema.NewError(code, verr.Error())
	case 1:
		return schema.NewError(code, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	default:
		return schema.NewErrorf(code, "validation failed with %d errors", len(violations)).
			WithDetails(map[string]any{"violations": violations})
	}
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
