package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/mindflow/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaBaseURL = "https://mindflow.dev/schemas/"

// mindmapSchemaJSON describes the recursive tree handed to the renderer.
const mindmapSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://mindflow.dev/schemas/mindmap.json",
  "$ref": "#/$defs/node",
  "$defs": {
    "node": {
      "type": "object",
      "required": ["name", "level", "color", "children"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "level": { "type": "integer", "minimum": 1 },
        "color": { "type": "string", "minLength": 1 },
        "children": {
          "type": "array",
          "items": { "$ref": "#/$defs/node" }
        }
      },
      "additionalProperties": false
    }
  }
}`

const ganttSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://mindflow.dev/schemas/gantt.json",
  "type": "object",
  "required": ["tasks", "summary"],
  "properties": {
    "tasks": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/task" }
    },
    "summary": { "$ref": "#/$defs/summary" }
  },
  "additionalProperties": false,
  "$defs": {
    "task": {
      "type": "object",
      "required": ["task", "start", "end", "duration", "progress", "category", "dependencies", "resource"],
      "properties": {
        "task": { "type": "string", "minLength": 1 },
        "start": { "type": "string", "format": "date" },
        "end": { "type": "string", "format": "date" },
        "duration": { "type": "integer", "minimum": 1 },
        "progress": { "type": "number", "minimum": 0, "maximum": 1 },
        "category": { "type": "string" },
        "dependencies": {
          "type": "array",
          "items": { "type": "string", "minLength": 1 },
          "uniqueItems": true
        },
        "resource": { "type": "string" }
      },
      "additionalProperties": false
    },
    "summary": {
      "type": "object",
      "required": ["start_date", "end_date", "total_tasks", "categories"],
      "properties": {
        "start_date": { "type": "string", "format": "date" },
        "end_date": { "type": "string", "format": "date" },
        "total_tasks": { "type": "integer", "minimum": 0 },
        "categories": {
          "type": "array",
          "items": { "type": "string" }
        }
      },
      "additionalProperties": false
    }
  }
}`

const flowchartSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://mindflow.dev/schemas/flowchart.json",
  "type": "object",
  "required": ["type", "direction", "nodes", "edges"],
  "properties": {
    "type": { "type": "string", "enum": ["flowchart", "graph"] },
    "direction": { "type": "string", "enum": ["TD", "TB", "BT", "RL", "LR"] },
    "nodes": {
      "type": "array",
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": "array",
      "items": { "$ref": "#/$defs/edge" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "text", "shape"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "text": { "type": "string" },
        "shape": {
          "type": "string",
          "enum": ["rect", "round", "rhombus", "circle", "stadium", "subroutine"]
        }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["source", "target", "arrow"],
      "properties": {
        "source": { "type": "string", "minLength": 1 },
        "target": { "type": "string", "minLength": 1 },
        "text": { "type": "string" },
        "arrow": {
          "type": "string",
          "enum": ["arrow", "line", "dotted", "thick", "thick_line", "dotted_arrow"]
        }
      },
      "additionalProperties": false
    }
  }
}`

var payloadSchemas = map[schema.DiagramType]string{
	schema.DiagramMindmap:   mindmapSchemaJSON,
	schema.DiagramGantt:     ganttSchemaJSON,
	schema.DiagramFlowchart: flowchartSchemaJSON,
}

// JSONSchemaValidator implements the Validator interface using JSON Schema Draft 2020-12.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	payloads map[schema.DiagramType]*jsonschema.Schema

	// mu guards the cache of caller-supplied schemas.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the payload schemas pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()
	compiled := make(map[schema.DiagramType]*jsonschema.Schema, len(payloadSchemas))
	for typ, raw := range payloadSchemas {
		url := schemaBaseURL + string(typ) + ".json"
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s schema: %w", typ, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", typ, err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", typ, err)
		}
		compiled[typ] = sch
	}

	return &JSONSchemaValidator{
		payloads: compiled,
		cache:    make(map[string]*jsonschema.Schema),
	}, nil
}

// PayloadSchema returns the raw JSON Schema for a diagram type's payload.
func PayloadSchema(typ schema.DiagramType) ([]byte, bool) {
	raw, ok := payloadSchemas[typ]
	return []byte(raw), ok
}

// ValidatePayload checks payload against the contract for typ.
func (v *JSONSchemaValidator) ValidatePayload(typ schema.DiagramType, payload any) error {
	sch, ok := v.payloads[typ]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeUnsupportedType, "no payload schema for diagram type %q", typ)
	}
	if payload == nil {
		return schema.NewError(schema.ErrCodeValidation, "payload is nil")
	}

	doc, err := toJSONValue(payload)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize payload").WithCause(err)
	}
	if err := sch.Validate(doc); err != nil {
		return toDiagramError(err)
	}
	return nil
}

// ValidateAgainst validates doc against a caller-supplied JSON Schema.
// The schema is compiled and cached for subsequent calls with the same bytes.
func (v *JSONSchemaValidator) ValidateAgainst(doc any, docSchema []byte) error {
	if len(docSchema) == 0 {
		return nil
	}

	compiled, err := v.getOrCompile(docSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid schema").WithCause(err)
	}

	value, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize document").WithCause(err)
	}
	if err := compiled.Validate(value); err != nil {
		return toDiagramError(err)
	}
	return nil
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Fresh compiler per schema so resource URLs never collide.
	url := fmt.Sprintf("mindflow://user-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toDiagramError converts a jsonschema.ValidationError into a DiagramError
// listing every leaf violation with its instance location.
func toDiagramError(err error) *schema.DiagramError {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
