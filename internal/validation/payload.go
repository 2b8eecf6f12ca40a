package validation

import (
	"encoding/json"
	"errors"

	"github.com/rendis/mindflow/pkg/schema"
)

// PayloadValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (unique names, references, date and duration invariants)
// 3. Graph (dependency cycles, disconnected nodes)
type PayloadValidator struct {
	jsonSchema *JSONSchemaValidator
}

// NewPayloadValidator creates a PayloadValidator.
func NewPayloadValidator() (*PayloadValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &PayloadValidator{jsonSchema: jsv}, nil
}

// Validate runs the full pipeline and returns an aggregated result. payload
// may be the typed value a parser produced or any JSON-shaped value such as a
// decoded request body. Structural errors short-circuit the later stages.
func (pv *PayloadValidator) Validate(typ schema.DiagramType, payload any) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if payload == nil {
		result.AddError("/", schema.ErrCodeValidation, "payload is nil")
		return result
	}

	result = validateStructural(pv.jsonSchema, typ, payload)
	if !result.Valid() {
		return result
	}

	switch typ {
	case schema.DiagramMindmap:
		root, err := decodePayload[schema.MindmapNode](payload)
		if err != nil {
			result.AddIssue("/", err)
			return result
		}
		result.Merge(validateMindmapSemantic(root))
	case schema.DiagramGantt:
		chart, err := decodePayload[schema.GanttChart](payload)
		if err != nil {
			result.AddIssue("/", err)
			return result
		}
		result.Merge(validateGanttSemantic(chart))
		if result.Valid() {
			result.Merge(validateGanttDAG(chart))
		}
	case schema.DiagramFlowchart:
		fc, err := decodePayload[schema.Flowchart](payload)
		if err != nil {
			result.AddIssue("/", err)
			return result
		}
		result.Merge(validateFlowchartSemantic(fc))
		if result.Valid() {
			result.Merge(validateFlowchartDAG(fc))
		}
	}
	return result
}

// ValidatePayload satisfies the Validator interface.
func (pv *PayloadValidator) ValidatePayload(typ schema.DiagramType, payload any) error {
	return pv.Validate(typ, payload).ToError()
}

// ValidateAgainst delegates to the underlying JSONSchemaValidator.
func (pv *PayloadValidator) ValidateAgainst(doc any, docSchema []byte) error {
	return pv.jsonSchema.ValidateAgainst(doc, docSchema)
}

// validateStructural wraps JSONSchemaValidator.ValidatePayload, converting
// its error output into ValidationResult.
func validateStructural(v *JSONSchemaValidator, typ schema.DiagramType, payload any) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidatePayload(typ, payload)
	if err == nil {
		return result
	}

	var de *schema.DiagramError
	if !errors.As(err, &de) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}
	if violations, ok := de.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.AddError("/", de.Code, v)
		}
		return result
	}
	result.AddError("/", de.Code, de.Message)
	return result
}

// decodePayload returns payload as *T, converting through JSON when it is
// not already that type.
func decodePayload[T any](payload any) (*T, error) {
	switch v := payload.(type) {
	case *T:
		return v, nil
	case T:
		return &v, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "failed to serialize payload").WithCause(err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "payload does not match diagram type").WithCause(err)
	}
	return &out, nil
}
