package validation

import "github.com/rendis/mindflow/pkg/schema"

// Validator checks parsed diagram payloads before they are handed to the
// renderer or persisted. Uses JSON Schema Draft 2020-12 for the structural
// contract.
type Validator interface {
	ValidatePayload(typ schema.DiagramType, payload any) error
	ValidateAgainst(doc any, docSchema []byte) error
}
