// Package expressions evaluates query and filter expressions over parsed
// diagrams. Three engines share one data model: jq for reshaping, expr for
// list logic and CEL for typed predicates.
package expressions

import "context"

// Engine evaluates one expression against a diagram scope.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
