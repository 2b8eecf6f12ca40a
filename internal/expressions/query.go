package expressions

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/rendis/mindflow/pkg/schema"
)

// Querier routes expressions to the engine named by the caller.
type Querier struct {
	engines map[string]Engine
}

// NewQuerier creates a Querier with the jq, expr and CEL engines registered.
func NewQuerier() (*Querier, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	q := &Querier{engines: make(map[string]Engine)}
	for _, e := range []Engine{NewGoJQEngine(), NewExprEngine(), celEngine} {
		q.engines[e.Name()] = e
	}
	return q, nil
}

// Languages returns the registered engine names, sorted.
func (q *Querier) Languages() []string {
	return slices.Sorted(maps.Keys(q.engines))
}

func (q *Querier) engine(lang string) (Engine, error) {
	e, ok := q.engines[lang]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"unknown query language %q (want one of %v)", lang, q.Languages())
	}
	return e, nil
}

// Query evaluates expression over the scope built from payload.
func (q *Querier) Query(ctx context.Context, lang, expression string, typ schema.DiagramType, payload any) (any, error) {
	e, err := q.engine(lang)
	if err != nil {
		return nil, err
	}
	scope, err := BuildScope(typ, payload)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, expression, scope)
}

// Filter evaluates predicate once per item (tasks for Gantt charts, nodes
// otherwise) with the item bound to "item", and returns the items for which
// it is true. A predicate that yields a non-boolean is an error.
func (q *Querier) Filter(ctx context.Context, lang, predicate string, typ schema.DiagramType, payload any) ([]any, error) {
	e, err := q.engine(lang)
	if err != nil {
		return nil, err
	}
	scope, err := BuildScope(typ, payload)
	if err != nil {
		return nil, err
	}

	kept := []any{}
	for i, item := range Items(scope) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data := maps.Clone(scope)
		data[ScopeItem] = item

		out, err := e.Evaluate(ctx, predicate, data)
		if err != nil {
			return nil, err
		}
		match, ok := out.(bool)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"predicate %q returned %s for item %d, want a boolean", predicate, describe(out), i).
				WithDetails(map[string]any{"expression": predicate})
		}
		if match {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
