package expressions

import (
	"context"
	"sync"

	"github.com/itchyny/gojq"
	"github.com/rendis/mindflow/pkg/schema"
)

// jqVariables are bound for every jq query, in this order: $type is the
// diagram type and $items the collection filters walk (tasks for Gantt
// charts, nodes otherwise), so one query can serve every diagram type.
var jqVariables = []string{"$type", "$items"}

// GoJQEngine runs jq queries with the diagram scope as input, for reshaping
// and aggregation such as [.tasks[] | select(.progress < 1)] | length or
// $items | map(.name).
type GoJQEngine struct {
	mu    sync.RWMutex
	codes map[string]*gojq.Code
}

// NewGoJQEngine creates a GoJQEngine with an empty code cache.
func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{codes: make(map[string]*gojq.Code)}
}

// Name returns "jq".
func (e *GoJQEngine) Name() string {
	return "jq"
}

// Evaluate runs expression over data. A single output is returned as is,
// several are collected into []any and none yields nil.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty jq expression")
	}
	code, err := e.code(expression)
	if err != nil {
		return nil, err
	}

	var input any = map[string]any{}
	if data != nil {
		input = data
	}
	typ, _ := data[ScopeDiagramType].(string)
	items := Items(data)
	if items == nil {
		items = []any{}
	}

	var results []any
	iter := code.RunWithContext(ctx, input, typ, items)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "jq %q: %s", expression, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"expression": expression})
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	}
	return results, nil
}

func (e *GoJQEngine) code(expression string) (*gojq.Code, error) {
	e.mu.RLock()
	code, ok := e.codes[expression]
	e.mu.RUnlock()
	if ok {
		return code, nil
	}

	invalid := func(err error) error {
		return schema.NewErrorf(schema.ErrCodeValidation, "jq %q does not compile: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, invalid(err)
	}
	code, err = gojq.Compile(query,
		gojq.WithVariables(jqVariables),
		// $ENV and env see nothing of the host.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, invalid(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.codes[expression]; ok {
		return cached, nil
	}
	e.codes[expression] = code
	return code, nil
}

var _ Engine = (*GoJQEngine)(nil)
