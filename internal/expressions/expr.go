package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rendis/mindflow/pkg/schema"
)

// ExprEngine evaluates expr-lang programs over a diagram scope. Programs are
// type-checked against the scope keys BuildScope produces, so a misspelled
// name such as "task" for "tasks" fails at compile time instead of silently
// yielding nil. Keys a diagram type lacks read as their zero value.
type ExprEngine struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewExprEngine creates an ExprEngine with an empty program cache.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{programs: make(map[string]*vm.Program)}
}

// Name returns "expr".
func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate runs expression against data. Typical uses are list logic over
// tasks and nodes: count(tasks, .progress < 1), groupBy(nodes, .parent),
// sum(map(tasks, .duration)).
func (e *ExprEngine) Evaluate(_ context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}
	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	out, err := vm.Run(prg, withDefaults(data))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "expr %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	return out, nil
}

func (e *ExprEngine) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression, expr.Env(scopeZero))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "expr %q does not compile: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression, "scope_keys": ScopeKeys()})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.programs[expression]; ok {
		return cached, nil
	}
	e.programs[expression] = prg
	return prg, nil
}

var _ Engine = (*ExprEngine)(nil)
