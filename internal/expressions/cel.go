package expressions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/rendis/mindflow/pkg/schema"
)

// celTypes declares the CEL type of every scope key.
var celTypes = map[string]*cel.Type{
	ScopeDiagramType: cel.StringType,
	ScopeRoot:        cel.MapType(cel.StringType, cel.DynType),
	ScopeNodes:       cel.ListType(cel.DynType),
	ScopeEdges:       cel.ListType(cel.DynType),
	ScopeTasks:       cel.ListType(cel.DynType),
	ScopeSummary:     cel.MapType(cel.StringType, cel.DynType),
	ScopeDirection:   cel.StringType,
	ScopeKeyword:     cel.StringType,
	ScopeItem:        cel.MapType(cel.StringType, cel.DynType),
}

// CELEngine implements the Engine interface using Google's Common Expression Language.
// It evaluates typed predicates such as item.progress < 0.5 and list macros
// such as tasks.filter(t, t.category == "Phase1").
// Thread-safe: compiled programs are cached and reused across goroutines.
type CELEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates a new CEL expression engine whose environment declares
// the diagram scope variables.
func NewCELEngine() (*CELEngine, error) {
	opts := make([]cel.EnvOption, 0, len(celTypes)+1)
	// Scope numbers arrive as doubles; let them compare against int literals.
	opts = append(opts, cel.CrossTypeNumericComparisons(true))
	for _, name := range ScopeKeys() {
		opts = append(opts, cel.Variable(name, celTypes[name]))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &CELEngine{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Evaluate compiles (or retrieves from cache) a CEL expression and evaluates it
// against the provided data. Lists and maps in the result are converted back
// to plain Go values.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty CEL expression")
	}

	prg, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, withDefaults(data))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"CEL evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	return celToNative(out), nil
}

// getOrCompile returns a cached compiled program or compiles and caches a new one.
func (e *CELEngine) getOrCompile(expression string) (cel.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"CEL compile error in %q: %s", expression, issues.Err().Error()).
			WithCause(issues.Err()).
			WithDetails(map[string]any{"expression": expression})
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"CEL program error for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = prg
	return prg, nil
}

func celToNative(v ref.Val) any {
	switch val := v.(type) {
	case traits.Mapper:
		out := make(map[string]any)
		for it := val.Iterator(); it.HasNext() == types.True; {
			k := it.Next()
			out[fmt.Sprint(k.Value())] = celToNative(val.Get(k))
		}
		return out
	case traits.Lister:
		out := []any{}
		for it := val.Iterator(); it.HasNext() == types.True; {
			out = append(out, celToNative(it.Next()))
		}
		return out
	}
	return v.Value()
}

var _ Engine = (*CELEngine)(nil)
