// Package expreval provides the default ExpressionEvaluator
// (engine/wizard.ExpressionEvaluator) for branch conditions and guard
// predicates, built on github.com/google/cel-go the way the teacher favors
// a sandboxed expression language over an embedded scripting runtime.
package expreval

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Evaluator compiles and evaluates CEL expressions against a variable
// context, caching programs by expression source.
type Evaluator struct {
	mu      sync.Mutex
	env     *cel.Env
	cache   map[string]cel.Program
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(cel.Variable("ctx", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("creating expression environment: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// EvalBool evaluates expr against ctxVars and coerces the result to bool.
// A non-boolean result is an error, matching spec.md's "boolean/value
// expressions" contract for branch and guard conditions.
func (e *Evaluator) EvalBool(expr string, ctxVars map[string]any) (bool, error) {
	out, err := e.Eval(expr, ctxVars)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean, got %T", expr, out)
	}
	return b, nil
}

// Evaluate satisfies engine/wizard.ExpressionEvaluator.
func (e *Evaluator) Evaluate(expr string, ctxVars map[string]any) (any, error) {
	return e.Eval(expr, ctxVars)
}

// Eval evaluates expr against ctxVars and returns the native Go value.
func (e *Evaluator) Eval(expr string, ctxVars map[string]any) (any, error) {
	prg, err := e.program(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling expression %q: %w", expr, err)
	}
	out, _, err := prg.Eval(map[string]any{"ctx": ctxVars})
	if err != nil {
		return nil, fmt.Errorf("evaluating expression %q: %w", expr, err)
	}
	return out.Value(), nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.cache[expr]; ok {
		return prg, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, err
	}
	e.cache[expr] = prg
	return prg, nil
}
