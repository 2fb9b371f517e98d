// Package policy compiles machine-id acceptance expressions. Deployments
// carve the 16-bit machine-id space into disjoint ranges per cluster with
// a CEL expression in config; the compiled check feeds the generator
// builder's CheckMachineID hook.
package policy

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Check wraps a compiled CEL program over the `machine_id` variable. When
// disabled (empty expression), Accept always returns true.
type Check struct {
	prog    cel.Program
	enabled bool
}

// Compile builds a Check from expr. An empty or whitespace expression
// yields a disabled, accept-all Check. The expression must evaluate to a
// bool.
func Compile(expr string) (Check, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Check{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("machine_id", cel.IntType),
	)
	if err != nil {
		return Check{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Check{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Check{}, iss2.Err()
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return Check{}, fmt.Errorf("policy: expression %q must evaluate to bool, got %s", expr, checked.OutputType())
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Check{}, err
	}
	return Check{prog: prog, enabled: true}, nil
}

// Accept evaluates the expression for id. Evaluation errors reject the id;
// the policy fails closed.
func (c Check) Accept(id uint16) bool {
	if !c.enabled {
		return true
	}
	out, _, err := c.prog.Eval(map[string]any{"machine_id": int64(id)})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Func adapts the check to the generator builder's predicate signature.
func (c Check) Func() func(uint16) bool {
	return c.Accept
}
