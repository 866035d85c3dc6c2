package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// celEnv is shared across every compiled CEL rule: it declares the
// variables a rule expression may reference. scope tells a rule which
// phase it ran in; text is the string under evaluation for that scope
// (the whole input, the accumulation so far, or the whole output).
var celEnv = mustNewCELEnv()

func mustNewCELEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("scope", cel.StringType),
		cel.Variable("text", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("policy: cel environment construction failed: %v", err))
	}
	return env
}

// celPredicate is a compiled CEL rule expression. A rule must evaluate
// to bool: true means the rule's condition for denial is met.
type celPredicate struct {
	program cel.Program
}

func compileCELPredicate(expr string) (*celPredicate, error) {
	ast, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}
	prg, err := celEnv.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return &celPredicate{program: prg}, nil
}

func (p *celPredicate) Eval(scope Scope, text string) (bool, error) {
	out, _, err := p.program.Eval(map[string]interface{}{
		"scope": string(scope),
		"text":  text,
	})
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not bool")
	}
	return val, nil
}
