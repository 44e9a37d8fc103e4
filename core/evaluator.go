package core

import (
	"github.com/google/cel-go/cel"
	"github.com/vuuvv/errors"
)

type CelEvaluator struct {
	expr string
	prg  cel.Program
}

func CompileExpression(expr string) (*CelEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),   // vars 为帧级变量, 如 tick, class
		cel.Variable("fields", cel.MapType(cel.StringType, cel.DynType)), // fields 为当前记录已解出的字段
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "compile %q", expr)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &CelEvaluator{expr: expr, prg: prg}, nil
}

func (e *CelEvaluator) Execute(ctx *Context) (any, error) {
	input := map[string]any{
		"vars":   ctx.Vars,
		"fields": ctx.Fields,
	}
	out, _, err := e.prg.Eval(input)
	if err != nil {
		return nil, errors.Wrapf(err, "eval %q", e.expr)
	}
	return out.Value(), nil
}

// ExecuteFloat 执行表达式并把结果转换为 float64
func (e *CelEvaluator) ExecuteFloat(ctx *Context) (float64, error) {
	out, err := e.Execute(ctx)
	if err != nil {
		return 0, err
	}
	f, ok := ToFloat64(out)
	if !ok {
		return 0, errors.Wrapf(ErrBadValue, "eval %q: non numeric result %v", e.expr, out)
	}
	return f, nil
}
