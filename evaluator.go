package minilang

import (
	"context"
	"fmt"
)

// Evaluate runs statements in order against env and returns it. A nil env is
// replaced by an empty one. The first error aborts the run.
//
// Values are int64: `/` truncates toward zero, comparisons yield 1 or 0 and
// overflow wraps.
func Evaluate(statements []Statement, env *Environment) (*Environment, error) {
	return EvaluateContext(context.Background(), statements, env)
}

// EvaluateContext is Evaluate with cancellation and the loop budget from the
// runtime configuration attached to ctx.
func EvaluateContext(ctx context.Context, statements []Statement, env *Environment) (*Environment, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if env == nil {
		env = NewEnvironment()
	}
	cfg := effectiveRuntimeConfig(ctx)
	ev := &evaluator{
		ctx:           ctx,
		done:          ctx.Done(),
		env:           env,
		maxIterations: cfg.MaxLoopIterations,
	}
	if err := ev.execStatements(statements); err != nil {
		return nil, err
	}
	return env, nil
}

type evaluator struct {
	ctx           context.Context
	done          <-chan struct{}
	env           *Environment
	maxIterations int64
	iterations    int64
}

func (ev *evaluator) checkCanceled() error {
	if ev.done == nil {
		return nil
	}
	select {
	case <-ev.done:
		return &EvalError{Kind: Canceled, Cause: ev.ctx.Err()}
	default:
		return nil
	}
}

func (ev *evaluator) execStatements(statements []Statement) error {
	for _, stmt := range statements {
		if err := ev.checkCanceled(); err != nil {
			return err
		}
		if err := ev.execStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) execBlock(block *Block, owner string) error {
	if block == nil {
		return &EvalError{Kind: TypeMismatch, Detail: owner + " without a body"}
	}
	return ev.execStatements(block.Statements)
}

func (ev *evaluator) execStatement(stmt Statement) error {
	switch stmt := stmt.(type) {
	case *Assignment:
		val, err := ev.eval(stmt.Expr)
		if err != nil {
			return err
		}
		ev.env.Set(stmt.Name, val)
		return nil

	case *IfStatement:
		cond, err := ev.eval(stmt.Condition)
		if err != nil {
			return err
		}
		if cond != 0 {
			return ev.execBlock(stmt.Then, "if")
		}
		if stmt.Else != nil {
			return ev.execStatements(stmt.Else.Statements)
		}
		return nil

	case *WhileStatement:
		return ev.execWhile(stmt)
	}
	return &EvalError{Kind: TypeMismatch, Detail: fmt.Sprintf("unexpected statement %T", stmt)}
}

func (ev *evaluator) execWhile(ws *WhileStatement) error {
	for {
		if err := ev.checkCanceled(); err != nil {
			return err
		}
		cond, err := ev.eval(ws.Condition)
		if err != nil {
			return err
		}
		if cond == 0 {
			return nil
		}
		ev.iterations++
		if ev.maxIterations > 0 && ev.iterations > ev.maxIterations {
			return &EvalError{Kind: LimitExceeded, Detail: fmt.Sprintf("more than %d loop iterations", ev.maxIterations)}
		}
		if err := ev.execBlock(ws.Body, "while"); err != nil {
			return err
		}
	}
}

func (ev *evaluator) eval(expr Expression) (int64, error) {
	switch expr := expr.(type) {
	case *NumberLiteral:
		return expr.Value, nil

	case *VariableRef:
		val, ok := ev.env.Get(expr.Name)
		if !ok {
			return 0, &EvalError{Kind: UndefinedVariable, Name: expr.Name}
		}
		return val, nil

	case *BinaryOp:
		left, err := ev.eval(expr.Left)
		if err != nil {
			return 0, err
		}
		right, err := ev.eval(expr.Right)
		if err != nil {
			return 0, err
		}
		return applyOperator(expr.Operator, left, right)
	}
	return 0, &EvalError{Kind: TypeMismatch, Detail: fmt.Sprintf("unexpected expression %T", expr)}
}

func applyOperator(operator string, left, right int64) (int64, error) {
	switch operator {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/":
		if right == 0 {
			return 0, &EvalError{Kind: DivisionByZero, Operator: operator}
		}
		return left / right, nil
	case "**":
		return power(left, right)
	case "==":
		return boolToInt(left == right), nil
	case "!=":
		return boolToInt(left != right), nil
	case "<":
		return boolToInt(left < right), nil
	case ">":
		return boolToInt(left > right), nil
	case "<=":
		return boolToInt(left <= right), nil
	case ">=":
		return boolToInt(left >= right), nil
	}
	return 0, &EvalError{Kind: InvalidOperator, Operator: operator}
}

// power truncates like `/` for negative exponents: only 1 and -1 have a
// non-zero result, and 0 raised to a negative power divides by zero.
func power(base, exp int64) (int64, error) {
	if exp < 0 {
		switch base {
		case 0:
			return 0, &EvalError{Kind: DivisionByZero, Operator: "**"}
		case 1:
			return 1, nil
		case -1:
			if exp%2 == 0 {
				return 1, nil
			}
			return -1, nil
		}
		return 0, nil
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
