package minilang

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func run(t *testing.T, src string, env *Environment) (*Environment, error) {
	t.Helper()
	stmts, err := ParseString(src)
	if err != nil {
		t.Fatalf("ParseString(%q): %v", src, err)
	}
	return Evaluate(stmts, env)
}

func TestEvaluatePrograms(t *testing.T) {
	cases := []struct {
		src  string
		want map[string]int64
	}{
		{"x = 5; y = x + 1", map[string]int64{"x": 5, "y": 6}},
		{"x = 2 + 3 * 4", map[string]int64{"x": 14}},
		{"x = (2 + 3) * 4", map[string]int64{"x": 20}},
		{"y = 10 + 5 * 2; if y > 0 then x = 5 else x = 10", map[string]int64{"y": 20, "x": 5}},
		{"y = 0; if y > 0 then x = 5 else x = 10", map[string]int64{"y": 0, "x": 10}},
		{"z = 0; while (z < 5) { z = z + 1; }", map[string]int64{"z": 5}},
		{"a = 7 / 2; b = 0 - 7 / 2; c = 7 / (0 - 2)", map[string]int64{"a": 3, "b": -3, "c": -3}},
		{"a = 3 < 4; b = 3 > 4; c = 4 <= 4; d = 4 >= 5; e = 2 == 2; f = 2 != 2", map[string]int64{"a": 1, "b": 0, "c": 1, "d": 0, "e": 1, "f": 0}},
		{"x = 2 ** 10; y = 2 ** 3 ** 2; z = 5 ** 0", map[string]int64{"x": 1024, "y": 64, "z": 1}},
		{"x = 2 ** (0 - 1); y = 1 ** (0 - 3); z = (0 - 1) ** (0 - 3)", map[string]int64{"x": 0, "y": 1, "z": -1}},
		{"n = 5; f = 1; while (n > 1) { f = f * n; n = n - 1 }", map[string]int64{"n": 1, "f": 120}},
		{"x = 1; if x then { y = 2; z = 3 }", map[string]int64{"x": 1, "y": 2, "z": 3}},
		{"x = 0; if x { y = 1 }", map[string]int64{"x": 0}},
		{"i = 0; s = 0; while (i < 10) { if i / 2 * 2 == i then s = s + i; i = i + 1 }", map[string]int64{"i": 10, "s": 20}},
		{"", map[string]int64{}},
	}
	for _, tc := range cases {
		env, err := run(t, tc.src, nil)
		if err != nil {
			t.Fatalf("%q: %v", tc.src, err)
		}
		if got := env.Snapshot(); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.src, tc.want, got)
		}
	}
}

func TestEvaluateMutatesEnvironmentInPlace(t *testing.T) {
	env := NewEnvironmentFrom(map[string]int64{"x": 4})
	out, err := run(t, "x = x * x", env)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out != env {
		t.Fatalf("expected the same environment instance")
	}
	if v, _ := env.Get("x"); v != 16 {
		t.Fatalf("expected x = 16, got %d", v)
	}
}

func TestEvaluateOverflowWraps(t *testing.T) {
	env := NewEnvironmentFrom(map[string]int64{"m": math.MaxInt64})
	if _, err := run(t, "m = m + 1", env); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v, _ := env.Get("m"); v != math.MinInt64 {
		t.Fatalf("expected wraparound, got %d", v)
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	for _, src := range []string{"x = 1 / 0", "y = 0; x = 5 / y", "x = 0 ** (0 - 1)"} {
		_, err := run(t, src, nil)
		if !errors.Is(err, ErrDivisionByZero) {
			t.Fatalf("%q: expected ErrDivisionByZero, got %v", src, err)
		}
		var evalErr *EvalError
		if !errors.As(err, &evalErr) || evalErr.Kind != DivisionByZero {
			t.Fatalf("%q: expected DivisionByZero EvalError, got %v", src, err)
		}
	}
}

func TestEvaluateUndefinedVariable(t *testing.T) {
	_, err := run(t, "y = x + 1", nil)
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvalError, got %v", err)
	}
	if evalErr.Kind != UndefinedVariable || evalErr.Name != "x" {
		t.Fatalf("unexpected error %+v", evalErr)
	}
	if !errors.Is(err, ErrUndefinedVariable) || errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("sentinel matching is wrong for %v", err)
	}
}

func TestEvaluateStopsAtFirstError(t *testing.T) {
	env := NewEnvironment()
	_, err := Evaluate(mustParse(t, "a = 1; b = a / 0; c = 3"), env)
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := env.Get("c"); ok {
		t.Fatalf("statement after the failure was executed")
	}
	if v, _ := env.Get("a"); v != 1 {
		t.Fatalf("expected a = 1 before the failure, got %d", v)
	}
}

func TestEvaluateMalformedTrees(t *testing.T) {
	cases := []struct {
		name  string
		stmts []Statement
		kind  EvalErrorKind
	}{
		{
			name:  "unknown operator",
			stmts: []Statement{&Assignment{Name: "x", Expr: &BinaryOp{Operator: "%", Left: &NumberLiteral{Value: 1}, Right: &NumberLiteral{Value: 2}}}},
			kind:  InvalidOperator,
		},
		{
			name:  "missing expression",
			stmts: []Statement{&Assignment{Name: "x"}},
			kind:  TypeMismatch,
		},
		{
			name:  "missing loop body",
			stmts: []Statement{&WhileStatement{Condition: &NumberLiteral{Value: 1}}},
			kind:  TypeMismatch,
		},
		{
			name:  "nil statement",
			stmts: []Statement{nil},
			kind:  TypeMismatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate(tc.stmts, nil)
			var evalErr *EvalError
			if !errors.As(err, &evalErr) || evalErr.Kind != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
		})
	}
}

func TestEvaluateContextTimeout(t *testing.T) {
	stmts := mustParse(t, "x = 0; while (1) { x = x + 1 }")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := EvaluateContext(ctx, stmts, nil)
	if !errors.Is(err, ErrCanceled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cancellation, got %v", err)
	}
}

func TestEvaluateContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := EvaluateContext(ctx, mustParse(t, "x = 1"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEvaluateLoopLimit(t *testing.T) {
	prev := GetRuntimeConfig()
	t.Cleanup(func() { SetRuntimeConfig(prev) })
	cfg := prev
	cfg.MaxLoopIterations = 100
	SetRuntimeConfig(cfg)

	_, err := Evaluate(mustParse(t, "while (1) { x = 1 }"), nil)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	env, err := Evaluate(mustParse(t, "i = 0; while (i < 100) { i = i + 1 }"), nil)
	if err != nil {
		t.Fatalf("loop within the budget failed: %v", err)
	}
	if v, _ := env.Get("i"); v != 100 {
		t.Fatalf("expected i = 100, got %d", v)
	}

	unbounded := int64(0)
	ctx := WithRuntimeConfigOverride(context.Background(), RuntimeConfigOverride{MaxLoopIterations: &unbounded})
	if _, err := EvaluateContext(ctx, mustParse(t, "i = 0; while (i < 1000) { i = i + 1 }"), nil); err != nil {
		t.Fatalf("override did not lift the budget: %v", err)
	}
}

func TestProgramsShareNothing(t *testing.T) {
	stmts := mustParse(t, "i = 0; while (i < 1000) { i = i + 1 }; r = i * k")
	errs := make(chan error, 8)
	for k := int64(0); k < 8; k++ {
		go func(k int64) {
			env, err := Evaluate(stmts, NewEnvironmentFrom(map[string]int64{"k": k}))
			if err == nil {
				if v, _ := env.Get("r"); v != 1000*k {
					err = errors.New("unexpected result")
				}
			}
			errs <- err
		}(k)
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent evaluation: %v", err)
		}
	}
}
