package minilang

import (
	"reflect"
	"testing"
)

func TestEnvironmentBasics(t *testing.T) {
	env := NewEnvironment()
	if _, ok := env.Get("x"); ok {
		t.Fatalf("fresh environment should be empty")
	}
	env.Set("b", 2)
	env.Set("a", 1)
	if env.Len() != 2 {
		t.Fatalf("expected 2 variables, got %d", env.Len())
	}
	if names := env.Names(); !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Fatalf("expected sorted names, got %v", names)
	}
	if s := env.String(); s != "{a: 1, b: 2}" {
		t.Fatalf("unexpected String() %q", s)
	}

	clone := env.Clone()
	clone.Set("a", 100)
	if v, _ := env.Get("a"); v != 1 {
		t.Fatalf("clone shares storage with its source")
	}
	snap := env.Snapshot()
	snap["b"] = 200
	if v, _ := env.Get("b"); v != 2 {
		t.Fatalf("snapshot shares storage with the environment")
	}
}

func TestEnvironmentFromData(t *testing.T) {
	env, err := NewEnvironmentFromData(map[string]any{
		"a": 3,
		"b": int64(-4),
		"c": float64(12),
		"d": true,
		"e": false,
	})
	if err != nil {
		t.Fatalf("NewEnvironmentFromData: %v", err)
	}
	want := map[string]int64{"a": 3, "b": -4, "c": 12, "d": 1, "e": 0}
	if got := env.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEnvironmentInjectRejectsBadInput(t *testing.T) {
	cases := map[string]map[string]any{
		"keyword name":  {"if": 1},
		"empty name":    {"": 1},
		"digit first":   {"1x": 1},
		"bad character": {"x-y": 1},
		"fraction":      {"x": 2.5},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if err := NewEnvironment().Inject(data); err == nil {
				t.Fatalf("expected error for %v", data)
			}
		})
	}
}

func TestEnvironmentInjectIsAllOrNothing(t *testing.T) {
	env := NewEnvironmentFrom(map[string]int64{"keep": 1})
	err := env.Inject(map[string]any{"a": 1, "b": 2, "c": 3, "bad": 0.5, "d": 4})
	if err == nil {
		t.Fatalf("expected error for a fractional value")
	}
	want := map[string]int64{"keep": 1}
	if got := env.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("failed inject modified the environment: %v", got)
	}
}
