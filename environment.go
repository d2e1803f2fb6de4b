package minilang

import (
	"fmt"
	"sort"

	"github.com/oarkflow/convert"
)

// Environment maps variable names to values. A single instance is updated in
// place by every statement of a run; it is not safe for concurrent use.
type Environment struct {
	store map[string]int64
}

func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]int64)}
}

// NewEnvironmentFrom copies vars into a fresh environment.
func NewEnvironmentFrom(vars map[string]int64) *Environment {
	env := &Environment{store: make(map[string]int64, len(vars))}
	for k, v := range vars {
		env.store[k] = v
	}
	return env
}

// NewEnvironmentFromData converts host values (JSON or YAML decoded numbers,
// numeric strings, booleans) into an environment.
func NewEnvironmentFromData(data map[string]any) (*Environment, error) {
	env := NewEnvironment()
	if err := env.Inject(data); err != nil {
		return nil, err
	}
	return env, nil
}

// Inject converts and stores every entry of data. Nothing is written unless
// all entries are valid.
func (e *Environment) Inject(data map[string]any) error {
	values := make(map[string]int64, len(data))
	for name, raw := range data {
		if !isValidName(name) {
			return fmt.Errorf("invalid variable name %q", name)
		}
		value, err := toValue(raw)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		values[name] = value
	}
	for name, value := range values {
		e.store[name] = value
	}
	return nil
}

func (e *Environment) Get(name string) (int64, bool) {
	v, ok := e.store[name]
	return v, ok
}

func (e *Environment) Set(name string, val int64) int64 {
	e.store[name] = val
	return val
}

func (e *Environment) Len() int {
	return len(e.store)
}

func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.store))
	for name := range e.store {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Environment) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(e.store))
	for k, v := range e.store {
		out[k] = v
	}
	return out
}

func (e *Environment) Clone() *Environment {
	return NewEnvironmentFrom(e.store)
}

func (e *Environment) String() string {
	out := "{"
	for i, name := range e.Names() {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s: %d", name, e.store[name])
	}
	return out + "}"
}

func toValue(raw any) (int64, error) {
	switch v := raw.(type) {
	case bool:
		return boolToInt(v), nil
	case float32:
		if float32(int64(v)) != v {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
	case float64:
		if float64(int64(v)) != v {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
	}
	n, ok := convert.ToInt64(raw)
	if !ok {
		return 0, fmt.Errorf("cannot use %v (%T) as an integer", raw, raw)
	}
	return n, nil
}

func isValidName(name string) bool {
	if name == "" || !isLetter(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		ch := name[i]
		if !isLetter(ch) && !isDigit(ch) && ch != '_' {
			return false
		}
	}
	_, reserved := keywords[name]
	return !reserved
}
