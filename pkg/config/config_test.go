package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/oarkflow/minilang"
)

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minilang.yaml")
	content := `
runtime:
  timeout: 250ms
  max_loop_iterations: 1000
  log_execution: false
server:
  addr: ":9090"
cache:
  max_programs: 16
transcript: runs.jsonl
variables:
  x: 10
  y: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rc := cfg.RuntimeConfig()
	if rc.Timeout != 250*time.Millisecond || rc.MaxLoopIterations != 1000 || rc.LogExecution {
		t.Fatalf("unexpected runtime config: %+v", rc)
	}
	if rc.MaxNestingDepth != 256 {
		t.Fatalf("expected default nesting depth to survive, got %d", rc.MaxNestingDepth)
	}
	if cfg.Server.Addr != ":9090" || cfg.ServerTimeout() != 5*time.Second {
		t.Fatalf("unexpected server settings: %+v", cfg.Server)
	}
	if cfg.Cache.MaxPrograms != 16 || cfg.Transcript != "runs.jsonl" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Variables) != 2 {
		t.Fatalf("expected 2 variables, got %v", cfg.Variables)
	}
}

func TestLoadFromStringJSON(t *testing.T) {
	cfg, err := LoadFromString(`{"runtime":{"timeout":"1s","max_nesting_depth":32},"server":{"timeout":"2s"}}`, "json")
	if err != nil {
		t.Fatalf("LoadFromString: %v", err)
	}
	rc := cfg.RuntimeConfig()
	if rc.Timeout != time.Second || rc.MaxNestingDepth != 32 || !rc.LogExecution {
		t.Fatalf("unexpected runtime config: %+v", rc)
	}
	if cfg.ServerTimeout() != 2*time.Second {
		t.Fatalf("unexpected server timeout %v", cfg.ServerTimeout())
	}
}

func TestDetectJSON(t *testing.T) {
	cfg, err := Detect(`  {"server":{"addr":":7000"}}  `)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]string{
		"bad timeout":       `{"runtime":{"timeout":"soon"}}`,
		"negative loops":    `{"runtime":{"max_loop_iterations":-1}}`,
		"negative depth":    `{"runtime":{"max_nesting_depth":-4}}`,
		"negative cache":    `{"cache":{"max_programs":-1}}`,
		"keyword variable":  `{"variables":{"while":1}}`,
		"non-integer value": `{"variables":{"x":1.5}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFromString(content, "json"); err == nil {
				t.Fatalf("expected validation error for %s", content)
			}
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := LoadFromString("x", "toml"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestFormatsDecodeToSameConfig(t *testing.T) {
	logExecution := false
	want := Default()
	want.Runtime = RuntimeSettings{
		Timeout:           "250ms",
		MaxLoopIterations: 1000,
		MaxNestingDepth:   64,
		LogExecution:      &logExecution,
	}
	want.Server.Addr = ":9090"
	want.Server.BodyLimit = 2048
	want.Cache.MaxPrograms = 16
	want.Transcript = "runs.jsonl"
	wantVars := map[string]int64{"x": 10, "y": 3}

	cases := map[string]string{
		"yaml": `
runtime:
  timeout: 250ms
  max_loop_iterations: 1000
  max_nesting_depth: 64
  log_execution: false
server:
  addr: ":9090"
  body_limit: 2048
cache:
  max_programs: 16
transcript: runs.jsonl
variables:
  x: 10
  y: 3
`,
		"json": `{
  "runtime": {"timeout": "250ms", "max_loop_iterations": 1000, "max_nesting_depth": 64, "log_execution": false},
  "server": {"addr": ":9090", "body_limit": 2048},
  "cache": {"max_programs": 16},
  "transcript": "runs.jsonl",
  "variables": {"x": 10, "y": 3}
}`,
		"bcl": `
runtime {
    timeout = "250ms"
    max_loop_iterations = 1000
    max_nesting_depth = 64
    log_execution = false
}
server {
    addr = ":9090"
    body_limit = 2048
}
cache {
    max_programs = 16
}
transcript = "runs.jsonl"
variables {
    x = 10
    y = 3
}
`,
	}
	for format, content := range cases {
		t.Run(format, func(t *testing.T) {
			loaders := map[string]func() (*Config, error){
				"LoadFromString": func() (*Config, error) { return LoadFromString(content, format) },
				"Detect":         func() (*Config, error) { return Detect(content) },
			}
			for name, load := range loaders {
				cfg, err := load()
				if err != nil {
					t.Fatalf("%s: %v", name, err)
				}
				// numeric variable types differ per decoder
				env, err := minilang.NewEnvironmentFromData(cfg.Variables)
				if err != nil {
					t.Fatalf("%s: variables: %v", name, err)
				}
				if got := env.Snapshot(); !reflect.DeepEqual(got, wantVars) {
					t.Fatalf("%s: expected variables %v, got %v", name, wantVars, got)
				}
				cfg.Variables = nil
				if !reflect.DeepEqual(cfg, want) {
					t.Fatalf("%s: expected %+v, got %+v", name, want, cfg)
				}
			}
		})
	}
}
