package minilang

import (
	"context"
	"sync"
	"time"
)

// RuntimeConfig bounds program execution. Zero values disable a limit, so the
// defaults keep `while` loops unbounded.
type RuntimeConfig struct {
	Timeout           time.Duration
	MaxLoopIterations int64
	MaxNestingDepth   int
	LogExecution      bool
}

// DefaultRuntimeConfig is the configuration in effect until SetRuntimeConfig
// is called.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{MaxNestingDepth: 256, LogExecution: true}
}

var (
	runtimeMu     sync.RWMutex
	runtimeConfig = DefaultRuntimeConfig()
)

// SetRuntimeConfig replaces the process-wide configuration. Runs already in
// progress keep the values they started with.
func SetRuntimeConfig(cfg RuntimeConfig) {
	runtimeMu.Lock()
	runtimeConfig = cfg
	runtimeMu.Unlock()
}

func GetRuntimeConfig() RuntimeConfig {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	return runtimeConfig
}

// RuntimeConfigOverride replaces individual fields of the process-wide
// configuration for a single call. Nil fields inherit.
type RuntimeConfigOverride struct {
	Timeout           *time.Duration
	MaxLoopIterations *int64
	MaxNestingDepth   *int
	LogExecution      *bool
}

func (o RuntimeConfigOverride) apply(cfg RuntimeConfig) RuntimeConfig {
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.MaxLoopIterations != nil {
		cfg.MaxLoopIterations = *o.MaxLoopIterations
	}
	if o.MaxNestingDepth != nil {
		cfg.MaxNestingDepth = *o.MaxNestingDepth
	}
	if o.LogExecution != nil {
		cfg.LogExecution = *o.LogExecution
	}
	return cfg
}

type overrideKey struct{}

// WithRuntimeConfigOverride attaches override to ctx. Parsing, evaluation and
// Exec read it from there; the innermost override wins.
func WithRuntimeConfigOverride(ctx context.Context, override RuntimeConfigOverride) context.Context {
	return context.WithValue(ctx, overrideKey{}, override)
}

func effectiveRuntimeConfig(ctx context.Context) RuntimeConfig {
	cfg := GetRuntimeConfig()
	if ctx == nil {
		return cfg
	}
	if o, ok := ctx.Value(overrideKey{}).(RuntimeConfigOverride); ok {
		cfg = o.apply(cfg)
	}
	return cfg
}

// withTimeout applies cfg.Timeout unless ctx already carries a deadline.
func withTimeout(ctx context.Context, cfg RuntimeConfig) (context.Context, context.CancelFunc) {
	if cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cfg.Timeout)
}
