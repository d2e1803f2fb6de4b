package minilang

import (
	"github.com/oarkflow/log"
)

type execOptions struct {
	logger    *log.Logger
	cache     *ProgramCache
	env       *Environment
	variables map[string]any
	id        string
}

type Option func(*execOptions)

func WithLogger(logger *log.Logger) Option {
	return func(o *execOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCache makes Exec compile through cache.
func WithCache(cache *ProgramCache) Option {
	return func(o *execOptions) {
		o.cache = cache
	}
}

// WithEnvironment runs the program against env instead of a fresh
// environment. The caller observes the updates in place.
func WithEnvironment(env *Environment) Option {
	return func(o *execOptions) {
		o.env = env
	}
}

// WithVariables seeds the environment before the first statement runs.
func WithVariables(vars map[string]any) Option {
	return func(o *execOptions) {
		o.variables = vars
	}
}

func WithRunID(id string) Option {
	return func(o *execOptions) {
		o.id = id
	}
}

func newExecOptions(opts []Option) *execOptions {
	o := &execOptions{logger: &log.DefaultLogger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
