// Package minilang tokenizes, parses and evaluates programs in a small
// integer language with assignment, if/then/else and while loops.
package minilang

import (
	"context"
	"os"
	"time"

	"github.com/oarkflow/xid"
)

// Program is a tokenized and parsed source. It is immutable and may be
// evaluated any number of times, concurrently, each run with its own
// environment.
type Program struct {
	Source     string
	Tokens     []Token
	Statements []Statement
}

func (p *Program) String() string {
	return FormatStatements(p.Statements)
}

// Compile tokenizes and parses source. Errors are returned as *Error with
// the LexError or ParseError as cause.
func Compile(source string) (*Program, error) {
	return CompileContext(context.Background(), source)
}

func CompileContext(ctx context.Context, source string) (*Program, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, wrapError(err)
	}
	statements, err := ParseContext(ctx, tokens)
	if err != nil {
		return nil, wrapError(err)
	}
	return &Program{Source: source, Tokens: tokens, Statements: statements}, nil
}

// Run evaluates the program against env, or a fresh environment when env is
// nil.
func (p *Program) Run(ctx context.Context, env *Environment) (*Environment, error) {
	env, err := EvaluateContext(ctx, p.Statements, env)
	if err != nil {
		return nil, wrapError(err)
	}
	return env, nil
}

type Result struct {
	ID        string           `json:"id"`
	Variables map[string]int64 `json:"variables"`
	Duration  time.Duration    `json:"duration"`
	Env       *Environment     `json:"-"`
}

// Exec compiles and runs source. The runtime configuration attached to ctx
// bounds the run; its Timeout applies unless ctx already has a deadline.
func Exec(ctx context.Context, source string, opts ...Option) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	o := newExecOptions(opts)
	cfg := effectiveRuntimeConfig(ctx)
	ctx, cancel := withTimeout(ctx, cfg)
	defer cancel()

	id := o.id
	if id == "" {
		id = xid.New().String()
	}

	var (
		prog *Program
		err  error
	)
	if o.cache != nil {
		prog, err = o.cache.Compile(ctx, source)
	} else {
		prog, err = CompileContext(ctx, source)
	}
	if err != nil {
		if cfg.LogExecution {
			o.logger.Error().Str("id", id).Err(err).Msg("program rejected")
		}
		return nil, err
	}

	env := o.env
	if env == nil {
		env = NewEnvironment()
	}
	if len(o.variables) > 0 {
		if err := env.Inject(o.variables); err != nil {
			return nil, &Error{Code: ErrCodeInput, Message: "invalid variables", Cause: err}
		}
	}

	start := time.Now()
	_, err = prog.Run(ctx, env)
	duration := time.Since(start)
	if err != nil {
		if cfg.LogExecution {
			o.logger.Error().Str("id", id).Dur("duration", duration).Err(err).Msg("program failed")
		}
		return nil, err
	}
	if cfg.LogExecution {
		o.logger.Info().Str("id", id).Int("statements", len(prog.Statements)).Dur("duration", duration).Msg("program executed")
	}
	return &Result{ID: id, Variables: env.Snapshot(), Duration: duration, Env: env}, nil
}

func ExecFile(ctx context.Context, filename string, opts ...Option) (*Result, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Exec(ctx, string(content), opts...)
}
