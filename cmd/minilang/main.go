package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/oarkflow/json"
	"github.com/oarkflow/log"
	"github.com/urfave/cli/v2"

	"github.com/oarkflow/minilang"
	"github.com/oarkflow/minilang/pkg/config"
	"github.com/oarkflow/minilang/pkg/transcript"
)

func main() {
	logger := &log.DefaultLogger
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("minilang")
	}
}

func newApp() *cli.App {
	sourceFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "eval",
			Aliases: []string{"e"},
			Usage:   "Program source to use instead of a file",
		},
	}
	return &cli.App{
		Name:  "minilang",
		Usage: "Tokenize, parse and run minilang programs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a configuration file (YAML, JSON, or BCL)",
				EnvVars: []string{"MINILANG_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "record",
				Usage: "Append every run to this JSON-lines transcript",
			},
		},
		Before: applyConfig,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run a program and print the final variables",
				ArgsUsage: "[file]",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:  "var",
						Usage: "Initial variable as name=value, repeatable",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the result as JSON",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Abort the run after this duration",
					},
					&cli.Int64Flag{
						Name:  "max-iterations",
						Usage: "Abort after this many loop iterations (0 means unbounded)",
					},
				}, sourceFlags...),
				Action: runProgram,
			},
			{
				Name:      "tokens",
				Usage:     "Print the token stream of a program",
				ArgsUsage: "[file]",
				Flags:     sourceFlags,
				Action:    printTokens,
			},
			{
				Name:      "ast",
				Usage:     "Print the parsed statements of a program",
				ArgsUsage: "[file]",
				Flags:     sourceFlags,
				Action:    printAST,
			},
			{
				Name:  "serve",
				Usage: "Start the HTTP service",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Address to listen on",
					},
					&cli.BoolFlag{
						Name:  "access-log",
						Usage: "Log every request",
					},
				},
				Action: startServer,
			},
		},
	}
}

// applyConfig loads --config, installs its runtime settings and stores it in
// the app metadata for the commands.
func applyConfig(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}
	if record := c.String("record"); record != "" {
		cfg.Transcript = record
	}
	minilang.SetRuntimeConfig(cfg.RuntimeConfig())
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata["config"] = cfg
	return nil
}

func appConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata["config"].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func readSource(c *cli.Context) (string, error) {
	if src := c.String("eval"); src != "" {
		return src, nil
	}
	path := c.Args().First()
	if path == "" || path == "-" {
		data, err := io.ReadAll(c.App.Reader)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", pair)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --var %q: %w", pair, err)
		}
		vars[strings.TrimSpace(name)] = n
	}
	return vars, nil
}

func runProgram(c *cli.Context) error {
	cfg := appConfig(c)
	source, err := readSource(c)
	if err != nil {
		return err
	}
	vars := make(map[string]any, len(cfg.Variables))
	for k, v := range cfg.Variables {
		vars[k] = v
	}
	flagVars, err := parseVars(c.StringSlice("var"))
	if err != nil {
		return err
	}
	for k, v := range flagVars {
		vars[k] = v
	}

	ctx := c.Context
	var override minilang.RuntimeConfigOverride
	if c.IsSet("timeout") {
		timeout := c.Duration("timeout")
		override.Timeout = &timeout
	}
	if c.IsSet("max-iterations") {
		limit := c.Int64("max-iterations")
		override.MaxLoopIterations = &limit
	}
	ctx = minilang.WithRuntimeConfigOverride(ctx, override)

	start := time.Now()
	res, runErr := minilang.Exec(ctx, source, minilang.WithVariables(vars))
	if err := recordRun(cfg, source, res, runErr, time.Since(start)); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if c.Bool("json") {
		out, err := json.Marshal(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, string(out))
		return err
	}
	for _, name := range res.Env.Names() {
		v, _ := res.Env.Get(name)
		fmt.Fprintf(c.App.Writer, "%s = %d\n", name, v)
	}
	return nil
}

func recordRun(cfg *config.Config, source string, res *minilang.Result, runErr error, elapsed time.Duration) error {
	if cfg.Transcript == "" {
		return nil
	}
	appender, err := transcript.Open(cfg.Transcript)
	if err != nil {
		return err
	}
	defer appender.Close()
	rec := transcript.Record{Source: source, DurationMs: float64(elapsed) / float64(time.Millisecond)}
	if res != nil {
		rec.ID = res.ID
		rec.Variables = res.Variables
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return appender.Append(rec)
}

func printTokens(c *cli.Context) error {
	source, err := readSource(c)
	if err != nil {
		return err
	}
	tokens, err := minilang.Tokenize(source)
	if err != nil {
		return err
	}
	for _, tok := range tokens {
		fmt.Fprintf(c.App.Writer, "%4d  %s\n", tok.Pos, tok)
	}
	return nil
}

func printAST(c *cli.Context) error {
	source, err := readSource(c)
	if err != nil {
		return err
	}
	prog, err := minilang.Compile(source)
	if err != nil {
		return err
	}
	for _, stmt := range prog.Statements {
		fmt.Fprintln(c.App.Writer, stmt.String())
	}
	return nil
}

func startServer(c *cli.Context) error {
	cfg := appConfig(c)
	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	cache, err := minilang.NewProgramCache(cfg.Cache.MaxPrograms, &log.DefaultLogger)
	if err != nil {
		return err
	}
	defer cache.Close()

	var recorder minilang.Recorder
	if cfg.Transcript != "" {
		appender, err := transcript.Open(cfg.Transcript)
		if err != nil {
			return err
		}
		defer appender.Close()
		recorder = appender
	}

	srv := minilang.NewServer(minilang.ServerConfig{
		Cache:     cache,
		Logger:    &log.DefaultLogger,
		Recorder:  recorder,
		Timeout:   cfg.ServerTimeout(),
		BodyLimit: cfg.Server.BodyLimit,
		AccessLog: c.Bool("access-log"),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Listen(addr)
	}()

	select {
	case err := <-serverErr:
		return err
	case sig := <-sigChan:
		logger := &log.DefaultLogger
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		if err := srv.Shutdown(); err != nil {
			return err
		}
		select {
		case err := <-serverErr:
			return err
		case <-time.After(30 * time.Second):
			return context.DeadlineExceeded
		}
	}
}
