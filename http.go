package minilang

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/oarkflow/json"
	"github.com/oarkflow/log"
	"github.com/oarkflow/xid"

	"github.com/oarkflow/minilang/pkg/transcript"
)

// Recorder receives one record per /run request.
type Recorder interface {
	Append(rec transcript.Record) error
}

type ServerConfig struct {
	Cache     *ProgramCache
	Logger    *log.Logger
	Recorder  Recorder
	Timeout   time.Duration
	BodyLimit int
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

// Server exposes tokenize, parse and run over HTTP. Every request gets its
// own environment.
type Server struct {
	app      *fiber.App
	cache    *ProgramCache
	logger   *log.Logger
	recorder Recorder
	timeout  time.Duration
}

type sourceRequest struct {
	Source    string         `json:"source"`
	Variables map[string]any `json:"variables,omitempty"`
}

type errorResponse struct {
	ID    string    `json:"id,omitempty"`
	Code  ErrorCode `json:"code"`
	Error string    `json:"error"`
}

type tokenResponse struct {
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Value int64  `json:"value,omitempty"`
	Pos   int    `json:"pos"`
}

type parseResponse struct {
	Program    string   `json:"program"`
	Statements []string `json:"statements"`
}

type runResponse struct {
	ID         string           `json:"id"`
	Variables  map[string]int64 `json:"variables"`
	DurationMs float64          `json:"duration_ms"`
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = &log.DefaultLogger
	}
	fiberCfg := fiber.Config{
		JSONEncoder: func(v any) ([]byte, error) {
			return json.Marshal(v)
		},
		JSONDecoder: func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		},
		DisableStartupMessage: true,
	}
	if cfg.BodyLimit > 0 {
		fiberCfg.BodyLimit = cfg.BodyLimit
	}
	s := &Server{
		app:      fiber.New(fiberCfg),
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
		timeout:  cfg.Timeout,
	}
	if cfg.AccessLog {
		s.app.Use(logger.New())
	}
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Post("/tokenize", s.handleTokenize)
	s.app.Post("/parse", s.handleParse)
	s.app.Post("/run", s.handleRun)
	return s
}

// App returns the underlying fiber application, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting minilang server")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) decode(c *fiber.Ctx) (sourceRequest, error) {
	var req sourceRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return req, &Error{Code: ErrCodeInput, Message: "invalid request body", Cause: err}
	}
	return req, nil
}

func (s *Server) handleTokenize(c *fiber.Ctx) error {
	req, err := s.decode(c)
	if err != nil {
		return s.fail(c, "", err)
	}
	tokens, err := Tokenize(req.Source)
	if err != nil {
		return s.fail(c, "", wrapError(err))
	}
	out := make([]tokenResponse, len(tokens))
	for i, tok := range tokens {
		out[i] = tokenResponse{Kind: tok.Kind.String(), Text: tok.Text, Value: tok.Value, Pos: tok.Pos}
	}
	return c.JSON(fiber.Map{"tokens": out})
}

func (s *Server) handleParse(c *fiber.Ctx) error {
	req, err := s.decode(c)
	if err != nil {
		return s.fail(c, "", err)
	}
	prog, err := s.compile(c.UserContext(), req.Source)
	if err != nil {
		return s.fail(c, "", err)
	}
	statements := make([]string, len(prog.Statements))
	for i, stmt := range prog.Statements {
		statements[i] = stmt.String()
	}
	return c.JSON(parseResponse{Program: prog.String(), Statements: statements})
}

func (s *Server) handleRun(c *fiber.Ctx) error {
	id := xid.New().String()
	req, err := s.decode(c)
	if err != nil {
		return s.fail(c, id, err)
	}
	ctx := c.UserContext()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	opts := []Option{WithRunID(id), WithLogger(s.logger), WithVariables(req.Variables)}
	if s.cache != nil {
		opts = append(opts, WithCache(s.cache))
	}
	start := time.Now()
	res, err := Exec(ctx, req.Source, opts...)
	s.record(id, req.Source, res, err, time.Since(start))
	if err != nil {
		return s.fail(c, id, err)
	}
	return c.JSON(runResponse{
		ID:         res.ID,
		Variables:  res.Variables,
		DurationMs: float64(res.Duration) / float64(time.Millisecond),
	})
}

func (s *Server) compile(ctx context.Context, source string) (*Program, error) {
	if s.cache != nil {
		return s.cache.Compile(ctx, source)
	}
	return CompileContext(ctx, source)
}

func (s *Server) record(id, source string, res *Result, runErr error, elapsed time.Duration) {
	if s.recorder == nil {
		return
	}
	rec := transcript.Record{
		ID:         id,
		Source:     source,
		DurationMs: float64(elapsed) / float64(time.Millisecond),
	}
	if res != nil {
		rec.Variables = res.Variables
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := s.recorder.Append(rec); err != nil {
		s.logger.Error().Str("id", id).Err(err).Msg("failed to record run")
	}
}

func (s *Server) fail(c *fiber.Ctx, id string, err error) error {
	status, code := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error().Str("id", id).Err(err).Msg("request failed")
	}
	return c.Status(status).JSON(errorResponse{ID: id, Code: code, Error: err.Error()})
}

func errorStatus(err error) (int, ErrorCode) {
	var coded *Error
	if !errors.As(err, &coded) {
		return fiber.StatusInternalServerError, ErrCodeEval
	}
	switch coded.Code {
	case ErrCodeLex, ErrCodeParse, ErrCodeInput:
		return fiber.StatusBadRequest, coded.Code
	case ErrCodeTimeout, ErrCodeCanceled:
		return fiber.StatusRequestTimeout, coded.Code
	}
	return fiber.StatusUnprocessableEntity, coded.Code
}
