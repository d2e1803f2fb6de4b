package minilang

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrInvalidOperator   = errors.New("invalid operator")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrCanceled          = errors.New("evaluation canceled")
	ErrLimitExceeded     = errors.New("evaluation limit exceeded")
)

// LexError reports a character the lexer cannot turn into a token. Pos is a
// byte offset; Char is the full rune found there.
type LexError struct {
	Pos    int
	Char   rune
	Reason string
}

func (e *LexError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "invalid character"
	}
	return fmt.Sprintf("lex error at offset %d: %s %q", e.Pos, reason, e.Char)
}

// ParseError reports the token where the grammar could not be satisfied.
type ParseError struct {
	Expected string
	Found    Token
}

func (e *ParseError) Error() string {
	if e.Found.Kind == END {
		return fmt.Sprintf("parse error: expected %s, found end of input", e.Expected)
	}
	return fmt.Sprintf("parse error at offset %d: expected %s, found %s", e.Found.Pos, e.Expected, e.Found)
}

type EvalErrorKind int

const (
	UndefinedVariable EvalErrorKind = iota
	DivisionByZero
	InvalidOperator
	TypeMismatch
	Canceled
	LimitExceeded
)

func (k EvalErrorKind) String() string {
	switch k {
	case UndefinedVariable:
		return "UndefinedVariable"
	case DivisionByZero:
		return "DivisionByZero"
	case InvalidOperator:
		return "InvalidOperator"
	case TypeMismatch:
		return "TypeMismatch"
	case Canceled:
		return "Canceled"
	case LimitExceeded:
		return "LimitExceeded"
	}
	return fmt.Sprintf("EvalErrorKind(%d)", int(k))
}

func (k EvalErrorKind) sentinel() error {
	switch k {
	case UndefinedVariable:
		return ErrUndefinedVariable
	case DivisionByZero:
		return ErrDivisionByZero
	case InvalidOperator:
		return ErrInvalidOperator
	case TypeMismatch:
		return ErrTypeMismatch
	case Canceled:
		return ErrCanceled
	case LimitExceeded:
		return ErrLimitExceeded
	}
	return nil
}

// EvalError is returned by the evaluator. It matches the Err* sentinel of its
// kind with errors.Is, and the context error that stopped it, if any.
type EvalError struct {
	Kind     EvalErrorKind
	Name     string
	Operator string
	Detail   string
	Cause    error
}

func (e *EvalError) Error() string {
	var b strings.Builder
	b.WriteString("eval error: ")
	switch e.Kind {
	case UndefinedVariable:
		fmt.Fprintf(&b, "undefined variable %q", e.Name)
	case DivisionByZero:
		b.WriteString("division by zero")
	case InvalidOperator:
		fmt.Fprintf(&b, "invalid operator %q", e.Operator)
	default:
		b.WriteString(e.Kind.sentinel().Error())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *EvalError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *EvalError) Unwrap() error {
	return e.Cause
}

type ErrorCode string

const (
	ErrCodeLex      ErrorCode = "LEX_ERROR"
	ErrCodeParse    ErrorCode = "PARSE_ERROR"
	ErrCodeEval     ErrorCode = "EVAL_ERROR"
	ErrCodeTimeout  ErrorCode = "TIMEOUT"
	ErrCodeCanceled ErrorCode = "CANCELED"
	ErrCodeInput    ErrorCode = "INPUT_VALIDATION_ERROR"
)

// Error is the coded error returned at the Exec boundary. Cause holds the
// typed LexError, ParseError or EvalError.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	switch err := err.(type) {
	case *Error:
		return err
	case *LexError:
		return &Error{Code: ErrCodeLex, Message: "invalid source", Cause: err}
	case *ParseError:
		return &Error{Code: ErrCodeParse, Message: "invalid program", Cause: err}
	case *EvalError:
		switch err.Kind {
		case Canceled:
			if err.Cause == context.DeadlineExceeded {
				return &Error{Code: ErrCodeTimeout, Message: "program timed out", Cause: err}
			}
			return &Error{Code: ErrCodeCanceled, Message: "program canceled", Cause: err}
		}
		return &Error{Code: ErrCodeEval, Message: "program failed", Cause: err}
	}
	return &Error{Code: ErrCodeEval, Message: "program failed", Cause: err}
}
