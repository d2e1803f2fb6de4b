package minilang

import (
	"fmt"
	"strconv"
)

type TokenKind int

const (
	NUMBER TokenKind = iota
	IDENTIFIER
	KEYWORD
	OPERATOR
	SEMICOLON
	PAREN_OPEN
	PAREN_CLOSE
	BRACE_OPEN
	BRACE_CLOSE
	END
)

var tokenKindNames = [...]string{
	NUMBER:      "NUMBER",
	IDENTIFIER:  "IDENTIFIER",
	KEYWORD:     "KEYWORD",
	OPERATOR:    "OPERATOR",
	SEMICOLON:   "SEMICOLON",
	PAREN_OPEN:  "PAREN_OPEN",
	PAREN_CLOSE: "PAREN_CLOSE",
	BRACE_OPEN:  "BRACE_OPEN",
	BRACE_CLOSE: "BRACE_CLOSE",
	END:         "END",
}

func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "TokenKind(" + strconv.Itoa(int(k)) + ")"
}

func (k TokenKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

const (
	KeywordIf    = "if"
	KeywordThen  = "then"
	KeywordElse  = "else"
	KeywordWhile = "while"
)

var keywords = map[string]struct{}{
	KeywordIf:    {},
	KeywordThen:  {},
	KeywordElse:  {},
	KeywordWhile: {},
}

// Token is a lexical unit. Value is only set for NUMBER tokens and Pos is the
// byte offset of the token's first character in the source.
type Token struct {
	Kind  TokenKind `json:"kind"`
	Text  string    `json:"text"`
	Value int64     `json:"value,omitempty"`
	Pos   int       `json:"pos"`
}

func (t Token) Is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

func (t Token) IsKeyword(word string) bool {
	return t.Is(KEYWORD, word)
}

func (t Token) String() string {
	switch t.Kind {
	case END:
		return "END"
	case NUMBER:
		return fmt.Sprintf("NUMBER(%d)", t.Value)
	default:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Text)
	}
}

func lookupWord(word string) TokenKind {
	if _, ok := keywords[word]; ok {
		return KEYWORD
	}
	return IDENTIFIER
}
