package minilang

import (
	"strconv"
	"unicode/utf8"
)

type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Tokenize scans the whole source. The returned slice always ends with a
// single END token.
func Tokenize(source string) ([]Token, error) {
	l := NewLexer(source)
	tokens := make([]Token, 0, len(source)/2+1)
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == END {
			return tokens, nil
		}
	}
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() && isSpace(l.ch) {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for !l.atEnd() && (isLetter(l.ch) || isDigit(l.ch) || l.ch == '_') {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() string {
	position := l.position
	for !l.atEnd() && isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// NextToken returns the next token. Once END has been produced every further
// call returns END again.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	pos := l.position
	if l.atEnd() {
		return Token{Kind: END, Pos: len(l.input)}, nil
	}

	switch ch := l.ch; ch {
	case '=', '!', '<', '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Kind: OPERATOR, Text: string(ch) + "=", Pos: pos}, nil
		}
		l.readChar()
		return Token{Kind: OPERATOR, Text: string(ch), Pos: pos}, nil
	case '*':
		if l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			return Token{Kind: OPERATOR, Text: "**", Pos: pos}, nil
		}
		l.readChar()
		return Token{Kind: OPERATOR, Text: "*", Pos: pos}, nil
	case '+', '-', '/':
		l.readChar()
		return Token{Kind: OPERATOR, Text: string(ch), Pos: pos}, nil
	case ';':
		l.readChar()
		return Token{Kind: SEMICOLON, Text: ";", Pos: pos}, nil
	case '(':
		l.readChar()
		return Token{Kind: PAREN_OPEN, Text: "(", Pos: pos}, nil
	case ')':
		l.readChar()
		return Token{Kind: PAREN_CLOSE, Text: ")", Pos: pos}, nil
	case '{':
		l.readChar()
		return Token{Kind: BRACE_OPEN, Text: "{", Pos: pos}, nil
	case '}':
		l.readChar()
		return Token{Kind: BRACE_CLOSE, Text: "}", Pos: pos}, nil
	default:
		if isLetter(ch) {
			text := l.readIdentifier()
			return Token{Kind: lookupWord(text), Text: text, Pos: pos}, nil
		}
		if isDigit(ch) {
			text := l.readNumber()
			value, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return Token{}, &LexError{Pos: pos, Char: rune(ch), Reason: "integer literal out of range"}
			}
			return Token{Kind: NUMBER, Text: text, Value: value, Pos: pos}, nil
		}
		r, _ := utf8.DecodeRuneInString(l.input[pos:])
		return Token{}, &LexError{Pos: pos, Char: r}
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
