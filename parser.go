package minilang

import (
	"context"
	"fmt"
)

const lowestPrecedence = 0

// Binary operators fold left to right. Comparisons bind loosest and `**`
// tightest.
var precedences = map[string]int{
	"==": 0,
	"!=": 0,
	"<":  0,
	">":  0,
	"<=": 0,
	">=": 0,
	"+":  1,
	"-":  1,
	"*":  2,
	"/":  2,
	"**": 3,
}

type Parser struct {
	tokens   []Token
	pos      int
	depth    int
	maxDepth int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens, maxDepth: GetRuntimeConfig().MaxNestingDepth}
}

// Parse builds the statement list for a token sequence produced by Tokenize.
// A sequence without a trailing END is treated as if it had one.
func Parse(tokens []Token) ([]Statement, error) {
	return NewParser(tokens).ParseProgram()
}

// ParseContext is Parse with the nesting limit taken from the runtime
// configuration attached to ctx.
func ParseContext(ctx context.Context, tokens []Token) ([]Statement, error) {
	p := NewParser(tokens)
	p.maxDepth = effectiveRuntimeConfig(ctx).MaxNestingDepth
	return p.ParseProgram()
}

func ParseString(source string) ([]Statement, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

func (p *Parser) cur() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	end := 0
	if n := len(p.tokens); n > 0 {
		last := p.tokens[n-1]
		end = last.Pos + len(last.Text)
	}
	return Token{Kind: END, Pos: end}
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return Token{Kind: END}
}

func (p *Parser) nextToken() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) expect(kind TokenKind, expected string) error {
	if p.cur().Kind != kind {
		return &ParseError{Expected: expected, Found: p.cur()}
	}
	p.nextToken()
	return nil
}

func (p *Parser) enter() error {
	p.depth++
	if p.maxDepth > 0 && p.depth > p.maxDepth {
		return &ParseError{Expected: fmt.Sprintf("nesting depth of at most %d", p.maxDepth), Found: p.cur()}
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

func (p *Parser) ParseProgram() ([]Statement, error) {
	statements := []Statement{}
	for p.cur().Kind != END {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
		if p.cur().Kind == SEMICOLON {
			p.nextToken()
		}
		if !p.atStatementBoundary() {
			return nil, &ParseError{Expected: "';' or end of input", Found: p.cur()}
		}
	}
	if p.pos < len(p.tokens)-1 {
		return nil, &ParseError{Expected: "end of input", Found: p.tokens[p.pos+1]}
	}
	return statements, nil
}

func (p *Parser) atStatementBoundary() bool {
	tok := p.cur()
	switch tok.Kind {
	case END, IDENTIFIER:
		return true
	case KEYWORD:
		return tok.Text == KeywordIf || tok.Text == KeywordWhile
	}
	return false
}

func (p *Parser) parseStatement() (Statement, error) {
	tok := p.cur()
	switch {
	case tok.IsKeyword(KeywordIf):
		return p.parseIfStatement()
	case tok.IsKeyword(KeywordWhile):
		return p.parseWhileStatement()
	case tok.Kind == IDENTIFIER && p.peek().Is(OPERATOR, "="):
		return p.parseAssignment()
	}
	return nil, &ParseError{Expected: "statement", Found: tok}
}

func (p *Parser) parseAssignment() (*Assignment, error) {
	name := p.cur().Text
	p.nextToken() // identifier
	p.nextToken() // '='
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Assignment{Name: name, Expr: expr}, nil
}

func (p *Parser) parseIfStatement() (*IfStatement, error) {
	p.nextToken()
	stmt := &IfStatement{}

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	stmt.Condition = cond

	switch tok := p.cur(); {
	case tok.IsKeyword(KeywordThen):
		p.nextToken()
		stmt.Then, err = p.parseBranch()
	case tok.Kind == BRACE_OPEN:
		stmt.Then, err = p.parseBlock()
	default:
		return nil, &ParseError{Expected: "'then' or '{'", Found: tok}
	}
	if err != nil {
		return nil, err
	}

	if p.cur().IsKeyword(KeywordElse) {
		p.nextToken()
		if stmt.Else, err = p.parseBranch(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseWhileStatement() (*WhileStatement, error) {
	p.nextToken()
	if err := p.expect(PAREN_OPEN, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(PAREN_CLOSE, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStatement{Condition: cond, Body: body}, nil
}

// parseBranch parses what follows `then` or `else`: a braced block or a
// single statement.
func (p *Parser) parseBranch() (*Block, error) {
	if p.cur().Kind == BRACE_OPEN {
		return p.parseBlock()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &Block{Statements: []Statement{stmt}}, nil
}

func (p *Parser) parseBlock() (*Block, error) {
	if err := p.expect(BRACE_OPEN, "'{'"); err != nil {
		return nil, err
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	block := &Block{Statements: []Statement{}, Braced: true}
	for p.cur().Kind != BRACE_CLOSE && p.cur().Kind != END {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
		if p.cur().Kind == SEMICOLON {
			p.nextToken()
		}
	}
	if err := p.expect(BRACE_CLOSE, "'}'"); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseExpression() (Expression, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parseBinary(left, lowestPrecedence)
}

func binaryPrecedence(tok Token) (int, bool) {
	if tok.Kind != OPERATOR {
		return 0, false
	}
	prec, ok := precedences[tok.Text]
	return prec, ok
}

// parseBinary folds operators whose precedence is at least minPrec onto left.
// Each right operand is a single primary that only absorbs the operators
// binding strictly tighter than the one before it, so equal precedence
// associates to the left.
func (p *Parser) parseBinary(left Expression, minPrec int) (Expression, error) {
	for {
		op := p.cur()
		prec, ok := binaryPrecedence(op)
		if !ok || prec < minPrec {
			return left, nil
		}
		p.nextToken()

		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		for {
			next, ok := binaryPrecedence(p.cur())
			if !ok || next <= prec {
				break
			}
			if right, err = p.parseBinary(right, prec+1); err != nil {
				return nil, err
			}
		}
		left = &BinaryOp{Operator: op.Text, Left: left, Right: right}
	}
}

func (p *Parser) parsePrimary() (Expression, error) {
	tok := p.cur()
	switch tok.Kind {
	case NUMBER:
		p.nextToken()
		return &NumberLiteral{Value: tok.Value}, nil
	case IDENTIFIER:
		p.nextToken()
		return &VariableRef{Name: tok.Text}, nil
	case PAREN_OPEN:
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		p.nextToken()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(PAREN_CLOSE, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, &ParseError{Expected: "number, identifier or '('", Found: tok}
}
