package minilang

import (
	"strconv"
	"strings"
)

// Node is implemented by every AST variant. The set of variants is closed:
// Statement and Expression carry unexported marker methods.
type Node interface {
	String() string
}

type Expression interface {
	Node
	expressionNode()
}

type Statement interface {
	Node
	statementNode()
}

type NumberLiteral struct {
	Value int64
}

func (nl *NumberLiteral) expressionNode() {}
func (nl *NumberLiteral) String() string  { return strconv.FormatInt(nl.Value, 10) }

type VariableRef struct {
	Name string
}

func (vr *VariableRef) expressionNode() {}
func (vr *VariableRef) String() string  { return vr.Name }

// BinaryOp owns its operands exclusively.
type BinaryOp struct {
	Operator string
	Left     Expression
	Right    Expression
}

func (bo *BinaryOp) expressionNode() {}
func (bo *BinaryOp) String() string {
	return "(" + nodeString(bo.Left) + " " + bo.Operator + " " + nodeString(bo.Right) + ")"
}

type Assignment struct {
	Name string
	Expr Expression
}

func (a *Assignment) statementNode() {}
func (a *Assignment) String() string {
	return a.Name + " = " + nodeString(a.Expr)
}

// Block is a branch or loop body. Braced is false for the single statement
// form that follows `then` or `else`.
type Block struct {
	Statements []Statement
	Braced     bool
}

func (b *Block) String() string {
	if b == nil {
		return "{ }"
	}
	if !b.Braced && len(b.Statements) == 1 {
		return nodeString(b.Statements[0])
	}
	var out strings.Builder
	out.WriteString("{ ")
	for _, s := range b.Statements {
		out.WriteString(nodeString(s))
		out.WriteString("; ")
	}
	out.WriteString("}")
	return out.String()
}

// IfStatement has a nil Else when the source has no else branch.
type IfStatement struct {
	Condition Expression
	Then      *Block
	Else      *Block
}

func (is *IfStatement) statementNode() {}
func (is *IfStatement) String() string {
	var out strings.Builder
	out.WriteString("if ")
	out.WriteString(nodeString(is.Condition))
	then := is.Then
	if then != nil && !then.Braced {
		// an unbraced nested if would capture our else when re-parsed
		if _, nested := soleStatement(then).(*IfStatement); nested {
			then = &Block{Statements: then.Statements, Braced: true}
		}
	}
	if then != nil && !then.Braced && len(then.Statements) == 1 {
		out.WriteString(" then ")
	} else {
		out.WriteString(" ")
	}
	out.WriteString(then.String())
	if is.Else != nil {
		out.WriteString(" else ")
		out.WriteString(is.Else.String())
	}
	return out.String()
}

type WhileStatement struct {
	Condition Expression
	Body      *Block
}

func (ws *WhileStatement) statementNode() {}
func (ws *WhileStatement) String() string {
	body := ws.Body
	if body != nil && !body.Braced {
		body = &Block{Statements: body.Statements, Braced: true}
	}
	cond := nodeString(ws.Condition)
	if _, ok := ws.Condition.(*BinaryOp); !ok {
		cond = "(" + cond + ")"
	}
	return "while " + cond + " " + body.String()
}

// FormatStatements renders a program back to source that parses to the same
// statements.
func FormatStatements(statements []Statement) string {
	parts := make([]string, len(statements))
	for i, s := range statements {
		parts[i] = nodeString(s)
	}
	return strings.Join(parts, "; ")
}

func soleStatement(b *Block) Statement {
	if b == nil || len(b.Statements) != 1 {
		return nil
	}
	return b.Statements[0]
}

func nodeString(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}
