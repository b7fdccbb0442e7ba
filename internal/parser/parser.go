// Package parser turns listscope source into top-level syntax entries.
//
// The grammar, one entry at a time:
//
//	entry      ::= IDENT | '(' call-body ')'
//	             | '(' 'define' prototype expression ')'
//	             | '(' 'extern' prototype ')'
//	prototype  ::= '(' IDENT IDENT* ')'
//	expression ::= IDENT | '(' call-body ')'
//	call-body  ::= IDENT expression*
//
// Bare expressions are wrapped in zero-argument anonymous functions named
// AnonPrefix followed by a per-parser counter.
package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yotto3s/listscope/internal/ast"
	"github.com/yotto3s/listscope/internal/scanner"
	"github.com/yotto3s/listscope/internal/token"
)

// AnonPrefix prefixes the synthesized name of every anonymous wrapper.
const AnonPrefix = "__anon_expr"

// ErrParse is the kind shared by all syntax errors.
var ErrParse = errors.New("parse error")

// Error is a syntax error with the line it was found on.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Msg)
}

func (e *Error) Unwrap() error { return ErrParse }

// Parser reads top-level entries from a token stream.
type Parser struct {
	s     *scanner.Scanner
	anon  int
	depth int // open parentheses consumed by the current entry
}

// New creates a Parser reading from r.
func New(r io.Reader) *Parser {
	return &Parser{s: scanner.New(r)}
}

// NewFromString creates a Parser over a string.
func NewFromString(src string) *Parser {
	return New(strings.NewReader(src))
}

// NextAnon returns the counter the next anonymous wrapper will be named with.
func (p *Parser) NextAnon() int { return p.anon }

// SetNextAnon continues wrapper numbering from n, so a session reading
// several streams never reuses a wrapper name.
func (p *Parser) SetNextAnon(n int) { p.anon = n }

// Line returns the scanner's current line.
func (p *Parser) Line() int { return p.s.Line() }

// ParseTopLevel parses the next entry. It returns io.EOF once the input is
// exhausted between entries. The closing parenthesis of an entry is the last
// token consumed, so interactive input is never read ahead.
func (p *Parser) ParseTopLevel() (ast.TopLevel, error) {
	p.depth = 0
	item, err := p.next()
	if err != nil {
		return nil, err
	}

	switch item.Token {
	case token.EOF:
		return nil, io.EOF
	case token.IDENT:
		return p.wrap(&ast.Variable{Name: item.Value}), nil
	case token.LPAREN:
	default:
		return nil, p.errorf(item, "expected identifier or '(', found %s", describe(item))
	}

	head, err := p.s.Peek()
	if err != nil {
		return nil, err
	}

	var entry ast.TopLevel
	switch head.Token {
	case token.IDENT:
		call, err := p.parseCallBody()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return p.wrap(call), nil
	case token.DEFINE:
		p.next()
		entry, err = p.parseDefine()
	case token.EXTERN:
		p.next()
		entry, err = p.parsePrototype()
	default:
		p.next()
		return nil, p.errorf(head, "expected identifier, define or extern, found %s", describe(head))
	}
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return entry, nil
}

// Synchronize discards the rest of a top-level form after a syntax error so
// parsing can resume at the next entry.
func (p *Parser) Synchronize() error {
	for p.depth > 0 {
		item, err := p.next()
		if err != nil {
			return err
		}
		if item.Token == token.EOF {
			p.depth = 0
		}
	}
	return nil
}

func (p *Parser) wrap(body ast.Expr) *ast.Function {
	name := fmt.Sprintf("%s%d", AnonPrefix, p.anon)
	p.anon++
	return &ast.Function{
		Proto:     &ast.Prototype{FuncName: name},
		Body:      body,
		Anonymous: true,
	}
}

func (p *Parser) parseDefine() (*ast.Function, error) {
	proto, err := p.parsePrototype()
	if err != nil {
		return nil, err
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Function{Proto: proto, Body: body}, nil
}

func (p *Parser) parsePrototype() (*ast.Prototype, error) {
	if err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	name, err := p.next()
	if err != nil {
		return nil, err
	}
	if name.Token != token.IDENT {
		return nil, p.errorf(name, "expected function name, found %s", describe(name))
	}

	proto := &ast.Prototype{FuncName: name.Value, Params: []string{}}
	for {
		item, err := p.next()
		if err != nil {
			return nil, err
		}
		switch item.Token {
		case token.IDENT:
			proto.Params = append(proto.Params, item.Value)
		case token.RPAREN:
			return proto, nil
		default:
			return nil, p.errorf(item, "expected parameter or ')', found %s", describe(item))
		}
	}
}

func (p *Parser) parseExpression() (ast.Expr, error) {
	item, err := p.next()
	if err != nil {
		return nil, err
	}
	switch item.Token {
	case token.IDENT:
		return &ast.Variable{Name: item.Value}, nil
	case token.LPAREN:
		call, err := p.parseCallBody()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return call, nil
	}
	return nil, p.errorf(item, "expected '(' or identifier, found %s", describe(item))
}

// parseCallBody parses a callee and its arguments, leaving the closing
// parenthesis unconsumed.
func (p *Parser) parseCallBody() (*ast.Call, error) {
	callee, err := p.next()
	if err != nil {
		return nil, err
	}
	if callee.Token != token.IDENT {
		return nil, p.errorf(callee, "expected identifier, found %s", describe(callee))
	}

	call := &ast.Call{Callee: callee.Value, Args: []ast.Expr{}}
	for {
		item, err := p.s.Peek()
		if err != nil {
			return nil, err
		}
		if item.Token == token.RPAREN {
			return call, nil
		}
		if item.Token == token.EOF {
			p.next()
			return nil, p.errorf(item, "unexpected end of input in call to %s", call.Callee)
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
}

func (p *Parser) expect(want token.Token) error {
	item, err := p.next()
	if err != nil {
		return err
	}
	if item.Token != want {
		return p.errorf(item, "expected %s, found %s", want, describe(item))
	}
	return nil
}

func (p *Parser) next() (*scanner.Item, error) {
	item, err := p.s.Next()
	if err != nil {
		return nil, err
	}
	switch item.Token {
	case token.LPAREN:
		p.depth++
	case token.RPAREN:
		if p.depth > 0 {
			p.depth--
		}
	}
	return item, nil
}

func (p *Parser) errorf(item *scanner.Item, format string, args ...any) error {
	return &Error{Line: item.Line, Msg: fmt.Sprintf(format, args...)}
}

func describe(item *scanner.Item) string {
	switch item.Token {
	case token.EOF:
		return "end of input"
	case token.IDENT:
		return fmt.Sprintf("identifier %q", item.Value)
	case token.LPAREN, token.RPAREN:
		return fmt.Sprintf("'%s'", item.Value)
	}
	return item.Value
}
