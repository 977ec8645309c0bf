// Package parser builds an AST from a token stream, implementing the
// spellcode grammar's precedence levels (lowest to highest: || ; && ;
// comparisons ; | ; ^ ; & ; shifts ; + - ; * / % ; then the postfix/primary
// tier: parens, calls, property access, array access, ternary, literals).
package parser

import (
	"fmt"

	"grimoire/internal/ast"
	"grimoire/internal/lexer"
	"grimoire/internal/types"
)

// Parser is a hand-written recursive-descent / precedence-climbing parser
// over a fully materialized token slice.
type Parser struct {
	toks []lexer.Token
	pos  int
}

// Parse tokenizes and parses src into a sequence of top-level statements.
func Parse(src string) ([]ast.Stmt, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseProgram()
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if !p.at(k) {
		return lexer.Token{}, fmt.Errorf("at offset %d: expected %s, found %s", p.cur().Pos, k, p.cur().Kind)
	}
	return p.advance(), nil
}

func (p *Parser) parseProgram() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for !p.at(lexer.EOF) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		for p.at(lexer.Semicolon) {
			p.advance()
		}
	}
	return stmts, nil
}

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for !p.at(lexer.RBrace) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		for p.at(lexer.Semicolon) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.cur().Kind {
	case lexer.KwVar:
		return p.parseVarDecl()
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwFor:
		return p.parseFor()
	case lexer.KwWhile:
		return p.parseWhile()
	case lexer.KwFun:
		return p.parseFunctionDef()
	case lexer.KwReturn:
		return p.parseReturn()
	default:
		return p.parseExprOrAssignment()
	}
}

func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	pos := p.advance().Pos // 'var'
	name, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Assign); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return ast.NewVarDecl(pos, name.Text, name.Pos, value), nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	pos := p.advance().Pos // 'if'
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseBlock []ast.Stmt
	if p.at(lexer.KwElse) {
		p.advance()
		elseBlock, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIf(pos, cond, block, elseBlock), nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	pos := p.advance().Pos // 'for'

	// Disambiguate `for ( init ; cond ; inc ) block` from
	// `for ident in array block` by checking for '('.
	if p.at(lexer.LParen) {
		p.advance()
		init, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Semicolon); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Semicolon); err != nil {
			return nil, err
		}
		inc, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return ast.NewCFor(pos, init, cond, inc, block), nil
	}

	name, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KwIn); err != nil {
		return nil, err
	}
	arr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewForEach(pos, name.Text, name.Pos, arr, block), nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	pos := p.advance().Pos // 'while'
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(pos, cond, block), nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	pos := p.advance().Pos // 'return'
	if p.at(lexer.Semicolon) || p.at(lexer.RBrace) || p.at(lexer.EOF) {
		return ast.NewReturn(pos, nil), nil
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return ast.NewReturn(pos, value), nil
}

func (p *Parser) parseFunctionDef() (ast.Stmt, error) {
	pos := p.advance().Pos // 'fun'
	name, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(lexer.RParen) {
		pname, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		ptype, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: pname.Text, Type: ptype})
		if p.at(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	var returnType *types.SurfaceName
	if p.at(lexer.Arrow) {
		p.advance()
		rt, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		returnType = &rt
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewFunctionDef(pos, name.Text, name.Pos, params, returnType, block), nil
}

// parseExprOrAssignment handles both a bare expression statement and
// `LEFT = VALUE` (simple-variable or array-element assignment), which share
// a grammar prefix: `left:expression() "=" value:expression()`.
func (p *Parser) parseExprOrAssignment() (ast.Stmt, error) {
	pos := p.cur().Pos
	left, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.Assign) {
		p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return ast.NewAssignment(pos, left, value), nil
	}
	return ast.NewExprStmt(pos, left), nil
}

func (p *Parser) parseTypeName() (types.SurfaceName, error) {
	var base types.SurfaceName
	switch p.cur().Kind {
	case lexer.Ident:
		name := p.advance().Text
		switch name {
		case "int", "double", "char", "string", "bool":
			base = types.SurfaceName{Leaf: name}
		default:
			return types.SurfaceName{}, fmt.Errorf("at offset %d: unknown type name %q", p.cur().Pos, name)
		}
	default:
		return types.SurfaceName{}, fmt.Errorf("at offset %d: expected type name, found %s", p.cur().Pos, p.cur().Kind)
	}
	for p.at(lexer.LBracket) && p.peekIsArraySuffix() {
		p.advance()
		if _, err := p.expect(lexer.RBracket); err != nil {
			return types.SurfaceName{}, err
		}
		inner := base
		base = types.SurfaceName{Elem: &inner}
	}
	return base, nil
}

// peekIsArraySuffix distinguishes a type's trailing "[]" (array-of) from a
// "new"-expression's "[lengthExpr]", both of which start with '['.
func (p *Parser) peekIsArraySuffix() bool {
	return p.toks[p.pos+1].Kind == lexer.RBracket
}
