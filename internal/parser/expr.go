package parser

import (
	"fmt"

	"grimoire/internal/ast"
	"grimoire/internal/lexer"
	"grimoire/internal/types"
)

// precLevel is one tier of the precedence table, ordered lowest to highest,
// mirroring the peg grammar's `precedence!` blocks.
type precLevel struct {
	ops map[lexer.Kind]types.BinOp
}

var precLevels = []precLevel{
	{map[lexer.Kind]types.BinOp{lexer.OrOr: types.OpBoolOr}},
	{map[lexer.Kind]types.BinOp{lexer.AndAnd: types.OpBoolAnd}},
	{map[lexer.Kind]types.BinOp{
		lexer.Lt: types.OpLt, lexer.Le: types.OpLe, lexer.EqEq: types.OpEq,
		lexer.NotEq: types.OpNe, lexer.Ge: types.OpGe, lexer.Gt: types.OpGt,
	}},
	{map[lexer.Kind]types.BinOp{lexer.Pipe: types.OpOr}},
	{map[lexer.Kind]types.BinOp{lexer.Caret: types.OpXor}},
	{map[lexer.Kind]types.BinOp{lexer.Amp: types.OpAnd}},
	{map[lexer.Kind]types.BinOp{lexer.Shl: types.OpShl, lexer.Shr: types.OpShr, lexer.Shrl: types.OpShrl}},
	{map[lexer.Kind]types.BinOp{lexer.Plus: types.OpPlus, lexer.Minus: types.OpMinus}},
	{map[lexer.Kind]types.BinOp{lexer.Star: types.OpTimes, lexer.Slash: types.OpDivide, lexer.Percent: types.OpMod}},
}

func (p *Parser) parseExpression() (ast.Expr, error) {
	return p.parseLevel(0)
}

func (p *Parser) parseLevel(level int) (ast.Expr, error) {
	if level >= len(precLevels) {
		return p.parsePostfix()
	}
	left, err := p.parseLevel(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := precLevels[level].ops[p.cur().Kind]
		if !ok {
			return left, nil
		}
		opPos := p.advance().Pos
		right, err := p.parseLevel(level + 1)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(left.Pos(), left, op, opPos, right)
	}
}

// parsePostfix parses a primary expression followed by any chain of `.name`
// and `[index]` postfixes.
func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case lexer.Dot:
			p.advance()
			name, err := p.expect(lexer.Ident)
			if err != nil {
				return nil, err
			}
			e = ast.NewPropertyAccess(e.Pos(), e, name.Text, name.Pos)
		case lexer.LBracket:
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBracket); err != nil {
				return nil, err
			}
			e = ast.NewArrayAccess(e.Pos(), e, idx)
		default:
			return e, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Minus:
		// A leading '-' directly against a number literal is the literal's
		// sign, not a unary-minus expression: the grammar has no unary
		// minus, only signed int/double literals.
		next := p.toks[p.pos+1]
		if next.Kind == lexer.IntLit {
			p.advance()
			p.advance()
			v, err := lexer.ParseIntText(next.Text)
			if err != nil {
				return nil, err
			}
			return ast.NewIntLit(tok.Pos, -v), nil
		}
		if next.Kind == lexer.DoubleLit {
			p.advance()
			p.advance()
			v, err := parseDoubleText(next.Text)
			if err != nil {
				return nil, err
			}
			return ast.NewDoubleLit(tok.Pos, -v), nil
		}
		return nil, fmt.Errorf("at offset %d: unexpected '-'", tok.Pos)

	case lexer.IntLit:
		p.advance()
		v, err := lexer.ParseIntText(tok.Text)
		if err != nil {
			return nil, err
		}
		return ast.NewIntLit(tok.Pos, v), nil

	case lexer.DoubleLit:
		p.advance()
		v, err := parseDoubleText(tok.Text)
		if err != nil {
			return nil, err
		}
		return ast.NewDoubleLit(tok.Pos, v), nil

	case lexer.KwTrue:
		p.advance()
		return ast.NewBoolLit(tok.Pos, true), nil
	case lexer.KwFalse:
		p.advance()
		return ast.NewBoolLit(tok.Pos, false), nil

	case lexer.StringLit:
		p.advance()
		return ast.NewStringLit(tok.Pos, tok.Text), nil

	case lexer.CharLit:
		p.advance()
		return ast.NewCharLit(tok.Pos, []rune(tok.Text)[0]), nil

	case lexer.LParen:
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return e, nil

	case lexer.KwIf:
		return p.parseTernary()

	case lexer.KwNew:
		return p.parseNewArray()

	case lexer.Ident:
		p.advance()
		if p.at(lexer.LParen) {
			return p.parseCallArgs(tok.Text, tok.Pos)
		}
		return ast.NewVarAccess(tok.Pos, tok.Text), nil
	}

	return nil, fmt.Errorf("at offset %d: unexpected token %s", tok.Pos, tok.Kind)
}

func (p *Parser) parseTernary() (ast.Expr, error) {
	pos := p.advance().Pos // 'if'
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	ifTrue, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KwElse); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	ifFalse, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return ast.NewTernary(pos, cond, ifTrue, ifFalse), nil
}

func (p *Parser) parseNewArray() (ast.Expr, error) {
	pos := p.advance().Pos // 'new'
	elem, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBracket); err != nil {
		return nil, err
	}
	length, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBracket); err != nil {
		return nil, err
	}
	return ast.NewNewArray(pos, elem, length), nil
}

func (p *Parser) parseCallArgs(name string, pos int) (ast.Expr, error) {
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.at(lexer.RParen) {
		a, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.at(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	return ast.NewFunctionCall(pos, name, pos, args), nil
}

func parseDoubleText(text string) (float64, error) {
	// Normalize the grammar's "1." and ".1" forms, which Go's strconv
	// handles directly, so this is mostly pass-through; kept as a named
	// helper in case a future form needs massaging before ParseFloat.
	return parseFloat(text)
}
