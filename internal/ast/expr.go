// Package ast defines the syntax tree produced by the parser and consumed
// by the compiler. Node kinds are closed sums implemented with the visitor
// pattern, so adding a lowering for a new node kind is a compile error
// everywhere one is missing rather than a silent default case.
package ast

import "grimoire/internal/types"

// Expr is any expression node. Every node carries its start byte offset for
// diagnostics.
type Expr interface {
	Accept(v ExprVisitor) (interface{}, error)
	Pos() int
}

// ExprVisitor enumerates every expression kind. Implementations provide one
// case per kind; the compiler's expression lowerer is the primary
// implementation.
type ExprVisitor interface {
	VisitIntLit(*IntLit) (interface{}, error)
	VisitDoubleLit(*DoubleLit) (interface{}, error)
	VisitBoolLit(*BoolLit) (interface{}, error)
	VisitStringLit(*StringLit) (interface{}, error)
	VisitCharLit(*CharLit) (interface{}, error)
	VisitBinary(*Binary) (interface{}, error)
	VisitVarAccess(*VarAccess) (interface{}, error)
	VisitArrayAccess(*ArrayAccess) (interface{}, error)
	VisitNewArray(*NewArray) (interface{}, error)
	VisitPropertyAccess(*PropertyAccess) (interface{}, error)
	VisitFunctionCall(*FunctionCall) (interface{}, error)
	VisitTernary(*Ternary) (interface{}, error)
}

type exprBase struct {
	pos int
}

func (e exprBase) Pos() int { return e.pos }

// IntLit is a decimal, hex (0x..), or binary (0b..) integer literal. Int is
// 32-bit per the language's surface type.
type IntLit struct {
	exprBase
	Value int32
}

func NewIntLit(pos int, v int32) *IntLit { return &IntLit{exprBase{pos}, v} }
func (n *IntLit) Accept(v ExprVisitor) (interface{}, error) { return v.VisitIntLit(n) }

// DoubleLit is a floating point literal in any of the grammar's four forms
// (1.1, 1., .1, 1e1).
type DoubleLit struct {
	exprBase
	Value float64
}

func NewDoubleLit(pos int, v float64) *DoubleLit { return &DoubleLit{exprBase{pos}, v} }
func (n *DoubleLit) Accept(v ExprVisitor) (interface{}, error) { return v.VisitDoubleLit(n) }

type BoolLit struct {
	exprBase
	Value bool
}

func NewBoolLit(pos int, v bool) *BoolLit { return &BoolLit{exprBase{pos}, v} }
func (n *BoolLit) Accept(v ExprVisitor) (interface{}, error) { return v.VisitBoolLit(n) }

// StringLit lowers to an allocated Array(Char); Value holds the decoded
// string (escapes already resolved by the lexer).
type StringLit struct {
	exprBase
	Value string
}

func NewStringLit(pos int, v string) *StringLit { return &StringLit{exprBase{pos}, v} }
func (n *StringLit) Accept(v ExprVisitor) (interface{}, error) { return v.VisitStringLit(n) }

type CharLit struct {
	exprBase
	Value rune
}

func NewCharLit(pos int, v rune) *CharLit { return &CharLit{exprBase{pos}, v} }
func (n *CharLit) Accept(v ExprVisitor) (interface{}, error) { return v.VisitCharLit(n) }

// Binary is a two-operand expression; OpPos is the operator token's start
// offset, used in type-mismatch diagnostics.
type Binary struct {
	exprBase
	Left   Expr
	Op     types.BinOp
	OpPos  int
	Right  Expr
}

func NewBinary(pos int, left Expr, op types.BinOp, opPos int, right Expr) *Binary {
	return &Binary{exprBase{pos}, left, op, opPos, right}
}
func (n *Binary) Accept(v ExprVisitor) (interface{}, error) { return v.VisitBinary(n) }

type VarAccess struct {
	exprBase
	Name string
}

func NewVarAccess(pos int, name string) *VarAccess { return &VarAccess{exprBase{pos}, name} }
func (n *VarAccess) Accept(v ExprVisitor) (interface{}, error) { return v.VisitVarAccess(n) }

type ArrayAccess struct {
	exprBase
	Array Expr
	Index Expr
}

func NewArrayAccess(pos int, arr, idx Expr) *ArrayAccess {
	return &ArrayAccess{exprBase{pos}, arr, idx}
}
func (n *ArrayAccess) Accept(v ExprVisitor) (interface{}, error) { return v.VisitArrayAccess(n) }

// NewArray is Grimoire's `new TYPE[lengthExpr]` array-allocation surface
// syntax (see SPEC_FULL.md §1.1).
type NewArray struct {
	exprBase
	Elem   types.SurfaceName
	Length Expr
}

func NewNewArray(pos int, elem types.SurfaceName, length Expr) *NewArray {
	return &NewArray{exprBase{pos}, elem, length}
}
func (n *NewArray) Accept(v ExprVisitor) (interface{}, error) { return v.VisitNewArray(n) }

// PropertyAccess supports only `.size` on arrays and strings.
type PropertyAccess struct {
	exprBase
	Object   Expr
	Name     string
	NamePos  int
}

func NewPropertyAccess(pos int, obj Expr, name string, namePos int) *PropertyAccess {
	return &PropertyAccess{exprBase{pos}, obj, name, namePos}
}
func (n *PropertyAccess) Accept(v ExprVisitor) (interface{}, error) { return v.VisitPropertyAccess(n) }

type FunctionCall struct {
	exprBase
	Name    string
	NamePos int
	Args    []Expr
}

func NewFunctionCall(pos int, name string, namePos int, args []Expr) *FunctionCall {
	return &FunctionCall{exprBase{pos}, name, namePos, args}
}
func (n *FunctionCall) Accept(v ExprVisitor) (interface{}, error) { return v.VisitFunctionCall(n) }

// Ternary is `if COND { TRUE } else { FALSE }` used as an expression; both
// arms must yield the same compile-time type.
type Ternary struct {
	exprBase
	Condition Expr
	IfTrue    Expr
	IfFalse   Expr
}

func NewTernary(pos int, cond, ifTrue, ifFalse Expr) *Ternary {
	return &Ternary{exprBase{pos}, cond, ifTrue, ifFalse}
}
func (n *Ternary) Accept(v ExprVisitor) (interface{}, error) { return v.VisitTernary(n) }
