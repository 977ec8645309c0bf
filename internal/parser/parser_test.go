package parser

import (
	"testing"

	"grimoire/internal/ast"
)

func mustParse(t *testing.T, src string) []ast.Stmt {
	t.Helper()
	stmts, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): unexpected error: %v", src, err)
	}
	return stmts
}

func TestParseVarDecl(t *testing.T) {
	stmts := mustParse(t, "var x = 5;")
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	decl, ok := stmts[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("statement type = %T, want *ast.VarDecl", stmts[0])
	}
	if decl.Name != "x" {
		t.Errorf("VarDecl.Name = %q, want %q", decl.Name, "x")
	}
	lit, ok := decl.Value.(*ast.IntLit)
	if !ok || lit.Value != 5 {
		t.Errorf("VarDecl.Value = %#v, want IntLit(5)", decl.Value)
	}
}

func TestParseAssignment(t *testing.T) {
	stmts := mustParse(t, "x = 10;")
	assign, ok := stmts[0].(*ast.Assignment)
	if !ok {
		t.Fatalf("statement type = %T, want *ast.Assignment", stmts[0])
	}
	if _, ok := assign.Left.(*ast.VarAccess); !ok {
		t.Errorf("Assignment.Left = %#v, want *ast.VarAccess", assign.Left)
	}
}

func TestParseArrayElementAssignment(t *testing.T) {
	stmts := mustParse(t, "arr[0] = 1;")
	assign, ok := stmts[0].(*ast.Assignment)
	if !ok {
		t.Fatalf("statement type = %T, want *ast.Assignment", stmts[0])
	}
	if _, ok := assign.Left.(*ast.ArrayAccess); !ok {
		t.Errorf("Assignment.Left = %#v, want *ast.ArrayAccess", assign.Left)
	}
}

func TestParseIfElse(t *testing.T) {
	stmts := mustParse(t, "if x { y = 1; } else { y = 2; }")
	ifStmt, ok := stmts[0].(*ast.If)
	if !ok {
		t.Fatalf("statement type = %T, want *ast.If", stmts[0])
	}
	if len(ifStmt.Block) != 1 || len(ifStmt.ElseBlock) != 1 {
		t.Errorf("If blocks = (%d, %d), want (1, 1)", len(ifStmt.Block), len(ifStmt.ElseBlock))
	}
}

func TestParseWhile(t *testing.T) {
	stmts := mustParse(t, "while i < 5 { i = i + 1; }")
	if _, ok := stmts[0].(*ast.While); !ok {
		t.Fatalf("statement type = %T, want *ast.While", stmts[0])
	}
}

func TestParseCFor(t *testing.T) {
	stmts := mustParse(t, "for (var i = 0; i < 5; i = i + 1) { x = i; }")
	cfor, ok := stmts[0].(*ast.CFor)
	if !ok {
		t.Fatalf("statement type = %T, want *ast.CFor", stmts[0])
	}
	if cfor.Init == nil || cfor.Condition == nil || cfor.Increment == nil {
		t.Error("CFor should have Init, Condition, and Increment all populated")
	}
}

func TestParseForEach(t *testing.T) {
	stmts := mustParse(t, "for x in arr { y = x; }")
	if _, ok := stmts[0].(*ast.ForEach); !ok {
		t.Fatalf("statement type = %T, want *ast.ForEach", stmts[0])
	}
}

func TestParseFunctionDef(t *testing.T) {
	stmts := mustParse(t, "fun add(a: int, b: int) -> int { return a + b; }")
	fn, ok := stmts[0].(*ast.FunctionDef)
	if !ok {
		t.Fatalf("statement type = %T, want *ast.FunctionDef", stmts[0])
	}
	if fn.Name != "add" {
		t.Errorf("FunctionDef.Name = %q, want %q", fn.Name, "add")
	}
	if len(fn.Params) != 2 {
		t.Fatalf("got %d params, want 2", len(fn.Params))
	}
	if fn.ReturnType == nil || fn.ReturnType.Leaf != "int" {
		t.Errorf("ReturnType = %#v, want leaf int", fn.ReturnType)
	}
}

func TestParseFunctionDefVoid(t *testing.T) {
	stmts := mustParse(t, "fun noop() { return; }")
	fn, ok := stmts[0].(*ast.FunctionDef)
	if !ok {
		t.Fatalf("statement type = %T, want *ast.FunctionDef", stmts[0])
	}
	if fn.ReturnType != nil {
		t.Errorf("void function ReturnType = %#v, want nil", fn.ReturnType)
	}
}

func TestParseArrayTypeName(t *testing.T) {
	stmts := mustParse(t, "fun f(xs: int[]) { return; }")
	fn := stmts[0].(*ast.FunctionDef)
	pt := fn.Params[0].Type
	if pt.Elem == nil || pt.Elem.Leaf != "int" {
		t.Errorf("param type = %#v, want array-of-int", pt)
	}
}

func TestParseBinaryPrecedence(t *testing.T) {
	// 1 + 2 * 3 should parse as 1 + (2 * 3): Binary(+, 1, Binary(*, 2, 3))
	stmts := mustParse(t, "x = 1 + 2 * 3;")
	assign := stmts[0].(*ast.Assignment)
	top, ok := assign.Value.(*ast.Binary)
	if !ok {
		t.Fatalf("Value type = %T, want *ast.Binary", assign.Value)
	}
	if top.Op.String() != "+" {
		t.Errorf("top operator = %v, want +", top.Op)
	}
	right, ok := top.Right.(*ast.Binary)
	if !ok || right.Op.String() != "*" {
		t.Errorf("right operand = %#v, want a * Binary", top.Right)
	}
}

func TestParseTernary(t *testing.T) {
	stmts := mustParse(t, "x = if cond { 1 } else { 2 };")
	assign := stmts[0].(*ast.Assignment)
	if _, ok := assign.Value.(*ast.Ternary); !ok {
		t.Fatalf("Value type = %T, want *ast.Ternary", assign.Value)
	}
}

func TestParseNewArray(t *testing.T) {
	stmts := mustParse(t, "var xs = new int[10];")
	decl := stmts[0].(*ast.VarDecl)
	newArr, ok := decl.Value.(*ast.NewArray)
	if !ok {
		t.Fatalf("Value type = %T, want *ast.NewArray", decl.Value)
	}
	if newArr.Elem.Leaf != "int" {
		t.Errorf("NewArray.Elem = %#v, want leaf int", newArr.Elem)
	}
}

func TestParseArrayAccessVsNewArrayDisambiguation(t *testing.T) {
	// Array-access postfix "arr[i]" and new-array's "[length]" both start
	// with '[' but are only ambiguous in the type-name position; as an
	// expression postfix this must always parse as ArrayAccess.
	stmts := mustParse(t, "y = arr[i];")
	assign := stmts[0].(*ast.Assignment)
	if _, ok := assign.Value.(*ast.ArrayAccess); !ok {
		t.Fatalf("Value type = %T, want *ast.ArrayAccess", assign.Value)
	}
}

func TestParseFunctionCall(t *testing.T) {
	stmts := mustParse(t, "add(1, 2);")
	exprStmt, ok := stmts[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("statement type = %T, want *ast.ExprStmt", stmts[0])
	}
	call, ok := exprStmt.Expr.(*ast.FunctionCall)
	if !ok {
		t.Fatalf("Expr type = %T, want *ast.FunctionCall", exprStmt.Expr)
	}
	if call.Name != "add" || len(call.Args) != 2 {
		t.Errorf("call = %#v, want add(_, _)", call)
	}
}

func TestParsePropertyAccess(t *testing.T) {
	stmts := mustParse(t, "y = s.size;")
	assign := stmts[0].(*ast.Assignment)
	prop, ok := assign.Value.(*ast.PropertyAccess)
	if !ok {
		t.Fatalf("Value type = %T, want *ast.PropertyAccess", assign.Value)
	}
	if prop.Name != "size" {
		t.Errorf("PropertyAccess.Name = %q, want %q", prop.Name, "size")
	}
}

func TestParseNegativeLiterals(t *testing.T) {
	stmts := mustParse(t, "var x = -5;")
	decl := stmts[0].(*ast.VarDecl)
	lit, ok := decl.Value.(*ast.IntLit)
	if !ok || lit.Value != -5 {
		t.Errorf("Value = %#v, want IntLit(-5)", decl.Value)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"var x = ;",
		"if x { ",
		"fun f(a int) { }", // missing colon
		"1 +",
	}
	for _, src := range tests {
		if _, err := Parse(src); err == nil {
			t.Errorf("Parse(%q): expected error, got none", src)
		}
	}
}
