package compiler

import (
	"bytes"
	"testing"

	"grimoire/internal/bytecode"
	"grimoire/internal/parser"
	"grimoire/internal/vm"
)

// compileSrc parses and compiles src, failing the test on any error.
func compileSrc(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	stmts, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	prog, err := Compile(stmts)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return prog
}

// execToHalt compiles and runs src to completion, returning the VM so the
// caller can inspect its final stack, and whatever it wrote to stdout.
func execToHalt(t *testing.T, src string) (*vm.VM, string) {
	t.Helper()
	prog := compileSrc(t, src)
	m := vm.New(prog)
	out := &bytes.Buffer{}
	m.Out = out
	for {
		outcome, sc, err := m.Tick()
		if err != nil {
			t.Fatalf("runtime trap: %v", err)
		}
		if outcome == vm.Syscall {
			if sc == bytecode.SyscallHalt {
				return m, out.String()
			}
			if sc == bytecode.SyscallPrintChar {
				continue // the VM has already written the character to m.Out
			}
			t.Fatalf("unexpected syscall %v", sc)
		}
	}
}

func TestCompileSimpleArithmetic(t *testing.T) {
	m, _ := execToHalt(t, "var x = 1 + 1;")
	if len(m.Stack) != 1 {
		t.Fatalf("stack = %v, want one entry (x)", m.Stack)
	}
	if m.Stack[0] != vm.Int(2) {
		t.Errorf("x = %v, want Int(2)", m.Stack[0])
	}
}

func TestCompileTernary(t *testing.T) {
	m, _ := execToHalt(t, "var x = if true { 1 } else { 2 };")
	if m.Stack[0] != vm.Int(1) {
		t.Errorf("x = %v, want Int(1)", m.Stack[0])
	}
}

func TestCompileWhileLoop(t *testing.T) {
	m, _ := execToHalt(t, `
		var i = 0;
		while i < 5 {
			i = i + 1;
		}
	`)
	if m.Stack[0] != vm.Int(5) {
		t.Errorf("i = %v, want Int(5)", m.Stack[0])
	}
}

func TestCompileCFor(t *testing.T) {
	m, _ := execToHalt(t, `
		var total = 0;
		for (var i = 0; i < 4; i = i + 1) {
			total = total + i;
		}
	`)
	if m.Stack[0] != vm.Int(6) {
		t.Errorf("total = %v, want Int(6)", m.Stack[0])
	}
}

func TestCompileFunctionCall(t *testing.T) {
	m, _ := execToHalt(t, `
		fun add(a: int, b: int) -> int {
			return a + b;
		}
		var result = add(2, 3);
	`)
	if len(m.Stack) != 1 || m.Stack[0] != vm.Int(5) {
		t.Fatalf("stack = %v, want [Int(5)]", m.Stack)
	}
}

func TestCompileRecursiveFunction(t *testing.T) {
	m, _ := execToHalt(t, `
		fun fact(n: int) -> int {
			return if n <= 1 { 1 } else { n * fact(n - 1) };
		}
		var result = fact(5);
	`)
	if m.Stack[0] != vm.Int(120) {
		t.Errorf("fact(5) = %v, want Int(120)", m.Stack[0])
	}
}

func TestCompileArrayAllocAndAccess(t *testing.T) {
	m, _ := execToHalt(t, `
		var xs = new int[3];
		xs[0] = 42;
		var y = xs[0];
	`)
	y := m.Stack[len(m.Stack)-1]
	if y != vm.Int(42) {
		t.Errorf("y = %v, want Int(42)", y)
	}
}

func TestCompileIfElseBranching(t *testing.T) {
	m, _ := execToHalt(t, `
		var x = 0;
		if x == 0 {
			x = 10;
		} else {
			x = 20;
		}
	`)
	if m.Stack[0] != vm.Int(10) {
		t.Errorf("x = %v, want Int(10)", m.Stack[0])
	}
}

func TestCompilePutcWritesChar(t *testing.T) {
	_, out := execToHalt(t, `putc('H');`)
	if out != "H" {
		t.Errorf("output = %q, want %q", out, "H")
	}
}

func TestCompileStringSizeProperty(t *testing.T) {
	m, _ := execToHalt(t, `var n = "hi".size;`)
	if m.Stack[0] != vm.Int(2) {
		t.Errorf("n = %v, want Int(2)", m.Stack[0])
	}
}

func TestCompileWrongNumberOfArgumentsError(t *testing.T) {
	stmts, err := parser.Parse(`
		fun f(a: int) { return; }
		f(1, 2);
	`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = Compile(stmts)
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != WrongNumberOfArguments {
		t.Fatalf("error = %v, want WrongNumberOfArguments calling f with the wrong argument count", err)
	}
}

func TestCompileRedeclarationError(t *testing.T) {
	stmts, err := parser.Parse("var x = 1; var x = 2;")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = Compile(stmts)
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != Redeclaration {
		t.Fatalf("error = %v, want Redeclaration", err)
	}
}

func TestCompileVariableNotFoundError(t *testing.T) {
	stmts, err := parser.Parse("y = 1;")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = Compile(stmts)
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != VariableNotFound {
		t.Fatalf("error = %v, want VariableNotFound", err)
	}
}

func TestCompileTypeMismatchError(t *testing.T) {
	stmts, err := parser.Parse("var x = 1; x = 1.5;")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = Compile(stmts)
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != TypeMismatch {
		t.Fatalf("error = %v, want TypeMismatch", err)
	}
}

func TestCompileForEachUnsupported(t *testing.T) {
	stmts, err := parser.Parse(`
		var arr = new int[3];
		for x in arr {
			var y = x;
		}
	`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = Compile(stmts)
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != ForEachUnsupported {
		t.Fatalf("error = %v, want ForEachUnsupported", err)
	}
}

func TestCompileReturnOutsideFunctionError(t *testing.T) {
	stmts, err := parser.Parse("return;")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = Compile(stmts)
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != NotInFunction {
		t.Fatalf("error = %v, want NotInFunction", err)
	}
}

func TestCompileNestedFunctionDefRejected(t *testing.T) {
	stmts, err := parser.Parse(`
		if true {
			fun nested() { return; }
		}
	`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = Compile(stmts)
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != FunctionsMustBeTopLevel {
		t.Fatalf("error = %v, want FunctionsMustBeTopLevel", err)
	}
}

func TestErrorKindStringUnknown(t *testing.T) {
	k := ErrorKind(999)
	if k.String() == "" {
		t.Error("unknown ErrorKind.String() should not be empty")
	}
}
