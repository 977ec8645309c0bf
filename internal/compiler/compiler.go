// Package compiler lowers a parsed program into a linked bytecode.Program,
// porting the original compiler's four-pass structure: collect function
// signatures, lower the entry point's top-level statements, lower every
// function body (predefined then user-defined), then fix up call addresses.
package compiler

import (
	"grimoire/internal/ast"
	"grimoire/internal/bytecode"
	"grimoire/internal/compstack"
	"grimoire/internal/types"
)

// functionCallFix records a Call instruction emitted before its target
// function's address was known; the final pass patches its Dst once every
// function body has been lowered.
type functionCallFix struct {
	programOffset int
	signature     functionSignature
}

// Compiler holds the state threaded through one Compile call. It is not
// reentrant across calls; use New for each compilation.
type Compiler struct {
	stack             *compstack.Stack
	program           *bytecode.Program
	functions         []declaredFunction
	functionCalls     []functionCallFix
	currentFunction   *declaredFunction
	predefined        []rawFunction
	functionAddresses map[functionSignature]int

	pendingOut compstack.Entry
}

// New returns a Compiler seeded with the predefined function library.
func New() *Compiler {
	predefined := predefinedFunctions()
	c := &Compiler{
		stack:             compstack.New(),
		program:           &bytecode.Program{},
		predefined:        predefined,
		functionAddresses: map[functionSignature]int{},
	}
	for _, f := range predefined {
		c.functions = append(c.functions, f.fn)
	}
	return c
}

// Compile lowers a parsed program into a linked bytecode.Program.
func Compile(stmts []ast.Stmt) (*bytecode.Program, error) {
	return New().compileProgram(stmts)
}

func (c *Compiler) emitAt(ins bytecode.Instruction, pos int) int {
	return c.program.Append(ins, pos)
}

func resolveFuncType(name types.SurfaceName) (types.CompType, error) {
	return types.Resolve(name)
}

func (c *Compiler) compileProgram(stmts []ast.Stmt) (*bytecode.Program, error) {
	// Pass 1: collect every top-level function's signature up front, so
	// forward and mutually recursive calls resolve regardless of source
	// order.
	for _, st := range stmts {
		fd, ok := st.(*ast.FunctionDef)
		if !ok {
			continue
		}
		args := make([]types.CompType, len(fd.Params))
		argNames := make([]string, len(fd.Params))
		for i, p := range fd.Params {
			t, err := resolveFuncType(p.Type)
			if err != nil {
				return nil, newError(TypeMismatch, fd.NamePos)
			}
			args[i] = t
			argNames[i] = p.Name
		}
		var ret *types.CompType
		if fd.ReturnType != nil {
			t, err := resolveFuncType(*fd.ReturnType)
			if err != nil {
				return nil, newError(TypeMismatch, fd.NamePos)
			}
			ret = &t
		}
		fn := declaredFunction{name: fd.Name, argNames: argNames, args: args, returnType: ret}
		if findFunction(c.functions, fn.name, fn.args) != nil {
			return nil, newError(Redeclaration, fd.NamePos)
		}
		c.functions = append(c.functions, fn)
	}

	// Pass 2: the entry point is every non-FunctionDef top-level statement,
	// executed in source order, followed by a Halt.
	for _, st := range stmts {
		if _, ok := st.(*ast.FunctionDef); ok {
			continue
		}
		if err := c.compileStatement(st); err != nil {
			return nil, err
		}
	}
	c.emitAt(bytecode.SyscallIns(bytecode.SyscallHalt), 0)

	// Pass 3a: predefined function bodies.
	for _, f := range c.predefined {
		addr := c.program.Len()
		sig := f.fn.signature()
		c.functionAddresses[sig] = addr
		for _, ins := range f.definition {
			c.program.Append(ins, 0)
		}
		c.program.Functions = append(c.program.Functions, bytecode.Function{
			Name: f.fn.name, ParamCount: len(f.fn.args), Addr: addr,
		})
	}

	// Pass 3b: user-defined function bodies.
	for _, st := range stmts {
		fd, ok := st.(*ast.FunctionDef)
		if !ok {
			continue
		}
		args := make([]types.CompType, len(fd.Params))
		for i, p := range fd.Params {
			t, _ := resolveFuncType(p.Type) // already validated in pass 1
			args[i] = t
		}
		fn := findFunction(c.functions, fd.Name, args)
		sig := fn.signature()
		addr := c.program.Len()
		c.functionAddresses[sig] = addr
		c.program.Functions = append(c.program.Functions, bytecode.Function{
			Name: fn.name, ParamCount: len(fn.args), Addr: addr,
		})

		c.stack = compstack.New()
		c.currentFunction = fn
		for i, p := range fd.Params {
			c.stack.Push(compstack.Entry{Role: compstack.Variable, Name: p.Name, Type: args[i]})
		}
		if fn.returnType != nil {
			c.stack.Push(compstack.Entry{Role: compstack.ReturnValue, Type: *fn.returnType})
		}
		c.stack.Push(compstack.Entry{Role: compstack.ReturnAddress, Type: types.TInt})
		stackLen := c.stack.Height()

		for _, bst := range fd.Block {
			if err := c.compileStatement(bst); err != nil {
				return nil, err
			}
		}

		if _, ok := c.stack.FindTopReturnAddress(); ok {
			// Body fell off the end without an explicit return; unwind the
			// frame and return anyway. The compile-time stack isn't kept in
			// sync here since it's about to be discarded for the next
			// function, matching the original.
			c.emitAt(bytecode.Pop(c.stack.Height()-stackLen), 0)
			c.emitAt(bytecode.Simple(bytecode.OpReturn), 0)
		}
	}

	// Pass 4: patch every call site now that all addresses are known.
	for _, fix := range c.functionCalls {
		addr, ok := c.functionAddresses[fix.signature]
		if !ok {
			return nil, newError(FunctionNotFound, 0)
		}
		c.program.Patch(fix.programOffset, addr)
	}

	c.currentFunction = nil
	return c.program, nil
}
