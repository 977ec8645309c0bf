package compiler

import (
	"grimoire/internal/ast"
	"grimoire/internal/bytecode"
	"grimoire/internal/compstack"
	"grimoire/internal/types"
)

func (c *Compiler) compileStatement(st ast.Stmt) error {
	return st.Accept(c)
}

// VisitExprStmt lowers an expression evaluated for its side effects, then
// pops its result (every expression leaves exactly one value on top).
func (c *Compiler) VisitExprStmt(n *ast.ExprStmt) error {
	_, err := c.compileExpression(n.Expr, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return err
	}
	c.emitAt(bytecode.Pop(1), n.Pos())
	c.stack.Pop()
	return nil
}

// VisitVarDecl lowers `var NAME = VALUE`, rejecting redeclaration of a name
// already bound anywhere in the current stack (the compile-time stack has
// no separate notion of lexical scope; a variable is in scope for as long
// as its entry remains on the stack).
func (c *Compiler) VisitVarDecl(n *ast.VarDecl) error {
	if _, _, ok := c.stack.FindVariable(n.Name); ok {
		return newError(Redeclaration, n.NamePos)
	}
	t, err := c.compileExpression(n.Value, compstack.Entry{Role: compstack.Variable, Name: n.Name})
	if err != nil {
		return err
	}
	_ = t
	return nil
}

// VisitAssignment lowers both supported assignment targets. A simple
// variable target writes directly into the variable's existing stack slot;
// an array-element target re-copies the array handle, index, and new value
// onto the top of the stack for SetA's intrinsic 3-operand shape.
//
// The simple-variable target slot offset is FindVariable's 1-based
// offset-from-top minus one, queried after the new value has already been
// pushed by compileExpression onto the stack. The offset-minus-one is
// carried verbatim from the original lowering.
func (c *Compiler) VisitAssignment(n *ast.Assignment) error {
	switch left := n.Left.(type) {
	case *ast.VarAccess:
		tpe, err := c.compileExpression(n.Value, compstack.Entry{Role: compstack.Temp})
		if err != nil {
			return err
		}
		idx, valueType, ok := c.stack.FindVariable(left.Name)
		if !ok {
			return newError(VariableNotFound, left.Pos())
		}
		if !tpe.Equal(valueType) {
			return newError(TypeMismatch, n.Pos())
		}
		c.emitAt(bytecode.Set(idx-1), n.Pos())
		c.stack.Pop()
		return nil

	case *ast.ArrayAccess:
		tpe, err := c.compileExpression(n.Value, compstack.Entry{Role: compstack.Temp})
		if err != nil {
			return err
		}
		valueAddr := c.stack.Height() - 1

		arrType, err := c.compileExpression(left.Array, compstack.Entry{Role: compstack.Temp})
		if err != nil {
			return err
		}
		inner, ok := elementType(arrType)
		if !ok {
			return newError(TypeMismatch, left.Array.Pos())
		}
		if !inner.Equal(tpe) {
			return newError(TypeMismatch, n.Pos())
		}
		arrayAddr := c.stack.Height() - 1

		idxType, err := c.compileExpression(left.Index, compstack.Entry{Role: compstack.Temp})
		if err != nil {
			return err
		}
		if idxType.Kind != types.Int {
			return newError(TypeMismatch, left.Index.Pos())
		}
		indexAddr := c.stack.Height() - 1

		c.emitAt(bytecode.Copy(c.stack.Height()-valueAddr), n.Pos())
		c.stack.PushTemp(tpe)
		c.emitAt(bytecode.Copy(c.stack.Height()-indexAddr), n.Pos())
		c.stack.PushTemp(types.TInt)
		c.emitAt(bytecode.Copy(c.stack.Height()-arrayAddr), n.Pos())
		c.stack.PushTemp(arrType)

		c.emitAt(bytecode.Simple(bytecode.OpSetA), n.Pos())
		c.stack.Pop()
		c.stack.Pop()
		c.stack.Pop()
		return nil

	default:
		return newError(CannotAssign, n.Pos())
	}
}

func (c *Compiler) VisitIf(n *ast.If) error {
	condType, err := c.compileExpression(n.Condition, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return err
	}
	if condType.Kind != types.Bool {
		return newError(TypeMismatch, n.Condition.Pos())
	}
	branchFalse := c.emitAt(bytecode.Brz(0), n.Pos())
	c.stack.Pop()

	stackLen := c.stack.Height()
	for _, st := range n.Block {
		if err := c.compileStatement(st); err != nil {
			return err
		}
	}
	diff := c.stack.Height() - stackLen
	c.emitAt(bytecode.Pop(diff), n.Pos())
	c.stack.PopN(diff)

	c.program.Patch(branchFalse, c.program.Len())

	if n.ElseBlock != nil {
		jumpAfterElse := c.emitAt(bytecode.Jmp(0), n.Pos())
		c.program.Patch(branchFalse, c.program.Len())

		for _, st := range n.ElseBlock {
			if err := c.compileStatement(st); err != nil {
				return err
			}
		}
		diff := c.stack.Height() - stackLen
		c.emitAt(bytecode.Pop(diff), n.Pos())
		c.stack.PopN(diff)

		c.program.Patch(jumpAfterElse, c.program.Len())
	}
	return nil
}

func (c *Compiler) VisitWhile(n *ast.While) error {
	stackLenStart := c.stack.Height()
	start := c.program.Len()

	condType, err := c.compileExpression(n.Condition, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return err
	}
	if condType.Kind != types.Bool {
		return newError(TypeMismatch, n.Condition.Pos())
	}

	jumpAfter := c.emitAt(bytecode.Brz(0), n.Pos())
	c.stack.Pop()
	conditionPop := c.stack.Height() - stackLenStart

	for _, st := range n.Block {
		if err := c.compileStatement(st); err != nil {
			return err
		}
	}

	stPop := c.stack.Height() - stackLenStart
	c.emitAt(bytecode.Pop(stPop), n.Pos())
	c.stack.PopN(stPop)
	c.emitAt(bytecode.Jmp(start), n.Pos())

	c.program.Patch(jumpAfter, c.program.Len())

	// The body's unwind already brought the compile-time stack back to
	// stackLenStart; only the runtime still holds the condition residue.
	c.emitAt(bytecode.Pop(conditionPop), n.Pos())
	return nil
}

func (c *Compiler) VisitCFor(n *ast.CFor) error {
	stackLenStart := c.stack.Height()
	if n.Init != nil {
		if err := c.compileStatement(n.Init); err != nil {
			return err
		}
	}

	stackLenCond := c.stack.Height()
	start := c.program.Len()

	condType, err := c.compileExpression(n.Condition, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return err
	}
	if condType.Kind != types.Bool {
		return newError(TypeMismatch, n.Condition.Pos())
	}

	jumpAfter := c.emitAt(bytecode.Brz(0), n.Pos())
	c.stack.Pop()
	conditionPop := c.stack.Height() - stackLenStart

	for _, st := range n.Block {
		if err := c.compileStatement(st); err != nil {
			return err
		}
	}
	if n.Increment != nil {
		if err := c.compileStatement(n.Increment); err != nil {
			return err
		}
	}

	stPop := c.stack.Height() - stackLenCond
	c.emitAt(bytecode.Pop(stPop), n.Pos())
	c.stack.PopN(stPop)
	c.emitAt(bytecode.Jmp(start), n.Pos())

	c.program.Patch(jumpAfter, c.program.Len())

	c.emitAt(bytecode.Pop(conditionPop), n.Pos())
	c.stack.PopN(stackLenCond - stackLenStart)
	return nil
}

// VisitForEach is parsed but not lowered: the original compiler's handling
// is a literal todo!() (see SPEC_FULL.md §1.1).
func (c *Compiler) VisitForEach(n *ast.ForEach) error {
	return newError(ForEachUnsupported, n.Pos())
}

func (c *Compiler) VisitReturn(n *ast.Return) error {
	if c.currentFunction == nil {
		return newError(NotInFunction, n.Pos())
	}
	if n.Value != nil {
		valType, err := c.compileExpression(n.Value, compstack.Entry{Role: compstack.Temp})
		if err != nil {
			return err
		}
		if c.currentFunction.returnType == nil || !valType.Equal(*c.currentFunction.returnType) {
			return newError(TypeMismatch, n.Value.Pos())
		}
		pos, ok := c.stack.FindReturnValue()
		if !ok {
			return newError(TypeMismatch, n.Value.Pos())
		}
		c.emitAt(bytecode.Set(pos-1), n.Pos())
		c.stack.Pop()
	}
	raOffset, ok := c.stack.FindTopReturnAddress()
	if !ok {
		return newError(NotInFunction, n.Pos())
	}
	numPop := raOffset - 1
	c.emitAt(bytecode.Pop(numPop), n.Pos())
	c.stack.PopN(numPop)
	c.emitAt(bytecode.Simple(bytecode.OpReturn), n.Pos())
	c.stack.Pop()
	return nil
}

// VisitFunctionDef is only reached for a FunctionDef nested inside another
// statement's block; top-level definitions are handled directly by the
// program lowerer without going through compileStatement.
func (c *Compiler) VisitFunctionDef(n *ast.FunctionDef) error {
	return newError(FunctionsMustBeTopLevel, n.NamePos)
}
