package compiler

import (
	"grimoire/internal/ast"
	"grimoire/internal/bytecode"
	"grimoire/internal/compstack"
	"grimoire/internal/types"
)

// compileExpression lowers expr, leaving its result on top of the runtime
// stack tagged with out's role (and, for Variable, out's name). It returns
// the expression's compile-time type. Every Visit* method below reads the
// pending out entry via c.pendingOut, set here and restored on return so
// nested compileExpression calls (which overwrite it with Temp) don't leak
// into the caller's frame.
func (c *Compiler) compileExpression(expr ast.Expr, out compstack.Entry) (types.CompType, error) {
	saved := c.pendingOut
	c.pendingOut = out
	res, err := expr.Accept(c)
	c.pendingOut = saved
	if err != nil {
		return types.CompType{}, err
	}
	return res.(types.CompType), nil
}

func (c *Compiler) pushOut(t types.CompType) {
	e := c.pendingOut
	e.Type = t
	c.stack.Push(e)
}

func (c *Compiler) VisitIntLit(n *ast.IntLit) (interface{}, error) {
	c.emitAt(bytecode.ImmediateInt(n.Value), n.Pos())
	c.pushOut(types.TInt)
	return types.TInt, nil
}

func (c *Compiler) VisitDoubleLit(n *ast.DoubleLit) (interface{}, error) {
	c.emitAt(bytecode.ImmediateDouble(n.Value), n.Pos())
	c.pushOut(types.TDouble)
	return types.TDouble, nil
}

func (c *Compiler) VisitBoolLit(n *ast.BoolLit) (interface{}, error) {
	v := int32(0)
	if n.Value {
		v = 1
	}
	c.emitAt(bytecode.ImmediateInt(v), n.Pos())
	c.pushOut(types.TBool)
	return types.TBool, nil
}

// VisitStringLit lowers a string literal to an AllocA(Int) of the decoded
// rune count followed by one SetA per rune. Copy(3) in the loop always
// reaches the array handle two slots below the freshly pushed index, since
// each iteration pushes exactly value then index before the copy.
func (c *Compiler) VisitStringLit(n *ast.StringLit) (interface{}, error) {
	runes := []rune(n.Value)
	c.emitAt(bytecode.ImmediateInt(int32(len(runes))), n.Pos())
	c.emitAt(bytecode.AllocA(bytecode.ElemType{Kind: bytecode.ElemInt}), n.Pos())

	for i, r := range runes {
		c.emitAt(bytecode.ImmediateInt(int32(r)), n.Pos())
		c.emitAt(bytecode.ImmediateInt(int32(i)), n.Pos())
		c.emitAt(bytecode.Copy(3), n.Pos())
		c.emitAt(bytecode.Simple(bytecode.OpSetA), n.Pos())
	}

	c.pushOut(types.TString)
	return types.TString, nil
}

func (c *Compiler) VisitCharLit(n *ast.CharLit) (interface{}, error) {
	c.emitAt(bytecode.ImmediateInt(int32(n.Value)), n.Pos())
	c.pushOut(types.TChar)
	return types.TChar, nil
}

func (c *Compiler) VisitBinary(n *ast.Binary) (interface{}, error) {
	left, err := c.compileExpression(n.Left, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return nil, err
	}
	right, err := c.compileExpression(n.Right, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return nil, err
	}
	c.stack.Pop()
	c.stack.Pop()

	ev, err := types.ResolveBinary(left, n.Op, right)
	if err != nil {
		return nil, newError(TypeMismatch, n.OpPos)
	}

	for _, ins := range ev.Instructions {
		c.emitAt(ins, n.OpPos)
	}
	for _, t := range ev.ExtraPush {
		c.stack.PushTemp(t)
	}
	c.pushOut(ev.Type)
	return ev.Type, nil
}

func (c *Compiler) VisitVarAccess(n *ast.VarAccess) (interface{}, error) {
	idx, t, ok := c.stack.FindVariable(n.Name)
	if !ok {
		return nil, newError(VariableNotFound, n.Pos())
	}
	c.emitAt(bytecode.Copy(idx), n.Pos())
	c.pushOut(t)
	return t, nil
}

func elementType(t types.CompType) (types.CompType, bool) {
	switch t.Kind {
	case types.Array:
		return *t.Elem, true
	case types.String:
		return types.TChar, true
	default:
		return types.CompType{}, false
	}
}

func (c *Compiler) VisitArrayAccess(n *ast.ArrayAccess) (interface{}, error) {
	arrType, err := c.compileExpression(n.Array, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return nil, err
	}
	inner, ok := elementType(arrType)
	if !ok {
		return nil, newError(TypeMismatch, n.Array.Pos())
	}
	arrayAddr := c.stack.Height() - 1

	idxType, err := c.compileExpression(n.Index, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return nil, err
	}
	if idxType.Kind != types.Int {
		return nil, newError(TypeMismatch, n.Index.Pos())
	}

	c.emitAt(bytecode.Copy(c.stack.Height()-arrayAddr), n.Pos())
	c.stack.PushTemp(types.TVoid)
	c.emitAt(bytecode.Simple(bytecode.OpGetA), n.Pos())
	c.stack.Pop()
	c.stack.Pop()

	c.pushOut(inner)
	return inner, nil
}

func (c *Compiler) VisitNewArray(n *ast.NewArray) (interface{}, error) {
	inner, err := types.Resolve(n.Elem)
	if err != nil {
		return nil, newError(TypeMismatch, n.Pos())
	}
	lengthType, err := c.compileExpression(n.Length, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return nil, err
	}
	if lengthType.Kind != types.Int {
		return nil, newError(TypeMismatch, n.Length.Pos())
	}
	c.emitAt(bytecode.AllocA(inner.Lower().ToElem()), n.Pos())
	c.stack.Pop()

	result := types.TArray(inner)
	c.pushOut(result)
	return result, nil
}

func (c *Compiler) VisitPropertyAccess(n *ast.PropertyAccess) (interface{}, error) {
	objType, err := c.compileExpression(n.Object, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return nil, err
	}
	if (objType.Kind == types.Array || objType.Kind == types.String) && n.Name == "size" {
		c.emitAt(bytecode.Simple(bytecode.OpLenA), n.Pos())
		c.stack.Pop()
		c.pushOut(types.TInt)
		return types.TInt, nil
	}
	return nil, newError(PropertyNotFound, n.NamePos)
}

func (c *Compiler) VisitFunctionCall(n *ast.FunctionCall) (interface{}, error) {
	argTypes := make([]types.CompType, len(n.Args))
	for i, a := range n.Args {
		t, err := c.inferType(a)
		if err != nil {
			return nil, err
		}
		argTypes[i] = t
	}

	found := findFunction(c.functions, n.Name, argTypes)
	if found == nil {
		// A name that exists only with other argument counts is reported
		// as a wrong argument count rather than an unknown function.
		kind := FunctionNotFound
		for _, f := range c.functions {
			if f.name == n.Name {
				if len(f.args) == len(n.Args) {
					kind = FunctionNotFound
					break
				}
				kind = WrongNumberOfArguments
			}
		}
		return nil, newError(kind, n.NamePos)
	}
	if len(found.args) != len(n.Args) {
		return nil, newError(WrongNumberOfArguments, n.NamePos)
	}

	argPositions := make([]int, len(found.args))
	for i, t := range found.args {
		c.emitAt(bytecode.ImmediateInt(0), n.Pos())
		c.stack.PushTemp(t)
		argPositions[i] = c.stack.Height()
	}

	returnType := types.TVoid
	hasReturn := found.returnType != nil
	if hasReturn {
		c.emitAt(bytecode.ImmediateInt(0), n.Pos())
		c.pushOut(*found.returnType)
		returnType = *found.returnType
	}
	stackLen := c.stack.Height()

	for i, a := range n.Args {
		t, err := c.compileExpression(a, compstack.Entry{Role: compstack.Temp})
		if err != nil {
			return nil, err
		}
		if !t.Equal(found.args[i]) {
			return nil, newError(TypeMismatch, a.Pos())
		}
		c.emitAt(bytecode.Set(c.stack.Height()-argPositions[i]), a.Pos())
		c.stack.Pop()
	}
	diff := c.stack.Height() - stackLen
	c.emitAt(bytecode.Pop(diff), n.Pos())
	c.stack.PopN(diff)

	c.functionCalls = append(c.functionCalls, functionCallFix{
		programOffset: c.emitAt(bytecode.Call(0), n.Pos()),
		signature:     found.signature(),
	})

	// Leave exactly one value: the result moves down into the first
	// argument slot (a void call keeps that slot, or pushes one) and the
	// remaining argument slots are popped.
	argc := len(found.args)
	if hasReturn {
		c.stack.Pop()
		if argc > 0 {
			c.emitAt(bytecode.Set(argc), n.Pos())
		}
	} else if argc == 0 {
		c.emitAt(bytecode.ImmediateInt(0), n.Pos())
	}
	if argc > 1 {
		c.emitAt(bytecode.Pop(argc-1), n.Pos())
	}
	c.stack.PopN(argc)
	c.pushOut(returnType)

	return returnType, nil
}

func (c *Compiler) VisitTernary(n *ast.Ternary) (interface{}, error) {
	placeholder := c.pendingOut
	placeholder.Type = types.TInt
	c.stack.Push(placeholder)
	placeholderHeight := c.stack.Height()
	c.emitAt(bytecode.ImmediateInt(-1), n.Pos())
	stackLen := c.stack.Height()

	condType, err := c.compileExpression(n.Condition, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return nil, err
	}
	if condType.Kind != types.Bool {
		return nil, newError(TypeMismatch, n.Condition.Pos())
	}
	branchToFalse := c.emitAt(bytecode.Brz(0), n.Pos())
	c.stack.Pop()
	// Entries the condition left under its result (the Le/Gt residue) are
	// still on the runtime stack when the false branch starts.
	residue := make([]compstack.Entry, c.stack.Height()-stackLen)
	for i := range residue {
		residue[i] = c.stack.Peek(len(residue) - i)
	}

	trueType, err := c.compileExpression(n.IfTrue, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return nil, err
	}
	offset := c.stack.Height() - stackLen
	c.emitAt(bytecode.Set(offset), n.IfTrue.Pos())
	c.stack.Pop()
	c.stack.SetTypeAt(placeholderHeight, trueType)
	diff := c.stack.Height() - stackLen
	c.emitAt(bytecode.Pop(diff), n.Pos())
	c.stack.PopN(diff)
	jumpToAfter := c.emitAt(bytecode.Jmp(0), n.Pos())

	c.program.Patch(branchToFalse, c.program.Len())
	for _, e := range residue {
		c.stack.Push(e)
	}
	falseType, err := c.compileExpression(n.IfFalse, compstack.Entry{Role: compstack.Temp})
	if err != nil {
		return nil, err
	}
	offset = c.stack.Height() - stackLen
	c.emitAt(bytecode.Set(offset), n.IfFalse.Pos())
	c.stack.Pop()
	diff = c.stack.Height() - stackLen
	c.emitAt(bytecode.Pop(diff), n.Pos())
	c.stack.PopN(diff)
	c.program.Patch(jumpToAfter, c.program.Len())

	if !trueType.Equal(falseType) {
		return nil, newError(TypeMismatch, n.IfFalse.Pos())
	}
	return falseType, nil
}

// inferType computes an expression's compile-time type without emitting any
// instructions or touching the runtime stack, used to resolve a function
// call's overload before its arguments are actually lowered.
func (c *Compiler) inferType(e ast.Expr) (types.CompType, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		return types.TInt, nil
	case *ast.DoubleLit:
		return types.TDouble, nil
	case *ast.BoolLit:
		return types.TBool, nil
	case *ast.StringLit:
		return types.TString, nil
	case *ast.CharLit:
		return types.TChar, nil
	case *ast.Binary:
		left, err := c.inferType(n.Left)
		if err != nil {
			return types.CompType{}, err
		}
		right, err := c.inferType(n.Right)
		if err != nil {
			return types.CompType{}, err
		}
		ev, err := types.ResolveBinary(left, n.Op, right)
		if err != nil {
			return types.CompType{}, newError(TypeMismatch, n.OpPos)
		}
		return ev.Type, nil
	case *ast.FunctionCall:
		args := make([]types.CompType, len(n.Args))
		for i, a := range n.Args {
			t, err := c.inferType(a)
			if err != nil {
				return types.CompType{}, err
			}
			args[i] = t
		}
		fn := findFunction(c.functions, n.Name, args)
		if fn == nil {
			return types.CompType{}, newError(FunctionNotFound, n.NamePos)
		}
		if fn.returnType == nil {
			return types.TVoid, nil
		}
		return *fn.returnType, nil
	case *ast.PropertyAccess:
		objType, err := c.inferType(n.Object)
		if err != nil {
			return types.CompType{}, err
		}
		if (objType.Kind == types.Array || objType.Kind == types.String) && n.Name == "size" {
			return types.TInt, nil
		}
		return types.CompType{}, newError(PropertyNotFound, n.NamePos)
	case *ast.Ternary:
		return c.inferType(n.IfTrue)
	case *ast.ArrayAccess:
		arrType, err := c.inferType(n.Array)
		if err != nil {
			return types.CompType{}, err
		}
		inner, ok := elementType(arrType)
		if !ok {
			return types.CompType{}, newError(PropertyNotFound, n.Pos())
		}
		return inner, nil
	case *ast.VarAccess:
		_, t, ok := c.stack.FindVariable(n.Name)
		if !ok {
			return types.CompType{}, newError(VariableNotFound, n.Pos())
		}
		return t, nil
	case *ast.NewArray:
		inner, err := types.Resolve(n.Elem)
		if err != nil {
			return types.CompType{}, newError(TypeMismatch, n.Pos())
		}
		return types.TArray(inner), nil
	}
	return types.CompType{}, newError(TypeMismatch, e.Pos())
}
