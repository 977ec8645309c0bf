package compstack

import (
	"testing"

	"grimoire/internal/types"
)

func TestPushPopHeight(t *testing.T) {
	s := New()
	if s.Height() != 0 {
		t.Fatalf("new stack Height() = %d, want 0", s.Height())
	}
	s.PushTemp(types.TInt)
	s.PushTemp(types.TDouble)
	if s.Height() != 2 {
		t.Fatalf("Height() = %d, want 2", s.Height())
	}

	top := s.Pop()
	if !top.Type.Equal(types.TDouble) {
		t.Errorf("popped entry type = %v, want Double", top.Type)
	}
	if s.Height() != 1 {
		t.Errorf("Height() after Pop = %d, want 1", s.Height())
	}
}

func TestPopN(t *testing.T) {
	s := New()
	s.PushTemp(types.TInt)
	s.PushTemp(types.TInt)
	s.PushTemp(types.TInt)
	s.PopN(2)
	if s.Height() != 1 {
		t.Errorf("Height() after PopN(2) = %d, want 1", s.Height())
	}
}

func TestPeek(t *testing.T) {
	s := New()
	s.PushTemp(types.TInt)
	s.PushTemp(types.TDouble)
	if !s.Peek(1).Type.Equal(types.TDouble) {
		t.Errorf("Peek(1) = %v, want Double (top)", s.Peek(1).Type)
	}
	if !s.Peek(2).Type.Equal(types.TInt) {
		t.Errorf("Peek(2) = %v, want Int", s.Peek(2).Type)
	}
}

func TestFindVariable(t *testing.T) {
	s := New()
	s.Push(Entry{Role: Variable, Name: "x", Type: types.TInt})
	s.PushTemp(types.TBool)
	s.Push(Entry{Role: Variable, Name: "y", Type: types.TDouble})

	offset, typ, ok := s.FindVariable("y")
	if !ok || offset != 1 || !typ.Equal(types.TDouble) {
		t.Errorf("FindVariable(y) = (%d, %v, %v), want (1, Double, true)", offset, typ, ok)
	}

	offset, typ, ok = s.FindVariable("x")
	if !ok || offset != 3 || !typ.Equal(types.TInt) {
		t.Errorf("FindVariable(x) = (%d, %v, %v), want (3, Int, true)", offset, typ, ok)
	}

	_, _, ok = s.FindVariable("z")
	if ok {
		t.Error("FindVariable(z) should fail: not declared")
	}
}

func TestFindVariableShadowing(t *testing.T) {
	s := New()
	s.Push(Entry{Role: Variable, Name: "x", Type: types.TInt})
	s.Push(Entry{Role: Variable, Name: "x", Type: types.TDouble})

	offset, typ, ok := s.FindVariable("x")
	if !ok || offset != 1 || !typ.Equal(types.TDouble) {
		t.Errorf("FindVariable should find the most recent shadowing declaration, got (%d, %v, %v)", offset, typ, ok)
	}
}

func TestDeclaredInCurrentScope(t *testing.T) {
	s := New()
	s.Push(Entry{Role: Variable, Name: "x", Type: types.TInt})
	scopeHeight := s.Height()
	s.Push(Entry{Role: Variable, Name: "y", Type: types.TInt})

	if s.DeclaredInCurrentScope("x", scopeHeight) {
		t.Error("x was declared before the scope boundary, should not count as in-scope")
	}
	if !s.DeclaredInCurrentScope("y", scopeHeight) {
		t.Error("y was declared after the scope boundary, should count as in-scope")
	}
}

func TestFindReturnValueAndReturnAddress(t *testing.T) {
	s := New()
	s.Push(Entry{Role: Variable, Name: "arg", Type: types.TInt})
	s.Push(Entry{Role: ReturnValue, Type: types.TInt})
	s.Push(Entry{Role: ReturnAddress, Type: types.TInt})

	rvOffset, ok := s.FindReturnValue()
	if !ok || rvOffset != 2 {
		t.Errorf("FindReturnValue() = (%d, %v), want (2, true)", rvOffset, ok)
	}

	raOffset, ok := s.FindTopReturnAddress()
	if !ok || raOffset != 1 {
		t.Errorf("FindTopReturnAddress() = (%d, %v), want (1, true)", raOffset, ok)
	}
}

func TestFindReturnValueVoidFunction(t *testing.T) {
	s := New()
	s.Push(Entry{Role: ReturnAddress, Type: types.TInt})
	if _, ok := s.FindReturnValue(); ok {
		t.Error("void function frame should have no ReturnValue slot")
	}
}

func TestSetTypeAt(t *testing.T) {
	s := New()
	s.PushTemp(types.TInt)
	s.PushTemp(types.TInt)
	s.SetTypeAt(2, types.TBool)
	if !s.Peek(1).Type.Equal(types.TBool) {
		t.Errorf("SetTypeAt(2, Bool) should update the second-pushed entry; Peek(1) = %v", s.Peek(1).Type)
	}
}
