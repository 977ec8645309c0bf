// Package vm implements the single-step stack-machine interpreter that
// executes a linked bytecode.Program.
package vm

import (
	"grimoire/internal/bytecode"
)

// Value is a runtime stack slot. The concrete type is one of Int, Double,
// ArrayRef, or ReturnAddr — a closed set enforced by convention (type
// switches), the same idiom the teacher uses for its own Value interface.
type Value interface {
	isValue()
}

// Int is 32-bit, matching the language's surface Int type; arithmetic on it
// wraps per Go's normal int32 overflow behavior, giving the wrapping
// semantics the VM's integer ops require for free.
type Int int32

func (Int) isValue() {}

type Double float64

func (Double) isValue() {}

// ArrayRef is a handle into the VM's heap, tagged with its element type so
// SetA can check element-type compatibility without consulting the heap.
type ArrayRef struct {
	Elem   bytecode.ElemType
	Handle int
}

func (ArrayRef) isValue() {}

// ReturnAddr is pushed by Call and consumed by Return.
type ReturnAddr int

func (ReturnAddr) isValue() {}

func typeName(v Value) string {
	switch v.(type) {
	case Int:
		return "Int"
	case Double:
		return "Double"
	case ArrayRef:
		return "Array"
	case ReturnAddr:
		return "ReturnAddr"
	default:
		return "?"
	}
}
