// Package types resolves surface type names to compile-time types and maps
// those to the VM's runtime type tags.
package types

import (
	"fmt"

	"grimoire/internal/bytecode"
)

// Kind enumerates the distinct compile-time types of the source language.
type Kind int

const (
	Int Kind = iota
	Double
	Char
	Bool
	String
	Array
	Void
)

// CompType is a compile-time type. Array types carry an element type; all
// other kinds are leaves.
type CompType struct {
	Kind Kind
	Elem *CompType // non-nil only when Kind == Array
}

var (
	TInt    = CompType{Kind: Int}
	TDouble = CompType{Kind: Double}
	TChar   = CompType{Kind: Char}
	TBool   = CompType{Kind: Bool}
	TString = CompType{Kind: String}
	TVoid   = CompType{Kind: Void}
)

// TArray builds an Array(elem) compile-time type.
func TArray(elem CompType) CompType {
	e := elem
	return CompType{Kind: Array, Elem: &e}
}

// Equal reports whether two compile-time types are identical.
func (t CompType) Equal(o CompType) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == Array {
		return t.Elem.Equal(*o.Elem)
	}
	return true
}

func (t CompType) String() string {
	switch t.Kind {
	case Int:
		return "int"
	case Double:
		return "double"
	case Char:
		return "char"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Void:
		return "void"
	case Array:
		return fmt.Sprintf("%s[]", t.Elem.String())
	default:
		return "?"
	}
}

// RuntimeKind is the VM-level type tag: Int, Double, or Array(T). Char,
// Bool, and Void are all represented as Int at runtime; String is
// represented as Array(Char).
type RuntimeKind int

const (
	RTInt RuntimeKind = iota
	RTDouble
	RTArray
)

// RuntimeType is the VM-level encoding of a CompType.
type RuntimeType struct {
	Kind RuntimeKind
	Elem *RuntimeType // non-nil only when Kind == RTArray
}

// Lower computes the runtime encoding of a compile-time type, per
// spec §3 ("Runtime type tag (VM)"):
//   Int, Bool, Char, Void -> Int
//   Double                -> Double
//   String                -> Array(Int)
//   Array(T)               -> Array(lower(T))
func (t CompType) Lower() RuntimeType {
	switch t.Kind {
	case Double:
		return RuntimeType{Kind: RTDouble}
	case String:
		inner := RuntimeType{Kind: RTInt}
		return RuntimeType{Kind: RTArray, Elem: &inner}
	case Array:
		inner := t.Elem.Lower()
		return RuntimeType{Kind: RTArray, Elem: &inner}
	default: // Int, Char, Bool, Void
		return RuntimeType{Kind: RTInt}
	}
}

// ToElem converts a runtime type to the bytecode package's element-type tag,
// used to build AllocA instructions from a resolved CompType.
func (t RuntimeType) ToElem() bytecode.ElemType {
	switch t.Kind {
	case RTDouble:
		return bytecode.ElemType{Kind: bytecode.ElemDouble}
	case RTArray:
		inner := t.Elem.ToElem()
		return bytecode.ElemType{Kind: bytecode.ElemArray, Elem: &inner}
	default:
		return bytecode.ElemType{Kind: bytecode.ElemInt}
	}
}

func (t RuntimeType) Equal(o RuntimeType) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == RTArray {
		return t.Elem.Equal(*o.Elem)
	}
	return true
}

func (t RuntimeType) String() string {
	switch t.Kind {
	case RTInt:
		return "Int"
	case RTDouble:
		return "Double"
	case RTArray:
		return fmt.Sprintf("Array(%s)", t.Elem.String())
	default:
		return "?"
	}
}

// SurfaceName is a parsed type name from source, before resolution: a leaf
// keyword (int/double/char/string/bool) or an array-of wrapper (T[]).
type SurfaceName struct {
	Leaf string       // "int", "double", "char", "string", "bool" when Elem == nil
	Elem *SurfaceName // non-nil for "T[]"
}

// Resolve maps a surface type name to its compile-time type, recursively
// resolving array element types. Spec §4.C: "Resolver maps surface
// TypeName to CompType recursively (Array(T) -> CompType::Array(resolve(T)))".
func Resolve(name SurfaceName) (CompType, error) {
	if name.Elem != nil {
		inner, err := Resolve(*name.Elem)
		if err != nil {
			return CompType{}, err
		}
		return TArray(inner), nil
	}
	switch name.Leaf {
	case "int":
		return TInt, nil
	case "double":
		return TDouble, nil
	case "char":
		return TChar, nil
	case "string":
		return TString, nil
	case "bool":
		return TBool, nil
	default:
		return CompType{}, fmt.Errorf("unknown type name %q", name.Leaf)
	}
}
