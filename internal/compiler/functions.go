package compiler

import (
	"strings"

	"grimoire/internal/bytecode"
	"grimoire/internal/types"
)

// declaredFunction is a function's resolved signature, tracked separately
// from its body so forward references (calls before the callee's own
// lowering pass) type-check.
type declaredFunction struct {
	name       string
	argNames   []string
	args       []types.CompType
	returnType *types.CompType // nil for a Void function
}

// functionSignature is the overload key: name plus resolved argument types.
// Two top-level defs may share a name as long as their argument types
// differ; only an identical signature is rejected as a redeclaration. The
// key mirrors the original's HashMap<FunctionSignature, _> shape rather than
// keying on name alone.
type functionSignature struct {
	name string
	args string
}

func sigKey(name string, args []types.CompType) functionSignature {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return functionSignature{name: name, args: strings.Join(parts, ",")}
}

func (f declaredFunction) signature() functionSignature {
	return sigKey(f.name, f.args)
}

func findFunction(fns []declaredFunction, name string, args []types.CompType) *declaredFunction {
	key := sigKey(name, args)
	for i := range fns {
		if fns[i].signature() == key {
			return &fns[i]
		}
	}
	return nil
}

// rawFunction pairs a predefined function's signature with its hand-written
// body, emitted into the linked program alongside user-defined functions.
type rawFunction struct {
	fn         declaredFunction
	definition []bytecode.Instruction
}

// predefinedFunctions returns the VM's built-in function library. putc
// writes one Char to the host's output stream via the PrintChar syscall;
// Copy(2) duplicates the argument over the return address the caller
// pushed, since PrintChar's intrinsic effect pops its operand directly.
func predefinedFunctions() []rawFunction {
	return []rawFunction{
		{
			fn: declaredFunction{
				name:     "putc",
				argNames: []string{"c"},
				args:     []types.CompType{types.TChar},
			},
			definition: []bytecode.Instruction{
				bytecode.Copy(2),
				bytecode.SyscallIns(bytecode.SyscallPrintChar),
				bytecode.Simple(bytecode.OpReturn),
			},
		},
	}
}
