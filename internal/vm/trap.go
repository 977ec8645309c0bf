package vm

import "fmt"

// TrapKind enumerates the VM's trap (abnormal-termination) reasons.
type TrapKind int

const (
	TrapKindHalt TrapKind = iota
	TrapKindEmptyStack
	TrapKindIllegalJumpAddress
	TrapKindIllegalSyscallArgument
	TrapKindWrongType
	TrapKindArrayIndexOutOfBounds
	TrapKindOutOfMemory
	TrapKindRaisedException
)

var trapNames = map[TrapKind]string{
	TrapKindHalt:                   "Halt",
	TrapKindEmptyStack:             "EmptyStack",
	TrapKindIllegalJumpAddress:     "IllegalJumpAddress",
	TrapKindIllegalSyscallArgument: "IllegalSyscallArgument",
	TrapKindWrongType:              "WrongType",
	TrapKindArrayIndexOutOfBounds:  "ArrayIndexOutOfBounds",
	TrapKindOutOfMemory:            "OutOfMemory",
	TrapKindRaisedException:        "RaisedException",
}

func (k TrapKind) String() string {
	if n, ok := trapNames[k]; ok {
		return n
	}
	return fmt.Sprintf("TrapKind(%d)", int(k))
}

// Trap is the VM's error type: a kind plus the PC at which it occurred.
type Trap struct {
	Kind TrapKind
	PC   int
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap %s at pc=%d", t.Kind, t.PC)
}

func newTrap(kind TrapKind, pc int) *Trap { return &Trap{Kind: kind, PC: pc} }

// Sentinel traps for use by Heap, which has no PC of its own; the VM
// rewraps them with the current PC before surfacing to the caller.
var (
	TrapOutOfMemory          = &Trap{Kind: TrapKindOutOfMemory}
	TrapArrayIndexOutOfBounds = &Trap{Kind: TrapKindArrayIndexOutOfBounds}
	TrapWrongType            = &Trap{Kind: TrapKindWrongType}
)
