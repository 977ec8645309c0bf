package vm

import (
	"io"
	"math"
	"os"
	"unicode/utf8"

	"grimoire/internal/bytecode"
)

// Outcome classifies what a single Tick() call did.
type Outcome int

const (
	// Continue means the instruction executed and the VM is ready for
	// another Tick().
	Continue Outcome = iota
	// Syscall means a Syscall instruction was reached (including Nop,
	// PrintChar, Halt, and Exception) and control is yielded to the host
	// with the syscall number; PC already points past the instruction.
	Syscall
)

// VM is a single-step stack-machine interpreter over a linked Program.
type VM struct {
	Program *bytecode.Program
	PC      int
	Stack   []Value
	Heap    Heap

	// Out receives PrintChar output; defaults to os.Stdout.
	Out io.Writer
}

func New(program *bytecode.Program) *VM {
	return &VM{Program: program, Out: os.Stdout}
}

func (m *VM) pop() (Value, error) {
	n := len(m.Stack)
	if n == 0 {
		return nil, newTrap(TrapKindEmptyStack, m.PC)
	}
	v := m.Stack[n-1]
	m.Stack = m.Stack[:n-1]
	return v, nil
}

func (m *VM) push(v Value) { m.Stack = append(m.Stack, v) }

func (m *VM) popInt() (int32, error) {
	v, err := m.pop()
	if err != nil {
		return 0, err
	}
	i, ok := v.(Int)
	if !ok {
		return 0, newTrap(TrapKindWrongType, m.PC)
	}
	return int32(i), nil
}

func (m *VM) popDouble() (float64, error) {
	v, err := m.pop()
	if err != nil {
		return 0, err
	}
	d, ok := v.(Double)
	if !ok {
		return 0, newTrap(TrapKindWrongType, m.PC)
	}
	return float64(d), nil
}

// rewrap attaches the current PC to a trap raised by the heap, which has no
// PC of its own to stamp.
func (m *VM) rewrap(err error) error {
	if t, ok := err.(*Trap); ok {
		return newTrap(t.Kind, m.PC)
	}
	return err
}

// Tick executes exactly one instruction at PC, updates PC, and reports what
// happened.
func (m *VM) Tick() (Outcome, bytecode.Syscall, error) {
	if m.PC < 0 || m.PC >= len(m.Program.Code) {
		return Continue, 0, newTrap(TrapKindIllegalJumpAddress, m.PC)
	}
	ins := m.Program.Code[m.PC]
	nextPC := m.PC + 1

	switch ins.Op {
	case bytecode.OpImmediateInt:
		m.push(Int(ins.IntVal))
	case bytecode.OpImmediateDouble:
		m.push(Double(ins.DoubleVal))
	case bytecode.OpPop:
		for i := 0; i < ins.N; i++ {
			if _, err := m.pop(); err != nil {
				return Continue, 0, err
			}
		}
	case bytecode.OpCopy:
		idx := len(m.Stack) - ins.N
		if idx < 0 || idx >= len(m.Stack) {
			return Continue, 0, newTrap(TrapKindEmptyStack, m.PC)
		}
		m.push(m.Stack[idx])
	case bytecode.OpSet:
		// pos is computed against the pre-pop length: Set(n) pops v and
		// writes it n slots below v's own slot (index len-n-1 of the stack
		// as it stood before popping v), the slot Copy(n+1) would read.
		pos := len(m.Stack) - ins.N - 1
		v, err := m.pop()
		if err != nil {
			return Continue, 0, err
		}
		if pos < 0 || pos >= len(m.Stack) {
			return Continue, 0, newTrap(TrapKindEmptyStack, m.PC)
		}
		m.Stack[pos] = v

	case bytecode.OpAddI, bytecode.OpSubI, bytecode.OpMulI, bytecode.OpDivI, bytecode.OpModI,
		bytecode.OpAndI, bytecode.OpOrI, bytecode.OpXorI, bytecode.OpShlI, bytecode.OpShrI, bytecode.OpShrlI,
		bytecode.OpLtI, bytecode.OpGeI, bytecode.OpEqI:
		if err := m.intBinOp(ins.Op); err != nil {
			return Continue, 0, err
		}
	case bytecode.OpNotI:
		v, err := m.popInt()
		if err != nil {
			return Continue, 0, err
		}
		m.push(Int(^v))

	case bytecode.OpAddD, bytecode.OpSubD, bytecode.OpMulD, bytecode.OpDivD,
		bytecode.OpLtD, bytecode.OpGeD, bytecode.OpEqD:
		if err := m.doubleBinOp(ins.Op); err != nil {
			return Continue, 0, err
		}
	case bytecode.OpIsInf:
		v, err := m.popDouble()
		if err != nil {
			return Continue, 0, err
		}
		m.push(boolInt(math.IsInf(v, 0)))
	case bytecode.OpIsNaN:
		v, err := m.popDouble()
		if err != nil {
			return Continue, 0, err
		}
		m.push(boolInt(math.IsNaN(v)))

	case bytecode.OpConvID:
		v, err := m.popInt()
		if err != nil {
			return Continue, 0, err
		}
		m.push(Double(float64(v)))
	case bytecode.OpConvDI:
		v, err := m.popDouble()
		if err != nil {
			return Continue, 0, err
		}
		m.push(Int(int32(v)))

	case bytecode.OpBrz:
		v, err := m.popInt()
		if err != nil {
			return Continue, 0, err
		}
		if v == 0 {
			nextPC = ins.Dst
		}
	case bytecode.OpBrnz:
		v, err := m.popInt()
		if err != nil {
			return Continue, 0, err
		}
		if v != 0 {
			nextPC = ins.Dst
		}
	case bytecode.OpJmp:
		nextPC = ins.Dst
	case bytecode.OpCall:
		m.push(ReturnAddr(nextPC))
		nextPC = ins.Dst
	case bytecode.OpReturn:
		v, err := m.pop()
		if err != nil {
			return Continue, 0, err
		}
		ra, ok := v.(ReturnAddr)
		if !ok {
			return Continue, 0, newTrap(TrapKindWrongType, m.PC)
		}
		nextPC = int(ra)

	case bytecode.OpAllocA:
		size, err := m.popInt()
		if err != nil {
			return Continue, 0, err
		}
		handle, err := m.Heap.Alloc(ins.Elem, int64(size))
		if err != nil {
			return Continue, 0, m.rewrap(err)
		}
		m.push(ArrayRef{Elem: ins.Elem, Handle: handle})
	case bytecode.OpGetA:
		arr, err := m.pop()
		if err != nil {
			return Continue, 0, err
		}
		ref, ok := arr.(ArrayRef)
		if !ok {
			return Continue, 0, newTrap(TrapKindWrongType, m.PC)
		}
		idx, err := m.popInt()
		if err != nil {
			return Continue, 0, err
		}
		v, err := m.Heap.Get(ref.Handle, int(idx))
		if err != nil {
			return Continue, 0, m.rewrap(err)
		}
		m.push(v)
	case bytecode.OpSetA:
		arr, err := m.pop()
		if err != nil {
			return Continue, 0, err
		}
		ref, ok := arr.(ArrayRef)
		if !ok {
			return Continue, 0, newTrap(TrapKindWrongType, m.PC)
		}
		idx, err := m.popInt()
		if err != nil {
			return Continue, 0, err
		}
		item, err := m.pop()
		if err != nil {
			return Continue, 0, err
		}
		if err := m.Heap.Set(ref.Handle, int(idx), item); err != nil {
			return Continue, 0, m.rewrap(err)
		}
	case bytecode.OpLenA:
		arr, err := m.pop()
		if err != nil {
			return Continue, 0, err
		}
		ref, ok := arr.(ArrayRef)
		if !ok {
			return Continue, 0, newTrap(TrapKindWrongType, m.PC)
		}
		m.push(Int(m.Heap.Len(ref.Handle)))

	case bytecode.OpSyscall:
		if ins.Syscall == bytecode.SyscallPrintChar {
			v, err := m.popInt()
			if err != nil {
				return Continue, 0, err
			}
			r := rune(v)
			if !utf8.ValidRune(r) {
				r = utf8.RuneError
			}
			if _, err := m.Out.Write([]byte(string(r))); err != nil {
				return Continue, 0, err
			}
		}
		m.PC = nextPC
		return Syscall, ins.Syscall, nil

	default:
		return Continue, 0, newTrap(TrapKindIllegalSyscallArgument, m.PC)
	}

	m.PC = nextPC
	return Continue, 0, nil
}

func boolInt(b bool) Int {
	if b {
		return 1
	}
	return 0
}

func (m *VM) intBinOp(op bytecode.Op) error {
	b, err := m.popInt()
	if err != nil {
		return err
	}
	a, err := m.popInt()
	if err != nil {
		return err
	}
	switch op {
	case bytecode.OpAddI:
		m.push(Int(a + b))
	case bytecode.OpSubI:
		m.push(Int(a - b))
	case bytecode.OpMulI:
		m.push(Int(a * b))
	case bytecode.OpDivI:
		if b == 0 {
			m.push(Int(-1))
		} else {
			m.push(Int(a / b))
		}
	case bytecode.OpModI:
		if b == 0 {
			m.push(Int(-1))
		} else {
			m.push(Int(a % b))
		}
	case bytecode.OpAndI:
		m.push(Int(a & b))
	case bytecode.OpOrI:
		m.push(Int(a | b))
	case bytecode.OpXorI:
		m.push(Int(a ^ b))
	case bytecode.OpShlI:
		m.push(Int(a << (uint(b) & 31)))
	case bytecode.OpShrI:
		m.push(Int(a >> (uint(b) & 31)))
	case bytecode.OpShrlI:
		m.push(Int(int32(uint32(a) >> (uint(b) & 31))))
	case bytecode.OpLtI:
		m.push(boolInt(a < b))
	case bytecode.OpGeI:
		m.push(boolInt(a >= b))
	case bytecode.OpEqI:
		m.push(boolInt(a == b))
	}
	return nil
}

func (m *VM) doubleBinOp(op bytecode.Op) error {
	b, err := m.popDouble()
	if err != nil {
		return err
	}
	a, err := m.popDouble()
	if err != nil {
		return err
	}
	switch op {
	case bytecode.OpAddD:
		m.push(Double(a + b))
	case bytecode.OpSubD:
		m.push(Double(a - b))
	case bytecode.OpMulD:
		m.push(Double(a * b))
	case bytecode.OpDivD:
		m.push(Double(a / b))
	case bytecode.OpLtD:
		m.push(boolInt(a < b))
	case bytecode.OpGeD:
		m.push(boolInt(a >= b))
	case bytecode.OpEqD:
		m.push(boolInt(a == b))
	}
	return nil
}
