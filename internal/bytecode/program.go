package bytecode

// DebugInfo carries source-position metadata for one instruction, kept in a
// slice parallel to Program.Code, the same split the teacher's
// Chunk{Code, Debug} uses to keep source positions out of the hot
// instruction array.
type DebugInfo struct {
	Pos int // byte offset into the source that produced this instruction
}

// Function records where a linked function's body begins and what its
// signature is, for disassembly and for the foreign boundary.
type Function struct {
	Name       string
	ParamCount int
	Addr       int
}

// Program is a fully linked instruction stream: every Call instruction's Dst
// has been patched to a concrete address by the linker (internal/compiler's
// program lowerer).
type Program struct {
	Code      []Instruction
	Debug     []DebugInfo
	Functions []Function
}

// Append adds an instruction with its source position and returns the
// address (index) it was placed at.
func (p *Program) Append(ins Instruction, pos int) int {
	addr := len(p.Code)
	p.Code = append(p.Code, ins)
	p.Debug = append(p.Debug, DebugInfo{Pos: pos})
	return addr
}

// Len returns the next address that Append would use.
func (p *Program) Len() int {
	return len(p.Code)
}

// Patch rewrites the Dst of a previously appended jump/call instruction.
func (p *Program) Patch(addr int, dst int) {
	p.Code[addr].Dst = dst
}
