// Package engine is the Go-level equivalent of spec.md §6's foreign
// boundary: it owns a VM registry and the source-to-program pipeline, so a
// host driver (a CLI, a test, internal/hostbridge) can compile and run
// Grimoire scripts without reaching into internal/compiler or internal/vm
// directly. The actual C ABI spec.md §6 describes is explicitly out of
// scope (spec.md §1); this package is the in-process equivalent a Go host
// links against instead.
package engine

import (
	"grimoire/internal/compiler"
	"grimoire/internal/parser"
	"grimoire/internal/vm"
)

// CompileResult mirrors the foreign boundary's CompileResult{id, error}:
// on success ID is >= 0 and Error is "success"; on failure ID is -1 and
// Error names the diagnostic.
type CompileResult struct {
	ID    int64
	Error string
}

// Engine pairs a VM registry with the compile pipeline.
type Engine struct {
	Registry *vm.Registry
}

// New returns an Engine with a fresh, empty registry.
func New() *Engine {
	return &Engine{Registry: vm.NewRegistry()}
}

// Init clears the registry, matching the foreign boundary's init().
func (e *Engine) Init() {
	e.Registry.Reset()
}

// Compile parses and lowers src, registers the resulting VM, and returns
// its CompileResult. A parse or compile error yields ID -1 with Error set
// to the diagnostic; nothing is registered in that case.
func (e *Engine) Compile(src string) CompileResult {
	stmts, err := parser.Parse(src)
	if err != nil {
		return CompileResult{ID: -1, Error: err.Error()}
	}
	program, err := compiler.Compile(stmts)
	if err != nil {
		return CompileResult{ID: -1, Error: err.Error()}
	}
	id := e.Registry.Register(program)
	return CompileResult{ID: id, Error: "success"}
}

// Free drops the VM registered under res.ID, matching
// free_compileresult's VM-dropping half (the error-string half has no
// analogue in Go, where CompileResult.Error is a plain string, not a
// caller-owned C pointer).
func (e *Engine) Free(res CompileResult) {
	if res.ID < 0 {
		return
	}
	e.Registry.Free(res.ID)
}

// RunToSyscallOrN, PushInt, PushDouble, PopInt, PopDouble delegate
// directly to the registry; see vm.Registry for the exact contract.
func (e *Engine) RunToSyscallOrN(id int64, max int) (executed int, status int) {
	return e.Registry.RunToSyscallOrN(id, max)
}

func (e *Engine) PushInt(id int64, v int32) bool    { return e.Registry.PushInt(id, v) }
func (e *Engine) PushDouble(id int64, v float64) bool { return e.Registry.PushDouble(id, v) }
func (e *Engine) PopInt(id int64, out *int32) bool    { return e.Registry.PopInt(id, out) }
func (e *Engine) PopDouble(id int64, out *float64) bool { return e.Registry.PopDouble(id, out) }
