package vm

import "grimoire/internal/bytecode"

// MaxAllocSize is the largest array size AllocA accepts; larger requests
// trap OutOfMemory.
const MaxAllocSize = 16384

// HeapRecord is one allocated array: its element type and backing slots.
type HeapRecord struct {
	Elem bytecode.ElemType
	Data []Value
}

// Heap is the VM's monotonically growing array store: handles are never
// reused or freed individually, matching spec.md's "no GC" model.
type Heap struct {
	records []HeapRecord
}

// Alloc reserves a new heap record of size zero-initialized slots of the
// given element type, returning its handle. Nested array slots are
// themselves allocated as empty (size-0) arrays, recursively.
func (h *Heap) Alloc(elem bytecode.ElemType, size int64) (int, error) {
	if size < 0 || size > MaxAllocSize {
		return 0, TrapOutOfMemory
	}
	data := make([]Value, size)
	for i := range data {
		data[i] = h.zeroValue(elem)
	}
	handle := len(h.records)
	h.records = append(h.records, HeapRecord{Elem: elem, Data: data})
	return handle, nil
}

func (h *Heap) zeroValue(elem bytecode.ElemType) Value {
	switch elem.Kind {
	case bytecode.ElemInt:
		return Int(0)
	case bytecode.ElemDouble:
		return Double(0)
	case bytecode.ElemArray:
		handle, _ := h.Alloc(*elem.Elem, 0) // size 0 never fails
		return ArrayRef{Elem: *elem.Elem, Handle: handle}
	default:
		return Int(0)
	}
}

func (h *Heap) Len(handle int) int {
	return len(h.records[handle].Data)
}

func (h *Heap) Get(handle, idx int) (Value, error) {
	rec := &h.records[handle]
	if idx < 0 || idx >= len(rec.Data) {
		return nil, TrapArrayIndexOutOfBounds
	}
	return rec.Data[idx], nil
}

func (h *Heap) Set(handle, idx int, v Value) error {
	rec := &h.records[handle]
	if idx < 0 || idx >= len(rec.Data) {
		return TrapArrayIndexOutOfBounds
	}
	if !elemMatches(rec.Elem, v) {
		return TrapWrongType
	}
	rec.Data[idx] = v
	return nil
}

func elemMatches(elem bytecode.ElemType, v Value) bool {
	switch elem.Kind {
	case bytecode.ElemInt:
		_, ok := v.(Int)
		return ok
	case bytecode.ElemDouble:
		_, ok := v.(Double)
		return ok
	case bytecode.ElemArray:
		ref, ok := v.(ArrayRef)
		return ok && ref.Elem.Equal(*elem.Elem)
	default:
		return false
	}
}
