package ffi

// TableSlot is an index into the host's wasm function table. Installing
// a function at slot k makes it callable as call_indirect k.
type TableSlot uint32

// Closure represents one dynamically-constructed callable: its
// trampoline location, the CIF describing its signature, the user
// handler it forwards to, and opaque user data. Field order matches
// the fixed-offset contract asserted in offsets.go.
//
// A Closure is created by a variant's ClosureEngine.Alloc, bound by its
// PrepClosureLoc, and destroyed by its Free. The closure owns its table
// slot: freeing it hands the slot back to the host.
type Closure struct {
	Ftramp   TableSlot
	CIF      *CIF
	Fun      ClosureHandler
	UserData Pointer
}

// FreeSlotPool is a set of wasm-table indices previously released and
// available for reuse. It grows only through Release (a host's
// ClosureFree) and shrinks through Take (a host's ClosureAllocate);
// fresh slots obtained by growing the table never pass through it.
//
// This package adds no locking of its own: a FreeSlotPool is
// process-wide mutable state, and callers sharing one across
// goroutines must serialize access to it themselves, the same way the
// host's table requires external synchronization.
type FreeSlotPool struct {
	free []TableSlot
}

// Take removes and returns an available slot, reporting false if the
// pool is empty (the caller must then ask the host to reserve a fresh
// one).
func (p *FreeSlotPool) Take() (TableSlot, bool) {
	if len(p.free) == 0 {
		return 0, false
	}
	n := len(p.free) - 1
	slot := p.free[n]
	p.free = p.free[:n]
	return slot, true
}

// Release returns slot to the pool for reuse.
func (p *FreeSlotPool) Release(slot TableSlot) {
	p.free = append(p.free, slot)
}

// Len reports the number of slots currently available for reuse.
func (p *FreeSlotPool) Len() int { return len(p.free) }
