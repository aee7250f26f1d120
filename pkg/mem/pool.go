package mem

import "unsafe"

// Pool is a fixed-size allocator for one record type. Records are addressed
// by Ref; freed cells go on a free list and are reused by later
// allocations. The pool's backing slice is the heap base for its records: a
// Ref survives pool growth, but a pointer obtained from At does not —
// callers must not retain the pointer across an Alloc on the same pool.
type Pool[T any] struct {
	heap     *Heap
	cat      Category
	cellSize int
	cells    []T
	free     []Ref
	inUse    int
}

// NewPool creates a pool that accounts its cells against the given heap
// under the given category.
func NewPool[T any](h *Heap, cat Category) *Pool[T] {
	var zero T
	return &Pool[T]{heap: h, cat: cat, cellSize: int(unsafe.Sizeof(zero))}
}

// Alloc reserves a cell and returns its reference. Follows the mandatory
// allocation contract of the heap.
func (p *Pool[T]) Alloc() Ref {
	p.heap.Alloc(p.cat, p.cellSize)
	return p.take()
}

// AllocOptional reserves a cell, reporting failure instead of terminating.
func (p *Pool[T]) AllocOptional() (Ref, bool) {
	if !p.heap.AllocOptional(p.cat, p.cellSize) {
		return Null, false
	}
	return p.take(), true
}

func (p *Pool[T]) take() Ref {
	p.inUse++
	if n := len(p.free); n > 0 {
		r := p.free[n-1]
		p.free = p.free[:n-1]
		return r
	}
	var zero T
	p.cells = append(p.cells, zero)
	return Ref(len(p.cells))
}

// At resolves a reference to its cell. The returned pointer is invalidated
// by the next Alloc on this pool.
func (p *Pool[T]) At(r Ref) *T {
	if r == Null {
		panic("mem: resolving null reference")
	}
	return &p.cells[r-1]
}

// Free zeroes the cell and returns it to the free list.
func (p *Pool[T]) Free(r Ref) {
	var zero T
	p.cells[r-1] = zero
	p.free = append(p.free, r)
	p.inUse--
	p.heap.Free(p.cat, p.cellSize)
}

// InUse returns the number of live cells.
func (p *Pool[T]) InUse() int { return p.inUse }
