package mem

import "fmt"

// Category classifies allocations for the memory statistics boundary.
type Category uint8

const (
	CategoryObject Category = iota
	CategoryString
	CategoryProperty
	CategoryByteCode
	categoryCount
)

func (c Category) String() string {
	switch c {
	case CategoryObject:
		return "object"
	case CategoryString:
		return "string"
	case CategoryProperty:
		return "property"
	case CategoryByteCode:
		return "bytecode"
	default:
		return "unknown"
	}
}

// Stats holds byte-granularity allocation counters per category. Counters
// are only maintained while stats collection is enabled on the heap.
type Stats struct {
	Allocated [categoryCount]uint64 // bytes currently allocated
	Peak      [categoryCount]uint64 // high-water mark
}

// AllocatedBytes returns the current allocation for a category.
func (s *Stats) AllocatedBytes(c Category) uint64 { return s.Allocated[c] }

// PeakBytes returns the high-water mark for a category.
func (s *Stats) PeakBytes(c Category) uint64 { return s.Peak[c] }

// Heap is the accounting allocator underlying every structure of the
// engine. It enforces a byte budget and implements the out-of-memory
// escalation contract: a failed reservation runs one best-effort collection
// pass and retries; a second failure on a mandatory request terminates the
// engine. Opportunistic requests report failure instead so callers can skip
// the optimization they were building.
//
// The heap is single-threaded state, owned by one engine instance.
type Heap struct {
	limit        int // byte budget; 0 means unlimited
	used         int
	collect      func() // best-effort collection pass, may be nil
	statsEnabled bool
	stats        Stats
}

// NewHeap creates a heap with the given byte budget. A limit of 0 disables
// budget enforcement.
func NewHeap(limit int) *Heap {
	return &Heap{limit: limit}
}

// SetCollector registers the collection pass invoked on allocation
// pressure. The collector owns object lifetime decisions; the heap only
// calls it and retries.
func (h *Heap) SetCollector(fn func()) { h.collect = fn }

// EnableStats toggles byte counter maintenance.
func (h *Heap) EnableStats(on bool) { h.statsEnabled = on }

// Used returns the bytes currently reserved.
func (h *Heap) Used() int { return h.used }

// Limit returns the byte budget (0 = unlimited).
func (h *Heap) Limit() int { return h.limit }

// Stats returns a copy of the current counters.
func (h *Heap) Stats() Stats { return h.stats }

func (h *Heap) reserve(size int) bool {
	if h.limit != 0 && h.used+size > h.limit {
		return false
	}
	h.used += size
	return true
}

// Alloc reserves size bytes for a mandatory structure. On budget exhaustion
// it runs the collection pass once and retries; persistent failure is fatal.
func (h *Heap) Alloc(cat Category, size int) {
	if !h.reserve(size) {
		if h.collect != nil {
			h.collect()
		}
		if !h.reserve(size) {
			panic(fmt.Sprintf("mem: out of memory allocating %d bytes (%s), used %d of %d",
				size, cat, h.used, h.limit))
		}
	}
	h.account(cat, size)
}

// AllocOptional reserves size bytes for an optional structure. It reports
// failure instead of terminating; the caller degrades gracefully.
func (h *Heap) AllocOptional(cat Category, size int) bool {
	if !h.reserve(size) {
		if h.collect != nil {
			h.collect()
		}
		if !h.reserve(size) {
			return false
		}
	}
	h.account(cat, size)
	return true
}

// Realloc adjusts a prior reservation to a new size. Growth follows the
// mandatory allocation contract.
func (h *Heap) Realloc(cat Category, oldSize, newSize int) {
	h.Free(cat, oldSize)
	h.Alloc(cat, newSize)
}

// Free returns size bytes to the budget.
func (h *Heap) Free(cat Category, size int) {
	h.used -= size
	if h.used < 0 {
		panic("mem: free of bytes that were never allocated")
	}
	if h.statsEnabled {
		h.stats.Allocated[cat] -= uint64(size)
	}
}

func (h *Heap) account(cat Category, size int) {
	if !h.statsEnabled {
		return
	}
	h.stats.Allocated[cat] += uint64(size)
	if h.stats.Allocated[cat] > h.stats.Peak[cat] {
		h.stats.Peak[cat] = h.stats.Allocated[cat]
	}
}
