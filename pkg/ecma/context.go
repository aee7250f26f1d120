package ecma

import (
	"fmt"

	"picojs/pkg/mem"
)

// Options tunes a Context at creation time.
type Options struct {
	HeapLimit        int  // byte budget for the engine heap; 0 = unlimited
	LCache           bool // enable the global lookup cache
	Hashmap          bool // allow per-object property hashmaps
	HashmapThreshold int  // property count that triggers hashmap creation
	Stats            bool // maintain byte-granularity allocation counters
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		LCache:           true,
		Hashmap:          true,
		HashmapThreshold: 32,
	}
}

// CacheStats counts lookup traffic through the cache layers.
type CacheStats struct {
	LCacheHits   uint64
	LCacheMisses uint64
	HashmapFinds uint64
	LinearScans  uint64
	InlineHits   uint64
}

// Context is the engine instance state: the heap, the descriptor pools, the
// global lookup cache rows, the hashmap allocation switch, and the
// debugger's pending-free list. Everything here is process-wide from the
// engine's point of view and is mutated without locking; the engine is
// single-threaded and the embedder provides any outer serialization.
type Context struct {
	heap *mem.Heap

	objects   *mem.Pool[Object]
	strings   *mem.Pool[stringDesc]
	numbers   *mem.Pool[float64]
	pairs     *mem.Pool[accessorPair]
	errorRefs *mem.Pool[errorReference]
	propLists *mem.Pool[propList]
	hashmaps  *mem.Pool[hashmapTable]
	code      *mem.Pool[CompiledCode]

	lcache        [lcacheRowCount][lcacheRowLength]lcacheEntry
	lcacheEnabled bool

	hashmapEnabled   bool
	hashmapThreshold int

	debugger        Debugger
	pendingCodeFree mem.Ref

	cacheStats CacheStats
}

// NewContext creates an engine context with its own heap and pools.
func NewContext(opts Options) *Context {
	if opts.HashmapThreshold <= 0 {
		opts.HashmapThreshold = DefaultOptions().HashmapThreshold
	}
	h := mem.NewHeap(opts.HeapLimit)
	h.EnableStats(opts.Stats)
	return &Context{
		heap:             h,
		objects:          mem.NewPool[Object](h, mem.CategoryObject),
		strings:          mem.NewPool[stringDesc](h, mem.CategoryString),
		numbers:          mem.NewPool[float64](h, mem.CategoryObject),
		pairs:            mem.NewPool[accessorPair](h, mem.CategoryObject),
		errorRefs:        mem.NewPool[errorReference](h, mem.CategoryObject),
		propLists:        mem.NewPool[propList](h, mem.CategoryProperty),
		hashmaps:         mem.NewPool[hashmapTable](h, mem.CategoryProperty),
		code:             mem.NewPool[CompiledCode](h, mem.CategoryByteCode),
		lcacheEnabled:    opts.LCache,
		hashmapEnabled:   opts.Hashmap,
		hashmapThreshold: opts.HashmapThreshold,
	}
}

// Heap exposes the context's allocator, e.g. for registering the collector
// callback or reading memory statistics.
func (ctx *Context) Heap() *mem.Heap { return ctx.heap }

// SetLCacheEnabled toggles the global lookup cache. Disabling it stops
// lookups and insertions; entries already present are still invalidated on
// property deletion, so re-enabling is always safe.
func (ctx *Context) SetLCacheEnabled(on bool) { ctx.lcacheEnabled = on }

// SetHashmapEnabled toggles lazy hashmap creation, e.g. under memory
// pressure. Existing hashmaps keep working.
func (ctx *Context) SetHashmapEnabled(on bool) { ctx.hashmapEnabled = on }

// SetHashmapThreshold overrides the property count that triggers hashmap
// creation.
func (ctx *Context) SetHashmapThreshold(n int) {
	if n > 0 {
		ctx.hashmapThreshold = n
	}
}

// CacheStats returns a copy of the lookup counters.
func (ctx *Context) CacheStats() CacheStats { return ctx.cacheStats }

// PrintCacheStats prints lookup cache performance information for debugging.
func (ctx *Context) PrintCacheStats() {
	s := ctx.cacheStats
	total := s.LCacheHits + s.LCacheMisses
	if total == 0 {
		fmt.Printf("LCache stats: no cache activity\n")
		return
	}
	hitRate := float64(s.LCacheHits) / float64(total) * 100.0
	fmt.Printf("LCache stats: lookups: %d, hits: %d (%.1f%%), misses: %d\n",
		total, s.LCacheHits, hitRate, s.LCacheMisses)
	fmt.Printf("  inline cache hits: %d, hashmap finds: %d, linear scans: %d\n",
		s.InlineHits, s.HashmapFinds, s.LinearScans)
}

// Close tears the context down. A connected debugger session is detached,
// flushing the pending byte-code free list.
func (ctx *Context) Close() {
	if ctx.debugger != nil {
		ctx.DetachDebugger()
	}
}
