package ecma

import (
	"unsafe"

	"picojs/pkg/mem"
)

// Per-object property hashmaps are built lazily once a property list grows
// past the context threshold, and are an optional allocation: if the heap
// cannot fit one, lookups simply keep scanning the list. Buckets are open
// addressed with a stepped probe; the bucket count is a power of two so the
// probe sequence of any odd step visits every bucket.

const (
	hashmapInitialBuckets = 8

	// hashmapDeleted marks a bucket whose property was removed. Probes
	// step over it; inserts may reclaim it.
	hashmapDeleted = ^PropIndex(0)
)

// The probe step is picked from the low hash bits, so colliding names
// usually walk different sequences. All steps are odd.
var hashmapSteps = [8]uint32{3, 5, 7, 11, 13, 17, 19, 23}

type hashmapTable struct {
	buckets []PropIndex // 0 empty, hashmapDeleted tombstone, else slot index
	unused  uint32      // count of empty (never-used) buckets
}

var hashmapBucketSize = int(unsafe.Sizeof(PropIndex(0)))

// hashmapCreate sizes a table for the list's live properties, fills it and
// attaches it. Returns false when the heap cannot fit the table.
func (ctx *Context) hashmapCreate(listRef mem.Ref) bool {
	list := ctx.propLists.At(listRef)
	b := uint32(hashmapInitialBuckets)
	for list.live > b-b/4 {
		b <<= 1
	}
	if !ctx.heap.AllocOptional(mem.CategoryProperty, int(b)*hashmapBucketSize) {
		return false
	}
	hr, ok := ctx.hashmaps.AllocOptional()
	if !ok {
		ctx.heap.Free(mem.CategoryProperty, int(b)*hashmapBucketSize)
		return false
	}
	hm := ctx.hashmaps.At(hr)
	hm.buckets = make([]PropIndex, b)
	hm.unused = b

	list = ctx.propLists.At(listRef)
	list.hashmap = hr
	list.cache[0] = PropNotFound // attached marker
	for i := range list.slots {
		p := &list.slots[i]
		if p.isTombstone() {
			continue
		}
		hashmapPlace(hm, ctx.slotNameHash(p.nameKind, p.name), PropIndex(i+1))
	}
	return true
}

// hashmapFree detaches and releases the table, restoring the inline cache.
func (ctx *Context) hashmapFree(listRef mem.Ref) {
	list := ctx.propLists.At(listRef)
	hm := ctx.hashmaps.At(list.hashmap)
	ctx.heap.Free(mem.CategoryProperty, len(hm.buckets)*hashmapBucketSize)
	ctx.hashmaps.Free(list.hashmap)
	list.hashmap = mem.Null
	list.resetCache()
}

func hashmapPlace(hm *hashmapTable, hash uint32, idx PropIndex) {
	mask := uint32(len(hm.buckets)) - 1
	i := hash & mask
	step := hashmapSteps[hash&7]
	for {
		switch hm.buckets[i] {
		case PropNotFound:
			hm.unused--
			fallthrough
		case hashmapDeleted:
			hm.buckets[i] = idx
			return
		}
		i = (i + step) & mask
	}
}

// hashmapInsert records a freshly created property. If the insert leaves
// too few empty buckets for probes to terminate quickly, the table is
// rebuilt at the size the current population wants.
func (ctx *Context) hashmapInsert(listRef mem.Ref, name Name, idx PropIndex) {
	list := ctx.propLists.At(listRef)
	hm := ctx.hashmaps.At(list.hashmap)
	hashmapPlace(hm, ctx.nameHash(name), idx)
	if hm.unused < uint32(len(hm.buckets))/8 {
		ctx.hashmapFree(listRef)
		ctx.hashmapCreate(listRef)
	}
}

// hashmapFind probes for the named property. An empty bucket ends the
// probe; there is always at least one because rebuilds keep a margin of
// empty buckets.
func (ctx *Context) hashmapFind(listRef mem.Ref, name Name) PropIndex {
	list := ctx.propLists.At(listRef)
	hm := ctx.hashmaps.At(list.hashmap)
	mask := uint32(len(hm.buckets)) - 1
	hash := ctx.nameHash(name)
	i := hash & mask
	step := hashmapSteps[hash&7]
	for {
		b := hm.buckets[i]
		if b == PropNotFound {
			return PropNotFound
		}
		if b != hashmapDeleted {
			p := &list.slots[b-1]
			if !p.isTombstone() && ctx.namesEqual(name, p.nameKind, p.name) {
				return b
			}
		}
		i = (i + step) & mask
	}
}

// hashmapDelete tombstones the bucket of the property being removed and
// reports whether the table has become sparse enough to rebuild smaller.
// The caller decides the rebuild after updating the live count.
func (ctx *Context) hashmapDelete(listRef mem.Ref, idx PropIndex, p *Property) bool {
	list := ctx.propLists.At(listRef)
	hm := ctx.hashmaps.At(list.hashmap)
	mask := uint32(len(hm.buckets)) - 1
	hash := ctx.slotNameHash(p.nameKind, p.name)
	i := hash & mask
	step := hashmapSteps[hash&7]
	for hm.buckets[i] != idx {
		i = (i + step) & mask
	}
	hm.buckets[i] = hashmapDeleted
	return (list.live-1)*4 < uint32(len(hm.buckets))
}
