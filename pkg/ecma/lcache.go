package ecma

import "picojs/pkg/mem"

// The lookup cache (LCache) short-circuits named own-property lookups
// across all objects. Entries are keyed by the slot's stored name, never a
// content-equal alias, so the row an entry lands in is always the row
// invalidation searches. Every entry references a live property: each path
// that kills a property (deletion, object destruction) invalidates its
// entry first, so a matching entry never needs a list walk to trust.

const (
	lcacheRowCount  = 128
	lcacheRowLength = 2
	lcacheRowMask   = lcacheRowCount - 1
)

// lcacheEntry identifies one (object, stored name) pair and its slot
// index. A null object reference marks an empty entry; object references
// are never null, so live entries cannot collide with it.
type lcacheEntry struct {
	obj      mem.Ref
	nameRef  mem.Ref
	nameKind nameKind
	index    PropIndex
}

func (e *lcacheEntry) matches(obj mem.Ref, kind nameKind, ref mem.Ref) bool {
	return e.obj == obj && e.nameKind == kind && e.nameRef == ref
}

func lcacheRow(obj, nameRef mem.Ref) uint32 {
	return (uint32(obj) ^ uint32(nameRef)) & lcacheRowMask
}

func (ctx *Context) lcacheLookup(obj mem.Ref, name Name) PropIndex {
	if !ctx.lcacheEnabled {
		return PropNotFound
	}
	row := &ctx.lcache[lcacheRow(obj, name.ref)]
	for i := range row {
		if !row[i].matches(obj, name.kind, name.ref) {
			continue
		}
		idx := row[i].index
		p := ctx.Property(obj, idx)
		if !p.isTombstone() && p.nameKind == name.kind && p.name == name.ref {
			ctx.cacheStats.LCacheHits++
			return idx
		}
	}
	ctx.cacheStats.LCacheMisses++
	return PropNotFound
}

// lcacheInsert records the property at idx under its stored name. A slot
// already carrying the marker bit has an entry somewhere; inserting again
// would give one slot two entries and orphan one of them at eviction.
func (ctx *Context) lcacheInsert(obj mem.Ref, name Name, idx PropIndex) {
	if !ctx.lcacheEnabled {
		return
	}
	p := ctx.Property(obj, idx)
	if p.typeFlags&propFlagLCached != 0 {
		return
	}
	row := &ctx.lcache[lcacheRow(obj, name.ref)]
	// Shift-evict the oldest entry. The evicted property is still live, so
	// its marker bit can be cleared through the entry.
	ev := row[lcacheRowLength-1]
	if ev.obj != mem.Null {
		ctx.Property(ev.obj, ev.index).typeFlags &^= propFlagLCached
	}
	copy(row[1:], row[:lcacheRowLength-1])
	row[0] = lcacheEntry{obj: obj, nameRef: name.ref, nameKind: name.kind, index: idx}
	p.typeFlags |= propFlagLCached
}

// lcacheInvalidate drops the entry referencing the property at idx, if one
// exists. It runs regardless of the enabled switch so that disabling the
// cache never strands an entry.
func (ctx *Context) lcacheInvalidate(obj mem.Ref, idx PropIndex, p *Property) {
	if p.typeFlags&propFlagLCached == 0 {
		return
	}
	row := &ctx.lcache[lcacheRow(obj, p.name)]
	for i := range row {
		if row[i].matches(obj, p.nameKind, p.name) && row[i].index == idx {
			row[i] = lcacheEntry{}
			break
		}
	}
	p.typeFlags &^= propFlagLCached
}
