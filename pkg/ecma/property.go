package ecma

import (
	"unsafe"

	"picojs/pkg/mem"
)

// PropIndex addresses a slot within an object's property list. Indices are
// one-based; PropNotFound is the zero sentinel. An index stays valid across
// list growth — only deletion of the property itself retires it.
type PropIndex uint32

// PropNotFound is returned by lookups that find nothing.
const PropNotFound PropIndex = 0

// PropertyKind selects the payload interpretation of a property slot.
type PropertyKind uint8

const (
	PropData     PropertyKind = iota // payload is a Value
	PropAccessor                     // payload references a getter/setter pair
	PropInternal                     // payload is opaque to the engine
	propSpecial                      // tombstones
)

// PropertyFlags are the attribute bits of a property.
type PropertyFlags uint8

const (
	PropWritable     PropertyFlags = 0x04
	PropEnumerable   PropertyFlags = 0x08
	PropConfigurable PropertyFlags = 0x10

	// PropFlagsAll is the fully permissive attribute set.
	PropFlagsAll = PropWritable | PropEnumerable | PropConfigurable
)

const (
	propKindMask    = 0x03
	propFlagLCached = 0x20 // a global lookup cache entry references this slot
)

// Property is one slot of a property list. The slot stays in place for the
// life of the property; deletion turns it into a tombstone that later
// creations reuse.
type Property struct {
	typeFlags uint8
	nameKind  nameKind
	name      mem.Ref
	payload   uint32
}

var propertySize = int(unsafe.Sizeof(Property{}))

// Kind returns the slot's payload kind.
func (p *Property) Kind() PropertyKind { return PropertyKind(p.typeFlags & propKindMask) }

func (p *Property) isTombstone() bool { return p.Kind() == propSpecial }

// IsWritable reports the writable attribute of a data property.
func (p *Property) IsWritable() bool { return PropertyFlags(p.typeFlags)&PropWritable != 0 }

// IsEnumerable reports the enumerable attribute.
func (p *Property) IsEnumerable() bool { return PropertyFlags(p.typeFlags)&PropEnumerable != 0 }

// IsConfigurable reports the configurable attribute.
func (p *Property) IsConfigurable() bool { return PropertyFlags(p.typeFlags)&PropConfigurable != 0 }

// SetWritable updates the writable attribute.
func (p *Property) SetWritable(on bool) { p.setFlag(PropWritable, on) }

// SetEnumerable updates the enumerable attribute.
func (p *Property) SetEnumerable(on bool) { p.setFlag(PropEnumerable, on) }

// SetConfigurable updates the configurable attribute.
func (p *Property) SetConfigurable(on bool) { p.setFlag(PropConfigurable, on) }

func (p *Property) setFlag(f PropertyFlags, on bool) {
	if on {
		p.typeFlags |= uint8(f)
	} else {
		p.typeFlags &^= uint8(f)
	}
}

// Value returns the payload of a data property.
func (p *Property) Value() Value {
	if p.Kind() != PropData {
		panic("ecma: value of a non-data property")
	}
	return Value(p.payload)
}

func (p *Property) setValue(v Value) { p.payload = uint32(v) }

// Internal returns the opaque payload of an internal property.
func (p *Property) Internal() uint32 {
	if p.Kind() != PropInternal {
		panic("ecma: internal payload of a non-internal property")
	}
	return p.payload
}

// SetInternal updates the opaque payload of an internal property.
func (p *Property) SetInternal(payload uint32) {
	if p.Kind() != PropInternal {
		panic("ecma: internal payload of a non-internal property")
	}
	p.payload = payload
}

func (p *Property) attributes() PropertyFlags {
	return PropertyFlags(p.typeFlags) & PropFlagsAll
}

// accessorPair backs an accessor property's payload. Getter and setter
// edges are traced by the collector, not counted.
type accessorPair struct {
	getter mem.Ref
	setter mem.Ref
}

const inlineCacheSize = 3

// propList is the property storage of one object. The inline cache holds
// the indices of recently found properties; cache[0] == 0 repurposes the
// array as the attached-hashmap marker, so real entries are never zero.
type propList struct {
	cache   [inlineCacheSize]PropIndex
	hashmap mem.Ref
	live    uint32
	slots   []Property
}

func (l *propList) hashmapAttached() bool { return l.cache[0] == PropNotFound }

func (l *propList) resetCache() {
	l.cache = [inlineCacheSize]PropIndex{1, 1, 1}
}

// CreateDataProperty creates a named data property initialized to
// undefined and returns its slot index. Creating a name that already
// exists on the object is a caller bug and panics.
func (ctx *Context) CreateDataProperty(obj mem.Ref, name Name, flags PropertyFlags) PropIndex {
	return ctx.createProperty(obj, name, uint8(PropData)|uint8(flags&PropFlagsAll), uint32(Undefined))
}

// CreateAccessorProperty creates a named accessor property over the given
// getter and setter objects, either of which may be null.
func (ctx *Context) CreateAccessorProperty(obj mem.Ref, name Name, getter, setter mem.Ref, flags PropertyFlags) PropIndex {
	pair := ctx.pairs.Alloc()
	pp := ctx.pairs.At(pair)
	pp.getter = getter
	pp.setter = setter
	flags &^= PropWritable
	return ctx.createProperty(obj, name, uint8(PropAccessor)|uint8(flags&PropFlagsAll), uint32(pair))
}

// CreateInternalProperty creates a hidden property keyed by an internal
// magic name. Internal properties never appear in enumeration and carry no
// attributes.
func (ctx *Context) CreateInternalProperty(obj mem.Ref, id MagicString, payload uint32) PropIndex {
	if id < firstInternalMagic {
		panic("ecma: internal property with a visible name")
	}
	return ctx.createProperty(obj, DirectName(id), uint8(PropInternal), payload)
}

func (ctx *Context) createProperty(obj mem.Ref, name Name, typeFlags uint8, payload uint32) PropIndex {
	o := ctx.objects.At(obj)
	if !o.hasPropList() {
		panic("ecma: property on an object-bound environment")
	}
	listRef := o.u1
	if listRef == mem.Null {
		listRef = ctx.propLists.Alloc()
		list := ctx.propLists.At(listRef)
		list.resetCache()
		ctx.objects.At(obj).u1 = listRef
	}
	if ctx.findInList(listRef, name) != PropNotFound {
		panic("ecma: duplicate property " + ctx.NameText(name))
	}
	ctx.RefName(name)

	list := ctx.propLists.At(listRef)
	idx := PropNotFound
	for i := range list.slots {
		if list.slots[i].isTombstone() {
			idx = PropIndex(i + 1)
			break
		}
	}
	if idx == PropNotFound {
		old := len(list.slots)
		ctx.heap.Realloc(mem.CategoryProperty, old*propertySize, (old+1)*propertySize)
		list = ctx.propLists.At(listRef)
		list.slots = append(list.slots, Property{})
		idx = PropIndex(len(list.slots))
	}
	p := &list.slots[idx-1]
	p.typeFlags = typeFlags
	p.nameKind = name.kind
	p.name = name.ref
	p.payload = payload
	list.live++

	if list.hashmapAttached() {
		ctx.hashmapInsert(listRef, name, idx)
	} else if ctx.hashmapEnabled && int(list.live) >= ctx.hashmapThreshold {
		ctx.hashmapCreate(listRef)
	}
	return idx
}

// FindProperty returns the slot index of the named own property, or
// PropNotFound. Object-bound environments carry no property list; callers
// must resolve their binding object first.
func (ctx *Context) FindProperty(obj mem.Ref, name Name) PropIndex {
	if !ctx.objects.At(obj).hasPropList() {
		panic("ecma: lookup on an object-bound environment")
	}
	if idx := ctx.lcacheLookup(obj, name); idx != PropNotFound {
		return idx
	}
	listRef := ctx.objects.At(obj).u1
	if listRef == mem.Null {
		return PropNotFound
	}
	idx := ctx.findInList(listRef, name)
	if idx != PropNotFound {
		// Cache under the slot's stored name: a content-equal alias
		// descriptor would select a different row than invalidation.
		p := ctx.Property(obj, idx)
		ctx.lcacheInsert(obj, Name{kind: p.nameKind, ref: p.name}, idx)
	}
	return idx
}

// HasProperty reports whether the object owns the named property.
func (ctx *Context) HasProperty(obj mem.Ref, name Name) bool {
	return ctx.FindProperty(obj, name) != PropNotFound
}

func (ctx *Context) findInList(listRef mem.Ref, name Name) PropIndex {
	list := ctx.propLists.At(listRef)
	if list.hashmapAttached() {
		ctx.cacheStats.HashmapFinds++
		return ctx.hashmapFind(listRef, name)
	}
	for i, idx := range list.cache {
		if int(idx) > len(list.slots) {
			continue
		}
		p := &list.slots[idx-1]
		if !p.isTombstone() && ctx.namesEqual(name, p.nameKind, p.name) {
			ctx.cacheStats.InlineHits++
			if i != 0 {
				list.cache[i] = list.cache[0]
				list.cache[0] = idx
			}
			return idx
		}
	}
	ctx.cacheStats.LinearScans++
	for i := range list.slots {
		p := &list.slots[i]
		if !p.isTombstone() && ctx.namesEqual(name, p.nameKind, p.name) {
			idx := PropIndex(i + 1)
			list.cache[2] = list.cache[1]
			list.cache[1] = list.cache[0]
			list.cache[0] = idx
			return idx
		}
	}
	return PropNotFound
}

// Property resolves a slot index. The pointer is invalidated by the next
// property creation on any object.
func (ctx *Context) Property(obj mem.Ref, idx PropIndex) *Property {
	list := ctx.propLists.At(ctx.objects.At(obj).u1)
	return &list.slots[idx-1]
}

// PropertyName returns the name of the property at idx. The caller does not
// receive a reference.
func (ctx *Context) PropertyName(obj mem.Ref, idx PropIndex) Name {
	p := ctx.Property(obj, idx)
	return Name{kind: p.nameKind, ref: p.name}
}

// DeleteProperty removes the property at idx, tombstoning its slot. Later
// creations reuse the slot, so surviving indices stay valid.
func (ctx *Context) DeleteProperty(obj mem.Ref, idx PropIndex) {
	listRef := ctx.objects.At(obj).u1
	list := ctx.propLists.At(listRef)
	p := &list.slots[idx-1]
	if p.isTombstone() {
		panic("ecma: deleting a deleted property")
	}
	ctx.lcacheInvalidate(obj, idx, p)

	rebuild := false
	if list.hashmapAttached() {
		rebuild = ctx.hashmapDelete(listRef, idx, p)
	}
	ctx.freePropertyPayload(p)
	ctx.DerefName(Name{kind: p.nameKind, ref: p.name})
	p.typeFlags = uint8(propSpecial)
	p.nameKind = nameKindMagic
	p.name = mem.Ref(MagicDeleted)
	p.payload = 0
	list.live--

	if rebuild {
		ctx.hashmapFree(listRef)
		if ctx.hashmapEnabled && int(list.live) >= ctx.hashmapThreshold {
			ctx.hashmapCreate(listRef)
		}
	}
}

// AssignDataProperty replaces the value of a writable data property,
// releasing the previous value.
func (ctx *Context) AssignDataProperty(obj mem.Ref, idx PropIndex, v Value) {
	p := ctx.Property(obj, idx)
	if p.Kind() != PropData {
		panic("ecma: assigning a non-data property")
	}
	if !p.IsWritable() {
		panic("ecma: assigning a read-only property")
	}
	old := Value(p.payload)
	if old == v {
		return
	}
	ctx.FreeValueIfNotObject(old)
	nv := ctx.CopyValueIfNotObject(v)
	// Copying may allocate a number cell; re-resolve the slot.
	ctx.Property(obj, idx).setValue(nv)
}

// AccessorGetter returns the getter object of an accessor property, which
// may be null.
func (ctx *Context) AccessorGetter(p *Property) mem.Ref {
	if p.Kind() != PropAccessor {
		panic("ecma: getter of a non-accessor property")
	}
	return ctx.pairs.At(mem.Ref(p.payload)).getter
}

// AccessorSetter returns the setter object of an accessor property.
func (ctx *Context) AccessorSetter(p *Property) mem.Ref {
	if p.Kind() != PropAccessor {
		panic("ecma: setter of a non-accessor property")
	}
	return ctx.pairs.At(mem.Ref(p.payload)).setter
}

// SetAccessors replaces the getter and setter of an accessor property.
func (ctx *Context) SetAccessors(obj mem.Ref, idx PropIndex, getter, setter mem.Ref) {
	p := ctx.Property(obj, idx)
	if p.Kind() != PropAccessor {
		panic("ecma: setting accessors of a non-accessor property")
	}
	pp := ctx.pairs.At(mem.Ref(p.payload))
	pp.getter = getter
	pp.setter = setter
}

// OwnPropertyNames lists the names of the object's named properties in slot
// order. Internal properties are skipped.
func (ctx *Context) OwnPropertyNames(obj mem.Ref) []Name {
	o := ctx.objects.At(obj)
	if !o.hasPropList() || o.u1 == mem.Null {
		return nil
	}
	list := ctx.propLists.At(o.u1)
	var names []Name
	for i := range list.slots {
		p := &list.slots[i]
		if p.isTombstone() || p.Kind() == PropInternal {
			continue
		}
		names = append(names, Name{kind: p.nameKind, ref: p.name})
	}
	return names
}

// PropertyCount returns the number of live properties, internal ones
// included.
func (ctx *Context) PropertyCount(obj mem.Ref) int {
	o := ctx.objects.At(obj)
	if !o.hasPropList() || o.u1 == mem.Null {
		return 0
	}
	return int(ctx.propLists.At(o.u1).live)
}

func (ctx *Context) freePropertyPayload(p *Property) {
	switch p.Kind() {
	case PropData:
		ctx.FreeValueIfNotObject(Value(p.payload))
	case PropAccessor:
		ctx.pairs.Free(mem.Ref(p.payload))
	}
}

func (ctx *Context) freePropList(obj, listRef mem.Ref) {
	list := ctx.propLists.At(listRef)
	for i := range list.slots {
		p := &list.slots[i]
		if p.isTombstone() {
			continue
		}
		ctx.lcacheInvalidate(obj, PropIndex(i+1), p)
		ctx.freePropertyPayload(p)
		ctx.DerefName(Name{kind: p.nameKind, ref: p.name})
	}
	if list.hashmapAttached() {
		ctx.hashmapFree(listRef)
	}
	ctx.heap.Free(mem.CategoryProperty, len(list.slots)*propertySize)
	ctx.propLists.Free(listRef)
}
