package ecma

import "picojs/pkg/mem"

// MagicString identifies a built-in name literal. Magic names are stored
// directly in property slots without a string descriptor allocation.
type MagicString uint32

const (
	// MagicDeleted marks tombstoned slots; it never names a live property.
	MagicDeleted MagicString = iota
	MagicLength
	MagicPrototype
	MagicConstructor
	MagicValue
	MagicToString

	// Internal magic names are never visible to scripts; internal
	// (native-pointer) properties are keyed by them.
	MagicNativePointer
	MagicEnvironmentRecord
)

// firstInternalMagic partitions user-visible from internal magic names.
const firstInternalMagic = MagicNativePointer

var magicTexts = map[MagicString]string{
	MagicLength:      "length",
	MagicPrototype:   "prototype",
	MagicConstructor: "constructor",
	MagicValue:       "value",
	MagicToString:    "toString",
}

type nameKind uint8

const (
	nameKindMagic  nameKind = iota + 1 // inline literal tag
	nameKindString                     // string descriptor reference
)

// Name is a property name handle: either an inline magic literal or a
// compressed reference to a refcounted string descriptor.
type Name struct {
	kind nameKind
	ref  mem.Ref
}

// DirectName wraps a magic literal as a property name. No allocation.
func DirectName(id MagicString) Name {
	return Name{kind: nameKindMagic, ref: mem.Ref(id)}
}

// IsDirect reports whether the name is a magic literal.
func (n Name) IsDirect() bool { return n.kind == nameKindMagic }

// stringDesc is a refcounted string descriptor with its hash precomputed
// at creation, so probing and row selection never rescan the text.
type stringDesc struct {
	refs uint32
	hash uint32
	data string
}

const stringRefMax = ^uint32(0)

func stringHash(s string) uint32 {
	// FNV-1a.
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func magicHash(id MagicString) uint32 {
	return uint32(id) * 2654435761
}

func (ctx *Context) newString(s string) mem.Ref {
	ctx.heap.Alloc(mem.CategoryString, len(s))
	r := ctx.strings.Alloc()
	d := ctx.strings.At(r)
	d.refs = 1
	d.hash = stringHash(s)
	d.data = s
	return r
}

func (ctx *Context) refString(r mem.Ref) {
	d := ctx.strings.At(r)
	if d.refs < stringRefMax {
		d.refs++
	}
	// At the maximum the descriptor is pinned.
}

func (ctx *Context) derefString(r mem.Ref) {
	d := ctx.strings.At(r)
	if d.refs == stringRefMax {
		return // pinned
	}
	if d.refs == 0 {
		panic("ecma: string descriptor over-released")
	}
	d.refs--
	if d.refs == 0 {
		ctx.heap.Free(mem.CategoryString, len(d.data))
		ctx.strings.Free(r)
	}
}

// NewName allocates a string-descriptor name with reference count one.
func (ctx *Context) NewName(s string) Name {
	return Name{kind: nameKindString, ref: ctx.newString(s)}
}

// RefName takes an additional reference on a name. Magic names are not
// counted.
func (ctx *Context) RefName(n Name) {
	if n.kind == nameKindString {
		ctx.refString(n.ref)
	}
}

// DerefName releases one reference on a name.
func (ctx *Context) DerefName(n Name) {
	if n.kind == nameKindString {
		ctx.derefString(n.ref)
	}
}

// NameText returns the text of a name, for diagnostics and enumeration.
func (ctx *Context) NameText(n Name) string {
	if n.kind == nameKindMagic {
		return magicTexts[MagicString(n.ref)]
	}
	return ctx.strings.At(n.ref).data
}

func (ctx *Context) nameHash(n Name) uint32 {
	if n.kind == nameKindMagic {
		return magicHash(MagicString(n.ref))
	}
	return ctx.strings.At(n.ref).hash
}

func (ctx *Context) slotNameHash(kind nameKind, ref mem.Ref) uint32 {
	if kind == nameKindMagic {
		return magicHash(MagicString(ref))
	}
	return ctx.strings.At(ref).hash
}

// namesEqual compares a lookup name against a slot's stored name fields.
// Two distinct descriptors holding the same text are equal.
func (ctx *Context) namesEqual(n Name, slotKind nameKind, slotRef mem.Ref) bool {
	if n.kind != slotKind {
		return false
	}
	if n.ref == slotRef {
		return true
	}
	if n.kind != nameKindString {
		return false
	}
	a, b := ctx.strings.At(n.ref), ctx.strings.At(slotRef)
	return a.hash == b.hash && a.data == b.data
}
