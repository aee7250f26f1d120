package ecma

import "picojs/pkg/mem"

// ObjectType tags the kind of an object or lexical environment. The tag
// space is partitioned: lexical environment types occupy the top of the
// range so a single masked comparison separates the two families.
type ObjectType uint32

const (
	ObjectTypeGeneral ObjectType = iota
	ObjectTypeClass
	ObjectTypeFunction
	ObjectTypeBoundFunction
	ObjectTypeArray
	ObjectTypeExternalFunction
	ObjectTypeArguments
)

// lexEnvTypeStart is the first lexical environment type tag.
const lexEnvTypeStart ObjectType = 13

const (
	// LexEnvDeclarative stores bindings in its own property list.
	LexEnvDeclarative ObjectType = iota + 13
	// LexEnvObjectBound forwards binding access to a binding object.
	LexEnvObjectBound
	// LexEnvHomeObjectBound carries the home object for super references.
	LexEnvHomeObjectBound
)

// Object header layout, packed into typeFlagsRefs:
//
//	bits 0..3   object or lexical environment type
//	bit  4      built-in flag (objects) / lexical environment marker (envs)
//	bit  5      extensible flag
//	bits 6..31  reference count
//
// u1 holds the property list head for ordinary objects and declarative
// environments, and the binding object for object-bound environments. u2
// holds the prototype for objects and the outer environment for
// environments.
type Object struct {
	typeFlagsRefs uint32
	u1            mem.Ref
	u2            mem.Ref
}

const (
	objectTypeMask       = 0x0f
	objectFlagLexEnv     = 0x10 // doubles as the built-in flag on objects
	objectFlagBuiltIn    = 0x10
	objectFlagExtensible = 0x20
	objectRefOne         = 0x40
	objectRefMask        = ^uint32(objectRefOne - 1)
)

// Type returns the object or environment type tag.
func (o *Object) Type() ObjectType {
	return ObjectType(o.typeFlagsRefs & objectTypeMask)
}

// IsLexEnv reports whether the record is a lexical environment. The
// environment marker and the type partition are checked together so a
// built-in object can never satisfy the test.
func (o *Object) IsLexEnv() bool {
	return o.typeFlagsRefs&(objectFlagLexEnv|objectTypeMask) >=
		objectFlagLexEnv|uint32(lexEnvTypeStart)
}

// IsBuiltIn reports the built-in flag of an ordinary object.
func (o *Object) IsBuiltIn() bool {
	return !o.IsLexEnv() && o.typeFlagsRefs&objectFlagBuiltIn != 0
}

// IsExtensible reports whether new properties may be created on the object.
func (o *Object) IsExtensible() bool {
	return o.typeFlagsRefs&objectFlagExtensible != 0
}

// SetExtensible clears or sets the extensible flag.
func (o *Object) SetExtensible(on bool) {
	if on {
		o.typeFlagsRefs |= objectFlagExtensible
	} else {
		o.typeFlagsRefs &^= objectFlagExtensible
	}
}

// Prototype returns the prototype reference of an ordinary object.
func (o *Object) Prototype() mem.Ref {
	if o.IsLexEnv() {
		panic("ecma: prototype of a lexical environment")
	}
	return o.u2
}

// OuterEnv returns the enclosing environment of a lexical environment.
func (o *Object) OuterEnv() mem.Ref {
	if !o.IsLexEnv() {
		panic("ecma: outer environment of an ordinary object")
	}
	return o.u2
}

// BindingObject returns the binding object of an object-bound environment.
func (o *Object) BindingObject() mem.Ref {
	if o.Type() != LexEnvObjectBound && o.Type() != LexEnvHomeObjectBound {
		panic("ecma: binding object of a non-object-bound environment")
	}
	return o.u1
}

// hasPropList reports whether u1 is a property list head. Object-bound
// environments alias u1 as the binding object and must never be treated as
// property carriers.
func (o *Object) hasPropList() bool {
	t := o.Type()
	return !o.IsLexEnv() || t == LexEnvDeclarative
}

// NewObject allocates an ordinary object with the given prototype, a
// reference count of one and no properties. New objects are extensible.
func (ctx *Context) NewObject(prototype mem.Ref, typ ObjectType) mem.Ref {
	if typ >= lexEnvTypeStart {
		panic("ecma: lexical environment type passed to NewObject")
	}
	r := ctx.objects.Alloc()
	o := ctx.objects.At(r)
	o.typeFlagsRefs = uint32(typ) | objectFlagExtensible | objectRefOne
	o.u1 = mem.Null
	o.u2 = prototype
	return r
}

// NewBuiltInObject is NewObject with the built-in flag set.
func (ctx *Context) NewBuiltInObject(prototype mem.Ref, typ ObjectType) mem.Ref {
	r := ctx.NewObject(prototype, typ)
	ctx.objects.At(r).typeFlagsRefs |= objectFlagBuiltIn
	return r
}

// NewDeclEnv allocates a declarative environment chained to outer.
func (ctx *Context) NewDeclEnv(outer mem.Ref) mem.Ref {
	r := ctx.objects.Alloc()
	o := ctx.objects.At(r)
	o.typeFlagsRefs = uint32(LexEnvDeclarative) | objectFlagLexEnv | objectRefOne
	o.u1 = mem.Null
	o.u2 = outer
	return r
}

// NewObjectEnv allocates an object-bound environment whose binding object
// is binding. Pass LexEnvHomeObjectBound as typ for super-reference
// environments.
func (ctx *Context) NewObjectEnv(outer, binding mem.Ref, typ ObjectType) mem.Ref {
	if typ != LexEnvObjectBound && typ != LexEnvHomeObjectBound {
		panic("ecma: NewObjectEnv needs an object-bound environment type")
	}
	r := ctx.objects.Alloc()
	o := ctx.objects.At(r)
	o.typeFlagsRefs = uint32(typ) | objectFlagLexEnv | objectRefOne
	o.u1 = binding
	o.u2 = outer
	return r
}

// Object resolves an object reference. The pointer is invalidated by the
// next object allocation.
func (ctx *Context) Object(r mem.Ref) *Object { return ctx.objects.At(r) }

// RefObject increments the object's reference count. Once the count
// saturates the object is pinned for the life of the context.
func (ctx *Context) RefObject(r mem.Ref) {
	o := ctx.objects.At(r)
	if o.typeFlagsRefs&objectRefMask == objectRefMask {
		return
	}
	o.typeFlagsRefs += objectRefOne
}

// DerefObject decrements the object's reference count, destroying the
// object when the last reference is released.
func (ctx *Context) DerefObject(r mem.Ref) {
	o := ctx.objects.At(r)
	refs := o.typeFlagsRefs & objectRefMask
	if refs == objectRefMask {
		return // pinned
	}
	if refs == 0 {
		panic("ecma: object over-released")
	}
	o.typeFlagsRefs -= objectRefOne
	if o.typeFlagsRefs&objectRefMask == 0 {
		ctx.destroyObject(r)
	}
}

func (ctx *Context) destroyObject(r mem.Ref) {
	o := ctx.objects.At(r)
	if o.hasPropList() && o.u1 != mem.Null {
		ctx.freePropList(r, o.u1)
	}
	ctx.objects.Free(r)
}

// CloneDeclEnv allocates a declarative environment holding every binding
// of the source environment. Block-scoped loop bodies clone their
// environment per iteration. With copyValues false the new bindings start
// uninitialized, for callers that re-run the initializers themselves.
func (ctx *Context) CloneDeclEnv(src mem.Ref, copyValues bool) mem.Ref {
	so := ctx.objects.At(src)
	if so.Type() != LexEnvDeclarative {
		panic("ecma: cloning a non-declarative environment")
	}
	dst := ctx.NewDeclEnv(so.OuterEnv())
	listRef := ctx.objects.At(src).u1
	if listRef == mem.Null {
		return dst
	}
	list := ctx.propLists.At(listRef)
	for i := range list.slots {
		p := &list.slots[i]
		if p.isTombstone() {
			continue
		}
		name := Name{kind: p.nameKind, ref: p.name}
		np := ctx.CreateDataProperty(dst, name, p.attributes())
		// Creating on dst may grow pools; re-resolve the source list.
		list = ctx.propLists.At(ctx.objects.At(src).u1)
		v := Uninitialized
		if copyValues {
			v = ctx.CopyValueIfNotObject(list.slots[i].Value())
		}
		ctx.Property(dst, np).setValue(v)
	}
	return dst
}
