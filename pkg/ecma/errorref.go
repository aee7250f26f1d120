package ecma

import "picojs/pkg/mem"

// errorReference carries a thrown value between the engine and the
// embedder. The abort flag marks errors that must terminate the script
// instead of being catchable.
type errorReference struct {
	refsAndFlags uint32
	value        Value
}

const (
	errorRefAbort = 0x1
	errorRefOne   = 0x2
)

// NewErrorReference wraps a thrown value, taking ownership of one value
// reference. The returned reference starts with a count of one.
func (ctx *Context) NewErrorReference(v Value, abort bool) mem.Ref {
	r := ctx.errorRefs.Alloc()
	e := ctx.errorRefs.At(r)
	e.refsAndFlags = errorRefOne
	if abort {
		e.refsAndFlags |= errorRefAbort
	}
	e.value = v
	return r
}

// RefErrorReference takes an additional reference. The count has no
// saturation headroom; overflow is a fatal embedder bug.
func (ctx *Context) RefErrorReference(r mem.Ref) {
	e := ctx.errorRefs.At(r)
	if e.refsAndFlags >= ^uint32(errorRefOne-1) {
		panic("ecma: error reference count overflow")
	}
	e.refsAndFlags += errorRefOne
}

// DerefErrorReference releases one reference, freeing the record and its
// value when the last one goes.
func (ctx *Context) DerefErrorReference(r mem.Ref) {
	e := ctx.errorRefs.At(r)
	if e.refsAndFlags < errorRefOne {
		panic("ecma: error reference over-released")
	}
	e.refsAndFlags -= errorRefOne
	if e.refsAndFlags&^uint32(errorRefAbort) == 0 {
		ctx.FreeValue(e.value)
		ctx.errorRefs.Free(r)
	}
}

// ErrorReferenceValue reads the carried value without transferring
// ownership.
func (ctx *Context) ErrorReferenceValue(r mem.Ref) Value {
	return ctx.errorRefs.At(r).value
}

// IsErrorReferenceAbort reports the abort flag.
func (ctx *Context) IsErrorReferenceAbort(r mem.Ref) bool {
	return ctx.errorRefs.At(r).refsAndFlags&errorRefAbort != 0
}

// SetErrorReferenceAbort updates the abort flag.
func (ctx *Context) SetErrorReferenceAbort(r mem.Ref, abort bool) {
	e := ctx.errorRefs.At(r)
	if abort {
		e.refsAndFlags |= errorRefAbort
	} else {
		e.refsAndFlags &^= uint32(errorRefAbort)
	}
}

// RaiseErrorFromReference re-raises the carried value, consuming the
// caller's reference. A sole holder transfers the value out and frees the
// record; a shared reference hands out a copy and decrements.
func (ctx *Context) RaiseErrorFromReference(r mem.Ref) Value {
	e := ctx.errorRefs.At(r)
	if e.refsAndFlags&^uint32(errorRefAbort) == errorRefOne {
		v := e.value
		ctx.errorRefs.Free(r)
		return v
	}
	v := ctx.CopyValue(e.value)
	e.refsAndFlags -= errorRefOne
	return v
}
