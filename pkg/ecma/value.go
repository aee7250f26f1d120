package ecma

import "picojs/pkg/mem"

// Value is the compact tagged representation stored in property slots,
// bytecode literals and error references. The low three bits select the
// kind; the payload is either an immediate (simple constants, small
// integers) or a compressed reference into one of the context's pools.
// Pool references therefore must fit in 29 bits, which bounds the heap at
// half a billion live records per pool.
type Value uint32

const (
	valueTagBits = 3
	valueTagMask = (1 << valueTagBits) - 1
)

const (
	tagSimple uint32 = iota
	tagInteger
	tagNumber
	tagString
	tagObject
	tagCode
	tagError
)

// Simple values.
const (
	Undefined     Value = Value(0<<valueTagBits | tagSimple)
	Null          Value = Value(1<<valueTagBits | tagSimple)
	False         Value = Value(2<<valueTagBits | tagSimple)
	True          Value = Value(3<<valueTagBits | tagSimple)
	Empty         Value = Value(4<<valueTagBits | tagSimple)
	Uninitialized Value = Value(5<<valueTagBits | tagSimple)
)

func makeValue(tag uint32, payload uint32) Value {
	return Value(payload<<valueTagBits | tag)
}

func (v Value) tag() uint32     { return uint32(v) & valueTagMask }
func (v Value) payload() uint32 { return uint32(v) >> valueTagBits }
func (v Value) ref() mem.Ref    { return mem.Ref(v.payload()) }

func (v Value) IsSimple() bool  { return v.tag() == tagSimple }
func (v Value) IsInteger() bool { return v.tag() == tagInteger }
func (v Value) IsNumber() bool  { return v.tag() == tagNumber }
func (v Value) IsString() bool  { return v.tag() == tagString }
func (v Value) IsObject() bool  { return v.tag() == tagObject }
func (v Value) IsCode() bool    { return v.tag() == tagCode }
func (v Value) IsError() bool   { return v.tag() == tagError }

// IntegerValue encodes a small signed integer immediate. The usable range
// is 29 bits; out-of-range integers belong in the number pool.
func IntegerValue(i int32) Value {
	return makeValue(tagInteger, uint32(i)&(1<<29-1))
}

// AsInteger decodes a small integer immediate, sign-extending the payload.
func (v Value) AsInteger() int32 {
	return int32(v.payload()<<valueTagBits) >> valueTagBits
}

// ObjectValue wraps an object reference.
func ObjectValue(r mem.Ref) Value { return makeValue(tagObject, uint32(r)) }

// StringValue wraps a string descriptor reference.
func StringValue(r mem.Ref) Value { return makeValue(tagString, uint32(r)) }

// CodeValue wraps a compiled-code reference; bytecode literals referencing
// nested functions are stored this way.
func CodeValue(r mem.Ref) Value { return makeValue(tagCode, uint32(r)) }

// ErrorValue wraps an error reference.
func ErrorValue(r mem.Ref) Value { return makeValue(tagError, uint32(r)) }

// ObjectRef extracts the object reference of an object value.
func (v Value) ObjectRef() mem.Ref { return v.ref() }

// StringRef extracts the string descriptor reference of a string value.
func (v Value) StringRef() mem.Ref { return v.ref() }

// CodeRef extracts the compiled-code reference of a code value.
func (v Value) CodeRef() mem.Ref { return v.ref() }

// ErrorRef extracts the error reference of an error value.
func (v Value) ErrorRef() mem.Ref { return v.ref() }

// NumberValue allocates a number cell and returns the referencing value.
func (ctx *Context) NumberValue(f float64) Value {
	r := ctx.numbers.Alloc()
	*ctx.numbers.At(r) = f
	return makeValue(tagNumber, uint32(r))
}

// NumberOf reads the float behind a number value.
func (ctx *Context) NumberOf(v Value) float64 {
	return *ctx.numbers.At(v.ref())
}

// StringOf reads the text behind a string value.
func (ctx *Context) StringOf(v Value) string {
	return ctx.strings.At(v.ref()).data
}

// NewStringValue allocates a string descriptor holding s.
func (ctx *Context) NewStringValue(s string) Value {
	return StringValue(ctx.newString(s))
}

// CopyValue takes a new reference on the value for an additional owner.
// Numbers are copied into a fresh cell; strings and objects gain a
// reference count.
func (ctx *Context) CopyValue(v Value) Value {
	switch v.tag() {
	case tagNumber:
		return ctx.NumberValue(*ctx.numbers.At(v.ref()))
	case tagString:
		ctx.refString(v.ref())
	case tagObject:
		ctx.RefObject(v.ref())
	}
	return v
}

// CopyValueIfNotObject is CopyValue except that object references are
// returned unchanged; the collector tracks those.
func (ctx *Context) CopyValueIfNotObject(v Value) Value {
	if v.IsObject() {
		return v
	}
	return ctx.CopyValue(v)
}

// FreeValue releases one owner's reference on the value.
func (ctx *Context) FreeValue(v Value) {
	switch v.tag() {
	case tagNumber:
		ctx.numbers.Free(v.ref())
	case tagString:
		ctx.derefString(v.ref())
	case tagObject:
		ctx.DerefObject(v.ref())
	}
}

// FreeValueIfNotObject releases the value unless it is an object
// reference. Property values hold objects without counting them; the
// collector traces those edges instead.
func (ctx *Context) FreeValueIfNotObject(v Value) {
	if !v.IsObject() {
		ctx.FreeValue(v)
	}
}
