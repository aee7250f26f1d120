package ecma

import (
	"math"
	"unsafe"

	"picojs/pkg/mem"
)

// CodeFlags describe a compiled code block.
type CodeFlags uint16

const (
	// CodeFlagStrict marks strict-mode code.
	CodeFlagStrict CodeFlags = 1 << iota
	// CodeFlagArrowFunction marks arrow function bodies.
	CodeFlagArrowFunction
	// CodeFlagStatic marks blocks mapped from a snapshot image; they are
	// not reference counted and never freed.
	CodeFlagStatic
)

// CompiledCode is a refcounted block of executable byte code. The literal
// table is split into windows: [0, constLiteralEnd) holds constant values
// owned by the block, [constLiteralEnd, literalEnd) holds references to
// nested code blocks.
type CompiledCode struct {
	refs            uint16
	flags           CodeFlags
	constLiteralEnd uint16
	literalEnd      uint16
	instructions    []byte
	literals        []Value
	taggedTemplates mem.Ref // template object array for tagged templates
	pendingNext     mem.Ref // deferred-free chain while a debugger is attached
}

var compiledCodeSize = int(unsafe.Sizeof(CompiledCode{}))

var valueSize = int(unsafe.Sizeof(Value(0)))

func codeBytes(instructions []byte, literals []Value) int {
	return compiledCodeSize + len(instructions) + len(literals)*valueSize
}

// Flags returns the block's flags.
func (c *CompiledCode) Flags() CodeFlags { return c.flags }

// Instructions returns the instruction stream.
func (c *CompiledCode) Instructions() []byte { return c.instructions }

// Literals returns the full literal table.
func (c *CompiledCode) Literals() []Value { return c.literals }

// ConstLiteralEnd returns the end of the constant literal window.
func (c *CompiledCode) ConstLiteralEnd() int { return int(c.constLiteralEnd) }

// RefCount returns the current reference count, for diagnostics.
func (c *CompiledCode) RefCount() int { return int(c.refs) }

// NewCode allocates a compiled code block owning the given instruction
// stream and literal table, with a reference count of one. Literals from
// constLiteralEnd on must be code values.
func (ctx *Context) NewCode(flags CodeFlags, instructions []byte, literals []Value, constLiteralEnd int) mem.Ref {
	if len(literals) > math.MaxUint16 || constLiteralEnd > len(literals) {
		panic("ecma: compiled code literal table out of range")
	}
	ctx.heap.Alloc(mem.CategoryByteCode, codeBytes(instructions, literals))
	r := ctx.code.Alloc()
	c := ctx.code.At(r)
	c.refs = 1
	c.flags = flags
	c.constLiteralEnd = uint16(constLiteralEnd)
	c.literalEnd = uint16(len(literals))
	c.instructions = instructions
	c.literals = literals
	return r
}

// SetTaggedTemplates attaches the template object collection of a block
// containing tagged template literals. The block owns one reference.
func (ctx *Context) SetTaggedTemplates(code, templates mem.Ref) {
	ctx.code.At(code).taggedTemplates = templates
}

// Code resolves a compiled code reference. The pointer is invalidated by
// the next code allocation.
func (ctx *Context) Code(r mem.Ref) *CompiledCode { return ctx.code.At(r) }

// RefCode takes an additional reference on a code block. The counter is
// narrow; hitting its ceiling is fatal rather than saturating, because a
// wrapped count would free live code.
func (ctx *Context) RefCode(r mem.Ref) {
	c := ctx.code.At(r)
	if c.flags&CodeFlagStatic != 0 {
		return
	}
	if c.refs == math.MaxUint16 {
		panic("ecma: compiled code reference count overflow")
	}
	c.refs++
}

// DerefCode releases one reference. When the last reference goes the block
// is freed, unless a debugger session holds it; then the free is deferred
// until the debugger lets go or detaches.
func (ctx *Context) DerefCode(r mem.Ref) {
	c := ctx.code.At(r)
	if c.flags&CodeFlagStatic != 0 {
		return
	}
	if c.refs == 0 {
		panic("ecma: compiled code over-released")
	}
	c.refs--
	if c.refs > 0 {
		return
	}
	if ctx.debugger != nil && !ctx.debugger.ReleaseByteCode(r) {
		c.pendingNext = ctx.pendingCodeFree
		ctx.pendingCodeFree = r
		return
	}
	ctx.freeCode(r)
}

func (ctx *Context) freeCode(r mem.Ref) {
	c := ctx.code.At(r)
	for i := 0; i < int(c.constLiteralEnd); i++ {
		ctx.FreeValueIfNotObject(c.literals[i])
	}
	// Nested code references cascade; a block may reference itself for
	// recursion, and that edge must not re-enter the free.
	for i := int(c.constLiteralEnd); i < int(c.literalEnd); i++ {
		child := c.literals[i].CodeRef()
		if child != r {
			ctx.DerefCode(child)
		}
		c = ctx.code.At(r)
	}
	if c.taggedTemplates != mem.Null {
		ctx.DerefObject(c.taggedTemplates)
	}
	ctx.heap.Free(mem.CategoryByteCode, codeBytes(c.instructions, c.literals))
	ctx.code.Free(r)
}

// Debugger receives byte-code lifecycle notifications from the context.
type Debugger interface {
	// ReleaseByteCode is called when the last reference to a code block is
	// dropped while the session is active. Returning false defers the free
	// until the session releases it or detaches.
	ReleaseByteCode(code mem.Ref) bool
}

// AttachDebugger connects a debugger session to the context.
func (ctx *Context) AttachDebugger(d Debugger) { ctx.debugger = d }

// DetachDebugger disconnects the debugger and flushes every code block
// whose free was deferred during the session.
func (ctx *Context) DetachDebugger() {
	ctx.debugger = nil
	for ctx.pendingCodeFree != mem.Null {
		r := ctx.pendingCodeFree
		ctx.pendingCodeFree = ctx.code.At(r).pendingNext
		ctx.freeCode(r)
	}
}

// ReleasePendingCode frees a block whose destruction the debugger deferred
// earlier. Returns false if the block is not on the pending list.
func (ctx *Context) ReleasePendingCode(code mem.Ref) bool {
	prev := mem.Null
	for r := ctx.pendingCodeFree; r != mem.Null; r = ctx.code.At(r).pendingNext {
		if r != code {
			prev = r
			continue
		}
		next := ctx.code.At(r).pendingNext
		if prev == mem.Null {
			ctx.pendingCodeFree = next
		} else {
			ctx.code.At(prev).pendingNext = next
		}
		ctx.freeCode(r)
		return true
	}
	return false
}
