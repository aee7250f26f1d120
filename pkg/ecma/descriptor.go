package ecma

import "picojs/pkg/mem"

// PropertyDescriptor is the caller-facing view of a property for
// define/get-own-property style operations. Each facet carries a presence
// flag; an empty descriptor defines nothing.
type PropertyDescriptor struct {
	Value  Value
	Getter mem.Ref
	Setter mem.Ref

	Writable     bool
	Enumerable   bool
	Configurable bool

	HasValue        bool
	HasGetter       bool
	HasSetter       bool
	HasWritable     bool
	HasEnumerable   bool
	HasConfigurable bool
}

// EmptyPropertyDescriptor returns a descriptor with no facets present.
func EmptyPropertyDescriptor() PropertyDescriptor {
	return PropertyDescriptor{Value: Undefined}
}

// IsAccessor reports whether the descriptor describes an accessor.
func (d *PropertyDescriptor) IsAccessor() bool { return d.HasGetter || d.HasSetter }

// OwnPropertyDescriptor fills a descriptor from the property at idx.
func (ctx *Context) OwnPropertyDescriptor(obj mem.Ref, idx PropIndex) PropertyDescriptor {
	p := ctx.Property(obj, idx)
	d := EmptyPropertyDescriptor()
	d.Enumerable = p.IsEnumerable()
	d.HasEnumerable = true
	d.Configurable = p.IsConfigurable()
	d.HasConfigurable = true
	switch p.Kind() {
	case PropData:
		d.Value = ctx.CopyValue(p.Value())
		d.HasValue = true
		d.Writable = p.IsWritable()
		d.HasWritable = true
	case PropAccessor:
		d.Getter = ctx.AccessorGetter(p)
		d.HasGetter = true
		d.Setter = ctx.AccessorSetter(p)
		d.HasSetter = true
	default:
		panic("ecma: descriptor of an internal property")
	}
	return d
}

// FreePropertyDescriptor releases the references a descriptor holds.
func (ctx *Context) FreePropertyDescriptor(d *PropertyDescriptor) {
	if d.HasValue {
		ctx.FreeValue(d.Value)
	}
	*d = EmptyPropertyDescriptor()
}
