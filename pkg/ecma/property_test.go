package ecma

import (
	"testing"

	"picojs/pkg/mem"
)

func TestCreateFindDeleteRecreate(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	x := ctx.NewName("x")
	defer ctx.DerefName(x)

	idx := ctx.CreateDataProperty(obj, x, PropFlagsAll)
	ctx.AssignDataProperty(obj, idx, IntegerValue(1))

	found := ctx.FindProperty(obj, x)
	if found != idx {
		t.Fatalf("expected index %v, got %v", idx, found)
	}
	if got := ctx.Property(obj, found).Value(); got != IntegerValue(1) {
		t.Errorf("expected value 1, got %v", got)
	}

	ctx.DeleteProperty(obj, idx)
	if ctx.FindProperty(obj, x) != PropNotFound {
		t.Errorf("expected deleted property not to be found")
	}

	idx2 := ctx.CreateDataProperty(obj, x, PropFlagsAll)
	ctx.AssignDataProperty(obj, idx2, IntegerValue(2))
	if idx2 != idx {
		t.Errorf("expected the tombstoned slot %v to be reused, got %v", idx, idx2)
	}
	found = ctx.FindProperty(obj, x)
	if found == PropNotFound {
		t.Fatalf("expected recreated property to be found")
	}
	if got := ctx.Property(obj, found).Value(); got != IntegerValue(2) {
		t.Errorf("expected value 2 after recreation, got %v", got)
	}
}

func TestDuplicateCreatePanics(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	a := ctx.NewName("dup")
	b := ctx.NewName("dup") // distinct descriptor, same text
	defer ctx.DerefName(a)
	defer ctx.DerefName(b)

	ctx.CreateDataProperty(obj, a, PropFlagsAll)
	defer func() {
		if recover() == nil {
			t.Errorf("expected creating a duplicate name to panic")
		}
	}()
	ctx.CreateDataProperty(obj, b, PropFlagsAll)
}

func TestIndicesStableAcrossGrowthAndReuse(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	a := ctx.NewName("a")
	b := ctx.NewName("b")
	c := ctx.NewName("c")
	d := ctx.NewName("d")
	defer ctx.DerefName(a)
	defer ctx.DerefName(b)
	defer ctx.DerefName(c)
	defer ctx.DerefName(d)

	ai := ctx.CreateDataProperty(obj, a, PropFlagsAll)
	bi := ctx.CreateDataProperty(obj, b, PropFlagsAll)
	ci := ctx.CreateDataProperty(obj, c, PropFlagsAll)
	ctx.AssignDataProperty(obj, ai, IntegerValue(10))
	ctx.AssignDataProperty(obj, ci, IntegerValue(30))

	ctx.DeleteProperty(obj, bi)
	di := ctx.CreateDataProperty(obj, d, PropFlagsAll)
	if di != bi {
		t.Errorf("expected slot %v to be reused for the new property, got %v", bi, di)
	}

	if got := ctx.FindProperty(obj, a); got != ai {
		t.Errorf("expected index %v for a, got %v", ai, got)
	}
	if got := ctx.FindProperty(obj, c); got != ci {
		t.Errorf("expected index %v for c, got %v", ci, got)
	}
	if got := ctx.Property(obj, ai).Value(); got != IntegerValue(10) {
		t.Errorf("expected a to stay 10, got %v", got)
	}
	if got := ctx.Property(obj, ci).Value(); got != IntegerValue(30) {
		t.Errorf("expected c to stay 30, got %v", got)
	}
}

func TestMagicNames(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	length := DirectName(MagicLength)
	idx := ctx.CreateDataProperty(obj, length, 0)
	ctx.Property(obj, idx).SetWritable(true)
	ctx.Property(obj, idx).SetWritable(false)

	// A magic name and a plain string of the same text are different keys.
	str := ctx.NewName("length")
	defer ctx.DerefName(str)
	if ctx.FindProperty(obj, str) != PropNotFound {
		t.Errorf("expected a string name not to match a magic name")
	}
	if ctx.FindProperty(obj, length) != idx {
		t.Errorf("expected the magic name to be found")
	}
}

func TestAccessorProperty(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	getter := ctx.NewObject(mem.Null, ObjectTypeFunction)
	setter := ctx.NewObject(mem.Null, ObjectTypeFunction)
	name := ctx.NewName("prop")
	defer ctx.DerefName(name)

	idx := ctx.CreateAccessorProperty(obj, name, getter, mem.Null, PropEnumerable)
	p := ctx.Property(obj, idx)
	if p.Kind() != PropAccessor {
		t.Fatalf("expected an accessor property, got kind %v", p.Kind())
	}
	if p.IsWritable() {
		t.Errorf("expected accessor properties to never carry the writable bit")
	}
	if got := ctx.AccessorGetter(p); got != getter {
		t.Errorf("expected getter %v, got %v", getter, got)
	}
	if got := ctx.AccessorSetter(p); got != mem.Null {
		t.Errorf("expected a null setter, got %v", got)
	}

	ctx.SetAccessors(obj, idx, getter, setter)
	if got := ctx.AccessorSetter(ctx.Property(obj, idx)); got != setter {
		t.Errorf("expected setter %v, got %v", setter, got)
	}
}

func TestInternalProperty(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	idx := ctx.CreateInternalProperty(obj, MagicNativePointer, 0xdead)
	p := ctx.Property(obj, idx)
	if p.Kind() != PropInternal {
		t.Fatalf("expected an internal property, got kind %v", p.Kind())
	}
	if p.Internal() != 0xdead {
		t.Errorf("expected payload 0xdead, got %#x", p.Internal())
	}
	p.SetInternal(0xbeef)
	if ctx.Property(obj, idx).Internal() != 0xbeef {
		t.Errorf("expected payload to update to 0xbeef")
	}

	names := ctx.OwnPropertyNames(obj)
	if len(names) != 0 {
		t.Errorf("expected internal properties to be hidden from enumeration, got %d names", len(names))
	}
}

func TestAssignReleasesOldValue(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	name := ctx.NewName("n")
	defer ctx.DerefName(name)
	idx := ctx.CreateDataProperty(obj, name, PropFlagsAll)

	base := ctx.Heap().Used()
	v := ctx.NumberValue(3.5)
	ctx.AssignDataProperty(obj, idx, v)
	ctx.FreeValue(v)
	ctx.AssignDataProperty(obj, idx, IntegerValue(7))
	if ctx.Heap().Used() != base {
		t.Errorf("expected the old number cell to be released, heap went %d -> %d", base, ctx.Heap().Used())
	}
	if got := ctx.Property(obj, idx).Value(); got != IntegerValue(7) {
		t.Errorf("expected value 7, got %v", got)
	}
}

func TestAssignReadOnlyPanics(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	name := ctx.NewName("ro")
	defer ctx.DerefName(name)
	idx := ctx.CreateDataProperty(obj, name, PropEnumerable)

	defer func() {
		if recover() == nil {
			t.Errorf("expected assigning a read-only property to panic")
		}
	}()
	ctx.AssignDataProperty(obj, idx, IntegerValue(1))
}

func TestOwnPropertyNames(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	a := ctx.NewName("alpha")
	b := ctx.NewName("beta")
	defer ctx.DerefName(a)
	defer ctx.DerefName(b)
	ai := ctx.CreateDataProperty(obj, a, PropFlagsAll)
	ctx.CreateDataProperty(obj, b, PropFlagsAll)
	ctx.CreateInternalProperty(obj, MagicNativePointer, 0)

	ctx.DeleteProperty(obj, ai)
	names := ctx.OwnPropertyNames(obj)
	if len(names) != 1 {
		t.Fatalf("expected 1 enumerable name, got %d", len(names))
	}
	if got := ctx.NameText(names[0]); got != "beta" {
		t.Errorf("expected name beta, got %q", got)
	}
}

func TestOwnPropertyDescriptor(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	name := ctx.NewName("d")
	defer ctx.DerefName(name)
	idx := ctx.CreateDataProperty(obj, name, PropWritable|PropEnumerable)
	v := ctx.NumberValue(1.5)
	ctx.AssignDataProperty(obj, idx, v)
	ctx.FreeValue(v)

	base := ctx.Heap().Used()
	d := ctx.OwnPropertyDescriptor(obj, idx)
	if !d.HasValue || d.HasGetter || d.HasSetter {
		t.Errorf("expected a value descriptor, got %+v", d)
	}
	if !d.Writable || !d.Enumerable || d.Configurable {
		t.Errorf("expected writable+enumerable only, got %+v", d)
	}
	if ctx.NumberOf(d.Value) != 1.5 {
		t.Errorf("expected value 1.5, got %v", ctx.NumberOf(d.Value))
	}
	ctx.FreePropertyDescriptor(&d)
	if ctx.Heap().Used() != base {
		t.Errorf("expected freeing the descriptor to balance the heap, went %d -> %d", base, ctx.Heap().Used())
	}
	if d.HasValue || d.IsAccessor() {
		t.Errorf("expected an empty descriptor after free, got %+v", d)
	}

	g := ctx.NewObject(mem.Null, ObjectTypeFunction)
	an := ctx.NewName("acc")
	defer ctx.DerefName(an)
	ai := ctx.CreateAccessorProperty(obj, an, g, mem.Null, PropConfigurable)
	ad := ctx.OwnPropertyDescriptor(obj, ai)
	if !ad.IsAccessor() || ad.Getter != g || ad.Setter != mem.Null {
		t.Errorf("expected an accessor descriptor over %v, got %+v", g, ad)
	}
	if !ad.Configurable || ad.HasWritable {
		t.Errorf("expected configurable without a writable facet, got %+v", ad)
	}
	ctx.FreePropertyDescriptor(&ad)
}

func TestPropertyCount(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	if ctx.PropertyCount(obj) != 0 {
		t.Errorf("expected 0 properties on a fresh object, got %d", ctx.PropertyCount(obj))
	}
	a := ctx.NewName("a")
	defer ctx.DerefName(a)
	ai := ctx.CreateDataProperty(obj, a, PropFlagsAll)
	if ctx.PropertyCount(obj) != 1 {
		t.Errorf("expected 1 property, got %d", ctx.PropertyCount(obj))
	}
	ctx.DeleteProperty(obj, ai)
	if ctx.PropertyCount(obj) != 0 {
		t.Errorf("expected 0 properties after deletion, got %d", ctx.PropertyCount(obj))
	}
}
