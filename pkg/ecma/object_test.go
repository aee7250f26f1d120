package ecma

import (
	"testing"

	"picojs/pkg/mem"
)

func newTestContext() *Context {
	return NewContext(DefaultOptions())
}

func TestObjectCreation(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	proto := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	obj := ctx.NewObject(proto, ObjectTypeFunction)

	o := ctx.Object(obj)
	if o.Type() != ObjectTypeFunction {
		t.Errorf("expected function type, got %v", o.Type())
	}
	if o.IsLexEnv() {
		t.Errorf("expected an ordinary object, got a lexical environment")
	}
	if o.IsBuiltIn() {
		t.Errorf("expected a non-built-in object")
	}
	if !o.IsExtensible() {
		t.Errorf("expected new objects to be extensible")
	}
	if o.Prototype() != proto {
		t.Errorf("expected prototype %v, got %v", proto, o.Prototype())
	}

	o.SetExtensible(false)
	if ctx.Object(obj).IsExtensible() {
		t.Errorf("expected extensible flag to clear")
	}
}

func TestBuiltInFlagDoesNotLookLikeLexEnv(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	obj := ctx.NewBuiltInObject(mem.Null, ObjectTypeClass)
	o := ctx.Object(obj)
	if !o.IsBuiltIn() {
		t.Errorf("expected the built-in flag to be set")
	}
	if o.IsLexEnv() {
		t.Errorf("expected a built-in object not to classify as a lexical environment")
	}
}

func TestLexEnvCreation(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	outer := ctx.NewDeclEnv(mem.Null)
	env := ctx.NewDeclEnv(outer)

	e := ctx.Object(env)
	if !e.IsLexEnv() {
		t.Fatalf("expected a lexical environment")
	}
	if e.Type() != LexEnvDeclarative {
		t.Errorf("expected declarative environment type, got %v", e.Type())
	}
	if e.OuterEnv() != outer {
		t.Errorf("expected outer environment %v, got %v", outer, e.OuterEnv())
	}

	binding := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	oenv := ctx.NewObjectEnv(outer, binding, LexEnvObjectBound)
	oe := ctx.Object(oenv)
	if !oe.IsLexEnv() || oe.Type() != LexEnvObjectBound {
		t.Fatalf("expected an object-bound environment, got type %v", oe.Type())
	}
	if oe.BindingObject() != binding {
		t.Errorf("expected binding object %v, got %v", binding, oe.BindingObject())
	}
}

func TestObjectRefCounting(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	base := ctx.Heap().Used()
	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	ctx.RefObject(obj)
	ctx.DerefObject(obj)
	if ctx.Heap().Used() == base {
		t.Fatalf("expected the object to survive a balanced ref/deref")
	}
	ctx.DerefObject(obj)
	if ctx.Heap().Used() != base {
		t.Errorf("expected heap usage %d after destruction, got %d", base, ctx.Heap().Used())
	}
}

func TestObjectDestructionFreesProperties(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	base := ctx.Heap().Used()
	obj := ctx.NewObject(mem.Null, ObjectTypeGeneral)

	x := ctx.NewName("x")
	s := ctx.NewName("label")
	xi := ctx.CreateDataProperty(obj, x, PropFlagsAll)
	ctx.AssignDataProperty(obj, xi, IntegerValue(42))
	si := ctx.CreateDataProperty(obj, s, PropFlagsAll)
	v := ctx.NewStringValue("hello")
	ctx.AssignDataProperty(obj, si, v)
	ctx.FreeValue(v)
	ctx.DerefName(x)
	ctx.DerefName(s)

	ctx.DerefObject(obj)
	if ctx.Heap().Used() != base {
		t.Errorf("expected heap usage %d after destroying the object, got %d", base, ctx.Heap().Used())
	}
}

func TestCloneDeclEnv(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	env := ctx.NewDeclEnv(mem.Null)
	x := ctx.NewName("x")
	y := ctx.NewName("y")
	defer ctx.DerefName(x)
	defer ctx.DerefName(y)

	xi := ctx.CreateDataProperty(env, x, PropWritable)
	ctx.AssignDataProperty(env, xi, IntegerValue(1))
	yi := ctx.CreateDataProperty(env, y, PropWritable)
	ctx.AssignDataProperty(env, yi, IntegerValue(2))

	clone := ctx.CloneDeclEnv(env, true)
	if ctx.Object(clone).OuterEnv() != mem.Null {
		t.Errorf("expected the clone to keep the outer environment")
	}

	ci := ctx.FindProperty(clone, x)
	if ci == PropNotFound {
		t.Fatalf("expected the clone to carry binding x")
	}
	ctx.AssignDataProperty(clone, ci, IntegerValue(99))

	oi := ctx.FindProperty(env, x)
	if got := ctx.Property(env, oi).Value(); got != IntegerValue(1) {
		t.Errorf("expected the source binding to stay 1, got %v", got)
	}
	if got := ctx.Property(clone, ci).Value(); got != IntegerValue(99) {
		t.Errorf("expected the clone binding to become 99, got %v", got)
	}
	if ctx.FindProperty(clone, y) == PropNotFound {
		t.Errorf("expected the clone to carry binding y")
	}

	bare := ctx.CloneDeclEnv(env, false)
	bi := ctx.FindProperty(bare, x)
	if bi == PropNotFound {
		t.Fatalf("expected a value-less clone to still carry binding x")
	}
	if got := ctx.Property(bare, bi).Value(); got != Uninitialized {
		t.Errorf("expected an uninitialized binding, got %v", got)
	}
}

func TestObjectBoundEnvHasNoProperties(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Close()

	binding := ctx.NewObject(mem.Null, ObjectTypeGeneral)
	env := ctx.NewObjectEnv(mem.Null, binding, LexEnvObjectBound)
	name := ctx.NewName("x")
	defer ctx.DerefName(name)

	defer func() {
		if recover() == nil {
			t.Errorf("expected property lookup on an object-bound environment to panic")
		}
	}()
	ctx.FindProperty(env, name)
}
