package classes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/defgeneric/internal/ir"
)

// setupShapes defines SHAPE ⊃ CIRCLE and an unrelated BOX.
func setupShapes(t *testing.T) *Hierarchy {
	t.Helper()
	h := New()
	_, err := h.DefineClass("SHAPE", nil, true)
	require.NoError(t, err)
	_, err = h.DefineClass("CIRCLE", []string{"SHAPE"}, false)
	require.NoError(t, err)
	_, err = h.DefineClass("BOX", nil, false)
	require.NoError(t, err)
	return h
}

func TestSystemClassInheritance(t *testing.T) {
	h := New()

	tests := []struct {
		sub, super string
		want       bool
	}{
		{Integer, Number, true},
		{Integer, Primitive, true},
		{Integer, Object, true},
		{Float, Number, true},
		{Symbol, Lexeme, true},
		{String, Lexeme, true},
		{InstanceAddress, Instance, true},
		{InstanceAddress, Address, true},
		{InstanceName, Instance, true},
		{InstanceName, Lexeme, false},
		{Number, Integer, false},
		{Integer, Integer, false},
		{Integer, Lexeme, false},
		{InitialObject, User, true},
	}

	for _, tt := range tests {
		t.Run(tt.sub+"<"+tt.super, func(t *testing.T) {
			assert.Equal(t, tt.want, h.IsSubclassOf(h.MustLookup(tt.sub), h.MustLookup(tt.super)))
		})
	}
}

func TestDefineClassInheritsFromUser(t *testing.T) {
	h := setupShapes(t)

	circle := h.MustLookup("CIRCLE")
	assert.True(t, circle.IsSubclassOf(h.MustLookup("SHAPE")))
	assert.True(t, circle.IsSubclassOf(h.MustLookup(User)))
	assert.True(t, circle.IsSubclassOf(h.MustLookup(Object)))
	assert.False(t, circle.IsSubclassOf(h.MustLookup(Primitive)))
	assert.True(t, h.MustLookup("SHAPE").IsSuperclassOf(circle))
	assert.False(t, circle.IsSubclassOf(h.MustLookup("BOX")))
	assert.Equal(t, KindUser, circle.Kind)
	assert.False(t, circle.System())
}

func TestDefineClassErrors(t *testing.T) {
	h := setupShapes(t)

	_, err := h.DefineClass("SHAPE", nil, false)
	require.Error(t, err)

	_, err = h.DefineClass(Integer, nil, false)
	var ce *ClassError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeSystemClass, ce.Code)

	_, err = h.DefineClass("SQUARE", []string{"RECTANGLE"}, false)
	assert.True(t, IsUnknownClass(err))

	_, err = h.DefineClass("BIGNUM", []string{Integer}, false)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeSystemClass, ce.Code)

	_, err = h.DefineClass("ODD", []string{"SHAPE", "CIRCLE"}, false)
	require.Error(t, err)
	_, ok := h.Lookup("ODD")
	assert.False(t, ok)
}

func TestMultipleInheritance(t *testing.T) {
	h := setupShapes(t)
	c, err := h.DefineClass("CIRCLE-BOX", []string{"CIRCLE", "BOX"}, false)
	require.NoError(t, err)

	assert.True(t, c.IsSubclassOf(h.MustLookup("SHAPE")))
	assert.True(t, c.IsSubclassOf(h.MustLookup("BOX")))
	assert.Equal(t, "CIRCLE BOX", Names(c.Superclasses()))
}

func TestClassOf(t *testing.T) {
	h := setupShapes(t)
	c1, err := h.DefineInstance("c1", "CIRCLE")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value ir.IRValue
		want  string
	}{
		{"int", ir.IRInt(1), Integer},
		{"float", ir.IRFloat(1.5), Float},
		{"string", ir.IRString("a"), String},
		{"symbol", ir.IRSymbol("a"), Symbol},
		{"bool", ir.IRBool(true), Symbol},
		{"null", ir.IRNull{}, Symbol},
		{"multifield", ir.IRArray{}, Multifield},
		{"external", ir.IRObject{}, ExternalAddress},
		{"instance", c1, "CIRCLE"},
		{"instance name", ir.IRInstanceName("c1"), "CIRCLE"},
		{"unknown instance name", ir.IRInstanceName("nobody"), InstanceName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.ClassOf(tt.value).Name)
		})
	}
}

func TestDefineInstanceRules(t *testing.T) {
	h := setupShapes(t)

	_, err := h.DefineInstance("s1", "SHAPE")
	require.Error(t, err, "abstract class")

	_, err = h.DefineInstance("n1", Number)
	require.Error(t, err, "abstract system class")

	inst, err := h.DefineInstance("c1", "CIRCLE")
	require.NoError(t, err)
	assert.Equal(t, ir.IRInstance{Name: "c1", Class: "CIRCLE"}, inst)

	_, err = h.DefineInstance("c1", "CIRCLE")
	require.Error(t, err, "duplicate instance")

	got, ok := h.Instance("c1")
	require.True(t, ok)
	assert.Equal(t, inst, got)

	assert.True(t, h.DeleteInstance("c1"))
	assert.False(t, h.DeleteInstance("c1"))
}

func TestUndefineClassRefusedWhileReferenced(t *testing.T) {
	h := setupShapes(t)
	box := h.MustLookup("BOX")

	h.Retain(box)
	assert.Equal(t, 1, h.RefCount(box))

	err := h.UndefineClass("BOX")
	assert.True(t, IsClassInUse(err))

	h.Release(box)
	assert.Equal(t, 0, h.RefCount(box))
	require.NoError(t, h.UndefineClass("BOX"))

	_, ok := h.Lookup("BOX")
	assert.False(t, ok)
}

func TestUndefineClassRefusedWithSubclassesOrInstances(t *testing.T) {
	h := setupShapes(t)

	assert.True(t, IsClassInUse(h.UndefineClass("SHAPE")))

	_, err := h.DefineInstance("c1", "CIRCLE")
	require.NoError(t, err)
	assert.True(t, IsClassInUse(h.UndefineClass("CIRCLE")))

	require.True(t, h.DeleteInstance("c1"))
	require.NoError(t, h.UndefineClass("CIRCLE"))
	require.NoError(t, h.UndefineClass("SHAPE"))

	var ce *ClassError
	require.ErrorAs(t, h.UndefineClass(Integer), &ce)
	assert.Equal(t, ErrCodeSystemClass, ce.Code)
}

func TestReleaseUnderflowIgnored(t *testing.T) {
	h := New()
	c := h.MustLookup(Integer)
	h.Release(c)
	assert.Equal(t, 0, h.RefCount(c))
}

func TestClassesOrder(t *testing.T) {
	h := setupShapes(t)
	all := h.Classes()
	require.Len(t, all, len(systemClasses)+3)
	assert.Equal(t, Object, all[0].Name)
	assert.Equal(t, "BOX", all[len(all)-1].Name)
}

func TestRelated(t *testing.T) {
	h := setupShapes(t)
	shape, circle, box := h.MustLookup("SHAPE"), h.MustLookup("CIRCLE"), h.MustLookup("BOX")

	assert.True(t, Related(shape, circle))
	assert.True(t, Related(circle, shape))
	assert.True(t, Related(box, box))
	assert.False(t, Related(circle, box))
}
