package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/defgeneric/internal/ir"
)

func class(name string, supers ...string) ir.ClassSpec {
	return ir.ClassSpec{Name: name, Superclasses: supers}
}

func names(specs []ir.ClassSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	specs := []ir.ClassSpec{
		class("SHAPE", "USER"),
		class("CIRCLE", "SHAPE"),
		class("LABELLED"),
		class("BADGE", "CIRCLE", "LABELLED"),
	}
	assert.Empty(t, AnalyzeCycles(specs), "DAG should produce no cycles")
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	cycles := AnalyzeCycles([]ir.ClassSpec{class("A", "A")})

	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "A"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "inherits from itself")
}

func TestAnalyzeCycles_TwoNodeCycle(t *testing.T) {
	cycles := AnalyzeCycles([]ir.ClassSpec{class("A", "B"), class("B", "A")})

	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "A"}, cycles[0].Path)
	assert.Equal(t, "inheritance cycle: A → B → A", cycles[0].Message)
}

func TestAnalyzeCycles_ThreeNodeCycle(t *testing.T) {
	cycles := AnalyzeCycles([]ir.ClassSpec{
		class("B", "C"),
		class("A", "B"),
		class("C", "A", "USER"),
	})

	require.Len(t, cycles, 1)
	// Starts at the earliest declared member.
	assert.Equal(t, []string{"B", "C", "A", "B"}, cycles[0].Path)
}

func TestAnalyzeCycles_MultipleIndependentCycles(t *testing.T) {
	cycles := AnalyzeCycles([]ir.ClassSpec{
		class("X", "Y"),
		class("A", "B"),
		class("B", "A"),
		class("Y", "X"),
		class("FREE", "USER"),
	})

	require.Len(t, cycles, 2)
	assert.Equal(t, "X", cycles[0].Path[0])
	assert.Equal(t, "A", cycles[1].Path[0])
}

func TestAnalyzeCycles_Deterministic(t *testing.T) {
	specs := []ir.ClassSpec{
		class("A", "B"), class("B", "C"), class("C", "A"),
		class("D", "E"), class("E", "D"),
	}
	first := AnalyzeCycles(specs)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AnalyzeCycles(specs))
	}
}

func TestOrderClasses(t *testing.T) {
	ordered, err := OrderClasses([]ir.ClassSpec{
		class("BADGE", "CIRCLE", "LABELLED"),
		class("CIRCLE", "SHAPE"),
		class("LABELLED"),
		class("SHAPE", "USER"),
		class("LOOSE", "UNDECLARED"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"SHAPE", "CIRCLE", "LABELLED", "BADGE", "LOOSE"}, names(ordered))
}

func TestOrderClasses_KeepsOrderWithoutEdges(t *testing.T) {
	ordered, err := OrderClasses([]ir.ClassSpec{class("C"), class("A"), class("B")})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, names(ordered))
}

func TestOrderClasses_Cycle(t *testing.T) {
	_, err := OrderClasses([]ir.ClassSpec{class("A", "B"), class("B", "A")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInheritanceCycle))
}
