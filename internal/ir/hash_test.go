package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallIDDeterminism(t *testing.T) {
	args := IRArray{IRInstance{Name: "c1", Class: "CIRCLE"}, IRInt(2)}

	id1, err := CallID("call-123", "area", args, 1)
	require.NoError(t, err)

	id2, err := CallID("call-123", "area", args, 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "CallID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestCallIDChangesWithInput(t *testing.T) {
	args := IRArray{IRInt(1)}

	id1 := MustCallID("call-1", "area", args, 1)
	id2 := MustCallID("call-2", "area", args, 1)   // Different token
	id3 := MustCallID("call-1", "area", args, 2)   // Different seq
	id4 := MustCallID("call-1", "volume", args, 1) // Different generic

	assert.NotEqual(t, id1, id2, "Different tokens should produce different IDs")
	assert.NotEqual(t, id1, id3, "Different seq should produce different IDs")
	assert.NotEqual(t, id1, id4, "Different generic should produce different IDs")
}

func TestCallIDChangesWithArgs(t *testing.T) {
	id1 := MustCallID("call-1", "area", IRArray{IRString("red")}, 1)
	id2 := MustCallID("call-1", "area", IRArray{IRSymbol("red")}, 1)
	id3 := MustCallID("call-1", "area", IRArray{IRInt(1)}, 1)
	id4 := MustCallID("call-1", "area", IRArray{IRFloat(1)}, 1)

	assert.NotEqual(t, id1, id2, "String and symbol args must not collide")
	assert.NotEqual(t, id3, id4, "Integer and float args must not collide")
}

func TestExpressionHash(t *testing.T) {
	h1 := ExpressionHash("(> ?x 0)")
	h2 := ExpressionHash("(> ?x 0)")
	h3 := ExpressionHash("(> ?x 1)")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestExpressionHashNFC(t *testing.T) {
	precomposed := "(eq ?x \"\u00e9\")"
	decomposed := "(eq ?x \"e\u0301\")"
	assert.Equal(t, ExpressionHash(precomposed), ExpressionHash(decomposed))
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte(`"(> ?x 0)"`)

	assert.NotEqual(t, hashWithDomain(DomainCall, data), hashWithDomain(DomainExpression, data),
		"Different domains must produce different hashes")
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "foo" + 0x00 + "bar" ≠ "foob" + 0x00 + "ar"
	hash1 := hashWithDomain("foo", []byte("bar"))
	hash2 := hashWithDomain("foob", []byte("ar"))

	assert.NotEqual(t, hash1, hash2, "Null separator must prevent boundary confusion")
}

func TestCallIDEmptyArgs(t *testing.T) {
	id, err := CallID("call", "area", IRArray{}, 1)
	require.NoError(t, err)
	assert.Len(t, id, 64)
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, "defgeneric/call/v1", DomainCall)
	assert.Equal(t, "defgeneric/expr/v1", DomainExpression)
}

func TestMustCallIDDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		MustCallID("call", "area", IRArray{IRNull{}}, 1)
	})
}

func TestHashHexEncoding(t *testing.T) {
	id := MustCallID("call", "area", IRArray{}, 1)

	for _, c := range id {
		valid := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		assert.True(t, valid, "Hash should only contain hex characters, got: %c", c)
	}
}

func TestDefinitionsHash(t *testing.T) {
	defs := &Definitions{
		Classes: []ClassSpec{{Name: "SHAPE", Abstract: true}},
		Generics: []GenericSpec{{
			Name:    "area",
			Methods: []MethodSpec{{Params: []ParamSpec{{Name: "s", Types: []string{"SHAPE"}}}, Body: "1"}},
		}},
	}

	h1, err := DefinitionsHash(defs)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, err := DefinitionsHash(defs)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	defs.Generics[0].Methods[0].Body = "2"
	h3, err := DefinitionsHash(defs)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "body is part of the identity")

	defs.Generics[0].Methods[0].Wildcard = &ParamSpec{Name: "rest"}
	h4, err := DefinitionsHash(defs)
	require.NoError(t, err)
	assert.NotEqual(t, h3, h4, "wildcard is part of the identity")
}
