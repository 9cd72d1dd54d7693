package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	args := IRObject{
		"where": IRObject{"email": IRString("a@x")},
		"take":  IRInt(2),
	}

	fp1, err := RequestFingerprint("findManyUser", args, IRArray{IRString("id")})
	require.NoError(t, err)
	fp2, err := RequestFingerprint("findManyUser", args, IRArray{IRString("id")})
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintIgnoresRepresentation(t *testing.T) {
	a := MustFingerprint(DomainRequest, IRObject{"take": IRInt(1), "skip": IRInt(0)})
	b := MustFingerprint(DomainRequest, IRObject{"skip": IRFloat(0), "take": IRFloat(1)})
	assert.Equal(t, a, b, "key order and int/float representation must not matter")

	// "é" precomposed vs decomposed.
	c := MustFingerprint(DomainRequest, IRString("\u00e9"))
	d := MustFingerprint(DomainRequest, IRString("e\u0301"))
	assert.Equal(t, c, d)
}

func TestFingerprintChangesWithInput(t *testing.T) {
	args := IRObject{"where": IRObject{"id": IRInt(1)}}

	base, err := RequestFingerprint("findUniqueUser", args, nil)
	require.NoError(t, err)
	otherOp, err := RequestFingerprint("findUniquePost", args, nil)
	require.NoError(t, err)
	otherArgs, err := RequestFingerprint("findUniqueUser", IRObject{"where": IRObject{"id": IRInt(2)}}, nil)
	require.NoError(t, err)
	otherSel, err := RequestFingerprint("findUniqueUser", args, IRArray{IRString("id")})
	require.NoError(t, err)

	assert.NotEqual(t, base, otherOp)
	assert.NotEqual(t, base, otherArgs)
	assert.NotEqual(t, base, otherSel)
}

func TestFingerprintDomainSeparation(t *testing.T) {
	v := IRString("x")
	assert.NotEqual(t,
		MustFingerprint(DomainRequest, v),
		MustFingerprint(DomainShape, v))
}

func TestShapeFingerprintIgnoresLiterals(t *testing.T) {
	a, err := ShapeFingerprint("findManyUser", IRObject{"where": IRObject{"id": IRInt(1)}}, nil)
	require.NoError(t, err)
	b, err := ShapeFingerprint("findManyUser", IRObject{"where": IRObject{"id": IRInt(99)}}, nil)
	require.NoError(t, err)
	c, err := ShapeFingerprint("findManyUser", IRObject{"where": IRObject{"email": IRString("a")}}, nil)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestShape(t *testing.T) {
	got := Shape(IRObject{
		"a": IRInt(1),
		"b": IRArray{IRString("x"), IRBool(true)},
		"c": IRNull{},
		"d": IRFloat(1.5),
	})
	want := IRObject{
		"a": IRString("$number"),
		"b": IRArray{IRString("$string"), IRString("$bool")},
		"c": IRNull{},
		"d": IRString("$number"),
	}
	assert.True(t, Equal(got, want), String(got))
}

func TestFingerprintRejectsNonFinite(t *testing.T) {
	_, err := Fingerprint(DomainRequest, IRFloat(math.NaN()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), DomainRequest)

	assert.Panics(t, func() { MustFingerprint(DomainRequest, IRFloat(math.Inf(1))) })
}

func TestSchemaFingerprint(t *testing.T) {
	assert.Equal(t, SchemaFingerprint("model: A: {}"), SchemaFingerprint("model: A: {}"))
	assert.NotEqual(t, SchemaFingerprint("model: A: {}"), SchemaFingerprint("model: B: {}"))
}
