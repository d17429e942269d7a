package jdeserialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClassName(t *testing.T) {
	s, err := decodeClassName("Ljava/lang/String;", true)
	require.NoError(t, err)
	assert.Equal(t, "java.lang.String", s)

	s, err = decodeClassName("Ljava/lang/String;", false)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/String", s)

	_, err = decodeClassName("java/lang/String", true)
	assert.Error(t, err)
	_, err = decodeClassName("L;", true)
	assert.Error(t, err)
}

func TestResolveJavaType_Arrays(t *testing.T) {
	for _, tc := range []struct {
		descriptor string
		want       string
	}{
		{"[I", "int[]"},
		{"[[I", "int[][]"},
		{"[Z", "boolean[]"},
		{"[Ljava/lang/String;", "java.lang.String[]"},
		{"[[Ljava/lang/String;", "java.lang.String[][]"},
	} {
		got, err := resolveJavaType(FieldArray, tc.descriptor, true, false)
		require.NoError(t, err, tc.descriptor)
		assert.Equal(t, tc.want, got, tc.descriptor)
	}

	_, err := resolveJavaType(FieldArray, "[", true, false)
	assert.Error(t, err)
	_, err = resolveJavaType(FieldArray, "[IZ", true, false)
	assert.Error(t, err)
}

func TestResolveJavaType_Primitives(t *testing.T) {
	got, err := resolveJavaType(FieldInt, "", true, false)
	require.NoError(t, err)
	assert.Equal(t, "int", got)
}

func TestFixClassName(t *testing.T) {
	assert.Equal(t, "Foo", fixClassName("Foo"))
	assert.Equal(t, "$__int", fixClassName("int"))
	assert.Equal(t, "$__zerolen", fixClassName(""))
	assert.Equal(t, "$__FooxBar", fixClassName("Foo-Bar"))
	assert.Equal(t, "$__9lives", fixClassName("9lives"))
	assert.Equal(t, "Outer$Inner", fixClassName("Outer$Inner"))
}

func TestUnicodeEscape(t *testing.T) {
	assert.Equal(t, `plain`, unicodeEscape("plain"))
	assert.Equal(t, `say \"hi\"`, unicodeEscape(`say "hi"`))
	assert.Equal(t, `caf\u00e9`, unicodeEscape("caf\u00e9"))
	assert.Equal(t, `\u0007`, unicodeEscape("\a"))
}

func TestHex(t *testing.T) {
	assert.Equal(t, "0x00", hex(0))
	assert.Equal(t, "0x7e0000", hex(int64(baseWireHandle)))
	assert.Equal(t, "0xff", hex(-1))
}
