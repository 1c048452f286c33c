package serialization_test

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/types"
)

func streamNames(col types.NameAndType, kind serialization.Kind) []string {
	var names []string
	for p := range serialization.Enumerate(col.Type, kind) {
		names = append(names, serialization.FileNameForStream(col, p))
	}
	return names
}

func TestEnumerateScalar(t *testing.T) {
	col := types.NameAndType{Name: "id", Type: types.Scalar(types.TypeUInt64)}
	assert.Equal(t, []string{"id"}, streamNames(col, serialization.KindDefault))
}

func TestEnumerateWrappers(t *testing.T) {
	cases := []struct {
		col  types.NameAndType
		want []string
	}{
		{
			types.NameAndType{Name: "tags", Type: types.Array(types.Scalar(types.TypeString))},
			[]string{"tags.size0", "tags"},
		},
		{
			types.NameAndType{Name: "x", Type: types.Nullable(types.TypeInt32)},
			[]string{"x.null", "x"},
		},
		{
			types.NameAndType{Name: "city", Type: types.LowCardinality(types.TypeString)},
			[]string{"city.dict", "city"},
		},
		{
			types.NameAndType{Name: "m", Type: types.Array(types.Array(types.Nullable(types.TypeUInt8)))},
			[]string{"m.size0", "m.size1", "m.null", "m"},
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, streamNames(tc.col, serialization.KindDefault), tc.col.Type.String())
	}
}

func TestEnumerateSparse(t *testing.T) {
	col := types.NameAndType{Name: "v", Type: types.Scalar(types.TypeUInt32)}
	assert.Equal(t, []string{"v.sparse.idx", "v"}, streamNames(col, serialization.KindSparse))
}

func TestNestedColumnsShareSizesStream(t *testing.T) {
	a := types.NameAndType{Name: "n.a", Type: types.Array(types.Scalar(types.TypeUInt32))}
	b := types.NameAndType{Name: "n.b", Type: types.Array(types.Scalar(types.TypeString))}

	assert.Equal(t, []string{"n.size0", "n%2Ea"}, streamNames(a, serialization.KindDefault))
	assert.Equal(t, []string{"n.size0", "n%2Eb"}, streamNames(b, serialization.KindDefault))
}

func TestEnumerateStopsEarly(t *testing.T) {
	ct := types.Array(types.Array(types.Scalar(types.TypeUInt8)))
	var seen []serialization.Path
	for p := range serialization.Enumerate(ct, serialization.KindDefault) {
		seen = append(seen, p)
		if len(seen) == 2 {
			break
		}
	}
	require.Len(t, seen, 2)
	assert.Equal(t, serialization.Path{serialization.ArraySizes}, seen[0])
	assert.Equal(t, serialization.Path{serialization.ArrayElements, serialization.ArraySizes}, seen[1])
}

func TestFoldThreadsAccumulator(t *testing.T) {
	ct := types.Array(types.Nullable(types.TypeUInt8))
	count := serialization.Fold(ct, serialization.KindDefault, 0, func(n int, _ serialization.Path) int {
		return n + 1
	})
	assert.Equal(t, 3, count)
}

func TestEscapeForFileName(t *testing.T) {
	assert.Equal(t, "abc_09", serialization.EscapeForFileName("abc_09"))
	assert.Equal(t, "a%2Eb%20c%2F", serialization.EscapeForFileName("a.b c/"))
	for _, s := range []string{"n.a", "weird name/%", "ünïcode"} {
		assert.Equal(t, s, serialization.UnescapeForFileName(serialization.EscapeForFileName(s)))
	}
}

func TestHashFileName(t *testing.T) {
	h := serialization.HashFileName("some_column.size0")
	assert.Len(t, h, 32)
	assert.Equal(t, h, serialization.HashFileName("some_column.size0"))
	assert.NotEqual(t, h, serialization.HashFileName("some_column.size1"))

	long := string(bytes.Repeat([]byte("x"), 200))
	assert.Equal(t, "short", serialization.StreamNameForWrite("short", true, 127))
	assert.Equal(t, serialization.HashFileName(long), serialization.StreamNameForWrite(long, true, 127))
	assert.Equal(t, long, serialization.StreamNameForWrite(long, false, 127))
}

func TestInfosRoundTrip(t *testing.T) {
	in := serialization.Infos{"b": serialization.KindSparse}
	var buf bytes.Buffer
	require.NoError(t, serialization.WriteInfos(&buf, in, []string{"a", "b"}))

	out, err := serialization.ReadInfos(&buf)
	require.NoError(t, err)
	assert.Equal(t, serialization.KindSparse, out.KindOf("b"))
	assert.Equal(t, serialization.KindDefault, out.KindOf("a"))
	assert.True(t, slices.Equal([]string{"b"}, keys(out)))
}

func keys(in serialization.Infos) []string {
	var out []string
	for k := range in {
		out = append(out, k)
	}
	return out
}
