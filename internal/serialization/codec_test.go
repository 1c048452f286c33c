package serialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/types"
)

func roundTrip(t *testing.T, col column.Column, kind serialization.Kind) column.Column {
	t.Helper()
	streams, err := serialization.EncodeStreams(col, kind)
	require.NoError(t, err)

	// Every enumerated path has data and nothing else is produced.
	n := 0
	for p := range serialization.Enumerate(col.Type(), kind) {
		_, err := streams.Get(p)
		require.NoError(t, err, p.String())
		n++
	}
	assert.Len(t, streams, n)

	out, err := serialization.DecodeStreams(col.Type(), kind, col.Len(), streams.Get)
	require.NoError(t, err)
	return out
}

func TestStreamsNestedArrays(t *testing.T) {
	col := column.NewArrayColumn(types.Array(types.Nullable(types.TypeInt32)))
	// Array(Array(Nullable(Int32)))
	col.Append([]types.Value{[]types.Value{int32(1), nil}, []types.Value{}})
	col.Append([]types.Value{})
	col.Append([]types.Value{[]types.Value{int32(7)}})
	assert.Equal(t, 4, len(streamNames(types.NameAndType{Name: "m", Type: col.Type()}, serialization.KindDefault)))

	out := roundTrip(t, col, serialization.KindDefault)
	require.Equal(t, 3, out.Len())
	for i := 0; i < col.Len(); i++ {
		assert.Equal(t, col.Value(i), out.Value(i))
	}
}

func TestStreamsLowCardinality(t *testing.T) {
	col := column.NewLowCardinalityColumn(types.TypeString, 0)
	for _, v := range []string{"eu", "us", "eu", "ap"} {
		col.Append(v)
	}
	out := roundTrip(t, col, serialization.KindDefault)
	for i := 0; i < col.Len(); i++ {
		assert.Equal(t, col.Value(i), out.Value(i))
	}
	assert.Equal(t, 3, out.(*column.LowCardinalityColumn).DictLen())
}

func TestStreamsSparse(t *testing.T) {
	col := column.NewVector(types.TypeUInt32, []uint32{0, 0, 5, 0, 0, 0, 9, 0})
	assert.Equal(t, serialization.KindSparse, serialization.ChooseKind(col, 0.5))
	assert.Equal(t, serialization.KindDefault, serialization.ChooseKind(col, 1))

	streams, err := serialization.EncodeStreams(col, serialization.KindSparse)
	require.NoError(t, err)
	values, err := streams.Get(serialization.Path{serialization.SparseElements, serialization.Regular})
	require.NoError(t, err)
	assert.Len(t, values, 8)

	out := roundTrip(t, col, serialization.KindSparse)
	assert.Equal(t, col.Data, out.(*column.Vector[uint32]).Data)
}

func TestDecodeStreamsRejectsBadIndexes(t *testing.T) {
	ct := types.LowCardinality(types.TypeString)
	streams := serialization.Streams{
		serialization.Path{serialization.DictionaryKeys}.String():    {1, 1, 'a'},
		serialization.Path{serialization.DictionaryIndexes}.String(): {5, 0, 0, 0},
	}
	_, err := serialization.DecodeStreams(ct, serialization.KindDefault, 1, streams.Get)
	assert.Error(t, err)

	_, err = serialization.DecodeStreams(types.Scalar(types.TypeUInt64), serialization.KindDefault, 1, serialization.Streams{}.Get)
	assert.Error(t, err)
}
