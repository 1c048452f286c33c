package column_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/types"
)

func TestScalarEncodeDecode(t *testing.T) {
	cases := []column.Column{
		column.NewVector(types.TypeUInt64, []uint64{1, 2, 1 << 40}),
		column.NewVector(types.TypeInt16, []int16{-3, 0, 7}),
		column.NewVector(types.TypeFloat64, []float64{1.5, -2.25}),
		column.NewVector(types.TypeDateTime, []uint32{1700000000}),
		column.NewVector(types.TypeString, []string{"", "a", "hello world"}),
	}
	for _, col := range cases {
		data, err := column.EncodeColumn(col)
		require.NoError(t, err)
		if size := col.Type().SizeOfValueInMemory(); size > 0 {
			assert.Len(t, data, size*col.Len())
		}

		out, err := column.DecodeColumn(col.Type().Scalar, data, col.Len())
		require.NoError(t, err)
		assert.Equal(t, col, out, col.Type().String())
	}
}

func TestDecodeShortData(t *testing.T) {
	_, err := column.DecodeColumn(types.TypeUInt32, []byte{1, 2, 3}, 1)
	assert.Error(t, err)
}

func TestEncodeValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, column.EncodeValue(&buf, types.TypeString, "key"))
	require.NoError(t, column.EncodeValue(&buf, types.TypeInt64, int64(-9)))

	r := bytes.NewReader(buf.Bytes())
	v, err := column.DecodeValue(r, types.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "key", v)
	v, err = column.DecodeValue(r, types.TypeInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(-9), v)
}

func TestArrayColumn(t *testing.T) {
	col := column.NewArrayColumn(types.Scalar(types.TypeUInt32))
	col.Append([]types.Value{uint32(1), uint32(2)})
	col.Append([]types.Value{})
	col.Append([]types.Value{uint32(3)})

	assert.Equal(t, 3, col.Len())
	assert.Equal(t, []uint64{2, 2, 3}, col.Offsets)
	assert.Equal(t, uint64(0), col.Size(1))
	assert.Equal(t, []types.Value{uint32(3)}, col.Value(2))
	assert.Equal(t, "Array(UInt32)", col.Type().String())

	sl := col.Slice(1, 3).(*column.ArrayColumn)
	assert.Equal(t, []uint64{0, 1}, sl.Offsets)
	assert.Equal(t, 1, sl.Elements.Len())
	assert.Equal(t, []types.Value{}, sl.Value(0))

	empty := col.Slice(2, 2)
	assert.Equal(t, 0, empty.Len())
}

func TestNullableColumn(t *testing.T) {
	col := column.NewNullableColumn(types.TypeString, 0)
	col.Append("a")
	col.Append(nil)
	col.Append("c")

	assert.Equal(t, []uint8{0, 1, 0}, col.NullMap)
	assert.Nil(t, col.Value(1))
	assert.True(t, col.IsNull(1))
	assert.Equal(t, "", col.Nested.Value(1))
	assert.Equal(t, "c", col.Slice(2, 3).Value(0))
}

func TestLowCardinalityColumn(t *testing.T) {
	lc := column.NewLowCardinalityColumn(types.TypeString, 0)
	for _, v := range []string{"a", "b", "a", "c", "a"} {
		lc.Append(v)
	}
	assert.Equal(t, 5, lc.Len())
	assert.Equal(t, 3, lc.DictLen())
	assert.Equal(t, "LowCardinality(String)", lc.Type().String())

	// Slicing compacts the dictionary to the values the slice uses.
	sl := lc.Slice(2, 5).(*column.LowCardinalityColumn)
	assert.Equal(t, 2, sl.DictLen())
	assert.Equal(t, []uint32{0, 1, 0}, sl.Indices)
	assert.Equal(t, "c", sl.Value(1))

	// Clone keeps appending into the same dictionary positions.
	cl := lc.Clone().(*column.LowCardinalityColumn)
	cl.Append("b")
	assert.Equal(t, 3, cl.DictLen())
	assert.Equal(t, uint32(1), cl.Indices[5])
	assert.Equal(t, 5, lc.Len())
}

func TestLowCardinalityFromDictionary(t *testing.T) {
	dict := column.NewColumn(types.Scalar(types.TypeString))
	dict.Append("x")
	dict.Append("y")

	lc, err := column.NewLowCardinalityFromDictionary(dict, []uint32{1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, "y", lc.Value(2))
	lc.Append("x")
	assert.Equal(t, 2, lc.DictLen())

	_, err = column.NewLowCardinalityFromDictionary(dict, []uint32{2})
	assert.Error(t, err)
}

func TestGatherAndAppend(t *testing.T) {
	v := column.NewVector(types.TypeInt32, []int32{10, 20, 30})
	g := column.Gather(v, []int{2, 0})
	assert.Equal(t, []int32{30, 10}, g.(*column.Vector[int32]).Data)

	arr := column.NewArrayColumn(types.Scalar(types.TypeUInt8))
	arr.Append([]types.Value{uint8(1)})
	arr.Append([]types.Value{uint8(2), uint8(3)})
	ga := column.Gather(arr, []int{1, 0})
	assert.Equal(t, []types.Value{uint8(2), uint8(3)}, ga.Value(0))

	column.AppendColumn(v, column.NewVector(types.TypeInt32, []int32{40}))
	assert.Equal(t, 4, v.Len())
}

func TestBlockSortBy(t *testing.T) {
	ids := column.NewVector(types.TypeUInt64, []uint64{3, 1, 2})
	tags := column.NewArrayColumn(types.Scalar(types.TypeString))
	tags.Append([]types.Value{"c"})
	tags.Append([]types.Value{"a", "a"})
	tags.Append([]types.Value{})
	block := column.NewBlock([]string{"id", "tags"}, []column.Column{ids, tags})

	require.NoError(t, block.SortBy([]string{"id"}))
	id, _ := block.GetColumn("id")
	assert.Equal(t, []uint64{1, 2, 3}, id.(*column.Vector[uint64]).Data)
	tg, _ := block.GetColumn("tags")
	assert.Equal(t, []types.Value{"a", "a"}, tg.Value(0))
	assert.Equal(t, []types.Value{}, tg.Value(1))

	assert.Error(t, block.SortBy([]string{"tags"}))
	assert.Error(t, block.SortBy([]string{"missing"}))
}

func TestBlockProjectAndAppend(t *testing.T) {
	ids := column.NewVector(types.TypeUInt64, []uint64{1, 2})
	names := column.NewVector(types.TypeString, []string{"a", "b"})
	block := column.NewBlock([]string{"id", "name"}, []column.Column{ids, names})
	require.NoError(t, block.CheckRows())

	proj, err := block.Project([]types.NameAndType{{Name: "name", Type: types.Scalar(types.TypeString)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, proj.ColumnNames)

	_, err = block.Project([]types.NameAndType{{Name: "id", Type: types.Scalar(types.TypeString)}})
	assert.Error(t, err)
	_, err = block.Project([]types.NameAndType{{Name: "missing", Type: types.Scalar(types.TypeString)}})
	assert.Error(t, err)

	clone := block.Clone()
	require.NoError(t, clone.Append(block))
	assert.Equal(t, 4, clone.NumRows())
	assert.Equal(t, 2, block.NumRows())
	assert.Error(t, clone.Append(proj))

	ids.Append(uint64(3))
	assert.Error(t, block.CheckRows())
}
