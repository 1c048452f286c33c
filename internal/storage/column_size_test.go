package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/storage"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// nestedPart lays out a one-granule part of a Nested table n with columns
// in the given order. Both columns share the n.size0 stream.
func nestedPart(t *testing.T, columns ...string) *partDir {
	typeOf := map[string]types.ColumnType{
		"n.a": types.Array(types.Scalar(types.TypeUInt32)),
		"n.b": types.Array(types.Scalar(types.TypeString)),
	}
	var txt string
	for _, c := range columns {
		txt += c + "\t" + typeOf[c].String() + "\n"
	}

	d := newPartDir(t)
	d.write(storage.ColumnsFileName, []byte(txt))
	d.write(storage.CountFileName, []byte("8192\n"))
	for _, stream := range []string{"n.size0", "n%2Ea", "n%2Eb"} {
		d.write(stream+".mrk", fixedMarks(t, 1))
	}
	d.writeManifest(map[string]storage.Checksum{
		"n.size0.bin":           {FileSize: 10, UncompressedSize: 80},
		"n.size0.mrk":           {FileSize: 16},
		"n%2Ea.bin":             {FileSize: 20, UncompressedSize: 100},
		"n%2Ea.mrk":             {FileSize: 16},
		"n%2Eb.bin":             {FileSize: 30, UncompressedSize: 200},
		"n%2Eb.mrk":             {FileSize: 16},
		storage.ColumnsFileName: {FileSize: uint64(len(txt))},
		storage.CountFileName:   {FileSize: 5},
	})
	return d
}

func TestSharedSubstreamCountedOnce(t *testing.T) {
	p, err := attach(t, nestedPart(t, "n.a", "n.b"), nil, fixedSettings(8192))
	require.NoError(t, err)

	for range 2 {
		each, total, err := p.CalculateEachColumnSizes()
		require.NoError(t, err)
		assert.Equal(t, storage.ColumnSize{DataCompressed: 30, DataUncompressed: 180, Marks: 32}, each["n.a"])
		assert.Equal(t, storage.ColumnSize{DataCompressed: 30, DataUncompressed: 200, Marks: 16}, each["n.b"])
		assert.Equal(t, storage.ColumnSize{DataCompressed: 60, DataUncompressed: 380, Marks: 48}, total)
	}

	own, err := p.ColumnSize("n.b")
	require.NoError(t, err)
	assert.Equal(t, storage.ColumnSize{DataCompressed: 40, DataUncompressed: 280, Marks: 32}, own)

	_, err = p.ColumnSize("missing")
	assert.Error(t, err)
}

func TestSharedSubstreamGoesToFirstColumn(t *testing.T) {
	p, err := attach(t, nestedPart(t, "n.b", "n.a"), nil, fixedSettings(8192))
	require.NoError(t, err)

	each, total, err := p.CalculateEachColumnSizes()
	require.NoError(t, err)
	assert.Equal(t, uint64(40), each["n.b"].DataCompressed)
	assert.Equal(t, uint64(20), each["n.a"].DataCompressed)
	assert.Equal(t, uint64(60), total.DataCompressed)
}

func TestColumnSizeTotal(t *testing.T) {
	var s storage.ColumnSize
	s.Add(storage.ColumnSize{DataCompressed: 5, DataUncompressed: 9, Marks: 2})
	s.Add(storage.ColumnSize{DataCompressed: 1, Marks: 1})
	assert.Equal(t, storage.ColumnSize{DataCompressed: 6, DataUncompressed: 9, Marks: 3}, s)
	assert.Equal(t, uint64(9), s.Total())
}
