package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/storage"
	"github.com/harshithgowdakt/widepart/internal/types"
)

func insertPart(t *testing.T, settings storage.Settings) (*storage.DataPart, string) {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	d, err := disk.NewLocalDisk(root)
	require.NoError(t, err)
	db, err := storage.NewDatabase(ctx, d, settings, 1)
	require.NoError(t, err)
	table, err := db.CreateTable(ctx, "events", storage.TableSchema{
		Columns: []storage.ColumnDef{
			{Name: "id", Type: types.Scalar(types.TypeUInt64)},
			{Name: "tags", Type: types.Array(types.Scalar(types.TypeString))},
		},
		OrderBy: []string{"id"},
	})
	require.NoError(t, err)

	ids := column.NewColumn(types.Scalar(types.TypeUInt64))
	tags := column.NewColumn(types.Array(types.Scalar(types.TypeString)))
	for i := range 10 {
		ids.Append(uint64(i))
		tags.Append([]types.Value{"x"})
	}
	parts, err := table.Insert(ctx, column.NewBlock([]string{"id", "tags"}, []column.Column{ids, tags}))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	return parts[0], filepath.Join(root, "events", parts[0].Name)
}

func TestDumpFixedGranularity(t *testing.T) {
	settings := storage.DefaultSettings()
	settings.IndexGranularity = 4
	settings.IndexGranularityBytes = 0
	p, _ := insertPart(t, settings)

	out, err := dumpPart(context.Background(), p, options{verify: true})
	require.NoError(t, err)

	assert.Equal(t, ".mrk", out.MarkType)
	assert.Equal(t, uint64(10), out.Rows)
	assert.Equal(t, []uint64{4, 4, 2}, out.Granularity.RowsPerMark)
	assert.False(t, out.Granularity.HasFinalMark)
	assert.Len(t, out.PrimaryIndex, 3)
	assert.Equal(t, []string{"8"}, out.PrimaryIndex[2])

	require.Len(t, out.Columns, 2)
	id := out.Columns[0]
	assert.True(t, id.HasFiles)
	require.Len(t, id.Streams, 1)
	assert.Equal(t, "id", id.Streams[0].File)
	require.Len(t, id.Streams[0].Marks, 3)
	assert.Equal(t, uint64(2), id.Streams[0].Marks[2].Rows)
	assert.Len(t, id.Streams[0].Blocks, 3)
	assert.Equal(t, uint32(16), id.Streams[0].Blocks[2].UncompressedSize)

	// Array(String): sizes stream plus elements stream.
	assert.Len(t, out.Columns[1].Streams, 2)
	assert.NotEmpty(t, out.Checksums)

	for _, c := range out.Checks {
		assert.Equal(t, "ok", c.Status, "%s: %s", c.Check, c.Message)
	}
	assert.Len(t, out.Checks, 3)
}

func TestDumpReportsBrokenPart(t *testing.T) {
	p, dir := insertPart(t, storage.DefaultSettings())
	require.NoError(t, os.Remove(filepath.Join(dir, "id.bin")))

	_, err := dumpPart(context.Background(), p, options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDumpChecksWithoutVerify(t *testing.T) {
	p, _ := insertPart(t, storage.DefaultSettings())
	out, err := dumpPart(context.Background(), p, options{})
	require.NoError(t, err)
	assert.Equal(t, ".mrk2", out.MarkType)
	assert.True(t, out.Granularity.HasFinalMark)
	assert.Equal(t, []checkJSON{
		{Check: "consistency", Status: "ok"},
		{Check: "column_sizes", Status: "ok"},
	}, out.Checks)
}
