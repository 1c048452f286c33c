package storage_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/compression"
	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/storage"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// partDir is a hand-built part directory.
type partDir struct {
	t   *testing.T
	dir string
}

func newPartDir(t *testing.T) *partDir {
	dir := filepath.Join(t.TempDir(), "all_1_1_0")
	require.NoError(t, os.MkdirAll(dir, 0755))
	return &partDir{t: t, dir: dir}
}

func (d *partDir) write(name string, data []byte) {
	require.NoError(d.t, os.WriteFile(filepath.Join(d.dir, name), data, 0644))
}

func (d *partDir) remove(name string) {
	require.NoError(d.t, os.Remove(filepath.Join(d.dir, name)))
}

func (d *partDir) storage() disk.PartStorage {
	return disk.NewLocalPartStorage(d.dir)
}

func encodeMarks(t *testing.T, marks []storage.Mark, adaptive, compressed bool) []byte {
	var buf bytes.Buffer
	if !compressed {
		require.NoError(t, storage.WriteMarks(&buf, marks, adaptive))
		return buf.Bytes()
	}
	w := compression.NewWriter(&buf, &compression.LZ4Codec{}, 0)
	require.NoError(t, storage.WriteMarks(w, marks, adaptive))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func marksWithRows(rows ...uint64) []storage.Mark {
	marks := make([]storage.Mark, len(rows))
	var offset uint64
	for i, r := range rows {
		marks[i] = storage.Mark{OffsetInCompressedFile: offset, RowsInMark: r}
		offset += 100
	}
	return marks
}

func fixedSettings(granularity uint64) storage.Settings {
	s := storage.DefaultSettings()
	s.IndexGranularity = granularity
	s.IndexGranularityBytes = 0
	return s
}

func adaptiveSettings(granularity, bytes uint64) storage.Settings {
	s := storage.DefaultSettings()
	s.IndexGranularity = granularity
	s.IndexGranularityBytes = bytes
	return s
}

func numericSchema(names ...string) *storage.TableSchema {
	schema := &storage.TableSchema{}
	for _, n := range names {
		schema.Columns = append(schema.Columns, storage.ColumnDef{Name: n, Type: types.Scalar(types.TypeUInt64)})
	}
	return schema
}

// eventsSchema covers every column shape the writer and reader handle.
func eventsSchema() storage.TableSchema {
	return storage.TableSchema{
		Columns: []storage.ColumnDef{
			{Name: "id", Type: types.Scalar(types.TypeUInt64)},
			{Name: "name", Type: types.Scalar(types.TypeString)},
			{Name: "tags", Type: types.Array(types.Scalar(types.TypeString))},
			{Name: "score", Type: types.Nullable(types.TypeFloat64)},
			{Name: "city", Type: types.LowCardinality(types.TypeString)},
			{Name: "n.a", Type: types.Array(types.Scalar(types.TypeUInt32))},
			{Name: "n.b", Type: types.Array(types.Scalar(types.TypeString))},
			{Name: "hits", Type: types.Scalar(types.TypeUInt32)},
		},
		OrderBy: []string{"id"},
	}
}

func eventsBlock(schema storage.TableSchema, rows int) *column.Block {
	cities := []string{"berlin", "lima", "osaka"}
	cols := make([]column.Column, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = column.NewColumn(c.Type)
	}
	for r := 0; r < rows; r++ {
		cols[0].Append(uint64(r))
		cols[1].Append("event-" + string(rune('a'+r%26)))
		tags := []types.Value{}
		for k := 0; k < r%3; k++ {
			tags = append(tags, cities[k])
		}
		cols[2].Append(tags)
		if r%4 == 0 {
			cols[3].Append(nil)
		} else {
			cols[3].Append(float64(r) / 2)
		}
		cols[4].Append(cities[r%len(cities)])
		a := []types.Value{}
		b := []types.Value{}
		for k := 0; k < r%2+1; k++ {
			a = append(a, uint32(r*10+k))
			b = append(b, cities[(r+k)%len(cities)])
		}
		cols[5].Append(a)
		cols[6].Append(b)
		if r%5 == 3 {
			cols[7].Append(uint32(r))
		} else {
			cols[7].Append(uint32(0))
		}
	}
	names := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		names[i] = c.Name
	}
	return column.NewBlock(names, cols)
}

func newLocalTable(t *testing.T, schema storage.TableSchema, settings storage.Settings) (*storage.MergeTreeTable, *disk.LocalDisk) {
	d, err := disk.NewLocalDisk(t.TempDir())
	require.NoError(t, err)
	db, err := storage.NewDatabase(context.Background(), d, settings, 2)
	require.NoError(t, err)
	table, err := db.CreateTable(context.Background(), "events", schema)
	require.NoError(t, err)
	return table, d
}

func readAll(t *testing.T, p *storage.DataPart, columns []types.NameAndType, ranges []storage.MarkRange) *column.Block {
	t.Helper()
	r, err := p.Reader(columns, ranges, nil, nil)
	require.NoError(t, err)
	defer r.Close(context.Background())
	block, err := r.Read(context.Background())
	require.NoError(t, err)
	return block
}

func requireSameRows(t *testing.T, want, got *column.Block, from, to int) {
	t.Helper()
	require.Equal(t, to-from, got.NumRows())
	for i, name := range got.ColumnNames {
		wc, ok := want.GetColumn(name)
		require.True(t, ok, name)
		gc := got.Columns[i]
		for r := from; r < to; r++ {
			require.Equal(t, wc.Value(r), gc.Value(r-from), "column %s row %d", name, r)
		}
	}
}
