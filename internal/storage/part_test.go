package storage_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/storage"
	"github.com/harshithgowdakt/widepart/internal/types"
)

func (d *partDir) writeManifest(files map[string]storage.Checksum) {
	ck := storage.NewChecksums()
	for name, c := range files {
		ck.Add(name, c)
	}
	var buf bytes.Buffer
	_, err := ck.WriteTo(&buf)
	require.NoError(d.t, err)
	d.write(storage.ChecksumsFileName, buf.Bytes())
}

func fixedMarks(t *testing.T, n int) []byte {
	rows := make([]uint64, n)
	for i := range rows {
		rows[i] = 8192
	}
	return encodeMarks(t, marksWithRows(rows...), false, false)
}

// twoColumnPart lays out a three-granule part with UInt64 columns a and b.
func twoColumnPart(t *testing.T, count string, manifest bool) *partDir {
	d := newPartDir(t)
	d.write(storage.ColumnsFileName, []byte("a\tUInt64\nb\tUInt64\n"))
	d.write(storage.CountFileName, []byte(count))
	d.write("a.mrk", fixedMarks(t, 3))
	d.write("b.mrk", fixedMarks(t, 3))
	d.write("a.bin", []byte("a-data"))
	d.write("b.bin", []byte("b-data"))
	if manifest {
		d.writeManifest(map[string]storage.Checksum{
			"a.bin":                 {FileSize: 100000, IsCompressed: true, UncompressedSize: 24576 * 8},
			"b.bin":                 {FileSize: 50000, IsCompressed: true, UncompressedSize: 24576 * 8},
			"a.mrk":                 {FileSize: 48},
			"b.mrk":                 {FileSize: 48},
			storage.ColumnsFileName: {FileSize: 18},
			storage.CountFileName:   {FileSize: uint64(len(count))},
		})
	}
	return d
}

func attach(t *testing.T, d *partDir, schema *storage.TableSchema, settings storage.Settings) (*storage.DataPart, error) {
	t.Helper()
	info, err := storage.ParsePartName("all_1_1_0")
	require.NoError(t, err)
	return storage.AttachPart(context.Background(), d.storage(), info, schema, settings)
}

func TestAttachWidePart(t *testing.T) {
	settings := fixedSettings(8192)
	settings.CheckColumnSizes = true
	p, err := attach(t, twoColumnPart(t, "24576\n", true), numericSchema("a", "b"), settings)
	require.NoError(t, err)

	assert.Equal(t, storage.Ready, p.LoadState())
	assert.Equal(t, storage.PartTypeWide, p.Type)
	rows, err := p.RowsCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(24576), rows)
	marks, err := p.MarksCount()
	require.NoError(t, err)
	assert.Equal(t, 3, marks)

	each, total, err := p.CalculateEachColumnSizes()
	require.NoError(t, err)
	assert.Equal(t, storage.ColumnSize{DataCompressed: 100000, DataUncompressed: 24576 * 8, Marks: 48}, each["a"])
	assert.Equal(t, uint64(150000), total.DataCompressed)
	assert.Equal(t, uint64(96), total.Marks)
	assert.Equal(t, uint64(150096), total.Total())
	assert.NoError(t, storage.VerifyColumnSizes(p, each))

	assert.True(t, p.HasColumnFiles(types.NameAndType{Name: "a", Type: types.Scalar(types.TypeUInt64)}))
	assert.False(t, p.HasColumnFiles(types.NameAndType{Name: "c", Type: types.Scalar(types.TypeUInt64)}))
	assert.Equal(t, uint64(150096+18+6), p.BytesOnDisk())
}

func TestVerifyColumnSizesMismatch(t *testing.T) {
	d := twoColumnPart(t, "24576\n", true)
	d.writeManifest(map[string]storage.Checksum{
		"a.bin":                 {FileSize: 100000, IsCompressed: true, UncompressedSize: 24576 * 8},
		"b.bin":                 {FileSize: 50000, IsCompressed: true, UncompressedSize: 24576 * 4},
		"a.mrk":                 {FileSize: 48},
		"b.mrk":                 {FileSize: 48},
		storage.ColumnsFileName: {FileSize: 18},
		storage.CountFileName:   {FileSize: 6},
	})
	settings := fixedSettings(8192)
	settings.CheckColumnSizes = true
	_, err := attach(t, d, numericSchema("a", "b"), settings)
	require.ErrorIs(t, err, storage.ErrLogical)
	assert.Contains(t, err.Error(), "column b has rows count 12288")
}

func TestConsistencyManifestMissingMarks(t *testing.T) {
	d := twoColumnPart(t, "24576\n", true)
	d.writeManifest(map[string]storage.Checksum{
		"a.bin":                 {FileSize: 100000},
		"b.bin":                 {FileSize: 50000},
		"a.mrk":                 {FileSize: 48},
		storage.ColumnsFileName: {FileSize: 18},
		storage.CountFileName:   {FileSize: 6},
	})
	_, err := attach(t, d, numericSchema("a", "b"), fixedSettings(8192))
	require.ErrorIs(t, err, storage.ErrNoFileInDataPart)
	assert.Contains(t, err.Error(), "b.mrk")

	settings := fixedSettings(8192)
	settings.RequirePartMetadata = false
	_, err = attach(t, d, numericSchema("a", "b"), settings)
	assert.NoError(t, err)
}

func TestConsistencyManifestMissingCount(t *testing.T) {
	d := twoColumnPart(t, "24576\n", true)
	d.writeManifest(map[string]storage.Checksum{
		"a.bin":                 {FileSize: 1},
		"b.bin":                 {FileSize: 1},
		"a.mrk":                 {FileSize: 48},
		"b.mrk":                 {FileSize: 48},
		storage.ColumnsFileName: {FileSize: 18},
	})
	_, err := attach(t, d, numericSchema("a", "b"), fixedSettings(8192))
	require.ErrorIs(t, err, storage.ErrNoFileInDataPart)
	assert.Contains(t, err.Error(), storage.CountFileName)
}

func TestConsistencyWithoutManifest(t *testing.T) {
	d := twoColumnPart(t, "24576\n", false)
	d.remove("b.mrk")

	p, err := attach(t, d, numericSchema("a", "b"), fixedSettings(8192))
	require.NoError(t, err, "a column added after the part was written has no files")
	assert.Nil(t, p.Checksums)

	each, total, err := p.CalculateEachColumnSizes()
	require.NoError(t, err)
	assert.Equal(t, storage.ColumnSize{}, each["a"])
	assert.Equal(t, storage.ColumnSize{}, total)

	var missing []string
	err = p.CheckConsistencyWithOptions(context.Background(), true, storage.ConsistencyOptions{
		OnMissing: func(column, file string) { missing = append(missing, column+":"+file) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b:b.mrk"}, missing)

	err = p.CheckConsistencyWithOptions(context.Background(), true, storage.ConsistencyOptions{Strict: true})
	require.ErrorIs(t, err, storage.ErrNoFileInDataPart)
	assert.Contains(t, err.Error(), "b.mrk")

	// Reading the column without files yields defaults.
	d.remove("b.bin")
	b := readAll(t, p, []types.NameAndType{{Name: "b", Type: types.Scalar(types.TypeUInt64)}}, []storage.MarkRange{{Begin: 2, End: 3}})
	require.Equal(t, 8192, b.NumRows())
	assert.Equal(t, uint64(0), b.Columns[0].Value(8191))
}

func TestConsistencyWithoutManifestBadMarks(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		d := twoColumnPart(t, "", false)
		d.remove(storage.CountFileName)
		d.write("b.mrk", nil)
		_, err := attach(t, d, numericSchema("a", "b"), fixedSettings(8192))
		require.ErrorIs(t, err, storage.ErrBadSizeOfFileInDataPart)
		assert.Contains(t, err.Error(), "b.mrk is empty")
	})
	t.Run("different sizes", func(t *testing.T) {
		d := twoColumnPart(t, "", false)
		d.remove(storage.CountFileName)
		d.write("b.mrk", fixedMarks(t, 2))
		_, err := attach(t, d, numericSchema("a", "b"), fixedSettings(8192))
		require.ErrorIs(t, err, storage.ErrBadSizeOfFileInDataPart)
		assert.Contains(t, err.Error(), "different sizes")
	})
	t.Run("empty count", func(t *testing.T) {
		d := twoColumnPart(t, "", false)
		d.write(storage.CountFileName, nil)
		_, err := attach(t, d, numericSchema("a", "b"), fixedSettings(8192))
		assert.Error(t, err)
	})
}

func TestCountReconciliation(t *testing.T) {
	t.Run("short last granule", func(t *testing.T) {
		p, err := attach(t, twoColumnPart(t, "20000\n", true), numericSchema("a", "b"), fixedSettings(8192))
		require.NoError(t, err)
		rows, err := p.RowsCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(20000), rows)
		g, err := p.IndexGranularity()
		require.NoError(t, err)
		assert.Equal(t, []uint64{8192, 8192, 3616}, g.Sizes())
	})
	t.Run("outside last granule", func(t *testing.T) {
		_, err := attach(t, twoColumnPart(t, "10000\n", true), numericSchema("a", "b"), fixedSettings(8192))
		assert.ErrorIs(t, err, storage.ErrBadSizeOfFileInDataPart)
	})
	t.Run("more rows than marks", func(t *testing.T) {
		_, err := attach(t, twoColumnPart(t, "30000\n", true), numericSchema("a", "b"), fixedSettings(8192))
		assert.ErrorIs(t, err, storage.ErrBadSizeOfFileInDataPart)
	})
}

func TestGranularityNotLoaded(t *testing.T) {
	ctx := context.Background()
	d := twoColumnPart(t, "24576\n", true)
	info, err := storage.ParsePartName("all_1_1_0")
	require.NoError(t, err)
	p := storage.NewDataPart(d.storage(), info, numericSchema("a", "b"), fixedSettings(8192))

	_, err = p.RowsCount()
	assert.ErrorIs(t, err, storage.ErrGranularityNotLoaded)
	_, _, err = p.CalculateEachColumnSizes()
	assert.ErrorIs(t, err, storage.ErrGranularityNotLoaded)
	_, err = p.ColumnSize("a")
	assert.ErrorIs(t, err, storage.ErrGranularityNotLoaded)
	assert.ErrorIs(t, p.CheckConsistency(ctx, true), storage.ErrGranularityNotLoaded)
	_, err = p.Reader(p.Columns, nil, nil, nil)
	assert.ErrorIs(t, err, storage.ErrGranularityNotLoaded)

	require.NoError(t, p.LoadIndexGranularity(ctx))
	assert.Equal(t, storage.GranularityLoaded, p.LoadState())
	assert.ErrorIs(t, p.LoadIndexGranularity(ctx), storage.ErrLogical)
}

func TestCompactPartUnsupported(t *testing.T) {
	d := newPartDir(t)
	d.write(storage.ColumnsFileName, []byte("a\tUInt64\n"))
	d.write("data.mrk3", make([]byte, 48))
	d.write("data.bin", []byte("x"))

	_, err := attach(t, d, numericSchema("a"), fixedSettings(8192))
	assert.ErrorIs(t, err, storage.ErrUnsupportedPartType)

	info, err := storage.ParsePartName("all_1_1_0")
	require.NoError(t, err)
	p := storage.NewDataPart(d.storage(), info, numericSchema("a"), fixedSettings(8192))
	p.Type = storage.PartTypeCompact
	assert.ErrorIs(t, p.LoadIndexGranularity(context.Background()), storage.ErrUnsupportedPartType)
	_, _, err = p.CalculateEachColumnSizes()
	assert.ErrorIs(t, err, storage.ErrUnsupportedPartType)
	assert.ErrorIs(t, p.CheckConsistency(context.Background(), true), storage.ErrUnsupportedPartType)
	assert.False(t, p.HasColumnFiles(p.Columns[0]))
}

func TestParsePartName(t *testing.T) {
	info, err := storage.ParsePartName("2024_01_5_9_2")
	require.NoError(t, err)
	assert.Equal(t, storage.PartInfo{PartitionID: "2024_01", MinBlock: 5, MaxBlock: 9, Level: 2}, info)
	assert.Equal(t, "2024_01_5_9_2", info.DirName())

	for _, bad := range []string{"all_1_1", "all_x_1_0", "all_5_1_0", "tmp"} {
		_, err := storage.ParsePartName(bad)
		assert.Error(t, err, bad)
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "Outdated", storage.PartOutdated.String())
	assert.Equal(t, "GranularityLoaded", storage.GranularityLoaded.String())
	assert.Equal(t, "Wide", storage.PartTypeWide.String())
}
