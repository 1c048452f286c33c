package storage_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/storage"
)

func TestFixedShortcutAgreesWithFullParse(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{0, 1, 3, 17} {
		rows := make([]uint64, n)
		for i := range rows {
			rows[i] = 8192
		}
		marks := marksWithRows(rows...)

		d := newPartDir(t)
		d.write("x.mrk", encodeMarks(t, marks, false, false))
		d.write("y.mrk2", encodeMarks(t, marks, true, false))

		fixed := storage.IndexGranularityInfo{FixedIndexGranularity: 8192}
		short, err := storage.LoadIndexGranularity(ctx, d.storage(), &fixed, "x")
		require.NoError(t, err)

		adaptive := storage.IndexGranularityInfo{
			MarkType:              storage.MarkType{Adaptive: true},
			FixedIndexGranularity: 8192,
		}
		full, err := storage.LoadIndexGranularity(ctx, d.storage(), &adaptive, "y")
		require.NoError(t, err)

		parsed, err := storage.ReadMarks(bytes.NewReader(encodeMarks(t, marks, false, false)), false, 8192)
		require.NoError(t, err)

		assert.Equal(t, n, short.MarksCount())
		assert.Equal(t, len(parsed), short.MarksCount())
		assert.Equal(t, full.MarksCount(), short.MarksCount())
		assert.Equal(t, full.TotalRows(), short.TotalRows())
		assert.Equal(t, uint64(n*8192), short.TotalRows())
		assert.True(t, short.IsConstant())
	}
}

func TestFixedShortcutRejectsPartialMark(t *testing.T) {
	d := newPartDir(t)
	d.write("x.mrk", make([]byte, 40))
	info := storage.IndexGranularityInfo{FixedIndexGranularity: 8192}
	_, err := storage.LoadIndexGranularity(context.Background(), d.storage(), &info, "x")
	assert.ErrorIs(t, err, storage.ErrCannotReadAllMarks)
}

func TestAdaptiveGranularityRoundTrip(t *testing.T) {
	ctx := context.Background()
	sequences := [][]uint64{
		{},
		{5},
		{10, 3, 7},
		{8192, 8192, 100},
	}
	for _, compressed := range []bool{false, true} {
		for _, final := range []bool{false, true} {
			for _, seq := range sequences {
				marks := marksWithRows(seq...)
				if final {
					marks = append(marks, storage.Mark{OffsetInCompressedFile: uint64(len(seq)) * 100})
				}
				info := storage.IndexGranularityInfo{
					MarkType:              storage.MarkType{Adaptive: true, Compressed: compressed},
					FixedIndexGranularity: 8192,
				}
				d := newPartDir(t)
				d.write("x"+info.MarksFileExtension(), encodeMarks(t, marks, true, compressed))

				g, err := storage.LoadIndexGranularity(ctx, d.storage(), &info, "x")
				require.NoError(t, err)

				var want uint64
				for _, r := range seq {
					want += r
				}
				assert.Equal(t, want, g.TotalRows(), "seq=%v final=%v compressed=%v", seq, final, compressed)
				assert.Equal(t, len(marks), g.MarksCount())
				assert.Equal(t, final && len(seq) > 0, g.HasFinalMark())
			}
		}
	}
}

func TestAdaptiveRejectsPartialMark(t *testing.T) {
	d := newPartDir(t)
	d.write("x.mrk2", make([]byte, 30))
	info := storage.IndexGranularityInfo{MarkType: storage.MarkType{Adaptive: true}}
	_, err := storage.LoadIndexGranularity(context.Background(), d.storage(), &info, "x")
	assert.ErrorIs(t, err, storage.ErrCannotReadAllMarks)
}

func TestMissingMarksFile(t *testing.T) {
	d := newPartDir(t)
	info := storage.IndexGranularityInfo{FixedIndexGranularity: 8192}
	_, err := storage.LoadIndexGranularity(context.Background(), d.storage(), &info, "x")
	require.ErrorIs(t, err, storage.ErrNoFileInDataPart)
	assert.Contains(t, err.Error(), "x.mrk")
}

func TestChangeGranularityIfRequired(t *testing.T) {
	ctx := context.Background()
	d := newPartDir(t)
	d.write("x.mrk", encodeMarks(t, marksWithRows(8192, 8192), false, false))

	info := storage.NewIndexGranularityInfo(storage.DefaultSettings(), storage.PartTypeWide)
	require.True(t, info.IsAdaptive())
	require.NoError(t, info.ChangeGranularityIfRequired(ctx, d.storage()))
	assert.False(t, info.IsAdaptive())
	assert.Equal(t, ".mrk", info.MarksFileExtension())

	d2 := newPartDir(t)
	d2.write("x.cmrk2", encodeMarks(t, marksWithRows(5), true, true))
	info = storage.NewIndexGranularityInfo(fixedSettings(8192), storage.PartTypeWide)
	require.NoError(t, info.ChangeGranularityIfRequired(ctx, d2.storage()))
	assert.Equal(t, storage.MarkType{PartType: storage.PartTypeWide, Adaptive: true, Compressed: true}, info.MarkType)
	assert.True(t, info.IsAdaptive())
	assert.Equal(t, 24, info.MarkSizeInBytes())
}

func TestMarkTypeExtensions(t *testing.T) {
	for _, ext := range []string{".mrk", ".mrk2", ".mrk3", ".cmrk", ".cmrk2", ".cmrk3"} {
		mt, err := storage.ParseMarkType(ext)
		require.NoError(t, err, ext)
		assert.Equal(t, ext, mt.FileExtension())
	}
	_, err := storage.ParseMarkType(".mrk4")
	assert.Error(t, err)
	_, ok := storage.MarksExtensionOf("x.bin")
	assert.False(t, ok)
}

func TestIndexGranularityQueries(t *testing.T) {
	var b storage.IndexGranularityBuilder
	b.AppendMark(10)
	b.AppendMark(3)
	b.AppendMark(7)
	b.AppendFinalMark()
	g := b.Build()

	assert.Equal(t, 4, g.MarksCount())
	assert.Equal(t, 3, g.MarksCountWithoutFinal())
	assert.Equal(t, uint64(20), g.TotalRows())
	assert.Equal(t, uint64(13), g.MarkStartingRow(2))
	assert.Equal(t, uint64(10), g.RowsInRange(1, 3))
	assert.Equal(t, 1, g.MarkContainingRow(12))
	assert.Equal(t, []uint64{10, 3, 7, 0}, g.Sizes())

	shorter, err := g.WithLastMarkRows(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), shorter.TotalRows())
	assert.Equal(t, uint64(20), g.TotalRows())

	fixed := storage.NewFixedIndexGranularity(3, 4)
	assert.Equal(t, 2, fixed.MarkContainingRow(11))
	last, err := fixed.WithLastMarkRows(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), last.TotalRows())
	assert.Equal(t, uint64(2), last.MarkRows(2))
}
