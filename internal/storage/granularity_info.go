package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/harshithgowdakt/widepart/internal/compression"
	"github.com/harshithgowdakt/widepart/internal/disk"
)

// IndexGranularityInfo describes the mark encoding in force for a part.
// MarkType alone says whether marks are adaptive.
type IndexGranularityInfo struct {
	MarkType MarkType
	// FixedIndexGranularity is the rows per mark when marks are not adaptive.
	FixedIndexGranularity uint64
	MarksCompressionCodec string
}

// NewIndexGranularityInfo derives the mark encoding new parts get from
// settings.
func NewIndexGranularityInfo(settings Settings, partType PartType) IndexGranularityInfo {
	adaptive := settings.IndexGranularityBytes > 0 || partType == PartTypeCompact
	return IndexGranularityInfo{
		MarkType: MarkType{
			PartType:   partType,
			Adaptive:   adaptive,
			Compressed: settings.CompressMarks,
		},
		FixedIndexGranularity: settings.IndexGranularity,
		MarksCompressionCodec: settings.MarksCompressionCodec,
	}
}

func (i *IndexGranularityInfo) IsAdaptive() bool { return i.MarkType.Adaptive }

// MarkSizeInBytes is the uncompressed size of one mark.
func (i *IndexGranularityInfo) MarkSizeInBytes() int { return markSize(i.MarkType.Adaptive) }

func (i *IndexGranularityInfo) MarksFileExtension() string { return i.MarkType.FileExtension() }

// MarksFileName returns the marks file of a resolved stream name.
func (i *IndexGranularityInfo) MarksFileName(stream string) string {
	return stream + i.MarkType.FileExtension()
}

// ChangeGranularityIfRequired switches the mark type to the one actually
// used by the files in ps. A part written without adaptive granularity loads
// as such even when settings now ask for adaptive marks.
func (i *IndexGranularityInfo) ChangeGranularityIfRequired(ctx context.Context, ps disk.PartStorage) error {
	files, err := ps.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("listing part %s: %w", ps.FullPath(), err)
	}
	for _, f := range files {
		ext, ok := MarksExtensionOf(f)
		if !ok {
			continue
		}
		mt, _ := ParseMarkType(ext)
		if mt.PartType != i.MarkType.PartType {
			continue
		}
		i.MarkType = mt
		return nil
	}
	return nil
}

// LoadIndexGranularity reconstructs the per-mark row counts of a part from
// the marks file of one stream. anyColumnFile is a resolved stream name
// without extension; every stream of a part has the same number of marks.
func LoadIndexGranularity(ctx context.Context, ps disk.PartStorage, info *IndexGranularityInfo, anyColumnFile string) (*IndexGranularity, error) {
	marksFile := info.MarksFileName(anyColumnFile)
	ok, err := ps.Exists(ctx, marksFile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: marks file '%s' doesn't exist", ErrNoFileInDataPart, partFilePath(ps, marksFile))
	}

	size, err := ps.FileSize(ctx, marksFile)
	if err != nil {
		return nil, err
	}

	if !info.MarkType.Adaptive && !info.MarkType.Compressed {
		ms := uint64(info.MarkSizeInBytes())
		if size%ms != 0 {
			return nil, fmt.Errorf("%w: marks file '%s' has size %d, not a multiple of %d",
				ErrCannotReadAllMarks, partFilePath(ps, marksFile), size, ms)
		}
		return NewFixedIndexGranularity(int(size/ms), info.FixedIndexGranularity), nil
	}

	marks, err := readMarksFile(ctx, ps, marksFile, info, int64(size))
	if err != nil {
		return nil, err
	}
	var b IndexGranularityBuilder
	for i, m := range marks {
		if info.MarkType.Adaptive && m.RowsInMark == 0 && i == len(marks)-1 && i > 0 {
			b.AppendFinalMark()
			continue
		}
		b.AppendMark(m.RowsInMark)
	}
	return b.Build(), nil
}

// readMarksFile parses a whole marks file, decompressing it first when the
// mark type is compressed.
func readMarksFile(ctx context.Context, ps disk.PartStorage, name string, info *IndexGranularityInfo, sizeHint int64) ([]Mark, error) {
	f, err := ps.ReadFile(ctx, name, sizeHint)
	if err != nil {
		return nil, fmt.Errorf("opening marks file %s: %w", partFilePath(ps, name), err)
	}
	defer f.Close()

	var r io.Reader = f
	if info.MarkType.Compressed {
		r = compression.NewReader(f)
	}
	marks, err := ReadMarks(r, info.MarkType.Adaptive, info.FixedIndexGranularity)
	if err != nil {
		return nil, fmt.Errorf("marks file %s: %w", partFilePath(ps, name), err)
	}
	loadedMarks.Add(float64(len(marks)))
	return marks, nil
}
