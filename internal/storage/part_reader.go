package storage

import (
	"context"
	"fmt"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/compression"
	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// MarkRange is the half-open range of marks [Begin, End).
type MarkRange struct {
	Begin int
	End   int
}

// PartReader reads columns of a loaded part mark range by mark range. It
// holds a reference on the part until Close.
type PartReader struct {
	part         *DataPart
	columns      []types.NameAndType
	ranges       []MarkRange
	uncompressed *UncompressedCache
	marks        *MarkCache
	closed       bool
}

// Reader returns a reader of columns over ranges. Nil ranges select every
// mark. Columns the part does not have are read as default values. Both
// caches may be nil.
func (p *DataPart) Reader(columns []types.NameAndType, ranges []MarkRange, uc *UncompressedCache, mc *MarkCache) (*PartReader, error) {
	if _, err := layoutFor(p.Type); err != nil {
		return nil, err
	}
	g, err := p.IndexGranularity()
	if err != nil {
		return nil, err
	}
	marks := g.MarksCountWithoutFinal()
	if ranges == nil {
		ranges = []MarkRange{{Begin: 0, End: marks}}
	}
	for _, r := range ranges {
		if r.Begin < 0 || r.Begin > r.End || r.End > marks {
			return nil, fmt.Errorf("mark range [%d, %d) is out of bounds for part %s with %d marks",
				r.Begin, r.End, p.Name, marks)
		}
	}
	for _, c := range columns {
		if own, ok := p.Column(c.Name); ok && !own.Type.Equal(c.Type) {
			return nil, fmt.Errorf("column %s has type %s in part %s, requested %s", c.Name, own.Type, p.Name, c.Type)
		}
	}
	p.Acquire()
	return &PartReader{
		part:         p,
		columns:      columns,
		ranges:       ranges,
		uncompressed: uc,
		marks:        mc,
	}, nil
}

// Read returns every requested row as one block.
func (r *PartReader) Read(ctx context.Context) (*column.Block, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: read from closed reader of part %s", ErrLogical, r.part.Name)
	}
	g, err := r.part.IndexGranularity()
	if err != nil {
		return nil, err
	}
	var rows uint64
	for _, mr := range r.ranges {
		rows += g.RowsInRange(mr.Begin, mr.End)
	}

	names := make([]string, len(r.columns))
	cols := make([]column.Column, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.Name
		stored, err := r.part.columnStored(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("reading column %s of part %s: %w", c.Name, r.part.Name, err)
		}
		if !stored {
			cols[i] = defaultColumn(c.Type, int(rows))
			continue
		}
		col, err := r.readColumn(ctx, c, g, int(rows))
		if err != nil {
			return nil, fmt.Errorf("reading column %s of part %s: %w", c.Name, r.part.Name, err)
		}
		cols[i] = col
	}
	return column.NewBlock(names, cols), nil
}

// Close releases the reader's reference on the part.
func (r *PartReader) Close(ctx context.Context) {
	if r.closed {
		return
	}
	r.closed = true
	r.part.Release(ctx)
}

// columnStored reports whether the part holds files for c. A part without
// a manifest may lack the files of a column added after it was written.
// Such a column is read as defaults when its first substream has no marks
// file.
func (p *DataPart) columnStored(ctx context.Context, c types.NameAndType) (bool, error) {
	if _, ok := p.Column(c.Name); !ok {
		return false, nil
	}
	if !p.Checksums.Empty() {
		return true, nil
	}
	for path := range serialization.Enumerate(c.Type, p.SerializationKind(c.Name)) {
		stream, err := p.StreamFileName(ctx, serialization.FileNameForStream(c, path))
		if err != nil {
			return false, err
		}
		return p.Storage.Exists(ctx, p.GranularityInfo.MarksFileName(stream))
	}
	return false, nil
}

// streamSource is one substream file of a column.
type streamSource struct {
	file  string
	marks []Mark
	data  []byte
}

func (r *PartReader) readColumn(ctx context.Context, c types.NameAndType, g *IndexGranularity, rows int) (column.Column, error) {
	p := r.part
	kind := p.SerializationKind(c.Name)

	sources := make(map[string]*streamSource)
	for path := range serialization.Enumerate(c.Type, kind) {
		stream, err := p.StreamFileName(ctx, serialization.FileNameForStream(c, path))
		if err != nil {
			return nil, err
		}
		marks, err := r.loadMarks(ctx, stream, g)
		if err != nil {
			return nil, err
		}
		sources[path.String()] = &streamSource{file: stream + DataFileExtension, marks: marks}
	}

	out := column.NewColumnWithCapacity(c.Type, rows)
	for _, mr := range r.ranges {
		for i := mr.Begin; i < mr.End; i++ {
			get := func(path serialization.Path) ([]byte, error) {
				src, ok := sources[path.String()]
				if !ok {
					return nil, fmt.Errorf("no stream for substream %s", path)
				}
				return r.readBlock(ctx, src, src.marks[i])
			}
			col, err := serialization.DecodeStreams(c.Type, kind, int(g.MarkRows(i)), get)
			if err != nil {
				return nil, fmt.Errorf("mark %d: %w", i, err)
			}
			column.AppendColumn(out, col)
		}
	}
	return out, nil
}

func (r *PartReader) loadMarks(ctx context.Context, stream string, g *IndexGranularity) ([]Mark, error) {
	p := r.part
	name := p.GranularityInfo.MarksFileName(stream)
	key := partFilePath(p.Storage, name)
	if marks, ok := r.marks.get(key); ok {
		return marks, nil
	}
	marks, err := p.StreamMarks(ctx, stream)
	if err != nil {
		return nil, err
	}
	if len(marks) < g.MarksCountWithoutFinal() {
		return nil, fmt.Errorf("%w: marks file %s has %d marks, part has %d",
			ErrCannotReadAllMarks, key, len(marks), g.MarksCountWithoutFinal())
	}
	r.marks.add(key, marks)
	return marks, nil
}

// StreamMarks decodes the marks file of a resolved stream name.
func (p *DataPart) StreamMarks(ctx context.Context, stream string) ([]Mark, error) {
	name := p.GranularityInfo.MarksFileName(stream)
	size, err := p.Storage.FileSize(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("marks file %s: %w", partFilePath(p.Storage, name), err)
	}
	return readMarksFile(ctx, p.Storage, name, &p.GranularityInfo, int64(size))
}

// readBlock returns the decompressed block a mark points at.
func (r *PartReader) readBlock(ctx context.Context, src *streamSource, m Mark) ([]byte, error) {
	p := r.part
	key := uncompressedKey(partFilePath(p.Storage, src.file), m.OffsetInCompressedFile)
	data, ok := r.uncompressed.get(key)
	if !ok {
		if src.data == nil {
			raw, err := disk.ReadAll(ctx, p.Storage, src.file)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", partFilePath(p.Storage, src.file), err)
			}
			src.data = raw
		}
		if m.OffsetInCompressedFile >= uint64(len(src.data)) {
			return nil, fmt.Errorf("%w: mark offset %d is past the end of %s (%d bytes)",
				ErrBadSizeOfFileInDataPart, m.OffsetInCompressedFile, partFilePath(p.Storage, src.file), len(src.data))
		}
		block := src.data[m.OffsetInCompressedFile:]
		h, err := compression.ReadBlockHeader(block)
		if err != nil {
			return nil, fmt.Errorf("%w: block at offset %d of %s: %w",
				ErrBadSizeOfFileInDataPart, m.OffsetInCompressedFile, partFilePath(p.Storage, src.file), err)
		}
		total := h.CompressedSize
		if uint64(total) > uint64(len(block)) {
			return nil, fmt.Errorf("%w: block at offset %d of %s is truncated",
				ErrBadSizeOfFileInDataPart, m.OffsetInCompressedFile, partFilePath(p.Storage, src.file))
		}
		data, err = compression.DecompressBlock(block[:total])
		if err != nil {
			return nil, err
		}
		r.uncompressed.add(key, data)
	}
	if m.OffsetInDecompressedBlock > uint64(len(data)) {
		return nil, fmt.Errorf("%w: offset %d in decompressed block of %s is out of range",
			ErrBadSizeOfFileInDataPart, m.OffsetInDecompressedBlock, partFilePath(p.Storage, src.file))
	}
	return data[m.OffsetInDecompressedBlock:], nil
}

// defaultColumn returns rows default values of type t, used for columns
// added to the table after a part was written.
func defaultColumn(t types.ColumnType, rows int) column.Column {
	col := column.NewColumnWithCapacity(t, rows)
	var v types.Value
	switch t.Kind {
	case types.KindArray:
		v = []types.Value{}
	case types.KindNullable:
		v = nil
	default:
		v = types.DefaultValue(t.Innermost())
	}
	for range rows {
		col.Append(v)
	}
	return col
}
