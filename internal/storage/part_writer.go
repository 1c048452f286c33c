package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/compression"
	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/logging"
	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// NewTemporaryPart reserves a new part on d. Its files are invisible until
// the writer obtained from Writer is finalized.
func NewTemporaryPart(ctx context.Context, d disk.Disk, table string, info PartInfo, schema *TableSchema, settings Settings) (*DataPart, error) {
	ws, err := d.NewPartWriteStorage(ctx, table, info.DirName())
	if err != nil {
		return nil, fmt.Errorf("creating part %s: %w", info.DirName(), err)
	}
	p := NewDataPart(nil, info, schema, settings)
	p.writeStorage = ws
	p.SetState(PartTemporary)
	return p, nil
}

// PartWriter produces the files of a new Wide part.
type PartWriter struct {
	part    *DataPart
	columns []types.NameAndType
	codec   compression.Codec
	pending *column.Block

	checksums *Checksums
	done      bool
}

// Writer returns a writer for columns of a Temporary part. A nil codec
// selects the part's compression_codec setting.
func (p *DataPart) Writer(columns []types.NameAndType, codec compression.Codec) *PartWriter {
	return &PartWriter{
		part:      p,
		columns:   columns,
		codec:     codec,
		checksums: NewChecksums(),
	}
}

// Write buffers block. The block must hold every writer column, belong to a
// single partition and be sorted by the ORDER BY columns.
func (w *PartWriter) Write(_ context.Context, block *column.Block) error {
	if w.done {
		return fmt.Errorf("%w: write to finalized part %s", ErrLogical, w.part.Name)
	}
	if err := block.CheckRows(); err != nil {
		return fmt.Errorf("part %s: %w", w.part.Name, err)
	}
	sel, err := block.Project(w.columns)
	if err != nil {
		return fmt.Errorf("part %s: %w", w.part.Name, err)
	}
	if w.pending == nil {
		w.pending = sel.Clone()
		return nil
	}
	return w.pending.Append(sel)
}

// Finalize writes every file of the part and commits it. The returned
// storage can be passed to AttachPart.
func (w *PartWriter) Finalize(ctx context.Context) (disk.PartStorage, error) {
	if w.done {
		return nil, fmt.Errorf("%w: part %s is already finalized", ErrLogical, w.part.Name)
	}
	ws := w.part.writeStorage
	if ws == nil {
		return nil, fmt.Errorf("%w: part %s is not a temporary part", ErrLogical, w.part.Name)
	}
	w.done = true

	ps, err := w.finalize(ctx, ws)
	if err != nil {
		if rbErr := ws.Rollback(ctx); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return nil, err
	}
	w.part.writeStorage = nil
	w.part.Storage = ps
	return ps, nil
}

// Cancel discards everything written so far.
func (w *PartWriter) Cancel(ctx context.Context) error {
	w.done = true
	if ws := w.part.writeStorage; ws != nil {
		w.part.writeStorage = nil
		return ws.Rollback(ctx)
	}
	return nil
}

func (w *PartWriter) columnNames() []string {
	names := make([]string, len(w.columns))
	for i, c := range w.columns {
		names[i] = c.Name
	}
	return names
}

func (w *PartWriter) finalize(ctx context.Context, ws disk.PartWriteStorage) (disk.PartStorage, error) {
	settings := w.part.Settings
	block := w.pending
	if block == nil || block.NumRows() == 0 {
		return nil, fmt.Errorf("%w: part %s has no rows", ErrLogical, w.part.Name)
	}
	codec := w.codec
	if codec == nil {
		c, err := compression.CodecByName(settings.CompressionCodec)
		if err != nil {
			return nil, err
		}
		codec = c
	}
	var marksCodec compression.Codec
	if settings.CompressMarks {
		c, err := compression.CodecByName(settings.MarksCompressionCodec)
		if err != nil {
			return nil, err
		}
		marksCodec = c
	}

	granules := ComputeGranules(block, settings)
	info := w.part.GranularityInfo

	kinds := make(serialization.Infos)
	for i, col := range w.columns {
		kind := serialization.ChooseKind(block.Columns[i], settings.RatioOfDefaultsForSparseSerialization)
		if kind != serialization.KindDefault {
			kinds[col.Name] = kind
		}
	}
	if err := checkSharedStreams(w.columns, block, kinds); err != nil {
		return nil, fmt.Errorf("part %s: %w", w.part.Name, err)
	}

	owner := make(map[string]string)
	for i, col := range w.columns {
		if err := w.writeColumn(ctx, ws, col, block.Columns[i], kinds.KindOf(col.Name), granules, codec, marksCodec, &info, owner); err != nil {
			return nil, fmt.Errorf("writing column %s: %w", col.Name, err)
		}
	}

	if err := w.writeMetadata(ctx, ws, block, granules, kinds); err != nil {
		return nil, err
	}

	var manifest bytes.Buffer
	if _, err := w.checksums.WriteTo(&manifest); err != nil {
		return nil, err
	}
	if err := disk.WriteAll(ctx, ws, ChecksumsFileName, manifest.Bytes()); err != nil {
		return nil, err
	}

	ps, err := ws.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("committing part %s: %w", w.part.Name, err)
	}
	logging.With("storage").Debug().
		Str("part", w.part.Name).
		Int("rows", block.NumRows()).
		Int("granules", len(granules)).
		Str("mark_type", info.MarkType.String()).
		Msg("part written")
	return ps, nil
}

// checkSharedStreams rejects a block whose columns would write different
// bytes to a stream they share on disk. Only the first column writes a
// shared stream, so a sibling Nested column with other array lengths would
// be read back against the wrong sizes.
func checkSharedStreams(columns []types.NameAndType, block *column.Block, kinds serialization.Infos) error {
	type user struct {
		col  int
		path serialization.Path
	}
	users := make(map[string][]user)
	for i, col := range columns {
		for path := range serialization.Enumerate(col.Type, kinds.KindOf(col.Name)) {
			natural := serialization.FileNameForStream(col, path)
			users[natural] = append(users[natural], user{col: i, path: path})
		}
	}

	encoded := make(map[int]serialization.Streams)
	streamOf := func(u user) ([]byte, error) {
		if _, ok := encoded[u.col]; !ok {
			s, err := serialization.EncodeStreams(block.Columns[u.col], kinds.KindOf(columns[u.col].Name))
			if err != nil {
				return nil, err
			}
			encoded[u.col] = s
		}
		return encoded[u.col].Get(u.path)
	}
	for natural, us := range users {
		if len(us) < 2 {
			continue
		}
		first, err := streamOf(us[0])
		if err != nil {
			return err
		}
		for _, u := range us[1:] {
			data, err := streamOf(u)
			if err != nil {
				return err
			}
			if !bytes.Equal(first, data) {
				return fmt.Errorf("%w: columns %s and %s differ in stream %s",
					ErrInconsistentNestedSizes, columns[us[0].col].Name, columns[u.col].Name, natural)
			}
		}
	}
	return nil
}

// writeColumn writes the .bin and marks file of every substream of col that
// no earlier column already wrote. Shared streams (the sizes of a Nested
// table) are owned by the first column that has them.
func (w *PartWriter) writeColumn(ctx context.Context, ws disk.PartWriteStorage, col types.NameAndType, data column.Column,
	kind serialization.Kind, granules []GranuleRange, codec, marksCodec compression.Codec,
	info *IndexGranularityInfo, owner map[string]string) error {
	settings := w.part.Settings

	type stream struct {
		name  string
		path  serialization.Path
		bin   bytes.Buffer
		raw   *checksumWriter
		marks []Mark
	}
	var streams []*stream
	for path := range serialization.Enumerate(col.Type, kind) {
		natural := serialization.FileNameForStream(col, path)
		if _, taken := owner[natural]; taken {
			continue
		}
		owner[natural] = col.Name
		s := &stream{
			name: serialization.StreamNameForWrite(natural, settings.ReplaceLongFileNameToHash, settings.MaxFileNameLength),
			path: path,
			raw:  newChecksumWriter(io.Discard),
		}
		streams = append(streams, s)
	}
	if len(streams) == 0 {
		return nil
	}

	for _, g := range granules {
		encoded, err := serialization.EncodeStreams(data.Slice(g.Start, g.End), kind)
		if err != nil {
			return err
		}
		for _, s := range streams {
			raw, err := encoded.Get(s.path)
			if err != nil {
				return err
			}
			s.marks = append(s.marks, Mark{
				OffsetInCompressedFile: uint64(s.bin.Len()),
				RowsInMark:             uint64(g.Rows()),
			})
			block, err := compression.CompressBlock(codec, raw)
			if err != nil {
				return err
			}
			s.bin.Write(block)
			s.raw.Write(raw)
		}
	}

	for _, s := range streams {
		if info.IsAdaptive() && settings.WriteFinalMark {
			s.marks = append(s.marks, Mark{OffsetInCompressedFile: uint64(s.bin.Len())})
		}

		err := w.writeFile(ctx, ws, s.name+DataFileExtension, func(out io.Writer) error {
			_, err := s.bin.WriteTo(out)
			return err
		})
		if err != nil {
			return err
		}
		ck := w.checksums.Files[s.name+DataFileExtension]
		raw := s.raw.checksum()
		ck.IsCompressed = true
		ck.UncompressedSize = raw.FileSize
		ck.UncompressedHash = raw.FileHash
		w.checksums.Add(s.name+DataFileExtension, ck)

		if err := w.writeMarks(ctx, ws, info.MarksFileName(s.name), s.marks, info.IsAdaptive(), marksCodec); err != nil {
			return err
		}
	}
	return nil
}

func (w *PartWriter) writeMarks(ctx context.Context, ws disk.PartWriteStorage, name string, marks []Mark, adaptive bool, codec compression.Codec) error {
	if codec == nil {
		return w.writeFile(ctx, ws, name, func(out io.Writer) error {
			return WriteMarks(out, marks, adaptive)
		})
	}
	raw := newChecksumWriter(io.Discard)
	err := w.writeFile(ctx, ws, name, func(out io.Writer) error {
		cw := compression.NewWriter(out, codec, 0)
		if err := WriteMarks(io.MultiWriter(cw, raw), marks, adaptive); err != nil {
			return err
		}
		return cw.Close()
	})
	if err != nil {
		return err
	}
	ck := w.checksums.Files[name]
	ck.IsCompressed = true
	ck.UncompressedSize = raw.size
	ck.UncompressedHash = raw.h.Sum64()
	w.checksums.Add(name, ck)
	return nil
}

// writeMetadata writes the index and text files that sit next to the
// column streams.
func (w *PartWriter) writeMetadata(ctx context.Context, ws disk.PartWriteStorage, block *column.Block,
	granules []GranuleRange, kinds serialization.Infos) error {
	p := w.part
	schema := p.Schema

	if schema != nil && len(schema.OrderBy) > 0 {
		idx, err := buildPrimaryIndex(schema, block, granules)
		if err != nil {
			return err
		}
		if err := w.writeFile(ctx, ws, PrimaryIndexFileName, func(out io.Writer) error {
			_, err := idx.WriteTo(out)
			return err
		}); err != nil {
			return fmt.Errorf("writing primary index: %w", err)
		}
		p.PrimaryIndex = idx
	}

	if schema != nil && schema.PartitionBy != "" {
		col, ok := block.GetColumn(schema.PartitionBy)
		if !ok {
			return fmt.Errorf("partition column %s not written", schema.PartitionBy)
		}
		idx, err := NewMinMaxIndex(schema.PartitionBy, col)
		if err != nil {
			return err
		}
		if err := w.writeFile(ctx, ws, MinMaxIndexFileName(schema.PartitionBy), func(out io.Writer) error {
			_, err := idx.WriteTo(out)
			return err
		}); err != nil {
			return fmt.Errorf("writing minmax index: %w", err)
		}
		p.MinMaxIndex = idx
	}

	if err := w.writeFile(ctx, ws, CountFileName, func(out io.Writer) error {
		_, err := out.Write(formatCount(uint64(block.NumRows())))
		return err
	}); err != nil {
		return err
	}
	if err := w.writeFile(ctx, ws, ColumnsFileName, func(out io.Writer) error {
		return writeColumnsFile(out, w.columns)
	}); err != nil {
		return err
	}

	if len(kinds) > 0 {
		if err := w.writeFile(ctx, ws, serialization.InfoFileName, func(out io.Writer) error {
			return serialization.WriteInfos(out, kinds, w.columnNames())
		}); err != nil {
			return err
		}
	}

	if p.Settings.AssignPartUUIDs {
		p.UUID = uuid.New()
		if err := w.writeFile(ctx, ws, UUIDFileName, func(out io.Writer) error {
			_, err := io.WriteString(out, p.UUID.String()+"\n")
			return err
		}); err != nil {
			return err
		}
	}

	p.Columns = w.columns
	p.Serialization = kinds
	return nil
}

// writeFile creates name and records its checksum in the manifest.
func (w *PartWriter) writeFile(ctx context.Context, ws disk.PartWriteStorage, name string, fill func(io.Writer) error) error {
	f, err := ws.CreateFile(ctx, name)
	if err != nil {
		return err
	}
	cw := newChecksumWriter(f)
	if err := fill(cw); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	w.checksums.Add(name, cw.checksum())
	return nil
}
