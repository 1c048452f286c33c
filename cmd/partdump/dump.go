package main

import (
	"context"
	"fmt"

	"github.com/harshithgowdakt/widepart/internal/compression"
	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/storage"
	"github.com/harshithgowdakt/widepart/internal/types"
)

type options struct {
	verify bool
	strict bool
}

type granularityJSON struct {
	Marks        int      `json:"marks"`
	HasFinalMark bool     `json:"has_final_mark"`
	Constant     bool     `json:"constant"`
	RowsPerMark  []uint64 `json:"rows_per_mark"`
}

type markJSON struct {
	Granule                   int    `json:"granule"`
	OffsetInCompressedFile    uint64 `json:"offset_in_compressed_file"`
	OffsetInDecompressedBlock uint64 `json:"offset_in_decompressed_block"`
	Rows                      uint64 `json:"rows"`
}

type blockJSON struct {
	Granule          int    `json:"granule"`
	Offset           uint64 `json:"offset"`
	Method           uint8  `json:"method_byte"`
	CompressedBytes  uint32 `json:"compressed_bytes_with_header"`
	UncompressedSize uint32 `json:"uncompressed_bytes"`
}

type streamJSON struct {
	Stream   string      `json:"stream"`
	File     string      `json:"file"`
	FileSize int         `json:"file_size"`
	Marks    []markJSON  `json:"marks"`
	Blocks   []blockJSON `json:"blocks"`
}

type columnJSON struct {
	Name     string             `json:"name"`
	Type     string             `json:"type"`
	HasFiles bool               `json:"has_files"`
	Size     storage.ColumnSize `json:"size"`
	Streams  []streamJSON       `json:"streams"`
}

type checkJSON struct {
	Check   string `json:"check"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type minmaxJSON struct {
	Type string `json:"type"`
	Min  string `json:"min"`
	Max  string `json:"max"`
}

type partJSON struct {
	Part         string                      `json:"part"`
	Path         string                      `json:"path"`
	Type         string                      `json:"type"`
	State        string                      `json:"state"`
	UUID         string                      `json:"uuid"`
	MarkType     string                      `json:"mark_type"`
	Rows         uint64                      `json:"rows"`
	Remote       bool                        `json:"is_remote"`
	Granularity  granularityJSON             `json:"granularity"`
	Columns      []columnJSON                `json:"columns"`
	Total        storage.ColumnSize          `json:"total_size"`
	Checksums    map[string]storage.Checksum `json:"checksums,omitempty"`
	PrimaryIndex [][]string                  `json:"primary_idx,omitempty"`
	MinMax       map[string]minmaxJSON       `json:"minmax_idx,omitempty"`
	Checks       []checkJSON                 `json:"checks"`
}

// dumpPart describes every file of a loaded part and runs the same checks
// as the admin API.
func dumpPart(ctx context.Context, p *storage.DataPart, opts options) (*partJSON, error) {
	g, err := p.IndexGranularity()
	if err != nil {
		return nil, err
	}
	sizes, total, err := p.CalculateEachColumnSizes()
	if err != nil {
		return nil, err
	}
	out := &partJSON{
		Part:     p.Name,
		Path:     p.Storage.FullPath(),
		Type:     p.Type.String(),
		State:    p.State().String(),
		UUID:     p.UUID.String(),
		MarkType: p.GranularityInfo.MarkType.String(),
		Rows:     g.TotalRows(),
		Remote:   p.IsStoredOnRemoteDisk(),
		Granularity: granularityJSON{
			Marks:        g.MarksCountWithoutFinal(),
			HasFinalMark: g.HasFinalMark(),
			Constant:     g.IsConstant(),
			RowsPerMark:  g.Sizes(),
		},
		Total: total,
	}
	if !p.Checksums.Empty() {
		out.Checksums = p.Checksums.Files
	}

	seen := make(map[string]bool)
	for _, c := range p.Columns {
		col := columnJSON{
			Name:     c.Name,
			Type:     c.Type.String(),
			HasFiles: p.HasColumnFiles(c),
			Size:     sizes[c.Name],
		}
		for path := range serialization.Enumerate(c.Type, p.SerializationKind(c.Name)) {
			stream := serialization.FileNameForStream(c, path)
			if seen[stream] {
				continue
			}
			seen[stream] = true
			s, err := dumpStream(ctx, p, g, stream)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			if s != nil {
				col.Streams = append(col.Streams, *s)
			}
		}
		out.Columns = append(out.Columns, col)
	}

	if idx := p.PrimaryIndex; idx != nil {
		for _, keys := range idx.Values {
			row := make([]string, len(keys))
			for i, v := range keys {
				row[i] = types.ValueToString(v)
			}
			out.PrimaryIndex = append(out.PrimaryIndex, row)
		}
	}
	if mm := p.MinMaxIndex; mm != nil {
		out.MinMax = map[string]minmaxJSON{mm.ColumnName: {
			Type: mm.DataType.Name(),
			Min:  types.ValueToString(mm.Min),
			Max:  types.ValueToString(mm.Max),
		}}
	}

	out.Checks = runChecks(ctx, p, sizes, opts)
	return out, nil
}

// dumpStream returns nil for streams whose files are absent, as for
// columns added after the part was written.
func dumpStream(ctx context.Context, p *storage.DataPart, g *storage.IndexGranularity, stream string) (*streamJSON, error) {
	file, err := p.StreamFileName(ctx, stream)
	if err != nil {
		return nil, err
	}
	exists, err := p.Storage.Exists(ctx, p.GranularityInfo.MarksFileName(file))
	if err != nil || !exists {
		return nil, err
	}
	marks, err := p.StreamMarks(ctx, file)
	if err != nil {
		return nil, err
	}
	data, err := disk.ReadAll(ctx, p.Storage, file+storage.DataFileExtension)
	if err != nil {
		return nil, err
	}

	s := &streamJSON{Stream: stream, File: file, FileSize: len(data)}
	for i, m := range marks {
		rows := m.RowsInMark
		if !p.GranularityInfo.IsAdaptive() && i < g.MarksCount() {
			rows = g.MarkRows(i)
		}
		s.Marks = append(s.Marks, markJSON{
			Granule:                   i,
			OffsetInCompressedFile:    m.OffsetInCompressedFile,
			OffsetInDecompressedBlock: m.OffsetInDecompressedBlock,
			Rows:                      rows,
		})
		if m.OffsetInCompressedFile >= uint64(len(data)) {
			continue
		}
		block := data[m.OffsetInCompressedFile:]
		h, err := compression.ReadBlockHeader(block)
		if err != nil {
			continue
		}
		s.Blocks = append(s.Blocks, blockJSON{
			Granule:          i,
			Offset:           m.OffsetInCompressedFile,
			Method:           h.Method,
			CompressedBytes:  h.CompressedSize,
			UncompressedSize: h.UncompressedSize,
		})
	}
	return s, nil
}

func runChecks(ctx context.Context, p *storage.DataPart, sizes map[string]storage.ColumnSize, opts options) []checkJSON {
	var checks []checkJSON
	record := func(check string, err error) {
		if err != nil {
			checks = append(checks, checkJSON{Check: check, Status: "failed", Message: err.Error()})
			return
		}
		checks = append(checks, checkJSON{Check: check, Status: "ok"})
	}

	var skipped []checkJSON
	record("consistency", p.CheckConsistencyWithOptions(ctx, p.Settings.RequirePartMetadata, storage.ConsistencyOptions{
		Strict: opts.strict,
		OnMissing: func(column, file string) {
			skipped = append(skipped, checkJSON{Check: "missing_marks", Status: "skipped", Message: column + ": " + file})
		},
	}))
	checks = append(checks, skipped...)
	record("column_sizes", storage.VerifyColumnSizes(p, sizes))

	if opts.verify {
		if p.Checksums.Empty() {
			checks = append(checks, checkJSON{Check: "checksums", Status: "skipped", Message: "part has no checksums manifest"})
		} else {
			record("checksums", storage.VerifyChecksums(ctx, p.Storage, p.Checksums))
		}
	}
	return checks
}
