package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/serialization"
)

var tracer = otel.Tracer("github.com/harshithgowdakt/widepart/internal/storage")

// AttachPart loads an existing part: its metadata files, its index
// granularity, and its indexes, then validates it. On any error the part is
// not usable and nothing about it is published.
func AttachPart(ctx context.Context, ps disk.PartStorage, info PartInfo, schema *TableSchema, settings Settings) (_ *DataPart, err error) {
	ctx, span := tracer.Start(ctx, "storage.AttachPart", trace.WithAttributes(
		attribute.String("part", ps.PartName()),
		attribute.String("path", ps.FullPath()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "attach_failed")
		}
		span.End()
	}()
	start := time.Now()

	p := NewDataPart(ps, info, schema, settings)
	if err := p.loadMetadata(ctx); err != nil {
		return nil, err
	}
	if err := p.LoadIndexGranularity(ctx); err != nil {
		return nil, err
	}
	if err := p.CheckConsistency(ctx, settings.RequirePartMetadata); err != nil {
		return nil, err
	}
	if settings.CheckColumnSizes {
		sizes, _, err := p.CalculateEachColumnSizes()
		if err != nil {
			return nil, err
		}
		if err := VerifyColumnSizes(p, sizes); err != nil {
			return nil, err
		}
	}
	if err := p.loadIndexes(ctx); err != nil {
		return nil, err
	}
	p.setLoadState(Ready)

	rows := p.indexGranularity.TotalRows()
	span.SetAttributes(
		attribute.Int64("rows", int64(rows)),
		attribute.Int("marks", p.indexGranularity.MarksCount()),
	)
	attachDuration.Observe(time.Since(start).Seconds())
	return p, nil
}

// loadMetadata reads columns.txt, checksums.txt, serialization.json and
// uuid.txt, and detects the part layout.
func (p *DataPart) loadMetadata(ctx context.Context) error {
	files, err := p.Storage.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("listing part %s: %w", p.Storage.FullPath(), err)
	}
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
		if ext, ok := MarksExtensionOf(f); ok {
			if mt, _ := ParseMarkType(ext); mt.PartType == PartTypeCompact {
				p.Type = PartTypeCompact
			}
		}
	}

	switch {
	case present[ColumnsFileName]:
		data, err := disk.ReadAll(ctx, p.Storage, ColumnsFileName)
		if err != nil {
			return err
		}
		cols, err := readColumnsFile(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("part %s: %w", p.Storage.FullPath(), err)
		}
		p.Columns = cols
		p.columnsFromFile = true
	case p.Schema == nil:
		return fmt.Errorf("%w: no %s in part %s and no table schema",
			ErrNoFileInDataPart, ColumnsFileName, p.Storage.FullPath())
	}

	if present[ChecksumsFileName] {
		data, err := disk.ReadAll(ctx, p.Storage, ChecksumsFileName)
		if err != nil {
			return err
		}
		ck, err := ReadChecksums(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("part %s: %w", p.Storage.FullPath(), err)
		}
		p.Checksums = ck
	}

	if present[serialization.InfoFileName] {
		data, err := disk.ReadAll(ctx, p.Storage, serialization.InfoFileName)
		if err != nil {
			return err
		}
		infos, err := serialization.ReadInfos(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("part %s: %w", p.Storage.FullPath(), err)
		}
		p.Serialization = infos
	}

	if present[UUIDFileName] {
		data, err := disk.ReadAll(ctx, p.Storage, UUIDFileName)
		if err != nil {
			return err
		}
		id, err := uuid.ParseBytes(bytes.TrimSpace(data))
		if err != nil {
			return fmt.Errorf("part %s: parsing %s: %w", p.Storage.FullPath(), UUIDFileName, err)
		}
		p.UUID = id
	}
	return nil
}

func wideLoadIndexGranularity(ctx context.Context, p *DataPart) (*IndexGranularity, error) {
	if len(p.Columns) == 0 {
		return nil, fmt.Errorf("%w: no columns in part %s", ErrNoFileInDataPart, p.Name)
	}
	if err := p.GranularityInfo.ChangeGranularityIfRequired(ctx, p.Storage); err != nil {
		return nil, err
	}
	name, err := p.FileNameForColumn(ctx, p.Columns[0])
	if err != nil {
		return nil, err
	}
	g, err := LoadIndexGranularity(ctx, p.Storage, &p.GranularityInfo, name)
	if err != nil {
		return nil, err
	}
	return p.reconcileRowCount(ctx, g)
}

// reconcileRowCount checks count.txt against the loaded marks. Fixed
// granularity cannot express a short last granule, so the last mark is
// shortened to match count.txt when it is within that granule.
func (p *DataPart) reconcileRowCount(ctx context.Context, g *IndexGranularity) (*IndexGranularity, error) {
	ok, err := p.Storage.Exists(ctx, CountFileName)
	if err != nil || !ok {
		return g, err
	}
	data, err := disk.ReadAll(ctx, p.Storage, CountFileName)
	if err != nil {
		return nil, err
	}
	count, err := parseCount(data)
	if err != nil {
		return nil, fmt.Errorf("part %s: %w", p.Storage.FullPath(), err)
	}

	total := g.TotalRows()
	if count == total {
		return g, nil
	}
	mismatch := fmt.Errorf("%w: part %s has %d rows in %s but its marks cover %d rows",
		ErrBadSizeOfFileInDataPart, p.Storage.FullPath(), count, CountFileName, total)
	if p.GranularityInfo.IsAdaptive() || g.MarksCountWithoutFinal() == 0 {
		return nil, mismatch
	}
	fixed := p.GranularityInfo.FixedIndexGranularity
	if count > total || count <= total-fixed {
		return nil, mismatch
	}
	return g.WithLastMarkRows(fixed - (total - count))
}

// loadIndexes reads primary.idx and the partition min/max index when the
// table defines them and the files exist.
func (p *DataPart) loadIndexes(ctx context.Context) error {
	if p.Schema == nil {
		return nil
	}
	granules := p.indexGranularity.MarksCountWithoutFinal()

	if len(p.Schema.OrderBy) > 0 {
		ok, err := p.Storage.Exists(ctx, PrimaryIndexFileName)
		if err != nil {
			return err
		}
		if ok {
			r, err := p.Storage.ReadFile(ctx, PrimaryIndexFileName, -1)
			if err != nil {
				return err
			}
			defer r.Close()
			keyTypes, err := p.keyTypes()
			if err != nil {
				return err
			}
			idx, err := ReadPrimaryIndex(r, p.Schema.OrderBy, keyTypes, granules)
			if err != nil {
				return fmt.Errorf("part %s: %w", p.Storage.FullPath(), err)
			}
			p.PrimaryIndex = idx
		}
	}

	if col := p.Schema.PartitionBy; col != "" {
		name := MinMaxIndexFileName(col)
		ok, err := p.Storage.Exists(ctx, name)
		if err != nil {
			return err
		}
		if ok {
			def, found := p.Schema.GetColumnDef(col)
			if !found {
				return fmt.Errorf("partition column %s not in schema", col)
			}
			r, err := p.Storage.ReadFile(ctx, name, -1)
			if err != nil {
				return err
			}
			defer r.Close()
			idx, err := ReadMinMaxIndex(r, col, def.Type.Innermost())
			if err != nil {
				return fmt.Errorf("part %s: reading %s: %w", p.Storage.FullPath(), name, err)
			}
			p.MinMaxIndex = idx
		}
	}
	return nil
}
