package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/logging"
	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// MergeTreeTable is one table: its schema and the set of parts it publishes.
type MergeTreeTable struct {
	Name     string
	Schema   TableSchema
	Settings Settings

	disk disk.Disk

	mu           sync.RWMutex
	parts        []*DataPart
	blockCounter atomic.Uint64
}

// NewMergeTreeTable creates a table without parts.
func NewMergeTreeTable(name string, schema TableSchema, d disk.Disk, defaults Settings) *MergeTreeTable {
	return &MergeTreeTable{
		Name:     name,
		Schema:   schema,
		Settings: schema.EffectiveSettings(defaults),
		disk:     d,
	}
}

// Insert splits a block by partition, sorts each sub-block by ORDER BY,
// writes one part per partition and publishes it once it attaches cleanly.
func (t *MergeTreeTable) Insert(ctx context.Context, block *column.Block) ([]*DataPart, error) {
	if block.NumRows() == 0 {
		return nil, nil
	}
	partitions, err := t.splitByPartition(block)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(partitions))
	for id := range partitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var written []*DataPart
	for _, partitionID := range ids {
		subBlock := partitions[partitionID]
		if err := subBlock.SortBy(t.Schema.OrderBy); err != nil {
			return written, fmt.Errorf("sorting block: %w", err)
		}

		blockNum := t.blockCounter.Add(1)
		info := PartInfo{
			PartitionID: partitionID,
			MinBlock:    blockNum,
			MaxBlock:    blockNum,
		}
		part, err := t.writePart(ctx, info, subBlock)
		if err != nil {
			return written, fmt.Errorf("writing part %s: %w", info.DirName(), err)
		}
		t.AddPart(part)
		written = append(written, part)
	}
	return written, nil
}

func (t *MergeTreeTable) writePart(ctx context.Context, info PartInfo, block *column.Block) (*DataPart, error) {
	tmp, err := NewTemporaryPart(ctx, t.disk, t.Name, info, &t.Schema, t.Settings)
	if err != nil {
		return nil, err
	}
	w := tmp.Writer(t.Schema.NamesAndTypes(), nil)
	if err := w.Write(ctx, block); err != nil {
		return nil, errors.Join(err, w.Cancel(ctx))
	}
	ps, err := w.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	return AttachPart(ctx, ps, info, &t.Schema, t.Settings)
}

// splitByPartition splits a block into sub-blocks per partition.
func (t *MergeTreeTable) splitByPartition(block *column.Block) (map[string]*column.Block, error) {
	if t.Schema.PartitionBy == "" {
		return map[string]*column.Block{"all": block.Clone()}, nil
	}

	partCol, ok := block.GetColumn(t.Schema.PartitionBy)
	if !ok {
		return nil, fmt.Errorf("partition column %s not found", t.Schema.PartitionBy)
	}

	partRows := make(map[string][]int)
	for i := 0; i < block.NumRows(); i++ {
		pid := serialization.EscapeForFileName(types.ValueToString(partCol.Value(i)))
		partRows[pid] = append(partRows[pid], i)
	}

	result := make(map[string]*column.Block, len(partRows))
	for pid, rows := range partRows {
		result[pid] = block.Gather(rows)
	}
	return result, nil
}

// GetActiveParts returns all Active parts ordered by partition then block.
func (t *MergeTreeTable) GetActiveParts() []*DataPart {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var active []*DataPart
	for _, p := range t.parts {
		if p.State() == PartActive {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Info.PartitionID != active[j].Info.PartitionID {
			return active[i].Info.PartitionID < active[j].Info.PartitionID
		}
		return active[i].Info.MinBlock < active[j].Info.MinBlock
	})
	return active
}

// GetActivePartsForPartition returns active parts for a specific partition.
func (t *MergeTreeTable) GetActivePartsForPartition(partitionID string) []*DataPart {
	var result []*DataPart
	for _, p := range t.GetActiveParts() {
		if p.Info.PartitionID == partitionID {
			result = append(result, p)
		}
	}
	return result
}

// GetPart returns the Active part with the given directory name.
func (t *MergeTreeTable) GetPart(name string) (*DataPart, bool) {
	for _, p := range t.GetActiveParts() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// ReplaceParts marks oldParts Outdated, drops the table's reference on them
// and publishes newPart. Old parts are removed once their last reader is
// gone.
func (t *MergeTreeTable) ReplaceParts(ctx context.Context, oldParts []*DataPart, newPart *DataPart) {
	t.mu.Lock()
	old := make(map[*DataPart]bool, len(oldParts))
	for _, p := range oldParts {
		old[p] = true
	}
	kept := t.parts[:0]
	var released []*DataPart
	for _, p := range t.parts {
		if old[p] && p.State() == PartActive {
			p.SetState(PartOutdated)
			released = append(released, p)
			continue
		}
		kept = append(kept, p)
	}
	t.parts = kept
	t.mu.Unlock()

	activeParts.WithLabelValues(t.Name).Sub(float64(len(released)))
	for _, p := range released {
		p.Release(ctx)
	}
	if newPart != nil {
		t.AddPart(newPart)
	}
}

// AddPart publishes a Ready part as Active. The table holds a reference on
// it until it is replaced.
func (t *MergeTreeTable) AddPart(part *DataPart) {
	part.SetState(PartActive)
	part.Acquire()

	t.mu.Lock()
	t.parts = append(t.parts, part)
	t.mu.Unlock()

	for {
		cur := t.blockCounter.Load()
		if part.Info.MaxBlock <= cur || t.blockCounter.CompareAndSwap(cur, part.Info.MaxBlock) {
			break
		}
	}
	activeParts.WithLabelValues(t.Name).Inc()
}

// loadParts attaches every part directory of the table, at most concurrency
// at a time. Parts that fail to attach are logged and skipped; leftovers of
// interrupted writes are removed.
func (t *MergeTreeTable) loadParts(ctx context.Context, concurrency int) error {
	ctx, span := tracer.Start(ctx, "storage.LoadTable")
	defer span.End()
	log := logging.With("storage").With().Str("table", t.Name).Logger()

	dirs, err := t.disk.ListDirs(ctx, t.Name)
	if err != nil {
		return fmt.Errorf("listing table %s: %w", t.Name, err)
	}

	type candidate struct {
		name string
		info PartInfo
	}
	var candidates []candidate
	for _, name := range dirs {
		if strings.HasPrefix(name, disk.TmpPrefix) {
			if err := t.disk.RemoveAll(ctx, t.Name+"/"+name); err != nil {
				log.Warn().Err(err).Str("dir", name).Msg("failed to remove temporary part")
			}
			continue
		}
		info, err := ParsePartName(name)
		if err != nil {
			log.Warn().Err(err).Str("dir", name).Msg("skipping unrecognized directory")
			continue
		}
		candidates = append(candidates, candidate{name: name, info: info})
	}

	attached := make([]*DataPart, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, c := range candidates {
		g.Go(func() error {
			ps := t.disk.PartStorage(t.Name, c.name)
			p, err := AttachPart(gctx, ps, c.info, &t.Schema, t.Settings)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				partsBroken.WithLabelValues(t.Name).Inc()
				log.Warn().Err(err).Str("part", c.name).Msg("skipping broken part")
				return nil
			}
			attached[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	loaded := 0
	for _, p := range attached {
		if p == nil {
			continue
		}
		t.AddPart(p)
		partsAttached.WithLabelValues(t.Name).Inc()
		loaded++
		rows, _ := p.RowsCount()
		marks, _ := p.MarksCount()
		log.Debug().
			Str("part", p.Name).
			Uint64("rows", rows).
			Int("marks", marks).
			Str("mark_type", p.GranularityInfo.MarkType.String()).
			Msg("attached part")
	}
	span.SetAttributes(
		attribute.String("table", t.Name),
		attribute.Int("parts", loaded),
		attribute.Int("broken", len(candidates)-loaded),
	)
	return nil
}
