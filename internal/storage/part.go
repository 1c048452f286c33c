package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/logging"
	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// PartState represents the catalog state of a data part.
type PartState uint32

const (
	PartTemporary PartState = iota // tmp_ prefix, being written
	PartActive                     // visible to readers
	PartOutdated                   // replaced, pending deletion
	PartDeleting                   // being deleted
)

func (s PartState) String() string {
	switch s {
	case PartTemporary:
		return "Temporary"
	case PartActive:
		return "Active"
	case PartOutdated:
		return "Outdated"
	case PartDeleting:
		return "Deleting"
	}
	return fmt.Sprintf("PartState(%d)", uint32(s))
}

// LoadState tracks how far the part metadata has been loaded.
type LoadState uint32

const (
	Unloaded LoadState = iota
	GranularityLoaded
	Ready
)

func (s LoadState) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case GranularityLoaded:
		return "GranularityLoaded"
	case Ready:
		return "Ready"
	}
	return fmt.Sprintf("LoadState(%d)", uint32(s))
}

// PartInfo identifies a part following ClickHouse naming: partition_minBlock_maxBlock_level.
type PartInfo struct {
	PartitionID string
	MinBlock    uint64
	MaxBlock    uint64
	Level       uint32
}

// DirName returns the directory name for this part.
func (pi PartInfo) DirName() string {
	return fmt.Sprintf("%s_%d_%d_%d", pi.PartitionID, pi.MinBlock, pi.MaxBlock, pi.Level)
}

// Contains returns true if this part's block range fully covers another part's range.
func (pi PartInfo) Contains(other PartInfo) bool {
	return pi.PartitionID == other.PartitionID &&
		pi.MinBlock <= other.MinBlock &&
		pi.MaxBlock >= other.MaxBlock &&
		pi.Level > other.Level
}

// ParsePartName parses "partition_min_max_level". The partition ID may
// itself contain underscores.
func ParsePartName(name string) (PartInfo, error) {
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return PartInfo{}, fmt.Errorf("invalid part name: %s", name)
	}
	level, err := strconv.ParseUint(parts[len(parts)-1], 10, 32)
	if err != nil {
		return PartInfo{}, fmt.Errorf("invalid part name %s: %w", name, err)
	}
	maxBlock, err := strconv.ParseUint(parts[len(parts)-2], 10, 64)
	if err != nil {
		return PartInfo{}, fmt.Errorf("invalid part name %s: %w", name, err)
	}
	minBlock, err := strconv.ParseUint(parts[len(parts)-3], 10, 64)
	if err != nil {
		return PartInfo{}, fmt.Errorf("invalid part name %s: %w", name, err)
	}
	if minBlock > maxBlock {
		return PartInfo{}, fmt.Errorf("invalid part name %s: min block %d > max block %d", name, minBlock, maxBlock)
	}
	return PartInfo{
		PartitionID: strings.Join(parts[:len(parts)-3], "_"),
		MinBlock:    minBlock,
		MaxBlock:    maxBlock,
		Level:       uint32(level),
	}, nil
}

// DataPart is one physical fragment of a table. Its metadata is filled in
// once while attaching and is read-only afterwards, so published parts can
// be shared by concurrent readers without locking.
type DataPart struct {
	Info     PartInfo
	Name     string
	Type     PartType
	Storage  disk.PartStorage
	Schema   *TableSchema
	Settings Settings

	// Columns in on-disk declaration order.
	Columns []types.NameAndType
	// columnsFromFile is set when Columns came from the part's columns.txt.
	columnsFromFile bool

	// Checksums is nil when the part has no manifest.
	Checksums     *Checksums
	Serialization serialization.Infos
	UUID          uuid.UUID

	GranularityInfo IndexGranularityInfo

	PrimaryIndex *PrimaryIndex
	MinMaxIndex  *MinMaxIndex

	CreatedAt time.Time

	// writeStorage is set on Temporary parts until their writer commits.
	writeStorage disk.PartWriteStorage

	loadState        atomic.Uint32
	indexGranularity *IndexGranularity

	state      atomic.Uint32
	refs       atomic.Int64
	removeOnce sync.Once
}

// NewDataPart returns an Unloaded Wide part over ps.
func NewDataPart(ps disk.PartStorage, info PartInfo, schema *TableSchema, settings Settings) *DataPart {
	p := &DataPart{
		Info:            info,
		Name:            info.DirName(),
		Type:            PartTypeWide,
		Storage:         ps,
		Schema:          schema,
		Settings:        settings,
		GranularityInfo: NewIndexGranularityInfo(settings, PartTypeWide),
		CreatedAt:       time.Now(),
	}
	if ps != nil {
		p.Name = ps.PartName()
	}
	if schema != nil {
		p.Columns = schema.NamesAndTypes()
	}
	return p
}

func (p *DataPart) String() string {
	return fmt.Sprintf("Part{%s, state=%s, load=%s}", p.Name, p.State(), p.LoadState())
}

func (p *DataPart) State() PartState         { return PartState(p.state.Load()) }
func (p *DataPart) SetState(s PartState)     { p.state.Store(uint32(s)) }
func (p *DataPart) LoadState() LoadState     { return LoadState(p.loadState.Load()) }
func (p *DataPart) setLoadState(s LoadState) { p.loadState.Store(uint32(s)) }

// Column returns the declared column with the given name.
func (p *DataPart) Column(name string) (types.NameAndType, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return types.NameAndType{}, false
}

// SerializationKind returns how the named column is serialized in this part.
func (p *DataPart) SerializationKind(column string) serialization.Kind {
	return p.Serialization.KindOf(column)
}

// IndexGranularity returns the loaded per-mark row counts.
func (p *DataPart) IndexGranularity() (*IndexGranularity, error) {
	if p.LoadState() == Unloaded {
		return nil, fmt.Errorf("%w: part %s", ErrGranularityNotLoaded, p.Name)
	}
	return p.indexGranularity, nil
}

// RowsCount is the total number of rows covered by the part's marks.
func (p *DataPart) RowsCount() (uint64, error) {
	g, err := p.IndexGranularity()
	if err != nil {
		return 0, err
	}
	return g.TotalRows(), nil
}

// MarksCount returns the number of data-carrying marks.
func (p *DataPart) MarksCount() (int, error) {
	g, err := p.IndexGranularity()
	if err != nil {
		return 0, err
	}
	return g.MarksCountWithoutFinal(), nil
}

// BytesOnDisk is the manifest total, or 0 without a manifest.
func (p *DataPart) BytesOnDisk() uint64 {
	return p.Checksums.TotalSize()
}

func (p *DataPart) IsStoredOnRemoteDisk() bool {
	return p.Storage.IsStoredOnRemoteDisk()
}

func (p *DataPart) IsStoredOnRemoteDiskWithZeroCopySupport() bool {
	return p.Storage.SupportZeroCopyReplication()
}

// LoadIndexGranularity loads the marks of the first column. It moves the
// part from Unloaded to GranularityLoaded and may run only once.
func (p *DataPart) LoadIndexGranularity(ctx context.Context) error {
	ops, err := layoutFor(p.Type)
	if err != nil {
		return err
	}
	if p.LoadState() != Unloaded {
		return fmt.Errorf("%w: index granularity of part %s is already loaded", ErrLogical, p.Name)
	}
	g, err := ops.loadIndexGranularity(ctx, p)
	if err != nil {
		return err
	}
	p.indexGranularity = g
	p.setLoadState(GranularityLoaded)
	return nil
}

// Acquire takes a reference that keeps the part's files alive.
func (p *DataPart) Acquire() {
	p.refs.Add(1)
}

// Release drops a reference. When the last reference of an Outdated part is
// released and remove_outdated_parts is set, its files are removed.
func (p *DataPart) Release(ctx context.Context) {
	if p.refs.Add(-1) > 0 {
		return
	}
	if p.State() != PartOutdated || !p.Settings.RemoveOutdatedParts {
		return
	}
	p.removeOnce.Do(func() {
		p.SetState(PartDeleting)
		log := logging.With("storage")
		if err := p.Storage.Remove(ctx); err != nil {
			log.Warn().Err(err).Str("part", p.Name).Msg("failed to remove outdated part")
			return
		}
		log.Debug().Str("part", p.Name).Msg("removed outdated part")
	})
}

// Refs returns the number of live references.
func (p *DataPart) Refs() int64 { return p.refs.Load() }

func partFilePath(ps disk.PartStorage, name string) string {
	return strings.TrimSuffix(ps.FullPath(), "/") + "/" + name
}

func (p *DataPart) keyTypes() ([]types.DataType, error) {
	out := make([]types.DataType, len(p.Schema.OrderBy))
	for i, name := range p.Schema.OrderBy {
		def, ok := p.Schema.GetColumnDef(name)
		if !ok {
			return nil, fmt.Errorf("ORDER BY column %s not in schema", name)
		}
		out[i] = def.Type.Innermost()
	}
	return out, nil
}
