package storage

import (
	"context"
	"fmt"

	"github.com/harshithgowdakt/widepart/internal/types"
)

// layoutOps is the behaviour set of one part layout. Every PartType maps to
// exactly one set in layoutFor.
type layoutOps struct {
	loadIndexGranularity func(ctx context.Context, p *DataPart) (*IndexGranularity, error)
	checkConsistency     func(ctx context.Context, p *DataPart, requirePartMetadata bool, opts ConsistencyOptions) error
	columnSize           func(p *DataPart, column types.NameAndType, processed map[string]struct{}) ColumnSize
	hasColumnFiles       func(p *DataPart, column types.NameAndType) bool
}

var wideLayout = layoutOps{
	loadIndexGranularity: wideLoadIndexGranularity,
	checkConsistency:     wideCheckConsistency,
	columnSize:           wideColumnSize,
	hasColumnFiles:       wideHasColumnFiles,
}

func layoutFor(t PartType) (*layoutOps, error) {
	switch t {
	case PartTypeWide:
		return &wideLayout, nil
	case PartTypeCompact:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPartType, t)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPartType, t)
	}
}
