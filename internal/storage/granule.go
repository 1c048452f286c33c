package storage

import (
	"github.com/harshithgowdakt/widepart/internal/column"
)

// GranuleRange represents a range of rows [Start, End).
type GranuleRange struct {
	Start int
	End   int
}

// Rows returns the number of rows in the granule.
func (g GranuleRange) Rows() int { return g.End - g.Start }

// SplitIntoGranules splits totalRows into granule boundaries.
func SplitIntoGranules(totalRows, granuleSize int) []GranuleRange {
	if granuleSize <= 0 {
		granuleSize = DefaultIndexGranularity
	}
	var result []GranuleRange
	for start := 0; start < totalRows; start += granuleSize {
		end := start + granuleSize
		if end > totalRows {
			end = totalRows
		}
		result = append(result, GranuleRange{Start: start, End: end})
	}
	return result
}

// ComputeGranules splits a block the way a writer with settings would. With
// adaptive granularity the rows per granule shrink so that a granule stays
// within index_granularity_bytes, but never below one row.
func ComputeGranules(block *column.Block, settings Settings) []GranuleRange {
	rows := block.NumRows()
	size := int(settings.IndexGranularity)
	if settings.IndexGranularityBytes == 0 || rows == 0 {
		return SplitIntoGranules(rows, size)
	}

	total := 0
	for _, col := range block.Columns {
		total += column.ByteSize(col, 0, rows)
	}
	perRow := max((total+rows-1)/rows, 1)
	adaptive := int(settings.IndexGranularityBytes) / perRow
	return SplitIntoGranules(rows, min(max(adaptive, 1), size))
}
