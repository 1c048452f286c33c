package storage

import "fmt"

// PartType is the on-disk layout of a part.
type PartType uint8

const (
	// PartTypeWide stores every substream in its own .bin and marks file.
	PartTypeWide PartType = iota
	// PartTypeCompact stores all columns in one data file. Recognised so it
	// can be rejected cleanly.
	PartTypeCompact
)

func (t PartType) String() string {
	switch t {
	case PartTypeWide:
		return "Wide"
	case PartTypeCompact:
		return "Compact"
	default:
		return fmt.Sprintf("PartType(%d)", uint8(t))
	}
}

// ParsePartType parses "Wide" or "Compact".
func ParsePartType(s string) (PartType, error) {
	switch s {
	case "Wide", "wide":
		return PartTypeWide, nil
	case "Compact", "compact":
		return PartTypeCompact, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedPartType, s)
}
