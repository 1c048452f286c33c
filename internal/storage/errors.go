package storage

import "errors"

var (
	// ErrNoFileInDataPart is returned when a required part file is missing.
	ErrNoFileInDataPart = errors.New("no file in data part")
	// ErrBadSizeOfFileInDataPart is returned for empty or mismatched files.
	ErrBadSizeOfFileInDataPart = errors.New("bad size of file in data part")
	// ErrLogical signals an internal accounting bug, not data corruption.
	ErrLogical = errors.New("logical error")
	// ErrGranularityNotLoaded is returned by operations that need loaded marks.
	ErrGranularityNotLoaded = errors.New("index granularity is not loaded")
	// ErrCannotReadAllMarks is returned when a marks stream ends mid-mark.
	ErrCannotReadAllMarks = errors.New("cannot read all marks")
	// ErrInconsistentNestedSizes is returned when sibling Nested columns
	// disagree on the array length of a row.
	ErrInconsistentNestedSizes = errors.New("sizes of nested columns are inconsistent")
	// ErrUnsupportedPartType is returned for layouts other than Wide.
	ErrUnsupportedPartType = errors.New("unsupported part type")
)
