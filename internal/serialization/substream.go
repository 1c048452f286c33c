// Package serialization decomposes logical columns into the physical
// substreams stored in a part, and names the files those substreams live in.
package serialization

import (
	"iter"
	"strconv"
	"strings"

	"github.com/harshithgowdakt/widepart/internal/types"
)

// SubstreamType identifies one step in the decomposition of a column.
type SubstreamType uint8

const (
	Regular SubstreamType = iota
	NullMap
	NullableElements
	ArraySizes
	ArrayElements
	DictionaryKeys
	DictionaryIndexes
	SparseOffsets
	SparseElements
)

var substreamNames = [...]string{
	Regular:           "Regular",
	NullMap:           "NullMap",
	NullableElements:  "NullableElements",
	ArraySizes:        "ArraySizes",
	ArrayElements:     "ArrayElements",
	DictionaryKeys:    "DictionaryKeys",
	DictionaryIndexes: "DictionaryIndexes",
	SparseOffsets:     "SparseOffsets",
	SparseElements:    "SparseElements",
}

func (s SubstreamType) String() string {
	if int(s) < len(substreamNames) {
		return substreamNames[s]
	}
	return "Unknown"
}

// Path is the sequence of substream steps leading to one physical stream.
// The last element always identifies a stream that is actually written.
type Path []SubstreamType

// Append returns a copy of p extended with s. Paths handed out by Enumerate
// never share backing arrays.
func (p Path) Append(s SubstreamType) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// Last returns the final step of the path, or Regular for an empty path.
func (p Path) Last() SubstreamType {
	if len(p) == 0 {
		return Regular
	}
	return p[len(p)-1]
}

// ArrayLevel returns how many ArrayElements steps the path descends through.
func (p Path) ArrayLevel() int {
	n := 0
	for _, s := range p {
		if s == ArrayElements {
			n++
		}
	}
	return n
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// Kind is how a column is serialized inside a particular part.
type Kind uint8

const (
	KindDefault Kind = iota
	KindSparse
)

func (k Kind) String() string {
	if k == KindSparse {
		return "Sparse"
	}
	return "Default"
}

// Enumerate lazily yields the path of every physical stream the column is
// decomposed into, in on-disk order.
func Enumerate(t types.ColumnType, kind Kind) iter.Seq[Path] {
	return func(yield func(Path) bool) {
		if kind == KindSparse {
			if !yield(Path{SparseOffsets}) {
				return
			}
			enumerate(t, Path{SparseElements}, yield)
			return
		}
		enumerate(t, nil, yield)
	}
}

func enumerate(t types.ColumnType, prefix Path, yield func(Path) bool) bool {
	switch t.Kind {
	case types.KindArray:
		if !yield(prefix.Append(ArraySizes)) {
			return false
		}
		return enumerate(*t.Nested, prefix.Append(ArrayElements), yield)
	case types.KindNullable:
		if !yield(prefix.Append(NullMap)) {
			return false
		}
		return enumerate(*t.Nested, prefix.Append(NullableElements), yield)
	case types.KindLowCardinality:
		if !yield(prefix.Append(DictionaryKeys)) {
			return false
		}
		return yield(prefix.Append(DictionaryIndexes))
	default:
		if len(prefix) == 0 {
			return yield(Path{Regular})
		}
		// Elements of a wrapper are written to the stream named by the prefix
		// alone; mark them with a trailing Regular step.
		return yield(prefix.Append(Regular))
	}
}

// Fold reduces every stream path of a column into acc. The accumulator is
// threaded explicitly, so callers can carry state across several columns.
func Fold[A any](t types.ColumnType, kind Kind, acc A, fn func(A, Path) A) A {
	for p := range Enumerate(t, kind) {
		acc = fn(acc, p)
	}
	return acc
}

// FileNameForStream returns the natural (unhashed) stream name of one
// substream of a column: the base of its .bin and marks file names.
//
// The level-0 sizes stream of a Nested column ("n.a" of Array type) is
// named after the nested table ("n.size0") so sibling columns share it.
func FileNameForStream(column types.NameAndType, path Path) string {
	var base string
	nested := types.NestedTableName(column.Name)
	if nested != column.Name && len(path) == 1 && path[0] == ArraySizes {
		base = EscapeForFileName(nested)
	} else {
		base = EscapeForFileName(column.Name)
	}
	return nameForSubstreamPath(base, path)
}

func nameForSubstreamPath(name string, path Path) string {
	level := 0
	for _, s := range path {
		switch s {
		case NullMap:
			name += ".null"
		case ArraySizes:
			name += ".size" + strconv.Itoa(level)
		case ArrayElements:
			level++
		case DictionaryKeys:
			name += ".dict"
		case SparseOffsets:
			name += ".sparse.idx"
		}
	}
	return name
}

// EscapeForFileName keeps [A-Za-z0-9_] and percent-encodes every other byte.
func EscapeForFileName(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}
	return sb.String()
}

// UnescapeForFileName reverses EscapeForFileName. Malformed escapes are kept
// verbatim.
func UnescapeForFileName(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				sb.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
