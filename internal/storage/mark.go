package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DataFileExtension is the suffix of compressed column data files.
const DataFileExtension = ".bin"

// Mark points at the start of a granule inside a substream's .bin file.
type Mark struct {
	OffsetInCompressedFile    uint64
	OffsetInDecompressedBlock uint64
	// RowsInMark is only stored on disk for adaptive granularity.
	RowsInMark uint64
}

const (
	fixedMarkSize    = 16 // 2 x uint64
	adaptiveMarkSize = 24 // 3 x uint64
)

// MarkType describes how marks are encoded on disk.
type MarkType struct {
	PartType   PartType
	Adaptive   bool
	Compressed bool
}

// FileExtension returns .mrk, .mrk2, .mrk3 or their compressed .cmrk forms.
func (t MarkType) FileExtension() string {
	ext := ".mrk"
	if t.Compressed {
		ext = ".cmrk"
	}
	if t.PartType == PartTypeCompact {
		return ext + "3"
	}
	if t.Adaptive {
		return ext + "2"
	}
	return ext
}

func (t MarkType) String() string {
	return t.FileExtension()
}

// ParseMarkType reverses FileExtension. The leading dot is optional.
func ParseMarkType(ext string) (MarkType, error) {
	s := strings.TrimPrefix(ext, ".")
	var t MarkType
	switch {
	case strings.HasPrefix(s, "cmrk"):
		t.Compressed = true
		s = s[len("cmrk"):]
	case strings.HasPrefix(s, "mrk"):
		s = s[len("mrk"):]
	default:
		return MarkType{}, fmt.Errorf("unknown marks extension %q", ext)
	}
	switch s {
	case "":
	case "2":
		t.Adaptive = true
	case "3":
		t.Adaptive = true
		t.PartType = PartTypeCompact
	default:
		return MarkType{}, fmt.Errorf("unknown marks extension %q", ext)
	}
	return t, nil
}

// MarksExtensionOf returns the marks extension of a file name, if it has one.
func MarksExtensionOf(name string) (string, bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", false
	}
	if _, err := ParseMarkType(name[i:]); err != nil {
		return "", false
	}
	return name[i:], true
}

// markSize returns the on-disk size of one Wide mark.
func markSize(adaptive bool) int {
	if adaptive {
		return adaptiveMarkSize
	}
	return fixedMarkSize
}

// WriteMarks encodes marks in little-endian, appending the row count when
// adaptive.
func WriteMarks(w io.Writer, marks []Mark, adaptive bool) error {
	buf := make([]byte, markSize(adaptive))
	for _, m := range marks {
		binary.LittleEndian.PutUint64(buf[0:], m.OffsetInCompressedFile)
		binary.LittleEndian.PutUint64(buf[8:], m.OffsetInDecompressedBlock)
		if adaptive {
			binary.LittleEndian.PutUint64(buf[16:], m.RowsInMark)
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// ReadMarks decodes marks until the end of r. fixedRows is assigned to every
// mark when the stream is not adaptive. A stream that ends in the middle of a
// mark returns ErrCannotReadAllMarks.
func ReadMarks(r io.Reader, adaptive bool, fixedRows uint64) ([]Mark, error) {
	br := bufio.NewReader(r)
	buf := make([]byte, markSize(adaptive))
	var marks []Mark
	for {
		_, err := io.ReadFull(br, buf)
		if err == io.EOF {
			return marks, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream ends inside mark %d", ErrCannotReadAllMarks, len(marks))
		}
		if err != nil {
			return nil, fmt.Errorf("reading mark %d: %w", len(marks), err)
		}
		m := Mark{
			OffsetInCompressedFile:    binary.LittleEndian.Uint64(buf[0:]),
			OffsetInDecompressedBlock: binary.LittleEndian.Uint64(buf[8:]),
			RowsInMark:                fixedRows,
		}
		if adaptive {
			m.RowsInMark = binary.LittleEndian.Uint64(buf[16:])
		}
		marks = append(marks, m)
	}
}
