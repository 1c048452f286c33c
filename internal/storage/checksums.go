package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/harshithgowdakt/widepart/internal/compression"
	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/serialization"
)

const (
	ChecksumsFileName = "checksums.txt"
	checksumsVersion  = 1
)

// Checksum is the manifest entry of one part file.
type Checksum struct {
	FileSize uint64 `json:"file_size"`
	FileHash uint64 `json:"file_hash"`

	// Set for .bin files only.
	IsCompressed     bool   `json:"is_compressed,omitempty"`
	UncompressedSize uint64 `json:"uncompressed_size,omitempty"`
	UncompressedHash uint64 `json:"uncompressed_hash,omitempty"`
}

// Checksums is the checksum manifest of a part. A nil or empty manifest
// means the part was written without one.
type Checksums struct {
	Files map[string]Checksum
}

func NewChecksums() *Checksums {
	return &Checksums{Files: make(map[string]Checksum)}
}

// Empty reports whether the manifest lists no files.
func (c *Checksums) Empty() bool {
	return c == nil || len(c.Files) == 0
}

func (c *Checksums) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Files[name]
	return ok
}

func (c *Checksums) Get(name string) (Checksum, bool) {
	if c == nil {
		return Checksum{}, false
	}
	ck, ok := c.Files[name]
	return ck, ok
}

func (c *Checksums) Add(name string, ck Checksum) {
	c.Files[name] = ck
}

// Names returns the listed file names in sorted order.
func (c *Checksums) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Files))
	for n := range c.Files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TotalSize is the sum of all listed file sizes.
func (c *Checksums) TotalSize() uint64 {
	if c == nil {
		return 0
	}
	var total uint64
	for _, ck := range c.Files {
		total += ck.FileSize
	}
	return total
}

// FileNameOrHash returns stream if its data file is listed, and its hashed
// alias otherwise.
func (c *Checksums) FileNameOrHash(stream string) string {
	if c.Has(stream + DataFileExtension) {
		return stream
	}
	return serialization.HashFileName(stream)
}

// CheckEqual compares two manifests file by file.
func (c *Checksums) CheckEqual(other *Checksums) error {
	for _, name := range other.Names() {
		if !c.Has(name) {
			return fmt.Errorf("%w: unexpected file %s in data part", ErrNoFileInDataPart, name)
		}
	}
	for _, name := range c.Names() {
		want := c.Files[name]
		got, ok := other.Get(name)
		if !ok {
			return fmt.Errorf("%w: no file %s in data part", ErrNoFileInDataPart, name)
		}
		if want.FileSize != got.FileSize {
			return fmt.Errorf("%w: unexpected size of file %s: expected %d, got %d",
				ErrBadSizeOfFileInDataPart, name, want.FileSize, got.FileSize)
		}
		if want.FileHash != got.FileHash {
			return fmt.Errorf("checksum mismatch for file %s: expected %016x, got %016x", name, want.FileHash, got.FileHash)
		}
		if want.IsCompressed && got.IsCompressed {
			if want.UncompressedSize != got.UncompressedSize || want.UncompressedHash != got.UncompressedHash {
				return fmt.Errorf("checksum mismatch for uncompressed data of file %s", name)
			}
		}
	}
	return nil
}

type checksumsJSON struct {
	Version int                 `json:"version"`
	Files   map[string]Checksum `json:"files"`
}

// WriteTo encodes the manifest as JSON.
func (c *Checksums) WriteTo(w io.Writer) (int64, error) {
	data, err := json.MarshalIndent(checksumsJSON{Version: checksumsVersion, Files: c.Files}, "", "  ")
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// ReadChecksums decodes a manifest written by WriteTo.
func ReadChecksums(r io.Reader) (*Checksums, error) {
	var j checksumsJSON
	if err := json.NewDecoder(r).Decode(&j); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ChecksumsFileName, err)
	}
	if j.Version != checksumsVersion {
		return nil, fmt.Errorf("unsupported %s version %d", ChecksumsFileName, j.Version)
	}
	if j.Files == nil {
		j.Files = make(map[string]Checksum)
	}
	return &Checksums{Files: j.Files}, nil
}

// checksumWriter computes the manifest entry of a file while it is written.
type checksumWriter struct {
	w    io.Writer
	h    hash.Hash64
	size uint64
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{w: w, h: xxhash.New()}
}

func (c *checksumWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.h.Write(p[:n])
	c.size += uint64(n)
	return n, err
}

func (c *checksumWriter) checksum() Checksum {
	return Checksum{FileSize: c.size, FileHash: c.h.Sum64()}
}

// VerifyChecksums re-reads every file listed in the manifest and compares
// sizes and hashes, including the uncompressed contents of .bin files.
func VerifyChecksums(ctx context.Context, ps disk.PartStorage, checksums *Checksums) error {
	actual := NewChecksums()
	for _, name := range checksums.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}
		want := checksums.Files[name]
		ok, err := ps.Exists(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: file %s is listed in %s but missing",
				ErrNoFileInDataPart, partFilePath(ps, name), ChecksumsFileName)
		}
		ck, err := computeChecksum(ctx, ps, name, want.IsCompressed)
		if err != nil {
			return err
		}
		actual.Add(name, ck)
	}
	if err := checksums.CheckEqual(actual); err != nil {
		return fmt.Errorf("part %s: %w", ps.FullPath(), err)
	}
	return nil
}

func computeChecksum(ctx context.Context, ps disk.PartStorage, name string, compressed bool) (Checksum, error) {
	f, err := ps.ReadFile(ctx, name, -1)
	if err != nil {
		return Checksum{}, err
	}
	defer f.Close()

	cw := newChecksumWriter(io.Discard)
	if !compressed {
		if _, err := io.Copy(cw, f); err != nil {
			return Checksum{}, fmt.Errorf("reading %s: %w", partFilePath(ps, name), err)
		}
		return cw.checksum(), nil
	}

	uw := newChecksumWriter(io.Discard)
	if _, err := io.Copy(uw, compression.NewReader(io.TeeReader(f, cw))); err != nil {
		return Checksum{}, fmt.Errorf("reading %s: %w", partFilePath(ps, name), err)
	}
	ck := cw.checksum()
	ck.IsCompressed = true
	ck.UncompressedSize = uw.size
	ck.UncompressedHash = uw.h.Sum64()
	return ck, nil
}
