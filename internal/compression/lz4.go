package compression

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4.Compressor keeps a hash table between calls; pooling avoids
// allocating one per block.
var lz4Compressors = sync.Pool{New: func() any { return new(lz4.Compressor) }}

// LZ4Codec is the default codec of data and marks files.
type LZ4Codec struct{}

func (LZ4Codec) MethodByte() byte { return MethodLZ4 }
func (LZ4Codec) Name() string     { return "LZ4" }

func (LZ4Codec) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}
	c := lz4Compressors.Get().(*lz4.Compressor)
	defer lz4Compressors.Put(c)

	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := c.CompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	// n is 0 when lz4 gives up on the input.
	if n == 0 || n >= len(src) {
		return nil, ErrIncompressible
	}
	return dst[:n], nil
}

func (LZ4Codec) Decompress(src []byte, decompressedSize int) ([]byte, error) {
	dst := make([]byte, decompressedSize)
	if decompressedSize == 0 {
		return dst, nil
	}
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != decompressedSize {
		return nil, fmt.Errorf("lz4 decompress: expected %d bytes, got %d", decompressedSize, n)
	}
	return dst, nil
}
