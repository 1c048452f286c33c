package compression

import (
	"bytes"
	"fmt"
)

// NoneCodec stores blocks uncompressed.
type NoneCodec struct{}

func (NoneCodec) MethodByte() byte { return MethodNone }
func (NoneCodec) Name() string     { return "NONE" }

// Compress returns src itself; CompressBlock copies it into the block.
func (NoneCodec) Compress(src []byte) ([]byte, error) { return src, nil }

func (NoneCodec) Decompress(src []byte, decompressedSize int) ([]byte, error) {
	if len(src) != decompressedSize {
		return nil, fmt.Errorf("stored block has %d bytes, header says %d", len(src), decompressedSize)
	}
	return bytes.Clone(src), nil
}
