package compression

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the length of the header in front of every compressed
// block: the codec method byte, the block size including the header and
// the uncompressed size, both little-endian uint32.
const HeaderSize = 9

// ErrIncompressible is returned by a codec whose output would not be smaller
// than its input. CompressBlock stores such data uncompressed.
var ErrIncompressible = errors.New("data is incompressible")

// BlockHeader is the decoded header of one compressed block.
type BlockHeader struct {
	Method byte
	// CompressedSize counts the header too, so it is the distance to the
	// next block.
	CompressedSize   uint32
	UncompressedSize uint32
}

// ReadBlockHeader decodes the header at the start of data.
func ReadBlockHeader(data []byte) (BlockHeader, error) {
	if len(data) < HeaderSize {
		return BlockHeader{}, fmt.Errorf("block header needs %d bytes, have %d", HeaderSize, len(data))
	}
	h := BlockHeader{
		Method:           data[0],
		CompressedSize:   binary.LittleEndian.Uint32(data[1:5]),
		UncompressedSize: binary.LittleEndian.Uint32(data[5:9]),
	}
	if h.CompressedSize < HeaderSize {
		return BlockHeader{}, fmt.Errorf("compressed block size %d is smaller than its header", h.CompressedSize)
	}
	return h, nil
}

func (h BlockHeader) put(dst []byte) {
	dst[0] = h.Method
	binary.LittleEndian.PutUint32(dst[1:5], h.CompressedSize)
	binary.LittleEndian.PutUint32(dst[5:9], h.UncompressedSize)
}

// CompressBlock returns data compressed with codec as one block, header
// included.
func CompressBlock(codec Codec, data []byte) ([]byte, error) {
	payload, err := codec.Compress(data)
	if errors.Is(err, ErrIncompressible) {
		codec, payload, err = NoneCodec{}, data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", codec.Name(), err)
	}

	block := make([]byte, HeaderSize+len(payload))
	BlockHeader{
		Method:           codec.MethodByte(),
		CompressedSize:   uint32(len(block)),
		UncompressedSize: uint32(len(data)),
	}.put(block)
	copy(block[HeaderSize:], payload)
	return block, nil
}

// DecompressBlock decodes one whole block. Trailing bytes after the block
// are ignored.
func DecompressBlock(data []byte) ([]byte, error) {
	h, err := ReadBlockHeader(data)
	if err != nil {
		return nil, err
	}
	if int(h.CompressedSize) > len(data) {
		return nil, fmt.Errorf("compressed block is truncated: header says %d bytes, have %d", h.CompressedSize, len(data))
	}
	codec, err := CodecByMethod(h.Method)
	if err != nil {
		return nil, err
	}
	return codec.Decompress(data[HeaderSize:h.CompressedSize], int(h.UncompressedSize))
}
