package compression

import (
	"fmt"
	"strings"
)

// Codec compresses and decompresses data blocks.
type Codec interface {
	// MethodByte returns the single-byte codec identifier.
	MethodByte() byte
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, decompressedSize int) ([]byte, error)
}

// Method byte constants matching ClickHouse format. Snappy has no ClickHouse
// counterpart and uses an otherwise unassigned byte.
const (
	MethodNone   byte = 0x02
	MethodLZ4    byte = 0x82
	MethodZSTD   byte = 0x90
	MethodSnappy byte = 0x96
)

// CodecByName returns the codec registered under a (case-insensitive) name.
func CodecByName(name string) (Codec, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "NONE":
		return NoneCodec{}, nil
	case "LZ4", "":
		return LZ4Codec{}, nil
	case "ZSTD":
		return defaultZSTD, nil
	case "SNAPPY":
		return &SnappyCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression codec: %s", name)
	}
}

// CodecByMethod returns the codec for a block's method byte.
func CodecByMethod(method byte) (Codec, error) {
	switch method {
	case MethodNone:
		return NoneCodec{}, nil
	case MethodLZ4:
		return LZ4Codec{}, nil
	case MethodZSTD:
		return defaultZSTD, nil
	case MethodSnappy:
		return &SnappyCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression method: 0x%02x", method)
	}
}
