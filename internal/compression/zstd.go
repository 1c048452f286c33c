package compression

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ZSTDCodec implements ZSTD block compression. EncodeAll and DecodeAll are
// safe for concurrent use, so one encoder/decoder pair serves every caller.
type ZSTDCodec struct {
	level zstd.EncoderLevel

	once    sync.Once
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	initErr error
}

var defaultZSTD = NewZSTDCodec(zstd.SpeedDefault)

// NewZSTDCodec creates a ZSTD codec at the given encoder level.
func NewZSTDCodec(level zstd.EncoderLevel) *ZSTDCodec {
	return &ZSTDCodec{level: level}
}

func (c *ZSTDCodec) MethodByte() byte { return MethodZSTD }
func (c *ZSTDCodec) Name() string     { return "ZSTD" }

func (c *ZSTDCodec) init() error {
	c.once.Do(func() {
		c.enc, c.initErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level), zstd.WithEncoderConcurrency(1))
		if c.initErr != nil {
			return
		}
		c.dec, c.initErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(256<<20))
	})
	return c.initErr
}

func (c *ZSTDCodec) Compress(src []byte) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	return c.enc.EncodeAll(src, make([]byte, 0, len(src)/2+16)), nil
}

func (c *ZSTDCodec) Decompress(src []byte, decompressedSize int) ([]byte, error) {
	if decompressedSize == 0 {
		return []byte{}, nil
	}
	if err := c.init(); err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	dst, err := c.dec.DecodeAll(src, make([]byte, 0, decompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(dst) != decompressedSize {
		return nil, fmt.Errorf("zstd decompress: expected %d bytes, got %d", decompressedSize, len(dst))
	}
	return dst, nil
}
