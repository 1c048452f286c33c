package compression

import (
	"errors"
	"fmt"
	"io"
)

// DefaultBlockSize is the uncompressed size at which Writer cuts a block.
const DefaultBlockSize = 1 << 20

// Reader decompresses a sequence of blocks from an underlying stream and
// exposes the concatenated uncompressed bytes.
type Reader struct {
	src    io.Reader
	header [HeaderSize]byte
	buf    []byte
	pos    int

	compressedRead uint64
}

// NewReader wraps r, which must contain zero or more compressed blocks.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: r}
}

func (r *Reader) Read(p []byte) (int, error) {
	for r.pos >= len(r.buf) {
		if err := r.nextBlock(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf[r.pos:])
	r.pos += n
	return n, nil
}

// CompressedBytesRead returns how many bytes of the underlying stream have
// been consumed.
func (r *Reader) CompressedBytesRead() uint64 {
	return r.compressedRead
}

func (r *Reader) nextBlock() error {
	n, err := io.ReadFull(r.src, r.header[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("truncated block header (%d of %d bytes): %w", n, HeaderSize, io.ErrUnexpectedEOF)
		}
		return err
	}
	h, err := ReadBlockHeader(r.header[:])
	if err != nil {
		return err
	}
	total := h.CompressedSize

	block := make([]byte, total)
	copy(block, r.header[:])
	if _, err := io.ReadFull(r.src, block[HeaderSize:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("reading compressed block payload: %w", err)
	}
	r.compressedRead += uint64(total)

	data, err := DecompressBlock(block)
	if err != nil {
		return err
	}
	r.buf = data
	r.pos = 0
	return nil
}

// Writer compresses everything written to it into blocks of at most
// blockSize uncompressed bytes.
type Writer struct {
	dst       io.Writer
	codec     Codec
	blockSize int
	buf       []byte

	compressedWritten   uint64
	uncompressedWritten uint64
}

// NewWriter creates a Writer emitting blocks compressed with codec.
func NewWriter(w io.Writer, codec Codec, blockSize int) *Writer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Writer{dst: w, codec: codec, blockSize: blockSize}
}

func (w *Writer) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		room := w.blockSize - len(w.buf)
		chunk := p
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		w.buf = append(w.buf, chunk...)
		p = p[len(chunk):]
		written += len(chunk)
		if len(w.buf) >= w.blockSize {
			if err := w.Flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush emits the pending bytes as one block. An empty buffer emits nothing.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	block, err := CompressBlock(w.codec, w.buf)
	if err != nil {
		return err
	}
	if _, err := w.dst.Write(block); err != nil {
		return err
	}
	w.compressedWritten += uint64(len(block))
	w.uncompressedWritten += uint64(len(w.buf))
	w.buf = w.buf[:0]
	return nil
}

// Close flushes pending data. It does not close the underlying writer.
func (w *Writer) Close() error {
	return w.Flush()
}

// CompressedBytesWritten returns the bytes emitted to the underlying writer.
func (w *Writer) CompressedBytesWritten() uint64 { return w.compressedWritten }

// UncompressedBytesWritten returns the flushed uncompressed bytes.
func (w *Writer) UncompressedBytesWritten() uint64 { return w.uncompressedWritten }
