package compression_test

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/compression"
)

func sampleData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 17)
	}
	return data
}

func TestCodecsRoundTrip(t *testing.T) {
	for _, name := range []string{"NONE", "LZ4", "ZSTD", "SNAPPY"} {
		t.Run(name, func(t *testing.T) {
			codec, err := compression.CodecByName(name)
			require.NoError(t, err)

			data := sampleData(64 << 10)
			block, err := compression.CompressBlock(codec, data)
			require.NoError(t, err)

			h, err := compression.ReadBlockHeader(block)
			require.NoError(t, err)
			assert.Equal(t, codec.MethodByte(), h.Method)
			assert.Equal(t, uint32(len(block)), h.CompressedSize)
			assert.Equal(t, uint32(len(data)), h.UncompressedSize)

			out, err := compression.DecompressBlock(block)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestLZ4IncompressibleFallsBackToNone(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := make([]byte, 32)
	rng.Read(data)

	block, err := compression.CompressBlock(&compression.LZ4Codec{}, data)
	require.NoError(t, err)
	h, err := compression.ReadBlockHeader(block)
	require.NoError(t, err)
	assert.Equal(t, compression.MethodNone, h.Method)
	assert.Len(t, block, compression.HeaderSize+len(data))

	out, err := compression.DecompressBlock(block)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestUnknownCodec(t *testing.T) {
	_, err := compression.CodecByName("brotli")
	assert.Error(t, err)

	_, err = compression.DecompressBlock([]byte{0x01, 9, 0, 0, 0, 0, 0, 0, 0})
	assert.Error(t, err)
	_, err = compression.DecompressBlock([]byte{compression.MethodNone, 4, 0, 0, 0, 0, 0, 0, 0})
	assert.Error(t, err, "size smaller than the header")
	_, err = compression.DecompressBlock([]byte{compression.MethodNone, 12, 0, 0, 0, 3, 0, 0, 0, 'a'})
	assert.Error(t, err, "truncated payload")
}

func TestStreamWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w := compression.NewWriter(&buf, &compression.LZ4Codec{}, 1000)

	data := sampleData(4500)
	n, err := w.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(len(data)), w.UncompressedBytesWritten())
	assert.Equal(t, uint64(buf.Len()), w.CompressedBytesWritten())

	r := compression.NewReader(bytes.NewReader(buf.Bytes()))
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, out)
	assert.Equal(t, uint64(buf.Len()), r.CompressedBytesRead())
}

func TestStreamReaderEmpty(t *testing.T) {
	out, err := io.ReadAll(compression.NewReader(bytes.NewReader(nil)))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStreamReaderTruncated(t *testing.T) {
	var buf bytes.Buffer
	w := compression.NewWriter(&buf, &compression.NoneCodec{}, 0)
	_, err := w.Write(sampleData(100))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	truncated := buf.Bytes()[:buf.Len()-5]
	_, err = io.ReadAll(compression.NewReader(bytes.NewReader(truncated)))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = io.ReadAll(compression.NewReader(bytes.NewReader(buf.Bytes()[:4])))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
