package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/widepart/internal/config"
	"github.com/harshithgowdakt/widepart/internal/storage"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, storage.DefaultSettings(), cfg.MergeTree)
	assert.Equal(t, "local", cfg.Disk.Type)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(`
data_dir: /var/lib/widepart
merge_tree:
  index_granularity: 1024
  index_granularity_bytes: 0
  compress_marks: true
  marks_compression_codec: ZSTD
server:
  addr: 127.0.0.1:9000
log:
  level: debug
  pretty: true
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/widepart", cfg.DataDir)
	assert.Equal(t, uint64(1024), cfg.MergeTree.IndexGranularity)
	assert.Equal(t, uint64(0), cfg.MergeTree.IndexGranularityBytes)
	assert.True(t, cfg.MergeTree.CompressMarks)
	assert.Equal(t, "ZSTD", cfg.MergeTree.MarksCompressionCodec)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.Log.Pretty)

	// Untouched keys keep their defaults.
	assert.Equal(t, "LZ4", cfg.MergeTree.CompressionCodec)
	assert.True(t, cfg.MergeTree.RequirePartMetadata)
	assert.Equal(t, 8, cfg.AttachConcurrency)
	assert.Equal(t, 4096, cfg.Cache.MarkCacheEntries)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestParseRejectsInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":       "merge_tree:\n  index_granulrity: 5\n",
		"codec":             "merge_tree:\n  compression_codec: GZIP\n",
		"zero granularity":  "merge_tree:\n  index_granularity: 0\n",
		"disk type":         "disk:\n  type: nfs\n",
		"s3 without bucket": "disk:\n  type: s3\n",
		"log level":         "log:\n  level: loud\n",
		"concurrency":       "attach_concurrency: 0\n",
		"endpoint":          "disk:\n  type: s3\n  s3:\n    bucket: b\n    endpoint: not a url\n",
		"empty data dir":    "data_dir: \"\"\n",
		"syntax":            "server: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	path := filepath.Join(dir, "widepart.yaml")
	require.NoError(t, os.WriteFile(path, []byte("disk:\n  type: s3\n  s3:\n    bucket: parts\n    prefix: prod\n"), 0644))
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Disk.Type)
	assert.Equal(t, "parts", cfg.Disk.S3.Bucket)
	assert.Equal(t, "prod", cfg.Disk.S3.Prefix)
}

func TestOpenLocalDisk(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	d, err := cfg.OpenDisk(context.Background())
	require.NoError(t, err)
	assert.False(t, d.IsRemote())
	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)
}
