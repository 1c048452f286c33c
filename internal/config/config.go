// Package config loads the daemon configuration from YAML.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/storage"
)

// S3Config locates the bucket a remote disk stores tables in.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	// ZeroCopyReplication marks parts on this disk as shareable between
	// replicas without copying.
	ZeroCopyReplication bool `yaml:"zero_copy_replication"`
}

// DiskConfig selects where parts live.
type DiskConfig struct {
	Type string   `yaml:"type" validate:"oneof=local s3"`
	S3   S3Config `yaml:"s3"`
}

// CacheConfig sizes the reader caches. Entries are marks files and
// decompressed blocks respectively.
type CacheConfig struct {
	MarkCacheEntries         int `yaml:"mark_cache_entries" validate:"gte=1"`
	UncompressedCacheEntries int `yaml:"uncompressed_cache_entries" validate:"gte=1"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// Config is the complete daemon configuration.
type Config struct {
	DataDir           string           `yaml:"data_dir"`
	Disk              DiskConfig       `yaml:"disk"`
	MergeTree         storage.Settings `yaml:"merge_tree"`
	Cache             CacheConfig      `yaml:"cache"`
	Server            ServerConfig     `yaml:"server"`
	Log               LogConfig        `yaml:"log"`
	AttachConcurrency int              `yaml:"attach_concurrency" validate:"gte=1"`
}

// Default returns a configuration that is valid as is.
func Default() *Config {
	return &Config{
		DataDir:   "./widepart-data",
		Disk:      DiskConfig{Type: "local"},
		MergeTree: storage.DefaultSettings(),
		Cache: CacheConfig{
			MarkCacheEntries:         4096,
			UncompressedCacheEntries: 1024,
		},
		Server:            ServerConfig{Addr: ":8123"},
		Log:               LogConfig{Level: "info"},
		AttachConcurrency: 8,
	}
}

// Parse overlays the YAML document in r on the defaults and validates the
// result. Unknown keys are rejected. An empty document yields the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration file at path. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

var validate = validator.New()

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Disk.Type {
	case "local":
		if c.DataDir == "" {
			return fmt.Errorf("invalid config: data_dir is required for a local disk")
		}
	case "s3":
		if c.Disk.S3.Bucket == "" {
			return fmt.Errorf("invalid config: disk.s3.bucket is required for an s3 disk")
		}
	}
	return nil
}

// OpenDisk returns the disk the configuration points at.
func (c *Config) OpenDisk(ctx context.Context) (disk.Disk, error) {
	if c.Disk.Type == "s3" {
		return disk.NewS3DiskFromConfig(ctx, c.Disk.S3.Region, c.Disk.S3.Endpoint, disk.S3Options{
			Bucket:              c.Disk.S3.Bucket,
			Prefix:              c.Disk.S3.Prefix,
			ZeroCopyReplication: c.Disk.S3.ZeroCopyReplication,
		})
	}
	return disk.NewLocalDisk(c.DataDir)
}
