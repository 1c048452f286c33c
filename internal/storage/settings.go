package storage

const (
	DefaultIndexGranularity      = 8192
	DefaultIndexGranularityBytes = 10 << 20
	DefaultMaxFileNameLength     = 127
)

// Settings are the MergeTree settings that shape how parts are written and
// validated.
type Settings struct {
	// IndexGranularity is the maximum number of rows per granule.
	IndexGranularity uint64 `yaml:"index_granularity" json:"index_granularity" validate:"gt=0"`
	// IndexGranularityBytes bounds the uncompressed size of a granule.
	// 0 disables adaptive granularity and writes .mrk files.
	IndexGranularityBytes uint64 `yaml:"index_granularity_bytes" json:"index_granularity_bytes"`

	CompressMarks         bool   `yaml:"compress_marks" json:"compress_marks"`
	MarksCompressionCodec string `yaml:"marks_compression_codec" json:"marks_compression_codec" validate:"oneof=NONE LZ4 ZSTD SNAPPY"`
	CompressionCodec      string `yaml:"compression_codec" json:"compression_codec" validate:"oneof=NONE LZ4 ZSTD SNAPPY"`
	WriteFinalMark        bool   `yaml:"write_final_mark" json:"write_final_mark"`

	ReplaceLongFileNameToHash bool `yaml:"replace_long_file_name_to_hash" json:"replace_long_file_name_to_hash"`
	MaxFileNameLength         int  `yaml:"max_file_name_length" json:"max_file_name_length" validate:"gt=0"`

	// RatioOfDefaultsForSparseSerialization switches a scalar column to
	// sparse serialization when at least this share of its values are
	// defaults. 1 or more disables sparse columns.
	RatioOfDefaultsForSparseSerialization float64 `yaml:"ratio_of_defaults_for_sparse_serialization" json:"ratio_of_defaults_for_sparse_serialization" validate:"gte=0"`
	AssignPartUUIDs                       bool    `yaml:"assign_part_uuids" json:"assign_part_uuids"`

	RequirePartMetadata bool `yaml:"require_part_metadata" json:"require_part_metadata"`
	// CheckColumnSizes runs VerifyColumnSizes on every attach.
	CheckColumnSizes    bool `yaml:"check_column_sizes" json:"check_column_sizes"`
	RemoveOutdatedParts bool `yaml:"remove_outdated_parts" json:"remove_outdated_parts"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		IndexGranularity:                      DefaultIndexGranularity,
		IndexGranularityBytes:                 DefaultIndexGranularityBytes,
		MarksCompressionCodec:                 "LZ4",
		CompressionCodec:                      "LZ4",
		WriteFinalMark:                        true,
		ReplaceLongFileNameToHash:             true,
		MaxFileNameLength:                     DefaultMaxFileNameLength,
		RatioOfDefaultsForSparseSerialization: 1,
		RequirePartMetadata:                   true,
		RemoveOutdatedParts:                   true,
	}
}
