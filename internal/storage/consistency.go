package storage

import (
	"context"
	"fmt"

	"github.com/harshithgowdakt/widepart/internal/serialization"
)

// ConsistencyOptions tunes the check of parts without a manifest.
type ConsistencyOptions struct {
	// OnMissing is called for every marks file that is skipped because it
	// does not exist.
	OnMissing func(column, file string)
	// Strict fails on a missing marks file of a column listed in the part's
	// own columns.txt instead of assuming the column was added later.
	Strict bool
}

// CheckConsistency validates that the part's files agree with its columns.
// With a manifest and requirePartMetadata, every substream must have its
// data and marks file listed. Without a manifest, marks files that exist
// must be non-empty and all of the same size; missing ones are skipped as
// belonging to columns added after the part was written.
func (p *DataPart) CheckConsistency(ctx context.Context, requirePartMetadata bool) error {
	return p.CheckConsistencyWithOptions(ctx, requirePartMetadata, ConsistencyOptions{})
}

// CheckConsistencyWithOptions is CheckConsistency with explicit options.
func (p *DataPart) CheckConsistencyWithOptions(ctx context.Context, requirePartMetadata bool, opts ConsistencyOptions) error {
	ops, err := layoutFor(p.Type)
	if err != nil {
		return err
	}
	if p.LoadState() == Unloaded {
		return fmt.Errorf("%w: cannot check part %s", ErrGranularityNotLoaded, p.Name)
	}
	if err := p.checkConsistencyBase(ctx, requirePartMetadata); err != nil {
		return err
	}
	return ops.checkConsistency(ctx, p, requirePartMetadata, opts)
}

// checkConsistencyBase validates the files every part layout shares.
func (p *DataPart) checkConsistencyBase(ctx context.Context, requirePartMetadata bool) error {
	var required, optional []string
	if p.Schema != nil && len(p.Schema.OrderBy) > 0 {
		required = append(required, PrimaryIndexFileName)
	}
	if requirePartMetadata {
		required = append(required, ColumnsFileName, CountFileName)
		if p.Schema != nil && p.Schema.PartitionBy != "" {
			required = append(required, MinMaxIndexFileName(p.Schema.PartitionBy))
		}
	} else {
		optional = append(optional, ColumnsFileName, CountFileName)
		if p.Schema != nil && p.Schema.PartitionBy != "" {
			optional = append(optional, MinMaxIndexFileName(p.Schema.PartitionBy))
		}
	}

	if !p.Checksums.Empty() {
		for _, name := range required {
			if !p.Checksums.Has(name) {
				return fmt.Errorf("%w: no checksum for %s in part %s", ErrNoFileInDataPart, name, p.Storage.FullPath())
			}
		}
		return nil
	}

	for _, name := range required {
		if name == ColumnsFileName || name == CountFileName {
			// Legacy parts without a manifest may predate these files.
			optional = append(optional, name)
			continue
		}
		if err := p.checkFileNotEmpty(ctx, name, true); err != nil {
			return err
		}
	}
	for _, name := range optional {
		if err := p.checkFileNotEmpty(ctx, name, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *DataPart) checkFileNotEmpty(ctx context.Context, name string, mustExist bool) error {
	ok, err := p.Storage.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		if mustExist {
			return fmt.Errorf("%w: part %s is broken: %s doesn't exist",
				ErrNoFileInDataPart, p.Storage.FullPath(), partFilePath(p.Storage, name))
		}
		return nil
	}
	size, err := p.Storage.FileSize(ctx, name)
	if err != nil {
		return err
	}
	if size == 0 {
		return fmt.Errorf("%w: part %s is broken: %s is empty",
			ErrBadSizeOfFileInDataPart, p.Storage.FullPath(), partFilePath(p.Storage, name))
	}
	return nil
}

func wideCheckConsistency(ctx context.Context, p *DataPart, requirePartMetadata bool, opts ConsistencyOptions) error {
	ext := p.GranularityInfo.MarksFileExtension()

	if !p.Checksums.Empty() {
		if !requirePartMetadata {
			return nil
		}
		for _, col := range p.Columns {
			for path := range serialization.Enumerate(col.Type, p.SerializationKind(col.Name)) {
				stream := p.streamFileNameFromChecksums(serialization.FileNameForStream(col, path))
				for _, file := range []string{stream + ext, stream + DataFileExtension} {
					if !p.Checksums.Has(file) {
						return fmt.Errorf("%w: no %s file checksum for column %s in part %s",
							ErrNoFileInDataPart, file, col.Name, p.Storage.FullPath())
					}
				}
			}
		}
		return nil
	}

	var marksSize uint64
	seen := false
	for _, col := range p.Columns {
		for path := range serialization.Enumerate(col.Type, p.SerializationKind(col.Name)) {
			stream, err := p.StreamFileName(ctx, serialization.FileNameForStream(col, path))
			if err != nil {
				return err
			}
			file := stream + ext
			ok, err := p.Storage.Exists(ctx, file)
			if err != nil {
				return err
			}
			if !ok {
				if opts.Strict && p.columnsFromFile {
					return fmt.Errorf("%w: marks file %s of column %s listed in %s is missing",
						ErrNoFileInDataPart, partFilePath(p.Storage, file), col.Name, ColumnsFileName)
				}
				if opts.OnMissing != nil {
					opts.OnMissing(col.Name, file)
				}
				continue
			}

			size, err := p.Storage.FileSize(ctx, file)
			if err != nil {
				return err
			}
			if size == 0 {
				return fmt.Errorf("%w: part %s is broken: %s is empty",
					ErrBadSizeOfFileInDataPart, p.Storage.FullPath(), partFilePath(p.Storage, file))
			}
			if !seen {
				marksSize, seen = size, true
			} else if size != marksSize {
				return fmt.Errorf("%w: part %s is broken: marks have different sizes",
					ErrBadSizeOfFileInDataPart, p.Storage.FullPath())
			}
		}
	}
	return nil
}
