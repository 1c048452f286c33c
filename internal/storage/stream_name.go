package storage

import (
	"context"

	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// StreamFileName maps the natural name of a substream to the name its files
// actually have in this part. With a manifest, the natural name wins if any
// of its files is listed, then the hashed alias. Without one, the natural
// marks file is looked up on disk first, then the hashed one. When nothing
// matches the natural name is returned.
//
// Every place that derives a physical file name goes through here.
func (p *DataPart) StreamFileName(ctx context.Context, stream string) (string, error) {
	if !p.Checksums.Empty() {
		return p.streamFileNameFromChecksums(stream), nil
	}

	ext := p.GranularityInfo.MarksFileExtension()
	ok, err := p.Storage.Exists(ctx, stream+ext)
	if err != nil {
		return "", err
	}
	if ok {
		return stream, nil
	}
	hashed := serialization.HashFileName(stream)
	ok, err = p.Storage.Exists(ctx, hashed+ext)
	if err != nil {
		return "", err
	}
	if ok {
		return hashed, nil
	}
	return stream, nil
}

func (p *DataPart) streamFileNameFromChecksums(stream string) string {
	ext := p.GranularityInfo.MarksFileExtension()
	if p.Checksums.Has(stream+DataFileExtension) || p.Checksums.Has(stream+ext) {
		return stream
	}
	hashed := p.Checksums.FileNameOrHash(stream)
	if p.Checksums.Has(hashed+DataFileExtension) || p.Checksums.Has(hashed+ext) {
		return hashed
	}
	return stream
}

// FileNameForColumn returns the resolved name of the first substream of a
// column, the stream whose marks stand in for the whole part.
func (p *DataPart) FileNameForColumn(ctx context.Context, column types.NameAndType) (string, error) {
	for path := range serialization.Enumerate(column.Type, p.SerializationKind(column.Name)) {
		return p.StreamFileName(ctx, serialization.FileNameForStream(column, path))
	}
	return "", nil
}

// HasColumnFiles reports whether the manifest lists the data and marks file
// of every substream of column. It is always false without a manifest.
func (p *DataPart) HasColumnFiles(column types.NameAndType) bool {
	ops, err := layoutFor(p.Type)
	if err != nil {
		return false
	}
	return ops.hasColumnFiles(p, column)
}

func wideHasColumnFiles(p *DataPart, column types.NameAndType) bool {
	ext := p.GranularityInfo.MarksFileExtension()
	for path := range serialization.Enumerate(column.Type, p.SerializationKind(column.Name)) {
		name := p.streamFileNameFromChecksums(serialization.FileNameForStream(column, path))
		if !p.Checksums.Has(name+DataFileExtension) || !p.Checksums.Has(name+ext) {
			return false
		}
	}
	return true
}
