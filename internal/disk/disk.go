// Package disk abstracts where part files live: a local directory tree or an
// S3 bucket. Paths handed to a Disk are slash-separated and relative to its
// root; a part lives at <table>/<part>/.
package disk

import (
	"context"
	"io"
	"io/fs"
)

// ErrNotExist is returned for missing files and directories.
var ErrNotExist = fs.ErrNotExist

// TmpPrefix marks part directories that are still being written.
const TmpPrefix = "tmp_"

// PartStorage gives read access to the files of one part.
type PartStorage interface {
	// FullPath is the human-readable location of the part, used in errors.
	FullPath() string
	// PartName is the directory name of the part.
	PartName() string

	Exists(ctx context.Context, name string) (bool, error)
	FileSize(ctx context.Context, name string) (uint64, error)
	// ReadFile opens name for sequential reading. sizeHint is the number of
	// bytes the caller expects to read, or -1 when unknown.
	ReadFile(ctx context.Context, name string, sizeHint int64) (io.ReadCloser, error)
	ListFiles(ctx context.Context) ([]string, error)

	IsStoredOnRemoteDisk() bool
	SupportZeroCopyReplication() bool

	// Remove deletes every file of the part.
	Remove(ctx context.Context) error
}

// PartWriteStorage collects the files of a part being written. Nothing is
// visible under the final part name until Commit.
type PartWriteStorage interface {
	FullPath() string
	CreateFile(ctx context.Context, name string) (io.WriteCloser, error)
	Commit(ctx context.Context) (PartStorage, error)
	Rollback(ctx context.Context) error
}

// Disk is a root under which tables and their parts are stored.
type Disk interface {
	Name() string
	IsRemote() bool

	// ListDirs returns the names of the immediate subdirectories of dir.
	// dir is "" for the disk root.
	ListDirs(ctx context.Context, dir string) ([]string, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	RemoveAll(ctx context.Context, dir string) error

	PartStorage(table, part string) PartStorage
	NewPartWriteStorage(ctx context.Context, table, part string) (PartWriteStorage, error)
}

// ReadAll reads a whole part file.
func ReadAll(ctx context.Context, ps PartStorage, name string) ([]byte, error) {
	r, err := ps.ReadFile(ctx, name, -1)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteAll creates name in ws and writes data to it.
func WriteAll(ctx context.Context, ws PartWriteStorage, name string, data []byte) error {
	w, err := ws.CreateFile(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
