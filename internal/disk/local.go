package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// LocalDisk stores tables under a directory of the local filesystem.
type LocalDisk struct {
	root string
}

// NewLocalDisk creates root if needed and returns a disk rooted at it.
func NewLocalDisk(root string) (*LocalDisk, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &LocalDisk{root: root}, nil
}

func (d *LocalDisk) Name() string   { return "local" }
func (d *LocalDisk) IsRemote() bool { return false }
func (d *LocalDisk) Root() string   { return d.root }

func (d *LocalDisk) path(rel string) string {
	return filepath.Join(d.root, filepath.FromSlash(rel))
}

func (d *LocalDisk) ListDirs(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(d.path(dir))
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

func (d *LocalDisk) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(d.path(path))
}

func (d *LocalDisk) WriteFile(_ context.Context, path string, data []byte) error {
	p := d.path(path)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

func (d *LocalDisk) RemoveAll(_ context.Context, dir string) error {
	return os.RemoveAll(d.path(dir))
}

func (d *LocalDisk) PartStorage(table, part string) PartStorage {
	return &localPartStorage{dir: filepath.Join(d.root, table, part), name: part}
}

// NewPartWriteStorage writes into <table>/tmp_<part>; Commit renames the
// directory into place.
func (d *LocalDisk) NewPartWriteStorage(_ context.Context, table, part string) (PartWriteStorage, error) {
	tmp := filepath.Join(d.root, table, TmpPrefix+part)
	if err := os.RemoveAll(tmp); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return nil, fmt.Errorf("creating tmp dir: %w", err)
	}
	return &localPartWriteStorage{
		tmpDir:   tmp,
		finalDir: filepath.Join(d.root, table, part),
		part:     part,
	}, nil
}

type localPartStorage struct {
	dir  string
	name string
}

// NewLocalPartStorage opens an existing part directory directly.
func NewLocalPartStorage(dir string) PartStorage {
	return &localPartStorage{dir: dir, name: filepath.Base(dir)}
}

func (s *localPartStorage) FullPath() string { return s.dir }
func (s *localPartStorage) PartName() string { return s.name }

func (s *localPartStorage) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *localPartStorage) FileSize(_ context.Context, name string) (uint64, error) {
	fi, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return 0, err
	}
	return uint64(fi.Size()), nil
}

func (s *localPartStorage) ReadFile(_ context.Context, name string, _ int64) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.dir, name))
}

func (s *localPartStorage) ListFiles(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *localPartStorage) IsStoredOnRemoteDisk() bool       { return false }
func (s *localPartStorage) SupportZeroCopyReplication() bool { return false }

func (s *localPartStorage) Remove(_ context.Context) error {
	return os.RemoveAll(s.dir)
}

type localPartWriteStorage struct {
	tmpDir   string
	finalDir string
	part     string
}

func (s *localPartWriteStorage) FullPath() string { return s.tmpDir }

func (s *localPartWriteStorage) CreateFile(_ context.Context, name string) (io.WriteCloser, error) {
	return os.Create(filepath.Join(s.tmpDir, name))
}

func (s *localPartWriteStorage) Commit(_ context.Context) (PartStorage, error) {
	if _, err := os.Stat(s.finalDir); err == nil {
		return nil, fmt.Errorf("part directory %s already exists", s.finalDir)
	}
	if err := os.Rename(s.tmpDir, s.finalDir); err != nil {
		return nil, fmt.Errorf("renaming part dir: %w", err)
	}
	return &localPartStorage{dir: s.finalDir, name: s.part}, nil
}

func (s *localPartWriteStorage) Rollback(_ context.Context) error {
	return os.RemoveAll(s.tmpDir)
}
