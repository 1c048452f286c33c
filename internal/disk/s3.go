package disk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Disk.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Options configures an S3Disk.
type S3Options struct {
	Bucket string
	Prefix string
	// ZeroCopyReplication reports parts as shareable between replicas
	// without copying.
	ZeroCopyReplication bool
}

// S3Disk stores tables as objects under s3://<bucket>/<prefix>/.
type S3Disk struct {
	client S3API
	opts   S3Options
}

// NewS3Disk wraps an existing client.
func NewS3Disk(client S3API, opts S3Options) *S3Disk {
	opts.Prefix = strings.Trim(opts.Prefix, "/")
	return &S3Disk{client: client, opts: opts}
}

// NewS3DiskFromConfig builds a client from the default AWS configuration.
// A non-empty endpoint switches to path-style addressing for S3-compatible
// stores.
func NewS3DiskFromConfig(ctx context.Context, region, endpoint string, opts S3Options) (*S3Disk, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Disk(client, opts), nil
}

func (d *S3Disk) Name() string   { return "s3" }
func (d *S3Disk) IsRemote() bool { return true }

func (d *S3Disk) key(elem ...string) string {
	return path.Join(append([]string{d.opts.Prefix}, elem...)...)
}

func (d *S3Disk) url(key string) string {
	return "s3://" + d.opts.Bucket + "/" + key
}

// ListDirs returns the common prefixes directly below dir.
func (d *S3Disk) ListDirs(ctx context.Context, dir string) ([]string, error) {
	prefix := d.key(dir)
	if prefix != "" {
		prefix += "/"
	}
	p := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(d.opts.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	var dirs []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", d.url(prefix), err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				dirs = append(dirs, name)
			}
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (d *S3Disk) ReadFile(ctx context.Context, p string) ([]byte, error) {
	body, err := d.getObject(ctx, d.key(p))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (d *S3Disk) WriteFile(ctx context.Context, p string, data []byte) error {
	return d.putObject(ctx, d.key(p), data)
}

func (d *S3Disk) RemoveAll(ctx context.Context, dir string) error {
	return d.deletePrefix(ctx, d.key(dir)+"/")
}

func (d *S3Disk) PartStorage(table, part string) PartStorage {
	return &s3PartStorage{disk: d, prefix: d.key(table, part), name: part}
}

// NewPartWriteStorage buffers files in memory and uploads them on Commit.
// S3 has no rename, so the upload itself is the publication step.
func (d *S3Disk) NewPartWriteStorage(_ context.Context, table, part string) (PartWriteStorage, error) {
	return &s3PartWriteStorage{disk: d, table: table, part: part}, nil
}

func (d *S3Disk) headObject(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, d.wrapErr("head", key, err)
	}
	return out, nil
}

func (d *S3Disk) getObject(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, d.wrapErr("get object", key, err)
	}
	return out.Body, nil
}

func (d *S3Disk) putObject(ctx context.Context, key string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return d.wrapErr("put object", key, err)
	}
	return nil
}

func (d *S3Disk) listKeys(ctx context.Context, prefix string) ([]s3types.Object, error) {
	p := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.opts.Bucket),
		Prefix: aws.String(prefix),
	})
	var objects []s3types.Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", d.url(prefix), err)
		}
		objects = append(objects, page.Contents...)
	}
	return objects, nil
}

// DeleteObjects accepts at most 1000 keys per request.
const deleteBatchSize = 1000

func (d *S3Disk) deletePrefix(ctx context.Context, prefix string) error {
	objects, err := d.listKeys(ctx, prefix)
	if err != nil {
		return err
	}
	for start := 0; start < len(objects); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(objects))
		ids := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, o := range objects[start:end] {
			ids = append(ids, s3types.ObjectIdentifier{Key: o.Key})
		}
		out, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.opts.Bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects under %s: %w", d.url(prefix), err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("delete %s: %s", d.url(aws.ToString(e.Key)), aws.ToString(e.Message))
		}
	}
	return nil
}

func (d *S3Disk) wrapErr(op, key string, err error) error {
	var nf *s3types.NotFound
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return fmt.Errorf("%s %s: %w", op, d.url(key), ErrNotExist)
	}
	return fmt.Errorf("%s %s: %w", op, d.url(key), err)
}

type s3PartStorage struct {
	disk   *S3Disk
	prefix string
	name   string
}

func (s *s3PartStorage) FullPath() string { return s.disk.url(s.prefix) }
func (s *s3PartStorage) PartName() string { return s.name }

func (s *s3PartStorage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.disk.headObject(ctx, path.Join(s.prefix, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *s3PartStorage) FileSize(ctx context.Context, name string) (uint64, error) {
	out, err := s.disk.headObject(ctx, path.Join(s.prefix, name))
	if err != nil {
		return 0, err
	}
	return uint64(aws.ToInt64(out.ContentLength)), nil
}

func (s *s3PartStorage) ReadFile(ctx context.Context, name string, _ int64) (io.ReadCloser, error) {
	return s.disk.getObject(ctx, path.Join(s.prefix, name))
}

func (s *s3PartStorage) ListFiles(ctx context.Context) ([]string, error) {
	objects, err := s.disk.listKeys(ctx, s.prefix+"/")
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(objects))
	for _, o := range objects {
		rel := strings.TrimPrefix(aws.ToString(o.Key), s.prefix+"/")
		if rel != "" && !strings.Contains(rel, "/") {
			files = append(files, rel)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *s3PartStorage) IsStoredOnRemoteDisk() bool       { return true }
func (s *s3PartStorage) SupportZeroCopyReplication() bool { return s.disk.opts.ZeroCopyReplication }

func (s *s3PartStorage) Remove(ctx context.Context) error {
	return s.disk.deletePrefix(ctx, s.prefix+"/")
}

type s3PartWriteStorage struct {
	disk  *S3Disk
	table string
	part  string

	mu    sync.Mutex
	order []string
	files map[string][]byte
}

func (s *s3PartWriteStorage) FullPath() string {
	return s.disk.url(s.disk.key(s.table, TmpPrefix+s.part))
}

func (s *s3PartWriteStorage) CreateFile(_ context.Context, name string) (io.WriteCloser, error) {
	return &s3FileWriter{storage: s, name: name}, nil
}

func (s *s3PartWriteStorage) put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	if _, ok := s.files[name]; !ok {
		s.order = append(s.order, name)
	}
	s.files[name] = data
}

func (s *s3PartWriteStorage) Commit(ctx context.Context) (PartStorage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.disk.PartStorage(s.table, s.part).(*s3PartStorage)
	for _, name := range s.order {
		if err := s.disk.putObject(ctx, path.Join(ps.prefix, name), s.files[name]); err != nil {
			return nil, err
		}
	}
	s.files = nil
	s.order = nil
	return ps, nil
}

func (s *s3PartWriteStorage) Rollback(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
	s.order = nil
	return nil
}

type s3FileWriter struct {
	storage *s3PartWriteStorage
	name    string
	buf     bytes.Buffer
	closed  bool
}

func (w *s3FileWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed file %s", w.name)
	}
	return w.buf.Write(p)
}

func (w *s3FileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.storage.put(w.name, w.buf.Bytes())
	return nil
}
