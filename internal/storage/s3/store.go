// Package s3 stores published reports in an S3 compatible bucket through
// minio-go. Every key is scoped under the configured prefix.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/storage"
)

const (
	maxPresignExpiry     = 7 * 24 * time.Hour
	defaultPresignExpiry = time.Hour
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// client is the subset of minio used here; keys passed to it are absolute.
type client interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error)
	List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, region string) error
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (*url.URL, error)
}

type Store struct {
	client client
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("report store endpoint is required")
	}
	mc, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	store, err := NewWithClient(cfg.Bucket, cfg.Prefix, mc)
	if err != nil {
		return nil, err
	}
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func NewWithClient(bucket, prefix string, c client) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("report bucket is required")
	}
	return &Store{client: c, bucket: strings.TrimSpace(bucket), prefix: cleanPrefix(prefix)}, nil
}

func (s *Store) Bucket() string { return s.bucket }

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	abs, err := s.absolute(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	if opts.ContentType == "" {
		opts.ContentType = contentTypeFor(abs)
	}
	info, err := s.client.Put(ctx, s.bucket, abs, body, size, opts)
	if err != nil {
		return storage.ObjectInfo{}, wrap("put", abs, err)
	}
	info.Key = s.relative(info.Key, abs)
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	abs, err := s.absolute(key)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Get(ctx, s.bucket, abs)
	if err != nil {
		return nil, wrap("get", abs, err)
	}
	return reader, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	abs, err := s.absolute(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.client.Stat(ctx, s.bucket, abs)
	if err != nil {
		return storage.ObjectInfo{}, wrap("stat", abs, err)
	}
	info.Key = s.relative(info.Key, abs)
	return info, nil
}

// List returns objects under prefix, newest first, with keys relative to the
// store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	abs, err := s.absolute(prefix)
	if err != nil {
		return nil, err
	}
	objects, err := s.client.List(ctx, s.bucket, strings.TrimSuffix(abs, "/")+"/")
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", abs, err)
	}
	for i := range objects {
		objects[i].Key = s.relative(objects[i].Key, objects[i].Key)
	}
	sort.SliceStable(objects, func(i, j int) bool {
		if !objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].LastModified.After(objects[j].LastModified)
		}
		return objects[i].Key > objects[j].Key
	})
	return objects, nil
}

// PresignGet returns a download link valid for expiry, clamped to the seven
// days S3 accepts.
func (s *Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	abs, err := s.absolute(key)
	if err != nil {
		return nil, err
	}
	switch {
	case expiry <= 0:
		expiry = defaultPresignExpiry
	case expiry > maxPresignExpiry:
		expiry = maxPresignExpiry
	}
	link, err := s.client.PresignGet(ctx, s.bucket, abs, expiry)
	if err != nil {
		return nil, wrap("presign", abs, err)
	}
	return link, nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.CreateBucket(ctx, s.bucket, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// absolute validates a relative key and joins it under the store prefix.
func (s *Store) absolute(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return path.Join(s.prefix, cleaned), nil
}

func (s *Store) relative(key, fallback string) string {
	if key == "" {
		key = fallback
	}
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

// wrap keeps ErrObjectNotFound matchable and names the operation otherwise.
func wrap(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("%s %q: %w", op, key, storage.ErrObjectNotFound)
	}
	return fmt.Errorf("%s object %q: %w", op, key, err)
}

func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func cleanPrefix(prefix string) string {
	prefix = path.Clean("/" + strings.TrimSpace(prefix))
	return strings.TrimPrefix(prefix, "/")
}

func newMinioClient(cfg Config) (*minioClient, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &minioClient{client: mc}, nil
}

// parseEndpoint accepts host:port or a URL; an https scheme forces TLS.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint URL: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("endpoint host is required")
	}
	switch parsed.Scheme {
	case "https":
		return parsed.Host, true, nil
	case "http":
		return parsed.Host, useSSL, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", parsed.Scheme)
	}
}

type minioClient struct {
	client *minio.Client
}

func (m *minioClient) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	info, err := m.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return storage.ObjectInfo{}, mapMinioErr(err)
	}
	return storage.ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

// Get stats the object first so a missing key fails here instead of on the
// first Read.
func (m *minioClient) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapMinioErr(err)
	}
	return obj, nil
}

func (m *minioClient) Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	obj, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, mapMinioErr(err)
	}
	return objectInfo(obj), nil
}

func (m *minioClient) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, mapMinioErr(obj.Err)
		}
		out = append(out, objectInfo(obj))
	}
	return out, nil
}

func (m *minioClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, mapMinioErr(err)
	}
	return exists, nil
}

func (m *minioClient) CreateBucket(ctx context.Context, bucket, region string) error {
	return mapMinioErr(m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}))
}

func (m *minioClient) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (*url.URL, error) {
	link, err := m.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		return nil, mapMinioErr(err)
	}
	return link, nil
}

func objectInfo(obj minio.ObjectInfo) storage.ObjectInfo {
	return storage.ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified}
}

func mapMinioErr(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return storage.ErrObjectNotFound
	}
	return err
}
