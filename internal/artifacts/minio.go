package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// markerObject — объект-маркер, который MakeDirs кладёт под префикс артефакта.
const markerObject = ".conduit-artifact"

// MinIOConfig — параметры подключения к S3-совместимому хранилищу.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Prefix    string
	StoreID   string
}

// Validate проверяет обязательные поля.
func (c MinIOConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

// Root возвращает корневой URI вида s3://bucket/prefix.
func (c MinIOConfig) Root() string {
	root := "s3://" + c.Bucket
	if prefix := strings.Trim(c.Prefix, "/"); prefix != "" {
		root += "/" + prefix
	}
	return root
}

// MinIOStore — artifact store поверх MinIO / S3.
//
// В отличие от LocalStore, MakeDirs здесь check-then-act: StatObject маркера
// и затем PutObject. Два конкурентных запуска с одинаковым URI могут оба
// пройти проверку; уникальный URI в metadata store остаётся вторым барьером.
type MinIOStore struct {
	client   *minio.Client
	bucket   string
	identity Identity
}

// NewMinIOStore подключается к MinIO и создаёт bucket при необходимости.
func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("new minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
	}

	identity, err := IdentityFor(cfg.StoreID, cfg.Root())
	if err != nil {
		return nil, fmt.Errorf("parse artifact store id: %w", err)
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket, identity: identity}, nil
}

// Identity возвращает идентичность хранилища.
func (s *MinIOStore) Identity() Identity {
	return s.identity
}

// Exists проверяет, есть ли объекты под префиксом URI.
func (s *MinIOStore) Exists(ctx context.Context, uri string) (bool, error) {
	prefix, err := s.prefix(uri)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true, MaxKeys: 1}) {
		if obj.Err != nil {
			return false, fmt.Errorf("list %s: %w", uri, obj.Err)
		}
		return true, nil
	}
	return false, nil
}

// MakeDirs резервирует URI, записывая объект-маркер.
func (s *MinIOStore) MakeDirs(ctx context.Context, uri string) error {
	exists, err := s.Exists(ctx, uri)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrArtifactExists, uri)
	}
	return s.WriteFile(ctx, uri, markerObject, nil)
}

// RemoveAll удаляет все объекты под префиксом URI.
func (s *MinIOStore) RemoveAll(ctx context.Context, uri string) error {
	prefix, err := s.prefix(uri)
	if err != nil {
		return err
	}

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("list %s: %w", uri, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", obj.Key, err)
		}
	}
	return nil
}

// WriteFile записывает объект name под префиксом URI.
func (s *MinIOStore) WriteFile(ctx context.Context, uri, name string, data []byte) error {
	prefix, err := s.prefix(uri)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, prefix+name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", uri, name, err)
	}
	return nil
}

// ReadFile читает объект name под префиксом URI.
func (s *MinIOStore) ReadFile(ctx context.Context, uri, name string) ([]byte, error) {
	prefix, err := s.prefix(uri)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, prefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", uri, name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, uri, name)
		}
		return nil, fmt.Errorf("read %s/%s: %w", uri, name, err)
	}
	return data, nil
}

// prefix переводит URI s3://bucket/key в префикс объектов "key/".
func (s *MinIOStore) prefix(uri string) (string, error) {
	root := s.identity.Path + "/"
	if !strings.HasPrefix(uri, root) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, uri)
	}
	key := strings.TrimPrefix(uri, "s3://"+s.bucket+"/")
	return strings.TrimRight(key, "/") + "/", nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
