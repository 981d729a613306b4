package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"wastemon/api/internal/config"
)

// ObjectStore archives generated export artifacts so an audited export can be
// retrieved later without re-rendering.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBuckets(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.BucketExports)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.BucketExports, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.BucketExports, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.BucketExports, err)
		}
	}
	return nil
}

// ArchiveExport stores the rendered artifact under the export id.
func (s *ObjectStore) ArchiveExport(ctx context.Context, module, exportID, format, contentType string, data []byte) error {
	objectName := fmt.Sprintf("%s/%s.%s", module, exportID, format)
	_, err := s.client.PutObject(ctx, s.cfg.BucketExports, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("archive export %s: %w", objectName, err)
	}
	return nil
}
