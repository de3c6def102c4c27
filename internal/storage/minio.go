package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Config holds the S3 compatible endpoint settings
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Mirror copies training artifacts to a bucket
type Mirror struct {
	mc     *minio.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewMirror creates a mirror client. No request is made until Init.
func NewMirror(cfg Config, logger *zap.Logger) (*Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{mc: mc, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// Init creates the bucket if it does not exist
func (m *Mirror) Init(ctx context.Context) error {
	exists, err := m.mc.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.mc.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", m.bucket, err)
		}
		m.logger.Info("bucket created", zap.String("bucket", m.bucket))
	}
	return nil
}

// ObjectName returns the key a local file is stored under for a run
func (m *Mirror) ObjectName(runID, file string) string {
	return path.Join(m.prefix, runID, filepath.Base(file))
}

// Upload copies the given local files under <prefix>/<runID>/
func (m *Mirror) Upload(ctx context.Context, runID string, files ...string) error {
	for _, f := range files {
		name := m.ObjectName(runID, f)
		info, err := m.mc.FPutObject(ctx, m.bucket, name, f, minio.PutObjectOptions{
			ContentType: "text/plain",
		})
		if err != nil {
			return fmt.Errorf("upload %s/%s: %w", m.bucket, name, err)
		}
		m.logger.Debug("artifact uploaded",
			zap.String("bucket", m.bucket),
			zap.String("name", name),
			zap.Int64("size", info.Size))
	}
	return nil
}
