package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/voice-translator/internal/config"
	"github.com/MimeLyc/voice-translator/pkg/file"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const keyPrefix = "artifacts"

// S3Publisher mirrors synthesized artifacts into an S3-compatible bucket.
type S3Publisher struct {
	client *minio.Client
	bucket string
	host   string
}

func NewS3Publisher(cfg config.S3Config) (*S3Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}

	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}
	return &S3Publisher{
		client: client,
		bucket: cfg.Bucket,
		host:   fmt.Sprintf("%s://%s", scheme, cfg.Endpoint),
	}, nil
}

// CheckBucket fails when the configured bucket does not exist.
func (p *S3Publisher) CheckBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", p.bucket)
	}
	return nil
}

// Publish uploads the file at localPath and returns its public URL.
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	key := path.Join(keyPrefix, filepath.Base(localPath))
	_, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  contentType(localPath),
		UserMetadata: map[string]string{"uploaded-at": time.Now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return p.publicURL(key), nil
}

func (p *S3Publisher) publicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%s/%s", p.host, p.bucket, strings.Join(segments, "/"))
}

func contentType(name string) string {
	switch file.Ext(name) {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
