// Package objectstore uploads exported artifacts to S3-compatible storage
// (MinIO, AWS S3, Ceph, Garage) using the MinIO client.
//
// Targets are written as s3://<bucket>/<key>. A key that is empty or ends in
// "/" is treated as a prefix and the artifact name is appended.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shpitdev/instrument-master/pkg/pipeline/core"
)

// Scheme prefixes object-store targets.
const Scheme = "s3://"

// Config holds connection settings for the object store.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
}

// IsTarget reports whether raw names an object-store location.
func IsTarget(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), Scheme)
}

// ParseTarget splits s3://bucket/key into bucket and key.
func ParseTarget(raw string) (bucket, key string, err error) {
	raw = strings.TrimSpace(raw)
	if !IsTarget(raw) {
		return "", "", fmt.Errorf("object store target must start with %s (got %q)", Scheme, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse object store target: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("object store target %q is missing a bucket", raw)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// NewClient connects to the configured endpoint.
func NewClient(cfg Config) (*minio.Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("S3_ENDPOINT is required for %s outputs", Scheme)
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// Sink uploads artifacts to one bucket.
type Sink struct {
	client *minio.Client
	bucket string
	key    string
}

// NewSink creates a sink writing to bucket under key.
func NewSink(client *minio.Client, bucket, key string) *Sink {
	return &Sink{client: client, bucket: bucket, key: key}
}

// ObjectKey resolves the key an artifact named name is stored under.
func ObjectKey(key, name string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return path.Join(key, name)
	}
	return key
}

// Store uploads the artifact and returns its s3:// location.
func (s *Sink) Store(ctx context.Context, a core.Artifact) (string, error) {
	key := ObjectKey(s.key, a.Name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(a.Data), int64(len(a.Data)), minio.PutObjectOptions{
		ContentType:        a.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", a.Name),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s%s/%s: %w", Scheme, s.bucket, key, err)
	}
	return Scheme + s.bucket + "/" + key, nil
}
