// Package publish uploads finished tracks to S3-compatible object storage.
package publish

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"karaokeprep/internal/config"
	"karaokeprep/internal/services"
)

// Uploader stores local files under object keys.
type Uploader interface {
	// Upload stores the file at localPath under key and returns its location.
	Upload(ctx context.Context, key, localPath string) (string, error)
	// Check verifies the destination is reachable.
	Check(ctx context.Context) error
}

// Object describes one uploaded file.
type Object struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	File     string `json:"file"`
}

// ObjectKey renders "{prefix}/{folder}/{file}" with empty segments dropped.
func ObjectKey(prefix, folder, file string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, folder, file} {
		if p = strings.Trim(strings.TrimSpace(p), "/"); p != "" {
			parts = append(parts, p)
		}
	}
	return path.Join(parts...)
}

// UploadAll uploads files under "{prefix}/{folder}/" in order. It stops at the
// first failure and returns the objects uploaded so far.
func UploadAll(ctx context.Context, up Uploader, prefix, folder string, files []string) ([]Object, error) {
	objects := make([]Object, 0, len(files))
	for _, f := range files {
		key := ObjectKey(prefix, folder, filepath.Base(f))
		location, err := up.Upload(ctx, key, f)
		if err != nil {
			return objects, err
		}
		objects = append(objects, Object{Key: key, Location: location, File: filepath.Base(f)})
	}
	return objects, nil
}

// MinioUploader implements Uploader with minio-go.
type MinioUploader struct {
	client   *minio.Client
	bucket   string
	endpoint string
	secure   bool
}

// NewMinio builds an uploader from the publish config. No network call is
// made until Upload or Check.
func NewMinio(cfg config.Publish) (*MinioUploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "init", "endpoint and bucket are required", nil)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "init", "create client", err)
	}
	return &MinioUploader{client: client, bucket: cfg.Bucket, endpoint: endpoint, secure: cfg.UseSSL}, nil
}

// Upload stores localPath with a content type guessed from its extension.
func (m *MinioUploader) Upload(ctx context.Context, key, localPath string) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "upload", key, err)
	}
	return m.location(info.Key), nil
}

// Check confirms the bucket exists.
func (m *MinioUploader) Check(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return services.Wrap(services.ErrTransient, "publish", "check bucket", m.bucket, err)
	}
	if !exists {
		return services.Wrap(services.ErrConfiguration, "publish", "check bucket", fmt.Sprintf("bucket %q does not exist", m.bucket), nil)
	}
	return nil
}

func (m *MinioUploader) location(key string) string {
	scheme := "http"
	if m.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.endpoint, m.bucket, key)
}
