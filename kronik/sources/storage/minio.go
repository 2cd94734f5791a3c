package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"kronik/kronik/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOClient struct {
	client *minio.Client
	bucket string
}

// ArchiveObject describes an artifact written to the bucket.
type ArchiveObject struct {
	Key         string    `json:"key"`
	SessionID   string    `json:"session_id"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	// Create bucket if not exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return &MinIOClient{client: client, bucket: bucket}, nil
}

// ObjectKey builds "sessions/<session>/<kind>/<file>".
func ObjectKey(sessionID, kind, name string) string {
	return path.Join("sessions", sessionID, kind, filepath.Base(name))
}

// ContentTypeFor guesses the content type from the file extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// UploadFile archives a local artifact (recording, download, screenshot).
func (m *MinIOClient) UploadFile(ctx context.Context, sessionID, kind, localPath string) (ArchiveObject, error) {
	key := ObjectKey(sessionID, kind, localPath)
	contentType := ContentTypeFor(localPath)
	info, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return ArchiveObject{}, fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	return ArchiveObject{
		Key:         key,
		SessionID:   sessionID,
		ContentType: contentType,
		Size:        info.Size,
		UploadedAt:  time.Now(),
	}, nil
}

// UploadJSON archives an in-memory JSON document such as a session summary.
func (m *MinIOClient) UploadJSON(ctx context.Context, sessionID, kind, name string, data []byte) (ArchiveObject, error) {
	key := ObjectKey(sessionID, kind, name)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return ArchiveObject{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return ArchiveObject{
		Key:         key,
		SessionID:   sessionID,
		ContentType: "application/json",
		Size:        int64(len(data)),
		UploadedAt:  time.Now(),
	}, nil
}
