package storage

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// Presigned download links stay valid for a day; callers re-request
	// the download endpoint for a fresh link after that.
	presignExpiry = 24 * time.Hour
)

// Storage promotes final export artifacts from the local media directory to
// MinIO and hands out presigned download URLs. It is optional — when no
// endpoint is configured the pipeline serves local files directly.
type Storage struct {
	client *minio.Client
	Bucket string
}

func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Storage{client: client, Bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("[Storage] Created bucket %s", s.Bucket)
	}
	return nil
}

// PromoteFinalVideo uploads a project's final video from the local path and
// returns the object name it was stored under.
func (s *Storage) PromoteFinalVideo(ctx context.Context, projectID uuid.UUID, localPath string) (string, error) {
	objectName := fmt.Sprintf("projects/%s/%s", projectID, filepath.Base(localPath))

	info, err := s.client.FPutObject(ctx, s.Bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload final video: %w", err)
	}

	log.Printf("[Storage] Promoted final video for project %s (%d bytes → %s)", projectID, info.Size, objectName)
	return objectName, nil
}

// PresignedURL returns a time-limited download URL for a stored object.
func (s *Storage) PresignedURL(ctx context.Context, objectName string) (string, error) {
	reqParams := make(url.Values)
	u, err := s.client.PresignedGetObject(ctx, s.Bucket, objectName, presignExpiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return u.String(), nil
}
