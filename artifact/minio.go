package artifact

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(endpoint, accessKeyID, secretAccessKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) Upload(ctx context.Context, localPath, key string, public bool) (string, error) {
	if key == "" {
		return "", ErrEmptyReference
	}
	opts := minio.PutObjectOptions{ContentType: contentType(key)}
	if public {
		opts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, opts); err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	return key, nil
}

func (s *MinioStore) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return ErrEmptyReference
	}
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *MinioStore) SignedURL(ctx context.Context, ref string, ttl time.Duration, downloadName string) (string, error) {
	if ref == "" {
		return "", ErrEmptyReference
	}
	params := url.Values{}
	params.Set("response-content-disposition", contentDisposition(downloadName))
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, ttl, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}
