package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore wraps the MinIO client for certificate file content. Share
// downloads are served through short-lived presigned URLs so the object
// store never needs public read access.
type BlobStore struct {
	client *minio.Client
	bucket string
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewBlobStore connects to MinIO and ensures the certificate bucket exists.
func NewBlobStore(cfg Config) (*BlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		log.Printf("Warning: Failed to check bucket existence: %v", err)
	} else if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			log.Printf("Warning: Failed to create bucket: %v", err)
		} else {
			log.Printf("Created bucket: %s", cfg.Bucket)
		}
	}

	fmt.Println("✅ Connected to MinIO")
	return &BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads certificate content under the given object key.
func (b *BlobStore) Put(ctx context.Context, objectKey string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, objectKey,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// PresignedGet returns a time-limited download URL for the object.
func (b *BlobStore) PresignedGet(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

// Remove deletes the object; used when certificate metadata is removed.
func (b *BlobStore) Remove(ctx context.Context, objectKey string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}
