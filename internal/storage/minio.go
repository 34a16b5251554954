package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/elasticdoctor/webapp/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioBackend struct {
	client *minio.Client
	bucket string
}

func newMinioBackend(cfg config.MinioConfig) (*minioBackend, error) {
	switch {
	case cfg.Endpoint == "":
		return nil, errors.New("MINIO_ENDPOINT is required")
	case cfg.AccessKey == "", cfg.SecretKey == "":
		return nil, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	case cfg.Bucket == "":
		return nil, errors.New("MINIO_BUCKET is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &minioBackend{client: client, bucket: cfg.Bucket}, nil
}

func (b *minioBackend) EnsureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil || exists {
		return err
	}
	return b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{})
}

func (b *minioBackend) Write(ctx context.Context, key string, obj Object) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(obj.Data), int64(len(obj.Data)), minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		UserMetadata: obj.Metadata,
		CacheControl: "no-store",
	})
	return err
}

// Read stats first so a missing key surfaces as ErrObjectNotFound rather
// than on the first read of the body.
func (b *minioBackend) Read(ctx context.Context, key string) (Object, error) {
	info, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return Object{}, mapMinioError(err)
	}
	if info.Size > maxObjectSize {
		return Object{}, fmt.Errorf("object %s is %d bytes", key, info.Size)
	}

	reader, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Object{}, mapMinioError(err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxObjectSize))
	if err != nil {
		return Object{}, mapMinioError(err)
	}
	return Object{Data: data, ContentType: info.ContentType, Metadata: info.UserMetadata}, nil
}

func (b *minioBackend) Remove(ctx context.Context, key string) error {
	return mapMinioError(b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}))
}

func (b *minioBackend) Bucket() string { return b.bucket }

func (b *minioBackend) Close() error { return nil }

func mapMinioError(err error) error {
	if err != nil && minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return err
}
