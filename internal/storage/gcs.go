package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/elasticdoctor/webapp/config"
	"google.golang.org/api/option"
)

type gcsBackend struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	name      string
	projectID string
}

func newGCSBackend(ctx context.Context, cfg config.GCSConfig) (*gcsBackend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &gcsBackend{
		client:    client,
		bucket:    client.Bucket(cfg.Bucket),
		name:      cfg.Bucket,
		projectID: cfg.ProjectID,
	}, nil
}

// EnsureBucket creates a missing bucket; that needs GCS_PROJECT_ID.
func (b *gcsBackend) EnsureBucket(ctx context.Context) error {
	_, err := b.bucket.Attrs(ctx)
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if b.projectID == "" {
		return fmt.Errorf("bucket %s does not exist and GCS_PROJECT_ID is not set", b.name)
	}
	return b.bucket.Create(ctx, b.projectID, &storage.BucketAttrs{UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true}})
}

func (b *gcsBackend) Write(ctx context.Context, key string, obj Object) error {
	w := b.bucket.Object(key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.CacheControl = "no-store"
	w.Metadata = obj.Metadata
	if _, err := w.Write(obj.Data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBackend) Read(ctx context.Context, key string) (Object, error) {
	handle := b.bucket.Object(key)
	attrs, err := handle.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Object{}, ErrObjectNotFound
	}
	if err != nil {
		return Object{}, err
	}
	if attrs.Size > maxObjectSize {
		return Object{}, fmt.Errorf("object %s is %d bytes", key, attrs.Size)
	}

	reader, err := handle.Generation(attrs.Generation).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Object{}, ErrObjectNotFound
	}
	if err != nil {
		return Object{}, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return Object{}, err
	}
	return Object{Data: data, ContentType: attrs.ContentType, Metadata: attrs.Metadata}, nil
}

func (b *gcsBackend) Remove(ctx context.Context, key string) error {
	err := b.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func (b *gcsBackend) Bucket() string { return b.name }

func (b *gcsBackend) Close() error { return b.client.Close() }
