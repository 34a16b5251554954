// Package storage keeps cluster CA bundles in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/elasticdoctor/webapp/config"
)

const (
	BackendMinio = "minio"
	BackendGCS   = "gcs"
	BackendNone  = "none"

	pemContentType = "application/x-pem-file"

	// maxObjectSize bounds reads; CA bundles are far smaller.
	maxObjectSize = 4 << 20

	metaClusterID = "cluster-id"
)

// ErrObjectNotFound is returned when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Object is a small blob with its content type and user metadata.
type Object struct {
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// Backend is implemented by each object store.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Write(ctx context.Context, key string, obj Object) error
	Read(ctx context.Context, key string) (Object, error)
	Remove(ctx context.Context, key string) error
	Bucket() string
	Close() error
}

// Storage stores CA bundles on a Backend.
type Storage struct {
	backend Backend
}

func NewStorage(backend Backend) *Storage {
	return &Storage{backend: backend}
}

// Open builds the backend named by cfg.Backend and makes sure its bucket
// exists. It returns nil, nil when object storage is disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case BackendNone, "":
		return nil, nil
	case BackendMinio:
		backend, err = newMinioBackend(cfg.Minio)
	case BackendGCS:
		backend, err = newGCSBackend(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

// CACertKey is the object key of a cluster's CA bundle.
func CACertKey(clusterID int64) string {
	return fmt.Sprintf("clusters/%d/ca.pem", clusterID)
}

// PutCACert uploads a PEM bundle, replacing any previous one, and returns
// its key.
func (s *Storage) PutCACert(ctx context.Context, clusterID int64, pemData []byte) (string, error) {
	key := CACertKey(clusterID)
	err := s.backend.Write(ctx, key, Object{
		Data:        pemData,
		ContentType: pemContentType,
		Metadata:    map[string]string{metaClusterID: strconv.FormatInt(clusterID, 10)},
	})
	if err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return key, nil
}

// GetCACert reads a previously uploaded bundle.
func (s *Storage) GetCACert(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.backend.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return obj.Data, nil
}

// DeleteObject removes an object. A missing object is not an error.
func (s *Storage) DeleteObject(ctx context.Context, key string) error {
	if err := s.backend.Remove(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	return nil
}

func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

func (s *Storage) Close() error {
	return s.backend.Close()
}
