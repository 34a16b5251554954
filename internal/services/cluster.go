package services

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"

	"github.com/elasticdoctor/webapp/internal/metrics"
	"github.com/elasticdoctor/webapp/internal/storage"
	"github.com/elasticdoctor/webapp/internal/store"
	"github.com/elasticdoctor/webapp/internal/tier"
	"github.com/elasticdoctor/webapp/types"
	"go.uber.org/zap"
)

// MaxCACertSize bounds an uploaded CA bundle.
const MaxCACertSize = 1 << 20

// ClusterRepository defines persistence operations for clusters.
type ClusterRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]types.Cluster, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	Get(ctx context.Context, userID, id int64) (types.Cluster, error)
	Create(ctx context.Context, cluster types.Cluster) (types.Cluster, error)
	Delete(ctx context.Context, userID, id int64) error
	UpdateHealth(ctx context.Context, report types.HealthReport) error
	SetCACertPath(ctx context.Context, userID, id int64, path *string) error
}

// CertificateStore keeps CA bundles outside the database.
type CertificateStore interface {
	PutCACert(ctx context.Context, clusterID int64, pemData []byte) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// CreateClusterInput is the user-supplied part of a cluster. Nil pointers
// take the defaults.
type CreateClusterInput struct {
	Name        string
	Host        string
	Port        *int
	Scheme      string
	Username    *string
	Password    *string
	APIKey      *string
	VerifyCerts *bool
	CACertPath  *string
}

// ClusterService encapsulates cluster use-cases.
type ClusterService struct {
	repo    ClusterRepository
	users   UserRepository
	certs   CertificateStore
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewClusterService builds the service. certs may be nil when no object
// storage is configured.
func NewClusterService(
	repo ClusterRepository,
	users UserRepository,
	certs CertificateStore,
	events EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ClusterService {
	if events == nil {
		events = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClusterService{
		repo:    repo,
		users:   users,
		certs:   certs,
		events:  events,
		metrics: m,
		logger:  logger,
	}
}

func (s *ClusterService) List(ctx context.Context, userID int64) ([]types.Cluster, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *ClusterService) Get(ctx context.Context, userID, id int64) (types.Cluster, error) {
	cluster, err := s.repo.Get(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Cluster{}, ErrClusterNotFound
	}
	return cluster, err
}

// Create validates the input, enforces the tier limit of the stored user
// and persists the cluster.
func (s *ClusterService) Create(ctx context.Context, userID int64, input CreateClusterInput) (types.Cluster, error) {
	cluster, err := buildCluster(userID, input)
	if err != nil {
		return types.Cluster{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return types.Cluster{}, ErrUserGone
	}
	if err != nil {
		return types.Cluster{}, err
	}
	policy := tier.Config(user.PricingTier)

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return types.Cluster{}, err
	}
	if count >= policy.ActiveClusterLimit {
		s.metrics.RecordQuotaRejection(policy.Name)
		return types.Cluster{}, &QuotaExceededError{Tier: policy.Name, Limit: policy.ActiveClusterLimit}
	}

	created, err := s.repo.Create(ctx, cluster)
	if err != nil {
		return types.Cluster{}, err
	}

	s.logger.Info("cluster created",
		zap.Int64("cluster_id", created.ID),
		zap.Int64("user_id", userID),
		zap.String("pricing_tier", policy.Name),
	)
	publish(ctx, s.events, s.logger, types.ChannelClusterCreated, types.ClusterCreatedEvent{
		ClusterID: created.ID,
		UserID:    created.UserID,
		Name:      created.Name,
		Host:      created.Host,
		Port:      created.Port,
		Scheme:    created.Scheme,
	})
	return created, nil
}

// Delete removes a cluster owned by the user and, best effort, its uploaded
// CA bundle. A client-supplied ca_cert_path is never treated as an object key.
func (s *ClusterService) Delete(ctx context.Context, userID, id int64) error {
	cluster, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrClusterNotFound
		}
		return err
	}
	if s.certs != nil && cluster.CACertPath != nil && *cluster.CACertPath == storage.CACertKey(cluster.ID) {
		if err := s.certs.DeleteObject(ctx, *cluster.CACertPath); err != nil {
			s.logger.Warn("failed to delete CA bundle",
				zap.Int64("cluster_id", id),
				zap.String("key", *cluster.CACertPath),
				zap.Error(err),
			)
		}
	}
	return nil
}

// UploadCACert stores a PEM bundle for the cluster and records its location.
func (s *ClusterService) UploadCACert(ctx context.Context, userID, id int64, pemData []byte) (types.Cluster, error) {
	if s.certs == nil {
		return types.Cluster{}, ErrStorageUnavailable
	}
	if len(pemData) > MaxCACertSize {
		return types.Cluster{}, newValidationError("CA certificate exceeds %d bytes", MaxCACertSize)
	}
	if err := validateCABundle(pemData); err != nil {
		return types.Cluster{}, err
	}

	cluster, err := s.Get(ctx, userID, id)
	if err != nil {
		return types.Cluster{}, err
	}

	key, err := s.certs.PutCACert(ctx, id, pemData)
	if err != nil {
		return types.Cluster{}, err
	}
	if err := s.repo.SetCACertPath(ctx, userID, id, &key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Cluster{}, ErrClusterNotFound
		}
		return types.Cluster{}, err
	}
	cluster.CACertPath = &key
	return cluster, nil
}

// ApplyHealthReport records the outcome of a diagnostic run.
func (s *ClusterService) ApplyHealthReport(ctx context.Context, report types.HealthReport) error {
	if report.ClusterID <= 0 {
		return newValidationError("cluster_id is required")
	}
	err := s.repo.UpdateHealth(ctx, report)
	if errors.Is(err, store.ErrNotFound) {
		return ErrClusterNotFound
	}
	return err
}

func buildCluster(userID int64, input CreateClusterInput) (types.Cluster, error) {
	name := strings.TrimSpace(input.Name)
	host := strings.TrimSpace(input.Host)
	if name == "" || host == "" {
		return types.Cluster{}, newValidationError("Name and host are required")
	}

	port := types.DefaultClusterPort
	if input.Port != nil {
		port = *input.Port
	}
	if port < 1 || port > 65535 {
		return types.Cluster{}, newValidationError("Port must be between 1 and 65535")
	}

	scheme := strings.ToLower(strings.TrimSpace(input.Scheme))
	if scheme == "" {
		scheme = types.SchemeHTTPS
	}
	if scheme != types.SchemeHTTP && scheme != types.SchemeHTTPS {
		return types.Cluster{}, newValidationError("Scheme must be http or https")
	}

	verify := true
	if input.VerifyCerts != nil {
		verify = *input.VerifyCerts
	}

	return types.Cluster{
		UserID:      userID,
		Name:        name,
		Host:        host,
		Port:        port,
		Scheme:      scheme,
		Username:    trimOptional(input.Username),
		Password:    input.Password,
		APIKey:      input.APIKey,
		VerifyCerts: verify,
		CACertPath:  trimOptional(input.CACertPath),
	}, nil
}

func validateCABundle(data []byte) error {
	found := false
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return newValidationError("Invalid certificate in CA bundle")
		}
		found = true
	}
	if !found {
		return newValidationError("CA bundle must contain at least one PEM certificate")
	}
	return nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	return optionalString(*v)
}
