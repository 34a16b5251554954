package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/elasticdoctor/webapp/types"
)

const clusterColumns = `id, user_id, name, host, port, scheme, username, verify_certs, ca_cert_path,
	es_version, last_health_score, last_status, created_at, updated_at`

// CredentialSealer encrypts cluster secrets before they are written.
type CredentialSealer interface {
	SealOptional(plaintext *string) (*string, error)
}

// ClusterRepository handles persistence for clusters. Every read and delete
// is scoped to the owning user.
type ClusterRepository struct {
	db      *sql.DB
	dialect dialect
	sealer  CredentialSealer
}

func NewClusterRepository(db *sql.DB, driver string, sealer CredentialSealer) *ClusterRepository {
	return &ClusterRepository{db: db, dialect: newDialect(driver), sealer: sealer}
}

func (r *ClusterRepository) ListByUser(ctx context.Context, userID int64) ([]types.Cluster, error) {
	const query = `SELECT ` + clusterColumns + ` FROM clusters WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clusters := make([]types.Cluster, 0)
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clusters, nil
}

func (r *ClusterRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM clusters WHERE user_id = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, r.dialect.rebind(query), userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ClusterRepository) Get(ctx context.Context, userID, id int64) (types.Cluster, error) {
	const query = `SELECT ` + clusterColumns + ` FROM clusters WHERE id = ? AND user_id = ?`
	cluster, err := scanCluster(r.db.QueryRowContext(ctx, r.dialect.rebind(query), id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Cluster{}, ErrNotFound
		}
		return types.Cluster{}, err
	}
	return cluster, nil
}

// Create seals the credentials and inserts the cluster. The returned value
// carries no credentials.
func (r *ClusterRepository) Create(ctx context.Context, cluster types.Cluster) (types.Cluster, error) {
	password, err := r.sealer.SealOptional(cluster.Password)
	if err != nil {
		return types.Cluster{}, err
	}
	apiKey, err := r.sealer.SealOptional(cluster.APIKey)
	if err != nil {
		return types.Cluster{}, err
	}

	now := time.Now().UTC()
	cluster.CreatedAt = now
	cluster.UpdatedAt = now

	const query = `
		INSERT INTO clusters (user_id, name, host, port, scheme, username, password_encrypted,
			api_key_encrypted, verify_certs, ca_cert_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := r.dialect.insert(
		ctx,
		r.db,
		query,
		cluster.UserID,
		cluster.Name,
		cluster.Host,
		cluster.Port,
		cluster.Scheme,
		cluster.Username,
		password,
		apiKey,
		cluster.VerifyCerts,
		cluster.CACertPath,
		cluster.CreatedAt,
		cluster.UpdatedAt,
	)
	if err != nil {
		return types.Cluster{}, err
	}
	cluster.ID = id
	cluster.Password = nil
	cluster.APIKey = nil
	return cluster, nil
}

func (r *ClusterRepository) Delete(ctx context.Context, userID, id int64) error {
	const query = `DELETE FROM clusters WHERE id = ? AND user_id = ?`
	result, err := r.db.ExecContext(ctx, r.dialect.rebind(query), id, userID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// UpdateHealth records the outcome of a diagnostic run.
func (r *ClusterRepository) UpdateHealth(ctx context.Context, report types.HealthReport) error {
	const query = `
		UPDATE clusters
		SET es_version = ?,
			last_health_score = ?,
			last_status = ?,
			updated_at = ?
		WHERE id = ?`
	var version *string
	if report.ESVersion != "" {
		version = &report.ESVersion
	}
	result, err := r.db.ExecContext(
		ctx,
		r.dialect.rebind(query),
		version,
		report.HealthScore,
		report.Status,
		time.Now().UTC(),
		report.ClusterID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *ClusterRepository) SetCACertPath(ctx context.Context, userID, id int64, path *string) error {
	const query = `UPDATE clusters SET ca_cert_path = ?, updated_at = ? WHERE id = ? AND user_id = ?`
	result, err := r.db.ExecContext(ctx, r.dialect.rebind(query), path, time.Now().UTC(), id, userID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCluster(row rowScanner) (types.Cluster, error) {
	var cluster types.Cluster
	err := row.Scan(
		&cluster.ID,
		&cluster.UserID,
		&cluster.Name,
		&cluster.Host,
		&cluster.Port,
		&cluster.Scheme,
		&cluster.Username,
		&cluster.VerifyCerts,
		&cluster.CACertPath,
		&cluster.ESVersion,
		&cluster.LastHealthScore,
		&cluster.LastStatus,
		&cluster.CreatedAt,
		&cluster.UpdatedAt,
	)
	return cluster, err
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
