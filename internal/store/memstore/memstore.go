// Package memstore keeps users and clusters in memory. It enforces the same
// uniqueness rules and returns the same errors as the SQL repositories.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/elasticdoctor/webapp/internal/store"
	"github.com/elasticdoctor/webapp/types"
)

type UserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]types.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int64]types.User)}
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Email == email })
}

func (r *UserRepository) GetByGoogleID(_ context.Context, googleID string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

func (r *UserRepository) find(match func(types.User) bool) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if match(user) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(user) {
		return types.User{}, store.ErrDuplicate
	}
	r.nextID++
	now := time.Now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if r.conflicts(user) {
		return types.User{}, store.ErrDuplicate
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// conflicts reports whether another user holds the same email or Google id.
func (r *UserRepository) conflicts(user types.User) bool {
	for id, other := range r.users {
		if id == user.ID {
			continue
		}
		if other.Email == user.Email {
			return true
		}
		if user.GoogleID != nil && other.GoogleID != nil && *user.GoogleID == *other.GoogleID {
			return true
		}
	}
	return false
}

type ClusterRepository struct {
	mu       sync.RWMutex
	nextID   int64
	clusters map[int64]types.Cluster

	// Sealed holds the sealed password of each cluster, keyed by id, so
	// tests can assert nothing is stored in the clear.
	Sealed map[int64]string

	sealer store.CredentialSealer
}

func NewClusterRepository(sealer store.CredentialSealer) *ClusterRepository {
	return &ClusterRepository{
		clusters: make(map[int64]types.Cluster),
		Sealed:   make(map[int64]string),
		sealer:   sealer,
	}
}

func (r *ClusterRepository) ListByUser(_ context.Context, userID int64) ([]types.Cluster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clusters := make([]types.Cluster, 0)
	for _, cluster := range r.clusters {
		if cluster.UserID == userID {
			clusters = append(clusters, cluster)
		}
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID > clusters[j].ID })
	return clusters, nil
}

func (r *ClusterRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	clusters, err := r.ListByUser(ctx, userID)
	return len(clusters), err
}

func (r *ClusterRepository) Get(_ context.Context, userID, id int64) (types.Cluster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cluster, ok := r.clusters[id]
	if !ok || cluster.UserID != userID {
		return types.Cluster{}, store.ErrNotFound
	}
	return cluster, nil
}

func (r *ClusterRepository) Create(_ context.Context, cluster types.Cluster) (types.Cluster, error) {
	password, err := r.sealer.SealOptional(cluster.Password)
	if err != nil {
		return types.Cluster{}, err
	}
	if _, err := r.sealer.SealOptional(cluster.APIKey); err != nil {
		return types.Cluster{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now().UTC()
	cluster.ID = r.nextID
	cluster.CreatedAt = now
	cluster.UpdatedAt = now
	cluster.Password = nil
	cluster.APIKey = nil
	r.clusters[cluster.ID] = cluster
	if password != nil {
		r.Sealed[cluster.ID] = *password
	}
	return cluster, nil
}

func (r *ClusterRepository) Delete(_ context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cluster, ok := r.clusters[id]
	if !ok || cluster.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.clusters, id)
	delete(r.Sealed, id)
	return nil
}

func (r *ClusterRepository) UpdateHealth(_ context.Context, report types.HealthReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cluster, ok := r.clusters[report.ClusterID]
	if !ok {
		return store.ErrNotFound
	}
	if report.ESVersion != "" {
		version := report.ESVersion
		cluster.ESVersion = &version
	}
	score, status := report.HealthScore, report.Status
	cluster.LastHealthScore = &score
	cluster.LastStatus = &status
	cluster.UpdatedAt = time.Now().UTC()
	r.clusters[cluster.ID] = cluster
	return nil
}

func (r *ClusterRepository) SetCACertPath(_ context.Context, userID, id int64, path *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cluster, ok := r.clusters[id]
	if !ok || cluster.UserID != userID {
		return store.ErrNotFound
	}
	cluster.CACertPath = path
	cluster.UpdatedAt = time.Now().UTC()
	r.clusters[id] = cluster
	return nil
}
