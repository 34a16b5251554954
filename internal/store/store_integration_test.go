//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/elasticdoctor/webapp/config"
	"github.com/elasticdoctor/webapp/types"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func createTestUser(t *testing.T, repo *UserRepository, email string) types.User {
	t.Helper()
	user, err := repo.Create(context.Background(), types.User{
		Email:       email,
		Name:        "Ann Lee",
		GivenName:   "Ann",
		FamilyName:  "Lee",
		PricingTier: "developer",
	})
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	return user
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testDB, config.DriverMySQL)

	t.Run("create and fetch", func(t *testing.T) {
		created, err := repo.Create(ctx, types.User{
			GoogleID:      ptr("g-100"),
			Email:         "ann@example.com",
			Name:          "Ann Lee",
			GivenName:     "Ann",
			FamilyName:    "Lee",
			EmailVerified: true,
			PricingTier:   "professional",
		})
		require.NoError(t, err)

		byEmail, err := repo.GetByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		require.Equal(t, created.ID, byEmail.ID)
		require.True(t, byEmail.EmailVerified)
		require.Nil(t, byEmail.PasswordHash)

		byGoogle, err := repo.GetByGoogleID(ctx, "g-100")
		require.NoError(t, err)
		require.Equal(t, "professional", byGoogle.PricingTier)
	})

	t.Run("duplicate email", func(t *testing.T) {
		createTestUser(t, repo, "dup@example.com")
		_, err := repo.Create(ctx, types.User{Email: "dup@example.com", PricingTier: "developer"})
		require.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("duplicate google id", func(t *testing.T) {
		_, err := repo.Create(ctx, types.User{GoogleID: ptr("g-200"), Email: "one@example.com", PricingTier: "developer"})
		require.NoError(t, err)
		_, err = repo.Create(ctx, types.User{GoogleID: ptr("g-200"), Email: "two@example.com", PricingTier: "developer"})
		require.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("update tier", func(t *testing.T) {
		user := createTestUser(t, repo, "upgrade@example.com")
		user.PricingTier = "enterprise"
		_, err := repo.Update(ctx, user)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, "enterprise", got.PricingTier)
	})

	t.Run("missing rows", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999999)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, repo.Delete(ctx, 999999), ErrNotFound)
	})
}

func TestClusterRepository(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(testDB, config.DriverMySQL)
	repo := NewClusterRepository(testDB, config.DriverMySQL, testSealer)

	owner := createTestUser(t, users, "owner@example.com")
	other := createTestUser(t, users, "other@example.com")

	created, err := repo.Create(ctx, types.Cluster{
		UserID:      owner.ID,
		Name:        "prod",
		Host:        "es.internal",
		Port:        types.DefaultClusterPort,
		Scheme:      types.SchemeHTTPS,
		Username:    ptr("elastic"),
		Password:    ptr("changeme"),
		VerifyCerts: true,
	})
	require.NoError(t, err)
	require.Nil(t, created.Password)

	var sealed string
	err = testDB.QueryRowContext(ctx, `SELECT password_encrypted FROM clusters WHERE id = ?`, created.ID).Scan(&sealed)
	require.NoError(t, err)
	require.NotEqual(t, "changeme", sealed)
	opened, err := testSealer.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "changeme", opened)

	count, err := repo.CountByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	list, err := repo.ListByUser(ctx, other.ID)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = repo.Get(ctx, other.ID, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, other.ID, created.ID), ErrNotFound)

	require.NoError(t, repo.UpdateHealth(ctx, types.HealthReport{
		ClusterID:   created.ID,
		ESVersion:   "8.13.4",
		HealthScore: 87.5,
		Status:      "yellow",
	}))
	require.NoError(t, repo.SetCACertPath(ctx, owner.ID, created.ID, ptr("clusters/1/ca.pem")))

	got, err := repo.Get(ctx, owner.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, "8.13.4", *got.ESVersion)
	require.InDelta(t, 87.5, *got.LastHealthScore, 0.001)
	require.Equal(t, "clusters/1/ca.pem", *got.CACertPath)

	require.NoError(t, users.Delete(ctx, owner.ID))
	count, err = repo.CountByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}
