package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/elasticdoctor/webapp/types"
)

const userColumns = `id, google_id, email, name, given_name, family_name, profile_picture_url,
	email_verified, pricing_tier, password_hash, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db      *sql.DB
	dialect dialect
}

func NewUserRepository(db *sql.DB, driver string) *UserRepository {
	return &UserRepository{db: db, dialect: newDialect(driver)}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return r.getOne(ctx, query, email)
}

func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE google_id = ?`
	return r.getOne(ctx, query, googleID)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (types.User, error) {
	var user types.User
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(query), arg).Scan(
		&user.ID,
		&user.GoogleID,
		&user.Email,
		&user.Name,
		&user.GivenName,
		&user.FamilyName,
		&user.ProfilePictureURL,
		&user.EmailVerified,
		&user.PricingTier,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (google_id, email, name, given_name, family_name, profile_picture_url,
			email_verified, pricing_tier, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := r.dialect.insert(
		ctx,
		r.db,
		query,
		user.GoogleID,
		user.Email,
		user.Name,
		user.GivenName,
		user.FamilyName,
		user.ProfilePictureURL,
		user.EmailVerified,
		user.PricingTier,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, err
	}
	user.ID = id
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE users
		SET google_id = ?,
			email = ?,
			name = ?,
			given_name = ?,
			family_name = ?,
			profile_picture_url = ?,
			email_verified = ?,
			pricing_tier = ?,
			password_hash = ?,
			updated_at = ?
		WHERE id = ?`
	result, err := r.db.ExecContext(
		ctx,
		r.dialect.rebind(query),
		user.GoogleID,
		user.Email,
		user.Name,
		user.GivenName,
		user.FamilyName,
		user.ProfilePictureURL,
		user.EmailVerified,
		user.PricingTier,
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM users WHERE id = ?`
	result, err := r.db.ExecContext(ctx, r.dialect.rebind(query), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
