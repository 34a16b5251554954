package types

import "time"

// User represents an ElasticDoctor account.
// It contains identity, subscription tier, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// GoogleID is the OAuth subject id for accounts provisioned through
	// Google sign-in. Unique when present.
	GoogleID *string `json:"google_id,omitempty" db:"google_id"`

	// Email is the user's email address. Unique across all users.
	Email string `json:"email" db:"email"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// GivenName and FamilyName are derived from Name at registration
	// unless supplied explicitly.
	GivenName  string `json:"given_name" db:"given_name"`
	FamilyName string `json:"family_name" db:"family_name"`

	// ProfilePictureURL points at the avatar returned by the OAuth provider.
	ProfilePictureURL *string `json:"profile_picture_url,omitempty" db:"profile_picture_url"`

	// EmailVerified is true when the email was asserted by the OAuth provider.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// PricingTier names the subscription level ("developer",
	// "professional" or "enterprise").
	PricingTier string `json:"pricing_tier" db:"pricing_tier"`

	// PasswordHash stores the bcrypt hash of the user's password, if any.
	// This field is never exposed in API responses.
	PasswordHash *string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
