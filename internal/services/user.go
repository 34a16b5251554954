package services

import (
	"context"
	"errors"
	"strings"

	"github.com/elasticdoctor/webapp/internal/metrics"
	"github.com/elasticdoctor/webapp/internal/store"
	"github.com/elasticdoctor/webapp/internal/tier"
	"github.com/elasticdoctor/webapp/types"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

const (
	registrationGoogle = "google"
	registrationDirect = "direct"

	minPasswordLength = 8
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int64) error
}

// GoogleProfile is the identity asserted by Google after sign-in.
type GoogleProfile struct {
	ID            string
	Email         string
	Name          string
	Picture       string
	VerifiedEmail bool
}

// DirectRegistration creates a user without going through the OAuth flow.
// Either GoogleID or Password must be set.
type DirectRegistration struct {
	GoogleID          string
	Email             string
	Name              string
	GivenName         string
	FamilyName        string
	ProfilePictureURL string
	PricingTier       string
	Password          string
}

// UserService encapsulates registration and account use-cases.
type UserService struct {
	repo    UserRepository
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewUserService(repo UserRepository, events EventPublisher, m *metrics.Metrics, logger *zap.Logger) *UserService {
	if events == nil {
		events = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, events: events, metrics: m, logger: logger}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// RegisterOAuth creates the account for a Google profile that has no user
// yet. An empty plan selects the default tier.
func (s *UserService) RegisterOAuth(ctx context.Context, profile GoogleProfile, plan string) (types.User, error) {
	email, err := normalizeEmail(profile.Email)
	if err != nil {
		return types.User{}, err
	}
	googleID := strings.TrimSpace(profile.ID)
	if googleID == "" {
		return types.User{}, newValidationError("OAuth id is required")
	}
	pricingTier, err := resolvePlan(plan)
	if err != nil {
		return types.User{}, err
	}

	if err := s.ensureAvailable(ctx, email, googleID); err != nil {
		s.recordRegistration(registrationGoogle, err)
		return types.User{}, err
	}

	name := strings.TrimSpace(profile.Name)
	given, family := SplitName(name)
	user := types.User{
		GoogleID:          &googleID,
		Email:             email,
		Name:              name,
		GivenName:         given,
		FamilyName:        family,
		ProfilePictureURL: optionalString(profile.Picture),
		EmailVerified:     true,
		PricingTier:       pricingTier,
	}
	return s.create(ctx, user, registrationGoogle)
}

// RegisterDirect creates a user from explicit fields.
func (s *UserService) RegisterDirect(ctx context.Context, reg DirectRegistration) (types.User, error) {
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return types.User{}, err
	}
	googleID := strings.TrimSpace(reg.GoogleID)
	if googleID == "" && reg.Password == "" {
		return types.User{}, newValidationError("Either google_id or password is required")
	}
	if reg.Password != "" && len(reg.Password) < minPasswordLength {
		return types.User{}, newValidationError("Password must be at least %d characters", minPasswordLength)
	}
	pricingTier, err := resolvePlan(reg.PricingTier)
	if err != nil {
		return types.User{}, err
	}

	if err := s.ensureAvailable(ctx, email, googleID); err != nil {
		s.recordRegistration(registrationDirect, err)
		return types.User{}, err
	}

	name := strings.TrimSpace(reg.Name)
	given, family := SplitName(name)
	if v := strings.TrimSpace(reg.GivenName); v != "" {
		given = v
	}
	if v := strings.TrimSpace(reg.FamilyName); v != "" {
		family = v
	}
	if name == "" {
		name = strings.TrimSpace(given + " " + family)
	}

	user := types.User{
		GoogleID:          optionalString(googleID),
		Email:             email,
		Name:              name,
		GivenName:         given,
		FamilyName:        family,
		ProfilePictureURL: optionalString(reg.ProfilePictureURL),
		EmailVerified:     googleID != "",
		PricingTier:       pricingTier,
	}
	if reg.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
		if err != nil {
			return types.User{}, err
		}
		hashed := string(hash)
		user.PasswordHash = &hashed
	}
	return s.create(ctx, user, registrationDirect)
}

// CheckEmail reports whether an account exists for the email.
func (s *UserService) CheckEmail(ctx context.Context, email string) (bool, *types.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return false, nil, err
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, &user, nil
}

// Authenticate checks a password credential.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if user.PasswordHash == nil {
		return types.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ResolveOAuthUser finds the account for a Google profile. An account
// matched by email that has no Google id yet is linked to the profile.
// store.ErrNotFound means the caller should route to registration.
func (s *UserService) ResolveOAuthUser(ctx context.Context, profile GoogleProfile) (types.User, error) {
	user, err := s.repo.GetByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	user, err = s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, err
	}
	if user.GoogleID != nil {
		return types.User{}, ErrUserAlreadyExists
	}

	googleID := profile.ID
	user.GoogleID = &googleID
	if profile.VerifiedEmail {
		user.EmailVerified = true
	}
	if user.ProfilePictureURL == nil {
		user.ProfilePictureURL = optionalString(profile.Picture)
	}
	return s.repo.Update(ctx, user)
}

// ChangeTier moves a user to another pricing tier.
func (s *UserService) ChangeTier(ctx context.Context, userID int64, name string) (types.User, error) {
	normalized := tier.Normalize(name)
	if !tier.Valid(normalized) {
		return types.User{}, newValidationError("Invalid pricing tier %q", name)
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if user.PricingTier == normalized {
		return user, nil
	}
	user.PricingTier = normalized
	return s.repo.Update(ctx, user)
}

func (s *UserService) ensureAvailable(ctx context.Context, email, googleID string) error {
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return ErrUserAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if googleID == "" {
		return nil
	}
	if _, err := s.repo.GetByGoogleID(ctx, googleID); err == nil {
		return ErrUserAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (s *UserService) create(ctx context.Context, user types.User, method string) (types.User, error) {
	created, err := s.repo.Create(ctx, user)
	if errors.Is(err, store.ErrDuplicate) {
		err = ErrUserAlreadyExists
	}
	s.recordRegistration(method, err)
	if err != nil {
		return types.User{}, err
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", created.ID),
		zap.String("method", method),
		zap.String("pricing_tier", created.PricingTier),
	)
	publish(ctx, s.events, s.logger, types.ChannelUserRegistered, types.UserRegisteredEvent{
		UserID:      created.ID,
		Email:       created.Email,
		PricingTier: created.PricingTier,
	})
	return created, nil
}

func (s *UserService) recordRegistration(method string, err error) {
	switch {
	case err == nil:
		s.metrics.RecordRegistration(method, metrics.ResultSuccess)
	case errors.Is(err, ErrUserAlreadyExists):
		s.metrics.RecordRegistration(method, metrics.ResultConflict)
	default:
		s.metrics.RecordRegistration(method, metrics.ResultFailed)
	}
}

// SplitName splits a display name into given name (first token) and family
// name (the remaining tokens).
func SplitName(name string) (string, string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", newValidationError("Email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", newValidationError("Invalid email address")
	}
	return email, nil
}

func resolvePlan(plan string) (string, error) {
	if strings.TrimSpace(plan) == "" {
		return tier.Default, nil
	}
	normalized := tier.Normalize(plan)
	if !tier.Valid(normalized) {
		return "", newValidationError("Invalid pricing tier %q", plan)
	}
	return normalized, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
