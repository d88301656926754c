package service

import (
	"errors"
	"fmt"

	"mikasa-gate/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errBadSubject = errors.New("subject is not a user id")

// supabaseClaims is the subset of a Supabase access token we rely on.
type supabaseClaims struct {
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

type authService struct {
	supabaseClient domain.SupabaseClient
	jwtSecret      []byte
	clock          domain.Clock
	logger         domain.Logger
}

// NewAuthService validates access tokens locally when jwtSecret is set and
// falls back to asking Supabase Auth otherwise.
func NewAuthService(
	supabaseClient domain.SupabaseClient,
	jwtSecret string,
	clock domain.Clock,
	logger domain.Logger,
) *authService {
	return &authService{
		supabaseClient: supabaseClient,
		jwtSecret:      []byte(jwtSecret),
		clock:          clock,
		logger:         logger,
	}
}

// ValidateToken validates a token and returns the user it was issued to
func (s *authService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	if len(s.jwtSecret) > 0 {
		user, err := s.parseLocal(token)
		if err == nil {
			return user, nil
		}
		// Malformed and expired tokens are final. Signature mismatches may be
		// tokens signed with a rotated or asymmetric key, so Supabase decides.
		if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, errBadSubject) {
			s.logger.Debug("Rejected access token", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
		}
		s.logger.Debug("Local token check inconclusive, asking Supabase", "error", err)
	}

	if s.supabaseClient == nil {
		return nil, domain.ErrStoreNotInitialized
	}
	user, err := s.supabaseClient.ValidateToken(token)
	if err != nil {
		s.logger.Error("Failed to validate token with Supabase", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return user, nil
}

func (s *authService) parseLocal(raw string) (*domain.SupabaseUser, error) {
	claims := &supabaseClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, errBadSubject
	}

	user := &domain.SupabaseUser{
		ID:           claims.Subject,
		Email:        claims.Email,
		UserMetadata: claims.UserMetadata,
	}
	if claims.IssuedAt != nil {
		user.CreatedAt = claims.IssuedAt.Time.Format("2006-01-02T15:04:05Z07:00")
	}
	return user, nil
}

// StartDemo issues a fresh demo identity bound to the device.
func (s *authService) StartDemo(deviceID string) *domain.Account {
	acc := domain.NewDemoAccount(deviceID, s.clock.Now())
	s.logger.Info("Demo session started", "account_id", acc.ID, "device_id", deviceID)
	return acc
}

// ParseDemo rebuilds a demo identity presented by a client. Identifiers
// older than domain.DemoAccountTTL are rejected.
func (s *authService) ParseDemo(id, deviceID string) (*domain.Account, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id required", domain.ErrInvalidDemoAccount)
	}
	acc, err := domain.ParseDemoAccount(id, deviceID)
	if err != nil {
		return nil, err
	}
	if acc.DemoExpired(s.clock.Now()) {
		return nil, domain.ErrDemoAccountExpired
	}
	return acc, nil
}
