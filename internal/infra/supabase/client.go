package supabase

import (
	"fmt"
	"sync"

	"mikasa-gate/internal/domain"

	"github.com/supabase-community/supabase-go"
)

// SupabaseClient implements the domain.SupabaseClient interface
type SupabaseClient struct {
	client *supabase.Client
	config domain.Config
	logger domain.Logger

	serviceOnce sync.Once
	service     *supabase.Client
	serviceErr  error
}

// NewSupabaseClient creates a new Supabase client instance
func NewSupabaseClient(config domain.Config, logger domain.Logger) domain.SupabaseClient {
	return &SupabaseClient{
		config: config,
		logger: logger,
	}
}

func (s *SupabaseClient) DB() *supabase.Client {
	return s.client
}

// Initialize establishes a connection to Supabase
func (s *SupabaseClient) Initialize() error {
	supabaseURL := s.config.GetSupabaseURL()
	supabaseKey := s.config.GetSupabaseKey()

	if supabaseURL == "" || supabaseKey == "" {
		return fmt.Errorf("supabase URL and key must be provided")
	}

	client, err := supabase.NewClient(supabaseURL, supabaseKey, &supabase.ClientOptions{})
	if err != nil {
		return fmt.Errorf("failed to create Supabase client: %w", err)
	}

	s.client = client
	s.logger.Info("Supabase client initialized successfully", "url", supabaseURL)
	return nil
}

// GetClientWithToken returns a client whose REST calls carry the user's JWT,
// so row level security applies to that user.
func (s *SupabaseClient) GetClientWithToken(token string) (*supabase.Client, error) {
	if s.client == nil {
		return nil, domain.ErrStoreNotInitialized
	}
	if token == "" {
		return s.client, nil
	}

	client, err := supabase.NewClient(s.config.GetSupabaseURL(), s.config.GetSupabaseKey(), &supabase.ClientOptions{
		Headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client with token: %w", err)
	}
	return client, nil
}

// ServiceRole returns a client authenticated with the service role key.
func (s *SupabaseClient) ServiceRole() (*supabase.Client, error) {
	s.serviceOnce.Do(func() {
		supabaseURL := s.config.GetSupabaseURL()
		serviceRoleKey := s.config.GetSupabaseServiceRoleKey()
		if supabaseURL == "" || serviceRoleKey == "" {
			s.serviceErr = fmt.Errorf("missing SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY")
			return
		}
		s.service, s.serviceErr = supabase.NewClient(supabaseURL, serviceRoleKey, &supabase.ClientOptions{})
	})
	return s.service, s.serviceErr
}

// ValidateToken validates a Supabase JWT token and returns user info
func (s *SupabaseClient) ValidateToken(token string) (*domain.SupabaseUser, error) {
	if s.client == nil {
		return nil, domain.ErrStoreNotInitialized
	}

	// Get user info using an auth client with the access token.
	// Note: passing "Authorization" via Supabase client headers does not affect GoTrue requests.
	user, err := s.client.Auth.WithToken(token).GetUser()
	if err != nil {
		s.logger.Error("Failed to validate token with Supabase", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	// Convert Supabase user to domain user
	domainUser := &domain.SupabaseUser{
		ID:           user.ID.String(),
		Email:        user.Email,
		UserMetadata: user.UserMetadata,
		CreatedAt:    user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	return domainUser, nil
}

// serviceRoleClient routes every table call through the service role client.
type serviceRoleClient struct {
	domain.SupabaseClient
}

// AsServiceRole wraps c so repositories built on it bypass row level security.
// Used for operator paths such as granting plans; user tokens are ignored.
func AsServiceRole(c domain.SupabaseClient) domain.SupabaseClient {
	return serviceRoleClient{SupabaseClient: c}
}

func (s serviceRoleClient) GetClientWithToken(string) (*supabase.Client, error) {
	client, err := s.ServiceRole()
	if err != nil {
		return nil, fmt.Errorf("service role client: %w", err)
	}
	return client, nil
}
