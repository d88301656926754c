package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/repository"
	"mikasa-gate/internal/service"
)

var testNow = time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

const testUserID = "11111111-1111-1111-1111-111111111111"

// Mock logger used by handler package tests.
type MockHandlerLogger struct{}

func NewMockHandlerLogger() domain.Logger {
	return &MockHandlerLogger{}
}

func (l *MockHandlerLogger) Info(msg string, fields ...interface{})             {}
func (l *MockHandlerLogger) Error(msg string, err error, fields ...interface{}) {}
func (l *MockHandlerLogger) Debug(msg string, fields ...interface{})            {}
func (l *MockHandlerLogger) Warn(msg string, fields ...interface{})             {}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type mockAuthService struct {
	mu        sync.Mutex
	users     map[string]*domain.SupabaseUser
	err       error
	lastToken string
	now       time.Time
}

func newMockAuthService() *mockAuthService {
	return &mockAuthService{
		users: map[string]*domain.SupabaseUser{
			"token-1": {ID: testUserID, Email: "user@example.com"},
		},
		now: testNow,
	}
}

func (m *mockAuthService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastToken = token
	if m.err != nil {
		return nil, m.err
	}
	user, ok := m.users[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return user, nil
}

func (m *mockAuthService) StartDemo(deviceID string) *domain.Account {
	return domain.NewDemoAccount(deviceID, m.now)
}

func (m *mockAuthService) ParseDemo(id, deviceID string) (*domain.Account, error) {
	acc, err := domain.ParseDemoAccount(id, deviceID)
	if err != nil {
		return nil, err
	}
	if acc.DemoExpired(m.now) {
		return nil, domain.ErrDemoAccountExpired
	}
	return acc, nil
}

type stubSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscription
}

func (r *stubSubscriptionRepo) GetLatest(ctx context.Context, userID, token string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[userID]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, nil
}

func (r *stubSubscriptionRepo) Create(ctx context.Context, sub *domain.Subscription, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub.ID = "sub-" + sub.UserID
	cp := *sub
	r.subs[sub.UserID] = &cp
	return nil
}

func (r *stubSubscriptionRepo) CancelActive(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[userID]; ok && sub.Status == domain.StatusActive {
		sub.Status = domain.StatusCancelled
	}
	return nil
}

func (r *stubSubscriptionRepo) Latest(userID string) *domain.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[userID]
}

type stubUsageRepo struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *stubUsageRepo) CheckUsage(ctx context.Context, userID, token string) (*domain.UsageSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := domain.NewUsageSnapshot(r.counts[userID], domain.FreeDailyLimit)
	return &snap, nil
}

func (r *stubUsageRepo) IncrementUsage(ctx context.Context, userID, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[userID]++
	return true, nil
}

func (r *stubUsageRepo) Set(userID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[userID] = n
}

func (r *stubUsageRepo) Count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[userID]
}

type stubCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (c *stubCompleter) Complete(ctx context.Context, history []domain.ChatTurn) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func (c *stubCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

const testAdminSecret = "admin-secret"

// handlerFixture wires the real services and router over in-memory fakes.
type handlerFixture struct {
	auth      *mockAuthService
	subs      *stubSubscriptionRepo
	usage     *stubUsageRepo
	local     *repository.MemoryKeyValueStore
	completer *stubCompleter
	sessions  *service.SessionRegistry
	router    http.Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	logger := NewMockHandlerLogger()
	clock := fixedClock{now: testNow}
	f := &handlerFixture{
		auth:      newMockAuthService(),
		subs:      &stubSubscriptionRepo{subs: map[string]*domain.Subscription{}},
		usage:     &stubUsageRepo{counts: map[string]int{}},
		local:     repository.NewMemoryKeyValueStore(),
		completer: &stubCompleter{reply: "Hello from Mikasa"},
	}

	resolver := service.NewEntitlementResolver(f.subs, clock, time.Second, logger, nil)
	stores := service.UsageStoreFactory{
		LocalStorage: func(scope string) domain.KeyValueStore {
			return repository.NewScopedKeyValueStore(f.local, scope)
		},
		Remote: f.usage,
		Clock:  clock,
	}
	f.sessions = service.NewSessionRegistry(resolver, stores, time.Second, time.Hour, clock, logger, nil)
	subscriptions := service.NewSubscriptionService(f.subs, f.subs, clock, logger, nil)

	f.router = NewRouter(Handlers{
		Auth:         NewAuthHandler(f.auth, f.sessions, logger),
		Usage:        NewUsageHandler(logger),
		Chat:         NewChatHandler(service.NewChatService(f.completer, logger), logger),
		Subscription: NewSubscriptionHandler(subscriptions, f.sessions, logger),
		Admin:        NewAdminHandler(subscriptions, f.sessions, testAdminSecret, logger),
	}, NewAuthMiddleware(f.auth, f.sessions, logger).Middleware, []string{"*"})
	return f
}
