package service

import (
	"context"
	"sync"
	"time"

	"mikasa-gate/internal/domain"
)

// MockLogger records messages; gates log from several goroutines.
type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{
		messages: []string{},
	}
}

func (m *MockLogger) Info(msg string, args ...interface{}) {
	m.record("INFO: " + msg)
}

func (m *MockLogger) Error(msg string, err error, args ...interface{}) {
	m.record("ERROR: " + msg + " - " + err.Error())
}

func (m *MockLogger) Debug(msg string, args ...interface{}) {
	m.record("DEBUG: " + msg)
}

func (m *MockLogger) Warn(msg string, args ...interface{}) {
	m.record("WARN: " + msg)
}

func (m *MockLogger) record(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, line)
}

func (m *MockLogger) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// waitOrDone blocks for d unless ctx ends first.
func waitOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeSubscriptionRepo struct {
	mu        sync.Mutex
	sub       *domain.Subscription
	err       error
	delay     time.Duration
	panicMsg  string
	calls     int
	created   []*domain.Subscription
	cancelled []string
	tokens    []string
}

func (f *fakeSubscriptionRepo) GetLatest(ctx context.Context, userID string, token string) (*domain.Subscription, error) {
	f.mu.Lock()
	f.calls++
	f.tokens = append(f.tokens, token)
	sub, err, delay, panicMsg := f.sub, f.err, f.delay, f.panicMsg
	f.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if err := waitOrDone(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeSubscriptionRepo) Create(ctx context.Context, sub *domain.Subscription, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	sub.ID = "sub-" + sub.UserID
	f.created = append(f.created, sub)
	cp := *sub
	f.sub = &cp
	return nil
}

func (f *fakeSubscriptionRepo) CancelActive(ctx context.Context, userID string, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, userID)
	if f.sub != nil && f.sub.Status == domain.StatusActive {
		f.sub.Status = domain.StatusCancelled
	}
	return nil
}

func (f *fakeSubscriptionRepo) Recover(sub *domain.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = nil
	f.sub = sub
}

func (f *fakeSubscriptionRepo) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeUsageRepo struct {
	mu         sync.Mutex
	counts     map[string]int
	checkErr   error
	incErr     error
	incNoop    bool
	checkDelay time.Duration
	incDelay   time.Duration
	checkCalls int
	incCalls   int
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counts: make(map[string]int)}
}

func (f *fakeUsageRepo) CheckUsage(ctx context.Context, userID string, token string) (*domain.UsageSnapshot, error) {
	f.mu.Lock()
	f.checkCalls++
	delay, err, used := f.checkDelay, f.checkErr, f.counts[userID]
	f.mu.Unlock()

	if err := waitOrDone(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	snapshot := domain.NewUsageSnapshot(used, domain.FreeDailyLimit)
	return &snapshot, nil
}

// IncrementUsage ignores ctx while delayed, like a request already on the wire.
func (f *fakeUsageRepo) IncrementUsage(ctx context.Context, userID string, token string) (bool, error) {
	f.mu.Lock()
	delay := f.incDelay
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.incCalls++
	if f.incErr != nil {
		return false, f.incErr
	}
	if f.incNoop {
		return false, nil
	}
	f.counts[userID]++
	return true, nil
}

func (f *fakeUsageRepo) SetCount(userID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[userID] = n
}

func (f *fakeUsageRepo) SetCheckErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkErr = err
}

func (f *fakeUsageRepo) Count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[userID]
}

func (f *fakeUsageRepo) IncCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.incCalls
}

type fakeKV struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	history []domain.ChatTurn
	calls   int
}

func (f *fakeCompleter) Complete(ctx context.Context, history []domain.ChatTurn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.history = history
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// gateFixture wires a gate against in-memory collaborators.
type gateFixture struct {
	clock   *fakeClock
	subs    *fakeSubscriptionRepo
	usage   *fakeUsageRepo
	kv      *fakeKV
	logger  *MockLogger
	session *AccountSession
	gate    *SessionGate
}

var testNow = time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

func newGateFixture(account *domain.Account) *gateFixture {
	f := &gateFixture{
		clock:   newFakeClock(testNow),
		subs:    &fakeSubscriptionRepo{},
		usage:   newFakeUsageRepo(),
		kv:      newFakeKV(),
		logger:  NewMockLogger(),
		session: NewAccountSession(),
	}
	if account != nil {
		f.session.Login(account)
	}
	resolver := NewEntitlementResolver(f.subs, f.clock, time.Second, f.logger, nil)
	stores := UsageStoreFactory{
		LocalStorage: func(string) domain.KeyValueStore { return f.kv },
		Remote:       f.usage,
		Clock:        f.clock,
	}
	f.gate = NewSessionGate(f.session, resolver, stores, time.Second, f.logger, nil)
	return f
}

func freeAccount() *domain.Account {
	return &domain.Account{ID: "11111111-1111-1111-1111-111111111111", Email: "free@example.com", Tier: domain.TierFree, AccessToken: "token-1"}
}

func demoAccount() *domain.Account {
	return domain.NewDemoAccount("device-1", testNow.Add(-time.Hour))
}

func activeSubscription(userID string, plan domain.PlanType) *domain.Subscription {
	start := testNow.Add(-24 * time.Hour)
	end := testNow.Add(29 * 24 * time.Hour)
	return &domain.Subscription{
		ID:        "sub-1",
		UserID:    userID,
		PlanType:  plan,
		Status:    domain.StatusActive,
		StartDate: &start,
		EndDate:   &end,
	}
}
