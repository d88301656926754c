package service

import (
	"context"
	"sync"
	"time"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// SessionGate decides whether the current account may send a message and
// records usage after a successful exchange.
//
// State machine: Uninitialized (no account) -> Loading -> Ready. Login,
// logout and tier changes discard everything and start over; loads that were
// in flight across a reset are dropped by generation.
//
// A Ready gate is reloaded on the next Ensure or SendGate when the calendar
// day of its clock has moved past the day it was loaded for, or when the
// entitlement or the count came from a fail-open default.
//
// AfterSuccessfulSend is not serialized: two overlapping calls for the same
// account may each re-read the count before the other's increment lands.
// Callers keep one send in flight per session. An increment that times out is
// reported as not recorded, but the abandoned store call may still complete,
// so the message can end up counted.
type SessionGate struct {
	sessions domain.SessionProvider
	resolver *EntitlementResolver
	stores   UsageStoreFactory
	clock    domain.Clock
	timeout  time.Duration
	logger   domain.Logger
	metrics  *metrics.Metrics

	mu          sync.RWMutex
	state       domain.GateState
	account     *domain.Account
	tracker     *UsageTracker
	entitlement domain.Entitlement
	snapshot    domain.UsageSnapshot
	loadedDay   string
	// degraded is set when the last load fell back to defaults.
	degraded    bool
	generation  uint64
	unsubscribe func()
}

func NewSessionGate(
	sessions domain.SessionProvider,
	resolver *EntitlementResolver,
	stores UsageStoreFactory,
	usageTimeout time.Duration,
	logger domain.Logger,
	m *metrics.Metrics,
) *SessionGate {
	clock := stores.Clock
	if clock == nil {
		clock = NewSystemClock(nil)
	}
	g := &SessionGate{
		sessions: sessions,
		resolver: resolver,
		stores:   stores,
		clock:    clock,
		timeout:  usageTimeout,
		logger:   logger,
		metrics:  m,
	}
	g.resetLocked(sessions.CurrentAccount())
	g.unsubscribe = sessions.Subscribe(g.handleAccountChange)
	return g
}

// Close detaches the gate from its session provider.
func (g *SessionGate) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
}

// State returns the current lifecycle state.
func (g *SessionGate) State() domain.GateState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Snapshot returns the state and last derived usage.
func (g *SessionGate) Snapshot() (domain.GateState, domain.UsageSnapshot) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.snapshot
}

// Entitlement returns the resolved entitlement; zero until Ready.
func (g *SessionGate) Entitlement() domain.Entitlement {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entitlement
}

// Account returns a copy of the account the gate is bound to, or nil.
func (g *SessionGate) Account() *domain.Account {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.account == nil {
		return nil
	}
	acc := *g.account
	return &acc
}

// Load fetches entitlement and today's usage concurrently and moves the gate
// to Ready. It always terminates in a usable state.
func (g *SessionGate) Load(ctx context.Context) domain.UsageSnapshot {
	g.mu.Lock()
	if g.account == nil {
		g.mu.Unlock()
		return domain.UsageSnapshot{}
	}
	g.refreshCredentialsLocked()
	account := g.accountCopyLocked()
	g.state = domain.GateLoading
	gen := g.generation
	tracker := g.tracker
	g.mu.Unlock()

	day := domain.DayKey(g.clock.Now())
	var (
		ent         domain.Entitlement
		entFallback bool
		count       int
		ok          bool
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		ent, entFallback = g.resolver.resolve(egCtx, account)
		return nil
	})
	eg.Go(func() error {
		count, ok = tracker.todayCount(egCtx, account)
		return nil
	})
	_ = eg.Wait()

	snapshot := domain.FallbackUsageSnapshot()
	if ok {
		snapshot = domain.NewUsageSnapshot(count, ent.MessagesLimit)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.generation {
		g.logger.Debug("Discarding stale gate load", "account_id", account.ID)
		return g.snapshot
	}
	g.entitlement = ent
	g.snapshot = snapshot
	g.loadedDay = day
	g.degraded = entFallback || !ok
	g.state = domain.GateReady
	g.account.Tier = ent.Tier(account.IsDemo)

	g.logger.Debug("Session gate ready",
		"account_id", account.ID,
		"plan_type", ent.PlanType,
		"messages_used", snapshot.MessagesUsed,
		"messages_limit", snapshot.MessagesLimit)
	return snapshot
}

// Ensure loads the gate unless it is Ready with a current, non-fallback snapshot.
func (g *SessionGate) Ensure(ctx context.Context) {
	if g.needsLoad() {
		g.Load(ctx)
	}
}

func (g *SessionGate) needsLoad() bool {
	today := domain.DayKey(g.clock.Now())
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.account == nil {
		return false
	}
	return g.state != domain.GateReady || g.degraded || g.loadedDay != today
}

// CanSendMessage is a pure read of the Ready snapshot. With no account it is
// false whatever was cached; while loading it is false.
func (g *SessionGate) CanSendMessage() bool {
	current := g.sessions.CurrentAccount()
	if current == nil {
		return false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.account == nil || g.account.ID != current.ID {
		return false
	}
	if g.state != domain.GateReady || !g.entitlement.LoggedIn {
		return false
	}
	return g.snapshot.CanSend
}

// SendGate returns the decision for one send, loading first if needed.
func (g *SessionGate) SendGate(ctx context.Context) domain.GateDecision {
	decision := g.decide(ctx)
	g.metrics.ObserveDecision(decision.Allowed, string(decision.Reason))
	return decision
}

func (g *SessionGate) decide(ctx context.Context) domain.GateDecision {
	current := g.sessions.CurrentAccount()
	if current == nil {
		return domain.DenyNotLoggedInDecision()
	}
	g.Ensure(ctx)
	// A reset racing the load leaves the gate in Loading; retry once.
	if g.State() != domain.GateReady {
		g.Load(ctx)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.account == nil || g.account.ID != current.ID || g.state != domain.GateReady || !g.entitlement.LoggedIn {
		return domain.DenyNotLoggedInDecision()
	}
	if !g.snapshot.CanSend {
		return domain.DenyQuota(g.snapshot.MessagesUsed, g.snapshot.MessagesLimit)
	}
	return domain.Allow(g.snapshot.MessagesUsed, g.snapshot.MessagesLimit)
}

// AfterSuccessfulSend records one message and refreshes the snapshot from a
// fresh count. Call it exactly once per completed chat exchange and never
// after a failed completion. A failed increment leaves the snapshot as it was.
func (g *SessionGate) AfterSuccessfulSend(ctx context.Context) bool {
	g.mu.Lock()
	if g.account == nil || g.tracker == nil {
		g.mu.Unlock()
		return false
	}
	g.refreshCredentialsLocked()
	account, tracker, gen := g.accountCopyLocked(), g.tracker, g.generation
	g.mu.Unlock()

	if !tracker.RecordMessageSent(ctx, account) {
		return false
	}
	count, ok := tracker.todayCount(ctx, account)

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.generation || g.state != domain.GateReady {
		return true
	}
	if ok {
		g.snapshot = domain.NewUsageSnapshot(count, g.entitlement.MessagesLimit)
	} else {
		g.logger.Warn("Usage refresh failed after send, keeping previous snapshot", "account_id", account.ID)
	}
	return true
}

// Reset discards cached entitlement and usage, e.g. after a subscription change.
func (g *SessionGate) Reset() {
	account := g.sessions.CurrentAccount()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked(account)
}

func (g *SessionGate) handleAccountChange(account *domain.Account) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked(account)
}

func (g *SessionGate) resetLocked(account *domain.Account) {
	g.generation++
	g.entitlement = domain.Entitlement{}
	g.snapshot = domain.UsageSnapshot{}
	g.loadedDay = ""
	g.degraded = false
	g.tracker = nil

	if account == nil {
		g.account = nil
		g.state = domain.GateUninitialized
		return
	}

	acc := *account
	g.account = &acc
	store, name := g.stores.For(&acc)
	g.tracker = NewUsageTracker(store, name, g.timeout, g.logger, g.metrics)
	g.state = domain.GateLoading
}

// refreshCredentialsLocked picks up a renewed access token for the same account.
func (g *SessionGate) refreshCredentialsLocked() {
	current := g.sessions.CurrentAccount()
	if current != nil && g.account != nil && current.ID == g.account.ID {
		g.account.AccessToken = current.AccessToken
	}
}

func (g *SessionGate) accountCopyLocked() *domain.Account {
	acc := *g.account
	return &acc
}
