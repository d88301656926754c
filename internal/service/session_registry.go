package service

import (
	"context"
	"sync"
	"time"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/metrics"
)

type sessionEntry struct {
	session  *AccountSession
	gate     *SessionGate
	lastSeen time.Time
}

// SessionRegistry hosts one AccountSession and SessionGate per account so the
// gate's cached state survives between requests. Idle entries are evicted.
type SessionRegistry struct {
	resolver     *EntitlementResolver
	stores       UsageStoreFactory
	usageTimeout time.Duration
	idleTTL      time.Duration
	clock        domain.Clock
	logger       domain.Logger
	metrics      *metrics.Metrics

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

func NewSessionRegistry(
	resolver *EntitlementResolver,
	stores UsageStoreFactory,
	usageTimeout time.Duration,
	idleTTL time.Duration,
	clock domain.Clock,
	logger domain.Logger,
	m *metrics.Metrics,
) *SessionRegistry {
	return &SessionRegistry{
		resolver:     resolver,
		stores:       stores,
		usageTimeout: usageTimeout,
		idleTTL:      idleTTL,
		clock:        clock,
		logger:       logger,
		metrics:      m,
		entries:      make(map[string]*sessionEntry),
	}
}

// Acquire returns the gate for the account, creating it on first use.
// Presenting a renewed token for a known account only refreshes credentials.
func (r *SessionRegistry) Acquire(account *domain.Account) *SessionGate {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[account.ID]; ok {
		e.session.Login(account)
		e.lastSeen = r.clock.Now()
		return e.gate
	}

	session := NewAccountSession()
	session.Login(account)
	gate := NewSessionGate(session, r.resolver, r.stores, r.usageTimeout, r.logger, r.metrics)
	r.entries[account.ID] = &sessionEntry{session: session, gate: gate, lastSeen: r.clock.Now()}
	r.metrics.SetActiveSessions(len(r.entries))
	r.logger.Debug("Session created", "account_id", account.ID, "is_demo", account.IsDemo)
	return gate
}

// Lookup returns the gate for an account without creating one.
func (r *SessionRegistry) Lookup(accountID string) (*SessionGate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[accountID]
	if !ok {
		return nil, false
	}
	return e.gate, true
}

// Reset drops the cached entitlement and usage of an account, typically
// after its subscription changed. Unknown accounts are ignored.
func (r *SessionRegistry) Reset(accountID string) {
	if gate, ok := r.Lookup(accountID); ok {
		gate.Reset()
	}
}

// Logout ends the account's session; its gate returns to Uninitialized.
func (r *SessionRegistry) Logout(accountID string) bool {
	r.mu.Lock()
	e, ok := r.entries[accountID]
	if ok {
		delete(r.entries, accountID)
		r.metrics.SetActiveSessions(len(r.entries))
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.session.Logout()
	e.gate.Close()
	return true
}

// Len reports the number of hosted sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts sessions idle since before now minus the idle TTL.
func (r *SessionRegistry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var evicted []*sessionEntry
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e)
			delete(r.entries, id)
		}
	}
	r.metrics.SetActiveSessions(len(r.entries))
	r.mu.Unlock()

	for _, e := range evicted {
		e.session.Logout()
		e.gate.Close()
	}
	if len(evicted) > 0 {
		r.logger.Debug("Evicted idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

// Run sweeps periodically until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.clock.Now())
		}
	}
}
