package service

import (
	"context"
	"fmt"

	"mikasa-gate/internal/domain"
)

// DemoUsageKey is the fixed local-storage key holding the demo usage blob.
const DemoUsageKey = "mikasa_demo_usage"

const (
	storeLocal  = "local"
	storeRemote = "remote"
)

// LocalUsageStore keeps demo usage in a single JSON blob in local storage.
//
// Writes are whole-blob read-modify-write with no locking: two writers on the
// same storage (e.g. two tabs) can lose an increment. Entries for past days
// are kept and never pruned.
type LocalUsageStore struct {
	storage domain.KeyValueStore
	clock   domain.Clock
}

func NewLocalUsageStore(storage domain.KeyValueStore, clock domain.Clock) *LocalUsageStore {
	return &LocalUsageStore{storage: storage, clock: clock}
}

func (s *LocalUsageStore) TodayCount(ctx context.Context, account *domain.Account) (int, error) {
	blob, err := s.read()
	if err != nil {
		return 0, err
	}
	return blob[domain.DayKey(s.clock.Now())], nil
}

func (s *LocalUsageStore) Increment(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := s.read()
	if err != nil {
		// A corrupt blob cannot be merged; start over rather than block sending forever.
		blob = domain.UsageBlob{}
	}
	blob[domain.DayKey(s.clock.Now())]++

	raw, err := blob.Encode()
	if err != nil {
		return err
	}
	if err := s.storage.Set(DemoUsageKey, raw); err != nil {
		return fmt.Errorf("write usage blob: %w", err)
	}
	return nil
}

// Blob returns the whole stored record, for inspection tools.
func (s *LocalUsageStore) Blob() (domain.UsageBlob, error) {
	return s.read()
}

func (s *LocalUsageStore) read() (domain.UsageBlob, error) {
	raw, ok, err := s.storage.Get(DemoUsageKey)
	if err != nil {
		return nil, fmt.Errorf("read usage blob: %w", err)
	}
	if !ok {
		return domain.UsageBlob{}, nil
	}
	return domain.ParseUsageBlob(raw)
}

// RemoteUsageStore delegates to the server-side counter for authenticated accounts.
type RemoteUsageStore struct {
	repo domain.RemoteUsageRepository
}

func NewRemoteUsageStore(repo domain.RemoteUsageRepository) *RemoteUsageStore {
	return &RemoteUsageStore{repo: repo}
}

func (s *RemoteUsageStore) TodayCount(ctx context.Context, account *domain.Account) (int, error) {
	if s.repo == nil {
		return 0, domain.ErrStoreNotInitialized
	}
	snapshot, err := s.repo.CheckUsage(ctx, account.ID, account.AccessToken)
	if err != nil {
		return 0, err
	}
	if snapshot == nil {
		return 0, nil
	}
	return snapshot.MessagesUsed, nil
}

func (s *RemoteUsageStore) Increment(ctx context.Context, account *domain.Account) error {
	if s.repo == nil {
		return domain.ErrStoreNotInitialized
	}
	ok, err := s.repo.IncrementUsage(ctx, account.ID, account.AccessToken)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("increment_usage reported no change for %s", account.ID)
	}
	return nil
}

// UsageStoreFactory picks the store variant for an account once per session.
type UsageStoreFactory struct {
	// LocalStorage returns the durable storage scoped to one device.
	LocalStorage func(scope string) domain.KeyValueStore
	Remote       domain.RemoteUsageRepository
	Clock        domain.Clock
}

// For returns the store for the account and a short label for logs and metrics.
func (f UsageStoreFactory) For(account *domain.Account) (domain.UsageStore, string) {
	if account.IsDemo {
		return NewLocalUsageStore(f.LocalStorage(account.StorageScope()), f.Clock), storeLocal
	}
	return NewRemoteUsageStore(f.Remote), storeRemote
}
