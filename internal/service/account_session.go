package service

import (
	"sync"

	"mikasa-gate/internal/domain"
)

// AccountSession holds the logged-in identity and implements domain.SessionProvider.
// Subscribers are called synchronously, outside the session's lock.
type AccountSession struct {
	mu          sync.RWMutex
	account     *domain.Account
	subscribers map[int]func(*domain.Account)
	nextID      int
}

func NewAccountSession() *AccountSession {
	return &AccountSession{subscribers: make(map[int]func(*domain.Account))}
}

func (s *AccountSession) CurrentAccount() *domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// Login sets the identity. Logging in again as the same account only
// refreshes its credentials and does not notify subscribers.
func (s *AccountSession) Login(account *domain.Account) {
	s.mu.Lock()
	same := s.account != nil && account != nil && s.account.ID == account.ID
	s.account = account
	s.mu.Unlock()

	if !same {
		s.notify(account)
	}
}

func (s *AccountSession) Logout() {
	s.mu.Lock()
	wasLoggedIn := s.account != nil
	s.account = nil
	s.mu.Unlock()

	if wasLoggedIn {
		s.notify(nil)
	}
}

func (s *AccountSession) Subscribe(fn func(*domain.Account)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *AccountSession) notify(account *domain.Account) {
	s.mu.RLock()
	fns := make([]func(*domain.Account), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(account)
	}
}
