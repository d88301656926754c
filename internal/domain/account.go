package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Tier is the account's plan classification governing its message quota.
type Tier string

const (
	TierDemo    Tier = "demo"
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

const (
	// DemoAccountPrefix marks identifiers synthesized for demo sessions.
	DemoAccountPrefix = "demo_"

	// DemoAccountTTL is how long a demo identity stays valid after creation.
	DemoAccountTTL = 24 * time.Hour
)

// Account is the identity a session gate is bound to.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Tier      Tier      `json:"tier"`
	IsDemo    bool      `json:"is_demo"`
	DeviceID  string    `json:"device_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// AccessToken authorizes remote calls made on the account's behalf. Empty for demo accounts.
	AccessToken string `json:"-"`
}

// SupabaseUser represents a user from Supabase Auth
type SupabaseUser struct {
	ID           string
	Email        string
	UserMetadata map[string]interface{}
	CreatedAt    string
	UpdatedAt    string
}

// NewDemoAccount synthesizes a device-bound demo identity. The id embeds the
// creation timestamp so it can be re-validated without server state.
func NewDemoAccount(deviceID string, now time.Time) *Account {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return &Account{
		ID:        DemoAccountPrefix + id.String(),
		Tier:      TierDemo,
		IsDemo:    true,
		DeviceID:  deviceID,
		CreatedAt: ulid.Time(id.Time()),
	}
}

// ParseDemoAccount rebuilds a demo account from an id issued by NewDemoAccount.
func ParseDemoAccount(id, deviceID string) (*Account, error) {
	raw, ok := strings.CutPrefix(id, DemoAccountPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidDemoAccount, DemoAccountPrefix)
	}
	parsed, err := ulid.ParseStrict(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDemoAccount, err)
	}
	return &Account{
		ID:        id,
		Tier:      TierDemo,
		IsDemo:    true,
		DeviceID:  deviceID,
		CreatedAt: ulid.Time(parsed.Time()),
	}, nil
}

// AccountFromUser maps an authenticated Supabase user to an account. The tier
// starts as free; the entitlement resolver upgrades it from the subscription row.
func AccountFromUser(user *SupabaseUser, token string) *Account {
	acc := &Account{
		ID:          user.ID,
		Email:       user.Email,
		Tier:        TierFree,
		AccessToken: token,
	}
	if t, err := time.Parse(time.RFC3339, user.CreatedAt); err == nil {
		acc.CreatedAt = t
	}
	return acc
}

// DemoExpired reports whether a demo identity is past its validity window.
// Authenticated accounts never expire here.
func (a *Account) DemoExpired(now time.Time) bool {
	if a == nil || !a.IsDemo {
		return false
	}
	return !now.Before(a.CreatedAt.Add(DemoAccountTTL))
}

// StorageScope is the key prefix for device-bound local storage.
func (a *Account) StorageScope() string {
	if a.DeviceID != "" {
		return a.DeviceID
	}
	return a.ID
}
