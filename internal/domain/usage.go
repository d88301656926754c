package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DayKeyLayout is the calendar-day format used for usage keys.
const DayKeyLayout = "2006-01-02"

// DayKey returns the usage key for the calendar day containing t, in t's location.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// UsageSnapshot is the derived, unpersisted view of today's usage.
type UsageSnapshot struct {
	CanSend           bool `json:"can_send"`
	MessagesUsed      int  `json:"messages_used"`
	MessagesLimit     int  `json:"messages_limit"`
	MessagesRemaining int  `json:"messages_remaining"`
}

// NewUsageSnapshot applies the quota formula to a count and a limit.
func NewUsageSnapshot(used, limit int) UsageSnapshot {
	if used < 0 {
		used = 0
	}
	if limit == Unlimited {
		return UsageSnapshot{
			CanSend:           true,
			MessagesUsed:      used,
			MessagesLimit:     Unlimited,
			MessagesRemaining: Unlimited,
		}
	}
	return UsageSnapshot{
		CanSend:           used < limit,
		MessagesUsed:      used,
		MessagesLimit:     limit,
		MessagesRemaining: max(0, limit-used),
	}
}

// FallbackUsageSnapshot is what a failed remote usage read degrades to.
func FallbackUsageSnapshot() UsageSnapshot {
	return NewUsageSnapshot(0, FreeDailyLimit)
}

// UsageBlob is the demo usage record: calendar day -> message count.
type UsageBlob map[string]int

// ParseUsageBlob decodes a stored blob. An empty string is an empty blob.
func ParseUsageBlob(raw string) (UsageBlob, error) {
	blob := UsageBlob{}
	if raw == "" {
		return blob, nil
	}
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return UsageBlob{}, fmt.Errorf("decode usage blob: %w", err)
	}
	if blob == nil {
		blob = UsageBlob{}
	}
	return blob, nil
}

// Encode serializes the blob for storage.
func (b UsageBlob) Encode() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode usage blob: %w", err)
	}
	return string(data), nil
}

// GateState is the session gate's lifecycle state.
type GateState string

const (
	GateUninitialized GateState = "uninitialized"
	GateLoading       GateState = "loading"
	GateReady         GateState = "ready"
)

// DenyReason explains why a send was refused.
type DenyReason string

const (
	DenyNotLoggedIn   DenyReason = "NOT_LOGGED_IN"
	DenyQuotaExceeded DenyReason = "QUOTA_EXCEEDED"
)

// Upsell copy shown on denial. The free-limit wording must stay distinct
// from the generic one.
const (
	MessageLoginRequired     = "Please log in to start chatting."
	MessageRegisterOrUpgrade = "You've used all 10 free messages for today. Register or upgrade to keep chatting."
	MessageUpgradeToContinue = "You've reached your daily message limit. Upgrade to continue."
)

// GateDecision is the result of asking whether a message may be sent.
type GateDecision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	Used    int        `json:"used"`
	Limit   int        `json:"limit"`
}

// Allow builds an allowing decision.
func Allow(used, limit int) GateDecision {
	return GateDecision{Allowed: true, Used: used, Limit: limit}
}

// DenyNotLoggedInDecision builds the decision for a session with no account.
func DenyNotLoggedInDecision() GateDecision {
	return GateDecision{Reason: DenyNotLoggedIn}
}

// DenyQuota builds the decision for an exhausted quota.
func DenyQuota(used, limit int) GateDecision {
	return GateDecision{Reason: DenyQuotaExceeded, Used: used, Limit: limit}
}

// Message returns the upsell text the UI shows for a denial.
func (d GateDecision) Message() string {
	switch {
	case d.Allowed:
		return ""
	case d.Reason == DenyNotLoggedIn:
		return MessageLoginRequired
	case d.Limit == FreeDailyLimit:
		return MessageRegisterOrUpgrade
	default:
		return MessageUpgradeToContinue
	}
}

// Err converts a denial into a *DeniedError, or nil when allowed.
func (d GateDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Decision: d}
}

func (d GateDecision) String() string {
	switch {
	case d.Allowed:
		return "ALLOW"
	case d.Reason == DenyQuotaExceeded:
		return fmt.Sprintf("%s(%d,%d)", d.Reason, d.Used, d.Limit)
	default:
		return string(d.Reason)
	}
}
