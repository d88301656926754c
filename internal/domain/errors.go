package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidToken           = errors.New("invalid token")
	ErrInvalidDemoAccount     = errors.New("invalid demo account")
	ErrDemoAccountExpired     = errors.New("demo account expired")
	ErrDemoCannotSubscribe    = errors.New("demo accounts cannot hold subscriptions")
	ErrInvalidPlan            = errors.New("invalid plan")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrStoreNotInitialized    = errors.New("supabase client not initialized")
	ErrChatCompletionFailed   = errors.New("chat completion failed")
	ErrChatServiceUnavailable = errors.New("chat completion service not configured")
)

// DeniedError is returned by the chat flow when the gate refuses a send.
// It is a normal outcome, not a failure; callers render Decision.Message().
type DeniedError struct {
	Decision GateDecision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("send denied: %s", e.Decision)
}

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
