// Package notification delivers transient user-facing messages (toasts) and,
// when configured, forwards errors and warnings to push services.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type is the severity shown by the client
type Type string

const (
	TypeSuccess Type = "success"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// DefaultToastDuration is how long a toast stays listed
const DefaultToastDuration = 30 * time.Second

// Toast is a short-lived message. Toasts never block the caller.
type Toast struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expiresAt"`

	seq uint64 // insertion order, timestamps can tie
}

// NewToast creates a toast that expires after duration
func NewToast(t Type, component, message string, duration time.Duration) *Toast {
	if duration <= 0 {
		duration = DefaultToastDuration
	}
	now := time.Now()
	return &Toast{
		ID:        uuid.New().String(),
		Type:      t,
		Message:   message,
		Component: component,
		Timestamp: now,
		ExpiresAt: now.Add(duration),
	}
}

// Pushable reports whether the toast is severe enough to forward to push providers
func (t *Toast) Pushable() bool {
	return t.Type == TypeError || t.Type == TypeWarning
}
