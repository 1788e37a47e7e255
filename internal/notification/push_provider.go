package notification

import "context"

// Provider is a push delivery backend. Implementations must be safe for concurrent use.
type Provider interface {
	GetName() string
	ValidateConfig() error
	Send(ctx context.Context, t *Toast) error
	IsEnabled() bool
}
