package domain

import "context"

// Notifier delivers a message to a user.
type Notifier interface {
	Notify(ctx context.Context, user User, text string) error
}
