// Package notify is the boundary to the push-delivery service. Actual
// transport (web-push, APNs, whatever) lives behind the Notifier interface;
// this repo only decides when to notify and with what.
package notify

import (
	"context"
	"log"
)

// Notifier delivers a notification to one user.
type Notifier interface {
	Push(ctx context.Context, ownerID, title, body string) error
}

// Logger is a Notifier that writes to the process log. Used in development
// and as the default when no delivery backend is configured.
type Logger struct{}

// Push logs the notification instead of delivering it.
func (Logger) Push(_ context.Context, ownerID, title, body string) error {
	log.Printf("[notify] to=%s title=%q body=%q", ownerID, title, body)
	return nil
}
