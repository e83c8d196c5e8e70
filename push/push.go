// Package push is the glue to the offline push collaborator. Delivery
// is fire-and-forget: failures are logged, never surfaced to senders.
package push

import (
	"context"
	"log/slog"
	"time"

	"community-hub/contract"
)

// Dispatcher fans notifications out asynchronously with a bounded
// delivery window per batch.
type Dispatcher struct {
	notifier contract.Notifier
	log      *slog.Logger
	timeout  time.Duration
}

func NewDispatcher(notifier contract.Notifier, log *slog.Logger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{notifier: notifier, log: log, timeout: timeout}
}

// Go schedules a best-effort delivery and returns immediately.
func (d *Dispatcher) Go(userIDs []string, n contract.Notification) {
	if d == nil || len(userIDs) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.Notify(ctx, userIDs, n); err != nil {
			d.log.Debug("push delivery failed", "recipients", len(userIDs), "error", err)
		}
	}()
}

// TokenReader resolves a principal's push credential, if any.
type TokenReader interface {
	GetPushToken(ctx context.Context, userID string) (string, error)
}

// SlogNotifier is the in-process stand-in for the external push service:
// it resolves credentials and logs what would be delivered. Principals
// without a credential are skipped, matching the collaborator contract.
type SlogNotifier struct {
	tokens TokenReader
	log    *slog.Logger
}

func NewSlogNotifier(tokens TokenReader, log *slog.Logger) *SlogNotifier {
	return &SlogNotifier{tokens: tokens, log: log}
}

func (s *SlogNotifier) Notify(ctx context.Context, userIDs []string, n contract.Notification) error {
	for _, id := range userIDs {
		token, err := s.tokens.GetPushToken(ctx, id)
		if err != nil || token == "" {
			continue
		}
		s.log.Info("push notification", "user_id", id, "title", n.Title, "body", n.Body)
	}
	return nil
}
