package notifier

import (
	"context"
	"fmt"
	"time"
)

// Notifier delivers operator messages.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Noop discards messages. Used when Telegram is not configured.
type Noop struct{}

func (Noop) Send(context.Context, string) error { return nil }

// SendWithRetry sends through n, backing off exponentially between attempts.
func SendWithRetry(ctx context.Context, n Notifier, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := n.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i == maxRetries {
			break
		}
		backoff := time.Duration(1<<uint(i)) * time.Second
		log.Warnf("send failed (attempt %d/%d): %v, retrying in %v", i+1, maxRetries+1, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}
