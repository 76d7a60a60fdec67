package handler

import (
	"context"
	"log/slog"
	"time"

	"support-bot/internal/integrations/telegram"
)

// UpdateSource long-polls the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

var (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Poll feeds updates from src into d until ctx is done. Failed polls are
// retried with exponential backoff.
func Poll(ctx context.Context, src UpdateSource, d *Dispatcher, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var offset int64
	backoff := minBackoff
	for {
		updates, err := src.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("get updates failed", "err", err, "retry_in", backoff)
			if err := sleep(ctx, backoff); err != nil {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			d.Dispatch(ctx, u)
		}
	}
}

func sleep(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
