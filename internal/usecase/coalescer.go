package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"support-bot/internal/domain"
	"support-bot/internal/session"
)

const defaultQuietInterval = 700 * time.Millisecond

// summaryFunc renders the attachment-summary prompt for a record.
type summaryFunc func(rec *session.Record, photos, videos int) (string, []domain.Control)

// Coalescer debounces bursts of attachment messages into one summary prompt.
//
// Every attachment starts its own wait. When the wait ends, the invocation
// emits only if its message is still the record's newest attachment, so a
// burst produces a single summary posted by the last arrival.
type Coalescer struct {
	messenger Messenger
	quiet     time.Duration
	summary   summaryFunc
	logger    *slog.Logger

	// wait suspends the invocation; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error

	wg sync.WaitGroup
}

func newCoalescer(m Messenger, quiet time.Duration, summary summaryFunc, logger *slog.Logger) *Coalescer {
	if quiet <= 0 {
		quiet = defaultQuietInterval
	}
	return &Coalescer{
		messenger: m,
		quiet:     quiet,
		summary:   summary,
		logger:    logger,
		wait:      sleepContext,
	}
}

// Add appends the attachment carried by ref and schedules a summary. It returns
// once the attachment is recorded; the wait runs in its own goroutine.
func (c *Coalescer) Add(ctx context.Context, rec *session.Record, ref domain.MessageRef, a domain.Attachment) error {
	if _, err := rec.AppendAttachment(a, ref); err != nil {
		return fmt.Errorf("usecase: append attachment: %w", err)
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.settle(ctx, rec, ref); err != nil {
			c.logger.Error("attachment summary failed",
				"user_id", rec.User().ID, "message_id", ref.MessageID, "err", err)
		}
	}()
	return nil
}

// Wait blocks until every scheduled invocation has finished.
func (c *Coalescer) Wait() {
	c.wg.Wait()
}

func (c *Coalescer) settle(ctx context.Context, rec *session.Record, ref domain.MessageRef) error {
	if err := c.wait(ctx, c.quiet); err != nil {
		return nil
	}
	if !rec.IsLatestAttachment(ref) {
		return nil
	}

	unlock := rec.LockEmit()
	defer unlock()
	// A newer arrival may have landed while this one queued for the emit lock.
	if !rec.IsLatestAttachment(ref) {
		return nil
	}

	if old, ok := rec.TakeSummary(); ok {
		deleteBestEffort(ctx, c.messenger, c.logger, old)
	}

	photos, videos := domain.CountAttachments(rec.Attachments())
	text, controls := c.summary(rec, photos, videos)
	sent, err := c.messenger.SendMessage(ctx, rec.Chat(), text, controls)
	if err != nil {
		return upstreamError("send_attachment_summary", err)
	}
	if !rec.SetSummary(sent) {
		// Released while sending.
		deleteBestEffort(ctx, c.messenger, c.logger, sent)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
