package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-bot/internal/config"
	"support-bot/internal/domain"
)

func TestCoalescer_BurstEmitsSingleSummary(t *testing.T) {
	f := newFixture(t)
	f.toAttachments(t)
	before := len(f.messenger.sentSnapshot())

	for i := 0; i < 5; i++ {
		f.photo(t)
	}
	f.gate.awaitWaiters(t, 5)
	f.gate.open()
	f.svc.Wait()

	sent := f.messenger.sentSnapshot()[before:]
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Text, "5 photo(s) and 0 video(s)")

	live, ok := f.record(t).LastSummary()
	require.True(t, ok)
	require.Equal(t, sent[0].Ref, live)
	require.True(t, f.record(t).IsTracked(live))
}

func TestCoalescer_SpacedArrivalsSupersede(t *testing.T) {
	f := newFixture(t)
	f.toAttachments(t)

	f.photo(t)
	f.gate.awaitWaiters(t, 1)
	f.gate.open()
	f.svc.Wait()
	first := f.messenger.last()
	require.Contains(t, first.Text, "1 photo(s) and 0 video(s)")

	f.video(t)
	f.gate.awaitWaiters(t, 1)
	f.gate.open()
	f.svc.Wait()
	second := f.messenger.last()
	require.Contains(t, second.Text, "1 photo(s) and 1 video(s)")
	require.NotEqual(t, first.Ref, second.Ref)

	f.messenger.mu.Lock()
	events := append([]string(nil), f.messenger.events...)
	f.messenger.mu.Unlock()
	require.Equal(t, []string{"delete:5", "send:6"}, events[len(events)-2:])
	require.Equal(t, 5, first.Ref.MessageID)

	rec := f.record(t)
	require.False(t, rec.IsTracked(first.Ref))
	live, _ := rec.LastSummary()
	require.Equal(t, second.Ref, live)
}

func TestCoalescer_OutOfOrderWakeups(t *testing.T) {
	f := newFixture(t)
	f.toAttachments(t)
	before := len(f.messenger.sentSnapshot())

	f.photo(t)
	f.photo(t)
	f.gate.awaitWaiters(t, 2)

	// Wake only the newest invocation first.
	f.gate.mu.Lock()
	newest := f.gate.waiters[1]
	f.gate.waiters = f.gate.waiters[:1]
	f.gate.mu.Unlock()
	close(newest)

	require.Eventually(t, func() bool {
		return len(f.messenger.sentSnapshot()) == before+1
	}, 2*time.Second, 5*time.Millisecond)

	f.gate.open()
	f.svc.Wait()
	require.Len(t, f.messenger.sentSnapshot(), before+1)
	require.Contains(t, f.messenger.last().Text, "2 photo(s)")
}

func TestCoalescer_NoSummaryAfterFinish(t *testing.T) {
	f := newFixture(t)
	f.toAttachments(t)
	attachPrompt := f.messenger.last()

	f.photo(t)
	f.gate.awaitWaiters(t, 1)
	require.NoError(t, f.press(t, author, attachPrompt, config.DefaultMessages().ButtonSkip))
	require.Len(t, f.messenger.batches, 1)

	f.gate.open()
	f.svc.Wait()
	require.Empty(t, f.messenger.sentContaining("photo(s)"))
}

// reportHook runs onReport while the permanent report is being sent.
type reportHook struct {
	*fakeMessenger
	onReport func()
}

func (h *reportHook) SendMessage(ctx context.Context, chat domain.ChatRef, text string, controls []domain.Control) (domain.MessageRef, error) {
	if strings.HasPrefix(text, config.DefaultMessages().ReportTitle+":") && h.onReport != nil {
		h.onReport()
	}
	return h.fakeMessenger.SendMessage(ctx, chat, text, controls)
}

func TestCoalescer_NoSummaryWhileReportIsSent(t *testing.T) {
	f := newFixture(t)
	hook := &reportHook{fakeMessenger: f.messenger}
	f.svc.messenger = hook
	f.svc.coalescer.messenger = hook
	f.toAttachments(t)
	attachPrompt := f.messenger.last()

	f.photo(t)
	f.gate.awaitWaiters(t, 1)
	hook.onReport = func() {
		// Wake the pending invocation after finish and before release.
		f.gate.open()
		f.svc.coalescer.Wait()
	}
	require.NoError(t, f.press(t, author, attachPrompt, config.DefaultMessages().ButtonSkip))

	require.Empty(t, f.messenger.sentContaining("photo(s)"))
	require.Len(t, f.messenger.batches, 1)
	require.Zero(t, f.reg.Len())
}

func TestCoalescer_LateSummaryIsDeletedWhenReleased(t *testing.T) {
	f := newFixture(t)
	f.toAttachments(t)
	rec := f.record(t)

	m := &blockingMessenger{fakeMessenger: f.messenger, release: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := newCoalescer(m, time.Millisecond, f.svc.summaryPrompt, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, c.Add(context.Background(), rec, f.ref(), domain.Attachment{Kind: domain.AttachmentPhoto, FileID: "p"}))
	<-m.entered
	f.reg.Release(author.ID)
	close(m.release)
	c.Wait()

	summary := f.messenger.last()
	require.Contains(t, summary.Text, "photo(s)")
	require.Contains(t, f.messenger.deletedSnapshot(), summary.Ref)
}

func TestCoalescer_RealTimerDebounce(t *testing.T) {
	f := newFixture(t)
	f.toAttachments(t)
	f.svc.coalescer.wait = sleepContext
	f.svc.coalescer.quiet = 150 * time.Millisecond
	before := len(f.messenger.sentSnapshot())

	for i := 0; i < 5; i++ {
		f.photo(t)
		time.Sleep(10 * time.Millisecond)
	}
	f.svc.Wait()

	sent := f.messenger.sentSnapshot()[before:]
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Text, "5 photo(s)")
}

func TestCoalescer_ContextCancelAbandons(t *testing.T) {
	f := newFixture(t)
	f.toAttachments(t)
	f.svc.coalescer.wait = sleepContext
	f.svc.coalescer.quiet = time.Hour
	before := len(f.messenger.sentSnapshot())

	ctx, cancel := context.WithCancel(context.Background())
	m := domain.Message{
		Ref: f.ref(), Chat: group, ChatType: domain.ChatSupergroup, From: author,
		Media: &domain.Attachment{Kind: domain.AttachmentPhoto, FileID: "p"},
	}
	require.NoError(t, f.svc.HandleMessage(ctx, m))
	cancel()
	f.svc.Wait()
	require.Len(t, f.messenger.sentSnapshot(), before)
}

// blockingMessenger holds SendMessage until release is closed.
type blockingMessenger struct {
	*fakeMessenger
	release chan struct{}
	entered chan struct{}
}

func (b *blockingMessenger) SendMessage(ctx context.Context, chat domain.ChatRef, text string, controls []domain.Control) (domain.MessageRef, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeMessenger.SendMessage(ctx, chat, text, controls)
}
