package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"support-bot/internal/domain"
)

var (
	alice = domain.User{ID: 1, Username: "alice"}
	bob   = domain.User{ID: 2, Username: "bob"}
	group = domain.ChatRef{ID: -100, ThreadID: 7}
)

func msg(id int) domain.MessageRef {
	return domain.MessageRef{ChatID: group.ID, MessageID: id}
}

func TestGetOrCreate_CreatesFreshRecord(t *testing.T) {
	reg := NewRegistry()
	rec, created := reg.GetOrCreate(alice, group)
	require.True(t, created)
	require.Equal(t, domain.StepAwaitingBrief, rec.Step())
	require.Equal(t, alice, rec.User())
	require.Equal(t, group, rec.Chat())
	require.NotEmpty(t, rec.SessionID())
	require.Empty(t, rec.Tracked())
	require.Equal(t, 1, reg.Len())
}

func TestGetOrCreate_ReturnsExisting(t *testing.T) {
	reg := NewRegistry()
	first, _ := reg.GetOrCreate(alice, group)
	second, created := reg.GetOrCreate(alice, domain.ChatRef{ID: -200})
	require.False(t, created)
	require.Same(t, first, second)
	require.Equal(t, group, second.Chat())
}

func TestGetOrCreate_ConcurrentSameUserSingleRecord(t *testing.T) {
	reg := NewRegistry()
	const n = 64
	recs := make([]*Record, n)
	var created sync.Map
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, c := reg.GetOrCreate(alice, group)
			recs[i] = rec
			if c {
				created.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	created.Range(func(_, _ any) bool { count++; return true })
	require.Equal(t, 1, count)
	for _, rec := range recs {
		require.Same(t, recs[0], rec)
	}
	require.Equal(t, 1, reg.Len())
}

func TestGetOrCreate_ConcurrentDistinctUsers(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			rec, _ := reg.GetOrCreate(domain.User{ID: id}, group)
			rec.Track(domain.MessageRef{ChatID: group.ID, MessageID: int(id)})
		}(int64(i))
	}
	wg.Wait()
	require.Equal(t, 50, reg.Len())
}

func TestGet_DoesNotCreate(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get(alice.ID)
	require.False(t, ok)
	require.Zero(t, reg.Len())
}

func TestRelease_ReturnsTrackedAndRemoves(t *testing.T) {
	reg := NewRegistry()
	rec, _ := reg.GetOrCreate(alice, group)
	require.True(t, rec.Track(msg(1), msg(2), msg(1)))

	refs := reg.Release(alice.ID)
	require.Equal(t, []domain.MessageRef{msg(1), msg(2)}, refs)
	require.True(t, rec.Released())
	_, ok := reg.Get(alice.ID)
	require.False(t, ok)
}

func TestRelease_Idempotent(t *testing.T) {
	reg := NewRegistry()
	rec, _ := reg.GetOrCreate(alice, group)
	rec.Track(msg(1))

	require.Len(t, reg.Release(alice.ID), 1)
	require.Empty(t, reg.Release(alice.ID))
	require.Empty(t, reg.Release(bob.ID))
}

func TestRelease_TrackAfterReleaseIsRefused(t *testing.T) {
	reg := NewRegistry()
	rec, _ := reg.GetOrCreate(alice, group)
	reg.Release(alice.ID)

	require.False(t, rec.Track(msg(9)))
	require.False(t, rec.SetSummary(msg(10)))
	_, err := rec.AppendAttachment(domain.Attachment{Kind: domain.AttachmentPhoto, FileID: "f"}, msg(11))
	require.ErrorIs(t, err, ErrReleased)
}

func TestReleaseRecord_IgnoresSupersededRecord(t *testing.T) {
	reg := NewRegistry()
	old, _ := reg.GetOrCreate(alice, group)
	old.Track(msg(1))
	reg.Release(alice.ID)

	fresh, created := reg.GetOrCreate(alice, group)
	require.True(t, created)
	require.NotEqual(t, old.SessionID(), fresh.SessionID())
	fresh.Track(msg(2))

	require.Empty(t, reg.ReleaseRecord(old))
	require.Equal(t, 1, reg.Len())
	require.Equal(t, []domain.MessageRef{msg(2)}, reg.ReleaseRecord(fresh))
	require.Zero(t, reg.Len())
}
