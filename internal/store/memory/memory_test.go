package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/huddle-server/internal/core"
)

func TestAppendAssignsContiguousSequence(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := range 10 {
		msg, err := s.Append(ctx, "general", "alice", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		require.Equal(t, int64(i+1), msg.ID)
		require.Equal(t, "general", msg.Room)
		require.Equal(t, "alice", msg.From)
	}
}

func TestAppendRejectsBlankBody(t *testing.T) {
	s := New()

	_, err := s.Append(context.Background(), "general", "alice", "   ")
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	// A rejected append does not consume a sequence number.
	msg, err := s.Append(context.Background(), "general", "alice", "ok")
	require.NoError(t, err)
	require.Equal(t, int64(1), msg.ID)
}

func TestCreatedAtNeverGoesBackwards(t *testing.T) {
	s := New()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour), base.Add(time.Second)}
	s.now = func() time.Time {
		next := clock[0]
		clock = clock[1:]
		return next
	}

	ctx := context.Background()
	first, err := s.Append(ctx, "general", "alice", "one")
	require.NoError(t, err)
	second, err := s.Append(ctx, "general", "alice", "two")
	require.NoError(t, err)
	third, err := s.Append(ctx, "general", "alice", "three")
	require.NoError(t, err)

	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.True(t, third.CreatedAt.After(second.CreatedAt))
}

func TestRecentWindow(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := range 250 {
		_, err := s.Append(ctx, "general", "alice", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, "other", "bob", "elsewhere")
	require.NoError(t, err)

	msgs, err := s.Recent(ctx, "general", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 50)
	require.Equal(t, int64(201), msgs[0].ID)
	require.Equal(t, int64(250), msgs[49].ID)

	again, err := s.Recent(ctx, "general", 50)
	require.NoError(t, err)
	require.Equal(t, msgs, again)

	clamped, err := s.Recent(ctx, "general", 1000)
	require.NoError(t, err)
	require.Len(t, clamped, core.MaxHistoryLimit)

	none, err := s.Recent(ctx, "general", 0)
	require.NoError(t, err)
	require.Empty(t, none)

	other, err := s.Recent(ctx, "other", 50)
	require.NoError(t, err)
	require.Len(t, other, 1)
	require.Equal(t, int64(251), other[0].ID)
}

func TestClosedStoreFails(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())

	_, err := s.Append(context.Background(), "general", "alice", "hi")
	require.ErrorIs(t, err, core.ErrStoreClosed)

	_, err = s.Recent(context.Background(), "general", 10)
	require.ErrorIs(t, err, core.ErrStoreClosed)
}
