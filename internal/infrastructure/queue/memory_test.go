package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueLeaseHidesMessage(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("commands")
	now := time.Unix(1000, 0)
	q.now = func() time.Time { return now }

	require.NoError(t, q.Send(ctx, "a"))
	require.NoError(t, q.Send(ctx, "b"))

	got, err := q.Receive(ctx, 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Body)
	assert.Equal(t, 1, got[0].DequeueCount)

	got, err = q.Receive(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Body)

	now = now.Add(31 * time.Second)
	got, err = q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, got[0].DequeueCount)
}

func TestMemoryQueueZeroVisibilityLeavesMessageVisible(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("responses")
	require.NoError(t, q.Send(ctx, "x"))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	second, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestMemoryQueueDeleteNeedsCurrentReceipt(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("responses")
	require.NoError(t, q.Send(ctx, "x"))

	stale, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	fresh, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, q.Delete(ctx, stale[0]), ErrMessageNotFound)
	assert.NoError(t, q.Delete(ctx, fresh[0]))
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueueRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := NewMemoryQueue("x")
	assert.Error(t, q.Send(ctx, "x"))
	_, err := q.Receive(ctx, 1, 0)
	assert.Error(t, err)
}
