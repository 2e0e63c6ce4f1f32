package engine

import (
	"context"
	"testing"
	"time"

	"github.com/devblac/chain-extractor/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueHoldsSlotUntilAck(t *testing.T) {
	q := NewQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &source.ExtractedBlock{Number: 1}))
	require.NoError(t, q.Push(ctx, &source.ExtractedBlock{Number: 2}))

	b, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), b.Number)
	assert.Equal(t, 2, q.Len(), "popped block still holds its slot")

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Push(short, &source.ExtractedBlock{Number: 3}), context.DeadlineExceeded)

	q.Ack()
	require.NoError(t, q.Push(ctx, &source.ExtractedBlock{Number: 3}))
	assert.Equal(t, 2, q.Len())
}

func TestQueueCloseDrains(t *testing.T) {
	q := NewQueue(0)
	ctx := context.Background()
	assert.Equal(t, DefaultQueueCapacity, q.Cap())

	require.NoError(t, q.Push(ctx, &source.ExtractedBlock{Number: 7}))
	q.Close()
	q.Close()

	b, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), b.Number)

	_, ok, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueuePopHonoursContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
