package engine

import (
	"context"
	"sync"

	"github.com/devblac/chain-extractor/internal/source"
)

// DefaultQueueCapacity bounds read-ahead when no capacity is configured.
const DefaultQueueCapacity = 16

// Queue is a bounded FIFO between a reader and an emitter. A slot is held from
// Push until Ack, so popped blocks still count against capacity until they are
// durably published.
type Queue struct {
	slots     chan struct{}
	items     chan *source.ExtractedBlock
	closeOnce sync.Once
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		slots: make(chan struct{}, capacity),
		items: make(chan *source.ExtractedBlock, capacity),
	}
}

// Push blocks until a slot is free or ctx is done.
func (q *Queue) Push(ctx context.Context, block *source.ExtractedBlock) error {
	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	q.items <- block
	return nil
}

// Pop returns the next block. ok is false once the queue is closed and drained.
func (q *Queue) Pop(ctx context.Context) (block *source.ExtractedBlock, ok bool, err error) {
	select {
	case b, open := <-q.items:
		return b, open, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Ack releases the slot of a popped block.
func (q *Queue) Ack() {
	select {
	case <-q.slots:
	default:
	}
}

// Close signals that no more blocks will be pushed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.items) })
}

// Len is the number of occupied slots.
func (q *Queue) Len() int {
	return len(q.slots)
}

func (q *Queue) Cap() int {
	return cap(q.slots)
}
