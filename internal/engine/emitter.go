package engine

import (
	"context"
	"log/slog"

	"github.com/devblac/chain-extractor/internal/metrics"
	"github.com/devblac/chain-extractor/internal/retry"
	"github.com/devblac/chain-extractor/internal/sink"
	"github.com/devblac/chain-extractor/internal/storage"
)

// CursorStore persists per-mode progress.
type CursorStore interface {
	AdvanceCursor(ctx context.Context, name string, mode storage.Mode, n uint64) error
}

// Emitter drains a queue in order, publishing each block and then advancing the
// persisted cursor. A block is only acknowledged after the sink accepted it.
type Emitter struct {
	chain   string
	mode    storage.Mode
	queue   *Queue
	sender  sink.Sender
	cursors CursorStore
	policy  retry.Policy
	metrics *metrics.Metrics
	log     *slog.Logger
}

func newEmitter(p Pipeline, queue *Queue, sender sink.Sender, cursors CursorStore, policy retry.Policy, m *metrics.Metrics, log *slog.Logger) *Emitter {
	return &Emitter{
		chain:   p.Blockchain.Name,
		mode:    p.Mode,
		queue:   queue,
		sender:  sender,
		cursors: cursors,
		policy:  policy,
		metrics: m,
		log:     log,
	}
}

// Run returns nil once the queue is closed and drained.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		block, ok, err := e.queue.Pop(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := e.emit(ctx, block.Number, sink.Payload{Blockchain: e.chain, Mode: e.mode, Block: *block}); err != nil {
			return err
		}
	}
}

func (e *Emitter) emit(ctx context.Context, number uint64, payload sink.Payload) error {
	mode := string(e.mode)

	publish := e.policy
	publish.OnRetry = func(error, int) { e.metrics.Retry(e.chain, mode, "publish") }
	if _, err := retry.Do(ctx, publish, "publish block failed", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.sender.Publish(ctx, payload)
	}); err != nil {
		return err
	}
	e.queue.Ack()
	e.metrics.SetQueueDepth(e.chain, mode, e.queue.Len())

	advance := e.policy
	advance.OnRetry = func(error, int) { e.metrics.Retry(e.chain, mode, "cursor") }
	if _, err := retry.Do(ctx, advance, "advance cursor failed", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.cursors.AdvanceCursor(ctx, e.chain, e.mode, number)
	}); err != nil {
		return err
	}

	e.metrics.BlockEmitted(e.chain, mode, len(payload.Block.Transfers))
	e.metrics.SetCursor(e.chain, mode, number)
	e.log.Info("block written", "block", number, "transfers", len(payload.Block.Transfers))
	return nil
}
