package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/devblac/chain-extractor/internal/metrics"
	"github.com/devblac/chain-extractor/internal/retry"
	"github.com/devblac/chain-extractor/internal/source"
	"github.com/devblac/chain-extractor/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Reader walks a chain block by block for one mode and pushes extracted blocks
// into a queue. It never skips or repeats a block within a run.
type Reader struct {
	chain   storage.Blockchain
	mode    storage.Mode
	adapter source.Adapter
	queue   *Queue
	policy  retry.Policy
	metrics *metrics.Metrics
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	// cursor is the next block to extract; height the last observed safe height.
	cursor uint64
	height uint64
}

func newReader(p Pipeline, queue *Queue, policy retry.Policy, m *metrics.Metrics, log *slog.Logger, sleep func(context.Context, time.Duration) error) *Reader {
	r := &Reader{
		chain:   p.Blockchain,
		mode:    p.Mode,
		adapter: p.Adapter,
		queue:   queue,
		policy:  policy,
		metrics: m,
		log:     log,
		sleep:   sleep,
	}
	r.policy.OnRetry = func(error, int) {
		m.Retry(p.Blockchain.Name, string(p.Mode), "fetch")
	}
	return r
}

// Run extracts blocks until ctx is done or a rescan passes its target. The queue
// is closed on return.
func (r *Reader) Run(ctx context.Context) error {
	defer r.queue.Close()

	start, err := r.resolveStart(ctx)
	if err != nil {
		return err
	}
	r.cursor = start
	r.log.Info("reader started", "from", start, "queue_capacity", r.queue.Cap())

	for {
		if r.done() {
			r.log.Info("rescan target reached", "target", r.chain.RescanTargetBlock)
			return nil
		}
		if err := r.waitForHeight(ctx); err != nil {
			return err
		}
		blocks, err := r.fetch(ctx)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			b.Number = r.cursor
			b.Height = r.height
			if err := r.queue.Push(ctx, b); err != nil {
				return err
			}
			r.cursor++
			r.metrics.BlockExtracted(r.chain.Name, string(r.mode))
			r.metrics.SetQueueDepth(r.chain.Name, string(r.mode), r.queue.Len())
		}
	}
}

// resolveStart returns the first block to extract. A zero persisted cursor in dirty
// or confirmed mode means the pipeline never ran and starts at the current safe tip.
func (r *Reader) resolveStart(ctx context.Context) (uint64, error) {
	persisted := r.chain.Cursor(r.mode)
	if persisted > 0 || r.mode == storage.ModeRescan {
		return persisted + 1, nil
	}
	latest, err := r.latest(ctx)
	if err != nil {
		return 0, err
	}
	start := r.safe(latest)
	if start < 1 {
		start = 1
	}
	return start, nil
}

func (r *Reader) waitForHeight(ctx context.Context) error {
	first := true
	for r.cursor > r.height {
		if !first {
			if err := r.sleep(ctx, r.chain.BlockInterval()); err != nil {
				return err
			}
		}
		first = false

		latest, err := r.latest(ctx)
		if err != nil {
			return err
		}
		r.height = r.safe(latest)
		r.metrics.SetSafeHeight(r.chain.Name, string(r.mode), r.height)
	}
	return nil
}

func (r *Reader) latest(ctx context.Context) (uint64, error) {
	return retry.Do(ctx, r.policy, "poll chain height failed", func(ctx context.Context) (uint64, error) {
		return r.adapter.LatestBlockHeight(ctx)
	})
}

func (r *Reader) fetch(ctx context.Context) ([]*source.ExtractedBlock, error) {
	n := fetchWindow(r.cursor, r.height, r.chain.AdaptConcurrently, r.target())
	from := r.cursor
	return retry.Do(ctx, r.policy, "extract block failed", func(ctx context.Context) ([]*source.ExtractedBlock, error) {
		if n == 1 {
			b, err := r.adapter.ExtractBlock(ctx, from)
			if err != nil {
				return nil, err
			}
			return []*source.ExtractedBlock{b}, nil
		}

		out := make([]*source.ExtractedBlock, n)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				b, err := r.adapter.ExtractBlock(gctx, from+uint64(i))
				if err != nil {
					return err
				}
				out[i] = b
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (r *Reader) safe(latest uint64) uint64 {
	if !r.mode.Confirmed() {
		return latest
	}
	if latest < r.chain.Confirmations {
		return 0
	}
	return latest - r.chain.Confirmations
}

func (r *Reader) target() uint64 {
	if r.mode != storage.ModeRescan {
		return 0
	}
	return r.chain.RescanTargetBlock
}

func (r *Reader) done() bool {
	t := r.target()
	return t > 0 && r.cursor > t
}

// fetchWindow is how many consecutive blocks starting at cursor to extract at once.
// The available count excludes the block at safe height itself, so a window is only
// used when at least three blocks are ready. target, if set, caps the window.
func fetchWindow(cursor, height uint64, adaptConcurrently int, target uint64) int {
	var available uint64
	if height > cursor+1 {
		available = height - (cursor + 1)
	}
	window := uint64(0)
	if adaptConcurrently > 0 {
		window = min(uint64(adaptConcurrently), available)
	}
	if target > 0 && target >= cursor {
		window = min(window, target-cursor+1)
	}
	if window > 1 {
		return int(window)
	}
	return 1
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
