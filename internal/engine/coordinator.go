package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devblac/chain-extractor/internal/metrics"
	"github.com/devblac/chain-extractor/internal/retry"
	"github.com/devblac/chain-extractor/internal/sink"
	"github.com/devblac/chain-extractor/internal/source"
	"github.com/devblac/chain-extractor/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the coordinator needs.
type Store interface {
	CursorStore
	ListBlockchains(ctx context.Context, enabledOnly bool) ([]storage.Blockchain, error)
	FinishRescan(ctx context.Context, name string) error
}

// Settings tune every pipeline.
type Settings struct {
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	QueueCapacity  int
}

// Pipeline is one (blockchain, mode) pair with its adapter.
type Pipeline struct {
	Blockchain storage.Blockchain
	Mode       storage.Mode
	Adapter    source.Adapter
}

// Coordinator starts a reader and an emitter for every runnable pipeline.
type Coordinator struct {
	store    Store
	registry *source.Registry
	sender   sink.Sender
	settings Settings
	metrics  *metrics.Metrics
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewCoordinator builds a coordinator. metrics may be nil.
func NewCoordinator(store Store, registry *source.Registry, sender sink.Sender, settings Settings, m *metrics.Metrics, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	if settings.QueueCapacity <= 0 {
		settings.QueueCapacity = DefaultQueueCapacity
	}
	if settings.RetryDelay <= 0 {
		settings.RetryDelay = retry.DefaultDelay
	}
	return &Coordinator{
		store:    store,
		registry: registry,
		sender:   sender,
		settings: settings,
		metrics:  m,
		log:      log,
		sleep:    sleepCtx,
	}
}

// Modes lists the pipelines a blockchain runs: dirty only with a positive
// confirmation depth, confirmed always, rescan while a request is active.
func Modes(b storage.Blockchain) []storage.Mode {
	var modes []storage.Mode
	if b.Confirmations > 0 {
		modes = append(modes, storage.ModeDirty)
	}
	modes = append(modes, storage.ModeConfirmed)
	if b.RescanActive {
		modes = append(modes, storage.ModeRescan)
	}
	return modes
}

// Build creates a pipeline per enabled blockchain and mode. Blockchains whose
// adapter cannot be built are logged and skipped.
func (c *Coordinator) Build(ctx context.Context) ([]Pipeline, error) {
	chains, err := c.store.ListBlockchains(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list blockchains: %w", err)
	}

	var pipelines []Pipeline
	for _, b := range chains {
		for _, mode := range Modes(b) {
			adapter, err := c.registry.Build(b.Symbol, b.Options)
			if err != nil {
				if errors.Is(err, source.ErrUnknownAdapter) {
					c.log.Error("no adapter for blockchain", "blockchain", b.Name, "symbol", b.Symbol, "mode", mode)
				} else {
					c.log.Error("build adapter", "blockchain", b.Name, "mode", mode, "error", err)
				}
				continue
			}
			pipelines = append(pipelines, Pipeline{Blockchain: b, Mode: mode, Adapter: adapter})
		}
	}
	return pipelines, nil
}

// Run builds and runs all pipelines until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	pipelines, err := c.Build(ctx)
	if err != nil {
		return err
	}
	if len(pipelines) == 0 {
		c.log.Warn("no runnable pipelines")
		return nil
	}
	return c.RunPipelines(ctx, pipelines)
}

// RunPipelines runs every pipeline concurrently. Pipelines do not share a
// cancellation scope, so a failing pipeline never stops the others.
func (c *Coordinator) RunPipelines(ctx context.Context, pipelines []Pipeline) error {
	var g errgroup.Group
	for _, p := range pipelines {
		p := p
		g.Go(func() error {
			err := c.runPipeline(ctx, p)
			if err != nil && !errors.Is(err, context.Canceled) {
				c.log.Error("pipeline stopped", "blockchain", p.Blockchain.Name, "mode", p.Mode, "error", err)
				return fmt.Errorf("%s/%s: %w", p.Blockchain.Name, p.Mode, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Coordinator) runPipeline(ctx context.Context, p Pipeline) error {
	log := c.log.With("blockchain", p.Blockchain.Name, "mode", p.Mode)
	policy := retry.Policy{
		Delay:          c.settings.RetryDelay,
		MaxRetries:     retry.Unlimited,
		AttemptTimeout: c.settings.AttemptTimeout,
		Logger:         log,
	}

	queue := NewQueue(c.settings.QueueCapacity)
	reader := newReader(p, queue, policy, c.metrics, log, c.sleep)
	emitter := newEmitter(p, queue, c.sender, c.store, policy, c.metrics, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reader.Run(gctx) })
	g.Go(func() error { return emitter.Run(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	if p.Mode == storage.ModeRescan {
		_, err := retry.Do(ctx, policy, "finish rescan failed", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.store.FinishRescan(ctx, p.Blockchain.Name)
		})
		if err != nil {
			return err
		}
		log.Info("rescan finished")
	}
	return nil
}
