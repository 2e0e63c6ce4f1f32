package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devblac/chain-extractor/internal/sink"
	"github.com/devblac/chain-extractor/internal/source"
	"github.com/devblac/chain-extractor/internal/storage"
)

type fakeAdapter struct {
	height atomic.Uint64
	delay  time.Duration

	mu          sync.Mutex
	heightFails int
	hangs       int
	extractFail map[uint64]int
	extracted   []uint64

	calls       atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func newFakeAdapter(height uint64) *fakeAdapter {
	f := &fakeAdapter{extractFail: map[uint64]int{}}
	f.height.Store(height)
	return f
}

func (f *fakeAdapter) LatestBlockHeight(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heightFails > 0 {
		f.heightFails--
		return 0, fmt.Errorf("%w: connection refused", source.ErrNodeUnavailable)
	}
	return f.height.Load(), nil
}

func (f *fakeAdapter) ExtractBlock(ctx context.Context, number uint64) (*source.ExtractedBlock, error) {
	f.calls.Add(1)
	f.mu.Lock()
	hang := f.hangs != 0
	if f.hangs > 0 {
		f.hangs--
	}
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxInFlight.Load()
		if cur <= prev || f.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.extractFail[number] > 0 {
		f.extractFail[number]--
		return nil, fmt.Errorf("%w: timeout", source.ErrNodeUnavailable)
	}
	f.extracted = append(f.extracted, number)
	return &source.ExtractedBlock{
		Provider: "TEST",
		Transfers: []source.TransferEvent{{
			Blockchain: "TEST",
			Provider:   "TST",
			Number:     number,
			TxHash:     fmt.Sprintf("0x%x", number),
			Direction:  source.DirectionIncoming,
			Amount:     "1",
		}},
	}, nil
}

func (f *fakeAdapter) extractedBlocks() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.extracted...)
}

type fakeStore struct {
	mu       sync.Mutex
	chains   map[string]*storage.Blockchain
	advances map[storage.Mode][]uint64
	finished []string
}

func newFakeStore(chains ...storage.Blockchain) *fakeStore {
	s := &fakeStore{chains: map[string]*storage.Blockchain{}, advances: map[storage.Mode][]uint64{}}
	for i := range chains {
		b := chains[i]
		s.chains[b.Name] = &b
	}
	return s
}

func (s *fakeStore) ListBlockchains(_ context.Context, enabledOnly bool) ([]storage.Blockchain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Blockchain
	for _, b := range s.chains {
		if enabledOnly && !b.Enabled {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) AdvanceCursor(_ context.Context, name string, mode storage.Mode, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.chains[name]
	if !ok {
		return storage.ErrNotFound
	}
	s.advances[mode] = append(s.advances[mode], n)
	switch mode {
	case storage.ModeDirty:
		b.DirtyProcessedBlock = max(b.DirtyProcessedBlock, n)
	case storage.ModeConfirmed:
		b.ConfirmedProcessedBlock = max(b.ConfirmedProcessedBlock, n)
	case storage.ModeRescan:
		b.RescanProcessedBlock = max(b.RescanProcessedBlock, n)
	}
	return nil
}

func (s *fakeStore) FinishRescan(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chains[name].RescanActive = false
	s.finished = append(s.finished, name)
	return nil
}

func (s *fakeStore) cursor(name string, mode storage.Mode) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chains[name].Cursor(mode)
}

func (s *fakeStore) advanced(mode storage.Mode) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.advances[mode]...)
}

type recordingSender struct {
	mu       sync.Mutex
	fails    int
	attempts int
	payloads []sink.Payload
}

func (r *recordingSender) Publish(_ context.Context, p sink.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.fails > 0 {
		r.fails--
		return fmt.Errorf("%w: upstream 503", sink.ErrPublish)
	}
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recordingSender) numbers(mode storage.Mode) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint64
	for _, p := range r.payloads {
		if p.Mode == mode {
			out = append(out, p.Block.Number)
		}
	}
	return out
}

func (r *recordingSender) last(mode storage.Mode) uint64 {
	n := r.numbers(mode)
	if len(n) == 0 {
		return 0
	}
	return n[len(n)-1]
}

// syncBuffer collects log output written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastSleep(ctx context.Context, _ time.Duration) error {
	select {
	case <-time.After(time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func testRegistry(adapter source.Adapter) *source.Registry {
	reg := source.NewRegistry()
	reg.Register("TEST", func(source.Options) (source.Adapter, error) { return adapter, nil })
	return reg
}

func newTestCoordinator(t *testing.T, store Store, adapter source.Adapter, sender sink.Sender, log *slog.Logger) *Coordinator {
	t.Helper()
	if log == nil {
		log = discardLogger()
	}
	c := NewCoordinator(store, testRegistry(adapter), sender, Settings{RetryDelay: time.Millisecond, QueueCapacity: 4}, nil, log)
	c.sleep = fastSleep
	return c
}

// runAsync starts fn and returns a function that cancels it and returns its error.
func runAsync(t *testing.T, fn func(ctx context.Context) error) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatalf("pipeline did not stop")
			return nil
		}
	}
}
