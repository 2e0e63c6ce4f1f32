package health

import (
	"context"
	"fmt"
	"sort"

	"github.com/devblac/chain-extractor/internal/source"
)

// HeightSource is anything that can report the chain height.
type HeightSource interface {
	LatestBlockHeight(ctx context.Context) (uint64, error)
}

// RPCChecker pings the node behind every configured blockchain.
type RPCChecker struct {
	sources map[string]HeightSource
}

// NewRPCChecker creates a checker keyed by blockchain name.
func NewRPCChecker(sources map[string]HeightSource) *RPCChecker {
	return &RPCChecker{sources: sources}
}

// FromAdapters wraps adapters keyed by blockchain name.
func FromAdapters(adapters map[string]source.Adapter) *RPCChecker {
	sources := make(map[string]HeightSource, len(adapters))
	for name, a := range adapters {
		sources[name] = a
	}
	return NewRPCChecker(sources)
}

// Ping checks all configured RPC endpoints and reports the first failing one by name.
func (c *RPCChecker) Ping(ctx context.Context) error {
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var firstErr error
	for _, name := range names {
		if _, err := c.sources[name].LatestBlockHeight(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("blockchain %s: %w", name, err)
		}
	}
	return firstErr
}
