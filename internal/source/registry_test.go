package source

import (
	"context"
	"errors"
	"testing"
)

type nopAdapter struct{}

func (nopAdapter) LatestBlockHeight(context.Context) (uint64, error) { return 0, nil }
func (nopAdapter) ExtractBlock(context.Context, uint64) (*ExtractedBlock, error) {
	return &ExtractedBlock{}, nil
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register("bsc", func(Options) (Adapter, error) { return nopAdapter{}, nil })

	if _, err := reg.Build("BSC", Options{}); err != nil {
		t.Fatalf("build registered symbol: %v", err)
	}
	if _, err := reg.Build("DOGE", Options{}); !errors.Is(err, ErrUnknownAdapter) {
		t.Fatalf("expected ErrUnknownAdapter, got %v", err)
	}
	if got := reg.Symbols(); len(got) != 1 || got[0] != "BSC" {
		t.Fatalf("unexpected symbols: %v", got)
	}
}

func TestRegistryBuildWrapsConstructorError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("dial failed")
	reg.Register("ETH", func(Options) (Adapter, error) { return nil, boom })

	_, err := reg.Build("eth", Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected constructor error to be wrapped, got %v", err)
	}
	if errors.Is(err, ErrUnknownAdapter) {
		t.Fatalf("constructor failure must not look like an unknown adapter")
	}
}
