package source

import (
	"fmt"
	"sort"
	"strings"
)

// Constructor builds an adapter from stored options.
type Constructor func(opts Options) (Adapter, error)

// Registry maps chain symbols to adapter constructors. It is built once at startup
// and passed to whoever needs to construct adapters.
type Registry struct {
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

// Register adds or replaces the constructor for a symbol. Symbols are case-insensitive.
func (r *Registry) Register(symbol string, c Constructor) {
	r.constructors[strings.ToUpper(symbol)] = c
}

// Lookup returns the constructor for symbol or an error wrapping ErrUnknownAdapter.
func (r *Registry) Lookup(symbol string) (Constructor, error) {
	c, ok := r.constructors[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAdapter, symbol)
	}
	return c, nil
}

// Build looks up the symbol and constructs an adapter.
func (r *Registry) Build(symbol string, opts Options) (Adapter, error) {
	c, err := r.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	a, err := c(opts)
	if err != nil {
		return nil, fmt.Errorf("build %s adapter: %w", symbol, err)
	}
	return a, nil
}

func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.constructors))
	for s := range r.constructors {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
