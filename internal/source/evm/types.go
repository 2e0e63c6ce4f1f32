package evm

import (
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	SymbolETH = "ETH"
	SymbolBSC = "BSC"

	defaultTokenProvider = "ERC20"
	testnetSuffix        = "_TESTNET"
)

// Features toggles the per-chain parts of extraction.
type Features struct {
	// IncludeTokens enables decoding of ERC20-style Transfer logs.
	IncludeTokens bool
	// TokenProvider names the token standard, e.g. ERC20 or BEP20.
	TokenProvider string
	// NativeProvider names the native coin, e.g. ETH or BNB.
	NativeProvider string
}

// IndexStrategy optionally attaches a log index to a token transfer.
// A nil result attaches nothing.
type IndexStrategy interface {
	Index(provider string, number uint64, lg *types.Log) *uint
}

// IndexFunc adapts a function to IndexStrategy.
type IndexFunc func(provider string, number uint64, lg *types.Log) *uint

func (f IndexFunc) Index(provider string, number uint64, lg *types.Log) *uint {
	return f(provider, number, lg)
}

// NoIndex never attaches an index.
var NoIndex IndexStrategy = IndexFunc(func(string, uint64, *types.Log) *uint { return nil })

// LogIndexAfter attaches the log index for provider on blocks strictly above height.
// A zero log index is treated as absent.
func LogIndexAfter(provider string, height uint64) IndexStrategy {
	return IndexFunc(func(p string, number uint64, lg *types.Log) *uint {
		if p != provider || number <= height || lg.Index == 0 {
			return nil
		}
		idx := lg.Index
		return &idx
	})
}
