package evm

import (
	"errors"

	"github.com/devblac/chain-extractor/internal/source"
)

// bep20IndexHeight is the BSC block after which BEP20 transfers carry their log index.
const bep20IndexHeight = 14_250_000

// NewETH builds the default EVM variant.
func NewETH(client BlockClient, opts source.Options) *Extractor {
	return NewExtractor(client, SymbolETH, Features{
		IncludeTokens:  true,
		TokenProvider:  "ERC20",
		NativeProvider: "ETH",
	}, NoIndex, opts)
}

// NewBSC builds the BNB Smart Chain variant.
func NewBSC(client BlockClient, opts source.Options) *Extractor {
	return NewExtractor(client, SymbolBSC, Features{
		IncludeTokens:  true,
		TokenProvider:  "BEP20",
		NativeProvider: "BNB",
	}, LogIndexAfter("BEP20", bep20IndexHeight), opts)
}

// Register adds the EVM chain variants to reg.
func Register(reg *source.Registry) {
	reg.Register(SymbolETH, dial(NewETH))
	reg.Register(SymbolBSC, dial(NewBSC))
}

func dial(build func(BlockClient, source.Options) *Extractor) source.Constructor {
	return func(opts source.Options) (source.Adapter, error) {
		if opts.RPCURL == "" {
			return nil, errors.New("rpc_url is required")
		}
		cli, err := NewRPCClient(opts.RPCURL)
		if err != nil {
			return nil, err
		}
		return build(cli, opts), nil
	}
}
