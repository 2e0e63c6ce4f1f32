package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/devblac/chain-extractor/internal/source"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// Extractor turns EVM blocks into native and token transfer events.
type Extractor struct {
	client             BlockClient
	chain              string
	features           Features
	index              IndexStrategy
	subsidy            string
	testnet            bool
	receiptConcurrency int
}

// NewExtractor builds an extractor for chain. A nil index strategy attaches nothing.
func NewExtractor(client BlockClient, chain string, features Features, index IndexStrategy, opts source.Options) *Extractor {
	if index == nil {
		index = NoIndex
	}
	return &Extractor{
		client:             client,
		chain:              chain,
		features:           features,
		index:              index,
		subsidy:            strings.ToLower(opts.Subsidy),
		testnet:            opts.Testnet,
		receiptConcurrency: opts.ReceiptConcurrency,
	}
}

// LatestBlockHeight returns the node's current block number.
func (e *Extractor) LatestBlockHeight(ctx context.Context) (uint64, error) {
	n, err := e.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: block number: %w", source.ErrNodeUnavailable, err)
	}
	return n, nil
}

// ExtractBlock fetches block number with its receipts and returns its transfers in
// on-chain transaction order.
func (e *Extractor) ExtractBlock(ctx context.Context, number uint64) (*source.ExtractedBlock, error) {
	block, err := e.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %w", source.ErrNodeUnavailable, number, err)
	}
	if block == nil {
		return nil, fmt.Errorf("%w: block %d is empty response", source.ErrMalformedBlock, number)
	}

	out := &source.ExtractedBlock{
		Provider:  e.chain,
		Number:    number,
		Transfers: []source.TransferEvent{},
	}

	txs := block.Transactions()
	if len(txs) == 0 {
		return out, nil
	}

	receipts, err := e.fetchReceipts(ctx, txs)
	if err != nil {
		return nil, err
	}

	timestamp := block.Time()
	tokenProvider := e.tokenProvider()

	for i, tx := range txs {
		receipt := receipts[i]
		if receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
			continue
		}

		native, ok, err := e.nativeTransfer(tx, number, timestamp)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Transfers = append(out.Transfers, native)
		}

		if !e.features.IncludeTokens {
			continue
		}

		for _, lg := range receipt.Logs {
			tt, ok, err := MatchTransfer(lg)
			if err != nil {
				return nil, fmt.Errorf("tx %s log %d: %w", tx.Hash().Hex(), lg.Index, err)
			}
			if !ok {
				continue
			}
			out.Transfers = append(out.Transfers, source.TransferEvent{
				Blockchain: e.chain,
				Provider:   tokenProvider,
				Number:     number,
				Timestamp:  timestamp,
				Address:    strings.ToLower(tt.To.Hex()),
				TxHash:     tx.Hash().Hex(),
				Direction:  source.DirectionIncoming,
				Currency:   &source.Currency{ID: strings.ToLower(lg.Address.Hex())},
				Amount:     tt.Value.String(),
				RawAmount:  hexutil.Encode(lg.Data),
				Index:      e.index.Index(tokenProvider, number, lg),
			})
		}
	}

	return out, nil
}

// fetchReceipts fetches all receipts concurrently; result i belongs to txs[i].
// Receipts the node does not know are left nil.
func (e *Extractor) fetchReceipts(ctx context.Context, txs types.Transactions) ([]*types.Receipt, error) {
	receipts := make([]*types.Receipt, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	if e.receiptConcurrency > 0 {
		g.SetLimit(e.receiptConcurrency)
	}
	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			r, err := e.client.TransactionReceipt(gctx, tx.Hash())
			if errors.Is(err, ethereum.NotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: receipt %s: %w", source.ErrNodeUnavailable, tx.Hash().Hex(), err)
			}
			receipts[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (e *Extractor) nativeTransfer(tx *types.Transaction, number, timestamp uint64) (source.TransferEvent, bool, error) {
	to := tx.To()
	if to == nil || tx.Value().Sign() == 0 {
		return source.TransferEvent{}, false, nil
	}

	if e.subsidy != "" {
		if e.isSubsidy(*to) {
			return source.TransferEvent{}, false, nil
		}
		from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
		if err != nil {
			return source.TransferEvent{}, false, fmt.Errorf("%w: sender of %s: %w", source.ErrMalformedBlock, tx.Hash().Hex(), err)
		}
		if e.isSubsidy(from) {
			return source.TransferEvent{}, false, nil
		}
	}

	return source.TransferEvent{
		Blockchain: e.chain,
		Provider:   e.features.NativeProvider,
		Number:     number,
		Timestamp:  timestamp,
		Address:    strings.ToLower(to.Hex()),
		TxHash:     tx.Hash().Hex(),
		Direction:  source.DirectionIncoming,
		Amount:     tx.Value().String(),
	}, true, nil
}

func (e *Extractor) isSubsidy(addr common.Address) bool {
	return strings.ToLower(addr.Hex()) == e.subsidy
}

func (e *Extractor) tokenProvider() string {
	name := e.features.TokenProvider
	if name == "" {
		name = defaultTokenProvider
	}
	if e.testnet {
		name += testnetSuffix
	}
	return name
}
