package source

import (
	"context"
	"errors"
)

var (
	// ErrNodeUnavailable wraps transport and RPC failures talking to the chain node.
	ErrNodeUnavailable = errors.New("node unavailable")
	// ErrMalformedBlock signals a block the node returned in an unexpected shape.
	ErrMalformedBlock = errors.New("malformed block")
	// ErrMalformedReceipt signals a receipt or log that could not be decoded.
	ErrMalformedReceipt = errors.New("malformed receipt")
	// ErrUnknownAdapter is returned when no adapter is registered for a chain symbol.
	ErrUnknownAdapter = errors.New("unknown adapter")
)

// Direction of a transfer relative to the address it is recorded for.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	// DirectionOutgoing is reserved; extraction never emits it.
	DirectionOutgoing Direction = "outgoing"
)

// Currency identifies a token contract.
type Currency struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// TransferEvent is one value transfer found in a block.
type TransferEvent struct {
	Blockchain string    `json:"blockchain" yaml:"blockchain"`
	Provider   string    `json:"provider" yaml:"provider"`
	Number     uint64    `json:"number" yaml:"number"`
	Timestamp  uint64    `json:"timestamp" yaml:"timestamp"`
	Address    string    `json:"address" yaml:"address"`
	TxHash     string    `json:"transactionHash" yaml:"transaction_hash"`
	Direction  Direction `json:"direction" yaml:"direction"`
	Currency   *Currency `json:"currency,omitempty" yaml:"currency,omitempty"`
	Amount     string    `json:"amount" yaml:"amount"`
	RawAmount  string    `json:"blockchainAmount,omitempty" yaml:"raw_amount,omitempty"`
	Index      *uint     `json:"index,omitempty" yaml:"index,omitempty"`
	Memo       string    `json:"memo,omitempty" yaml:"memo,omitempty"`
}

// ExtractedBlock is the ordered set of transfers found in one block.
type ExtractedBlock struct {
	Provider  string          `json:"provider" yaml:"provider"`
	Number    uint64          `json:"blocknumber" yaml:"number"`
	Height    uint64          `json:"height" yaml:"height"`
	Transfers []TransferEvent `json:"transactions" yaml:"transfers"`
}

// Adapter extracts transfer events from one chain.
type Adapter interface {
	LatestBlockHeight(ctx context.Context) (uint64, error)
	ExtractBlock(ctx context.Context, number uint64) (*ExtractedBlock, error)
}

// Options are adapter construction options stored alongside a blockchain record.
type Options struct {
	RPCURL  string `json:"rpc_url" yaml:"rpc_url"`
	Subsidy string `json:"subsidy,omitempty" yaml:"subsidy,omitempty"`
	Testnet bool   `json:"testnet,omitempty" yaml:"testnet,omitempty"`
	// ReceiptConcurrency caps parallel receipt fetches per block; 0 means unbounded.
	ReceiptConcurrency int `json:"receipt_concurrency,omitempty" yaml:"receipt_concurrency,omitempty"`
}
