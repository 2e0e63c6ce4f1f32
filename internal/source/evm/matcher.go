package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/devblac/chain-extractor/internal/source"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const erc20TransferABI = `[
	{"type":"event","name":"Transfer","inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]}
]`

var (
	transferEvent = mustTransferEvent()

	// TransferSignature is topic0 of Transfer(address,address,uint256).
	TransferSignature = transferEvent.ID
)

// TokenTransfer is a decoded ERC20-style Transfer log.
type TokenTransfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// MatchTransfer reports whether lg is a standard two-address-indexed Transfer log and decodes it.
func MatchTransfer(lg *types.Log) (*TokenTransfer, bool, error) {
	if len(lg.Topics) != 3 || lg.Topics[0] != TransferSignature {
		return nil, false, nil
	}

	args := map[string]any{}
	indexed, nonIndexed := splitIndexed(transferEvent.Inputs)
	if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
		return nil, false, fmt.Errorf("%w: parse topics: %w", source.ErrMalformedReceipt, err)
	}
	if err := nonIndexed.UnpackIntoMap(args, lg.Data); err != nil {
		return nil, false, fmt.Errorf("%w: unpack data: %w", source.ErrMalformedReceipt, err)
	}

	from, okFrom := args["from"].(common.Address)
	to, okTo := args["to"].(common.Address)
	value, okValue := args["value"].(*big.Int)
	if !okFrom || !okTo || !okValue {
		return nil, false, fmt.Errorf("%w: unexpected transfer arguments", source.ErrMalformedReceipt)
	}
	return &TokenTransfer{From: from, To: to, Value: value}, true, nil
}

func mustTransferEvent() abi.Event {
	a, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(fmt.Sprintf("parse transfer abi: %v", err))
	}
	return a.Events["Transfer"]
}

func splitIndexed(args abi.Arguments) (indexed abi.Arguments, nonIndexed abi.Arguments) {
	for _, a := range args {
		if a.Indexed {
			indexed = append(indexed, a)
		} else {
			nonIndexed = append(nonIndexed, a)
		}
	}
	return indexed, nonIndexed
}
