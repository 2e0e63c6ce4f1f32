package evm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/devblac/chain-extractor/internal/source"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestTransferSignatureIsKeccakOfEvent(t *testing.T) {
	want := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	if TransferSignature != want {
		t.Fatalf("signature mismatch: %s != %s", TransferSignature.Hex(), want.Hex())
	}
}

func TestMatchTransferDecodes(t *testing.T) {
	value := big.NewInt(0).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000))
	from := common.HexToAddress("0x0000000000000000000000000000000000000001")
	to := common.HexToAddress("0x0000000000000000000000000000000000000002")

	lg := transferLog(common.HexToAddress("0xA0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), from, to, value, 3)

	tt, ok, err := MatchTransfer(lg)
	if err != nil {
		t.Fatalf("match error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
	if tt.From != from || tt.To != to {
		t.Fatalf("unexpected addresses: %s -> %s", tt.From.Hex(), tt.To.Hex())
	}
	if tt.Value.Cmp(value) != 0 {
		t.Fatalf("unexpected value %s", tt.Value)
	}
}

func TestMatchTransferRejectsOtherShapes(t *testing.T) {
	from := common.HexToAddress("0x01")
	to := common.HexToAddress("0x02")

	fourTopics := transferLog(common.HexToAddress("0x03"), from, to, big.NewInt(1), 0)
	fourTopics.Topics = append(fourTopics.Topics, common.HexToHash("0x04"))

	otherEvent := transferLog(common.HexToAddress("0x03"), from, to, big.NewInt(1), 0)
	otherEvent.Topics[0] = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))

	for name, lg := range map[string]*types.Log{"four_topics": fourTopics, "other_event": otherEvent, "no_topics": {}} {
		_, ok, err := MatchTransfer(lg)
		if err != nil || ok {
			t.Fatalf("%s: expected no match, got ok=%v err=%v", name, ok, err)
		}
	}
}

func TestMatchTransferMalformedData(t *testing.T) {
	lg := transferLog(common.HexToAddress("0x03"), common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(1), 0)
	lg.Data = nil

	_, _, err := MatchTransfer(lg)
	if !errors.Is(err, source.ErrMalformedReceipt) {
		t.Fatalf("expected ErrMalformedReceipt, got %v", err)
	}
}
