package storage

import (
	"context"
	"testing"

	"github.com/devblac/chain-extractor/internal/source"
)

func sampleBlock() source.ExtractedBlock {
	idx := uint(7)
	return source.ExtractedBlock{
		Provider: "BSC",
		Number:   42,
		Height:   50,
		Transfers: []source.TransferEvent{
			{Blockchain: "BSC", Provider: "BNB", Number: 42, Timestamp: 1000, Address: "0xbob", TxHash: "0x01", Direction: source.DirectionIncoming, Amount: "10"},
			{Blockchain: "BSC", Provider: "BEP20", Number: 42, Timestamp: 1000, Address: "0xbob", TxHash: "0x02", Direction: source.DirectionIncoming,
				Currency: &source.Currency{ID: "0xusdt"}, Amount: "5", RawAmount: "0x05", Index: &idx},
			{Blockchain: "BSC", Provider: "BEP20", Number: 42, Timestamp: 1000, Address: "0xcarol", TxHash: "0x02", Direction: source.DirectionIncoming,
				Currency: &source.Currency{ID: "0xusdt"}, Amount: "6", RawAmount: "0x06"},
		},
	}
}

func TestInsertTransfersIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	block := sampleBlock()

	for i := 0; i < 2; i++ {
		if err := store.InsertTransfers(ctx, "bsc", ModeDirty, block); err != nil {
			t.Fatalf("insert #%d: %v", i, err)
		}
	}

	got, err := store.ListTransfers(ctx, "bsc", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows after replay, got %d", len(got))
	}
	if got[1].Seq != 0 || got[2].Seq != 1 {
		t.Fatalf("unexpected ordinals: %d %d", got[1].Seq, got[2].Seq)
	}
	if got[1].Currency == nil || got[1].Currency.ID != "0xusdt" || got[1].Index == nil || *got[1].Index != 7 {
		t.Fatalf("token row not restored: %+v", got[1])
	}
	if got[0].Currency != nil || got[0].Index != nil {
		t.Fatalf("native row has token fields: %+v", got[0])
	}
	for _, tr := range got {
		if tr.Confirmed {
			t.Fatalf("dirty write marked confirmed: %+v", tr)
		}
	}
}

func TestInsertTransfersConfirmedUpgrade(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	block := sampleBlock()

	if err := store.InsertTransfers(ctx, "bsc", ModeDirty, block); err != nil {
		t.Fatalf("dirty insert: %v", err)
	}
	if err := store.InsertTransfers(ctx, "bsc", ModeConfirmed, block); err != nil {
		t.Fatalf("confirmed insert: %v", err)
	}
	if err := store.InsertTransfers(ctx, "bsc", ModeDirty, block); err != nil {
		t.Fatalf("late dirty insert: %v", err)
	}

	got, err := store.ListTransfers(ctx, "bsc", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not applied: %d", len(got))
	}
	for _, tr := range got {
		if !tr.Confirmed {
			t.Fatalf("row not confirmed or downgraded: %+v", tr)
		}
	}
}

func TestInsertTransfersEmptyBlock(t *testing.T) {
	store := newTestStore(t)
	if err := store.InsertTransfers(context.Background(), "bsc", ModeDirty, source.ExtractedBlock{Number: 1}); err != nil {
		t.Fatalf("insert empty: %v", err)
	}
	got, err := store.ListTransfers(context.Background(), "bsc", 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no rows, got %d err=%v", len(got), err)
	}
}
