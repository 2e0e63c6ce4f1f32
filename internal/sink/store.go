package sink

import (
	"context"
	"fmt"

	"github.com/devblac/chain-extractor/internal/source"
	"github.com/devblac/chain-extractor/internal/storage"
)

// TransferWriter persists the transfers of a block.
type TransferWriter interface {
	InsertTransfers(ctx context.Context, blockchain string, mode storage.Mode, block source.ExtractedBlock) error
}

// StoreSender writes transfers into the local database.
type StoreSender struct {
	w TransferWriter
}

func NewStoreSender(w TransferWriter) *StoreSender {
	return &StoreSender{w: w}
}

func (s *StoreSender) Publish(ctx context.Context, payload Payload) error {
	if err := s.w.InsertTransfers(ctx, payload.Blockchain, payload.Mode, payload.Block); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}
