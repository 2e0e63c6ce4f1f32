package sink

import (
	"context"
	"log/slog"
)

// LogSender only logs payloads; used for dry runs.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Publish(_ context.Context, payload Payload) error {
	s.log.Info("dry run block",
		"blockchain", payload.Blockchain,
		"mode", payload.Mode,
		"block", payload.Block.Number,
		"height", payload.Block.Height,
		"transfers", len(payload.Block.Transfers),
	)
	return nil
}
