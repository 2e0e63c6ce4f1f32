package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/devblac/chain-extractor/internal/config"
	"github.com/devblac/chain-extractor/internal/sink"
	"github.com/devblac/chain-extractor/internal/storage"
)

// buildSinks creates every configured sink in config order. Closers of senders
// that own connections are returned alongside.
func buildSinks(ctx context.Context, cfgs []config.Sink, store *storage.Store, log *slog.Logger) (sink.Multi, []io.Closer, error) {
	var (
		senders sink.Multi
		closers []io.Closer
	)
	for _, s := range cfgs {
		var (
			sender sink.Sender
			err    error
		)
		switch strings.ToLower(s.Type) {
		case "slack":
			sender, err = sink.NewSlackSender(s.WebhookURL, s.Template)
		case "teams":
			sender, err = sink.NewTeamsSender(s.WebhookURL, s.Template)
		case "webhook":
			sender, err = sink.NewWebhookSender(s.URL, s.Method, s.Template, s.Headers)
		case "nats":
			var ns *sink.NATSSender
			ns, err = sink.NewNATSSender(ctx, s.URL, s.Stream, s.Subject)
			if err == nil {
				closers = append(closers, ns)
				sender = ns
			}
		case "store":
			sender = sink.NewStoreSender(store)
		case "log":
			sender = sink.NewLogSender(log)
		default:
			continue
		}
		if err != nil {
			closeAll(closers)
			return nil, nil, fmt.Errorf("sink %s: %w", s.ID, err)
		}
		senders = append(senders, sender)
	}
	return senders, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
