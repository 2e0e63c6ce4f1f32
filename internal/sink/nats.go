package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher is the subset of jetstream.JetStream used by NATSSender.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSSender publishes payloads to a JetStream stream. Each message carries
// MessageID as Nats-Msg-Id so the stream drops replays within its dedupe window.
type NATSSender struct {
	js     Publisher
	prefix string
	conn   *nats.Conn
}

// NewNATSSender connects to url and ensures stream captures subjects under prefix.
func NewNATSSender(ctx context.Context, url, stream, prefix string) (*NATSSender, error) {
	if url == "" || stream == "" {
		return nil, fmt.Errorf("nats url and stream required")
	}
	if prefix == "" {
		prefix = "transfers"
	}
	nc, err := nats.Connect(url, nats.Name("chain-extractor"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Description: "Extracted blocks",
		Subjects:    []string{prefix + ".>"},
		Storage:     jetstream.FileStorage,
		Duplicates:  10 * time.Minute,
		MaxAge:      7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", stream, err)
	}
	s := NewNATSSenderWithPublisher(js, prefix)
	s.conn = nc
	return s, nil
}

// NewNATSSenderWithPublisher builds a sender over an existing publisher.
func NewNATSSenderWithPublisher(js Publisher, prefix string) *NATSSender {
	return &NATSSender{js: js, prefix: prefix}
}

func (s *NATSSender) Publish(ctx context.Context, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if _, err := s.js.Publish(ctx, s.subjectFor(payload), data, jetstream.WithMsgID(MessageID(payload))); err != nil {
		return fmt.Errorf("%w: nats publish: %w", ErrPublish, err)
	}
	return nil
}

// Close drains the underlying connection, if owned.
func (s *NATSSender) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

func (s *NATSSender) subjectFor(p Payload) string {
	return strings.ToLower(fmt.Sprintf("%s.%s.%s", s.prefix, p.Blockchain, p.Mode))
}
