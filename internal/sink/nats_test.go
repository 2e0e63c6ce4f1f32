package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

type fakePublisher struct {
	subject string
	data    []byte
	opts    int
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.subject, f.data, f.opts = subject, data, len(opts)
	if f.err != nil {
		return nil, f.err
	}
	return &jetstream.PubAck{Stream: "BLOCKS", Sequence: 1}, nil
}

func TestNATSSenderPublishesWithMsgID(t *testing.T) {
	pub := &fakePublisher{}
	s := NewNATSSenderWithPublisher(pub, "transfers")

	if err := s.Publish(context.Background(), samplePayload()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.subject != "transfers.bsc.confirmed" {
		t.Fatalf("subject = %s", pub.subject)
	}
	if pub.opts != 1 {
		t.Fatalf("expected msg id option, got %d options", pub.opts)
	}
	var got Payload
	if err := json.Unmarshal(pub.data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Block.Number != 1234 || got.Mode != "confirmed" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
}

func TestNATSSenderWrapsFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	err := NewNATSSenderWithPublisher(pub, "transfers").Publish(context.Background(), samplePayload())
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("expected ErrPublish, got %v", err)
	}
}

func TestNewNATSSenderValidates(t *testing.T) {
	if _, err := NewNATSSender(context.Background(), "", "BLOCKS", ""); err == nil {
		t.Fatalf("expected error without url")
	}
}
