package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/devblac/chain-extractor/internal/source"
	"github.com/devblac/chain-extractor/internal/storage"
	"github.com/shopspring/decimal"
)

// ErrPublish wraps every delivery failure.
var ErrPublish = errors.New("publish failed")

const defaultTemplate = "BLOCK {{.Block.Number}} {{.Blockchain}} {{.Mode}} transfers={{len .Block.Transfers}}"

// Payload is one extracted block handed downstream.
type Payload struct {
	Blockchain string                `json:"blockchain" yaml:"blockchain"`
	Mode       storage.Mode          `json:"mode" yaml:"mode"`
	Block      source.ExtractedBlock `json:"block" yaml:"block"`
}

// MessageID identifies a payload for downstream deduplication.
func MessageID(p Payload) string {
	return fmt.Sprintf("%s:%s:%d", p.Blockchain, p.Mode, p.Block.Number)
}

// Sender publishes payloads. Implementations must tolerate the same payload
// being published more than once.
type Sender interface {
	Publish(ctx context.Context, payload Payload) error
}

// Multi publishes to every sender in order and stops at the first failure.
type Multi []Sender

func (m Multi) Publish(ctx context.Context, payload Payload) error {
	for _, s := range m {
		if err := s.Publish(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

type httpSender struct {
	url     string
	method  string
	render  *template.Template
	client  *http.Client
	headers map[string]string
}

// NewWebhookSender builds a generic HTTP sink. With an empty template the payload
// is posted as JSON; otherwise the rendered text is posted as {"text": ...}.
func NewWebhookSender(url, method, tmpl string, headers map[string]string) (Sender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url required")
	}
	if method == "" {
		method = http.MethodPost
	}
	s := &httpSender{
		url:     url,
		method:  strings.ToUpper(method),
		client:  defaultClient(),
		headers: headers,
	}
	if tmpl != "" {
		t, err := parseTemplate(tmpl)
		if err != nil {
			return nil, err
		}
		s.render = t
	}
	return s, nil
}

// NewSlackSender builds a Slack-compatible webhook sink.
func NewSlackSender(url, tmpl string) (Sender, error) {
	return newTextSender(url, tmpl)
}

// NewTeamsSender builds a Teams-compatible webhook sink.
func NewTeamsSender(url, tmpl string) (Sender, error) {
	// Teams accepts simple {text: "..."} payloads.
	return newTextSender(url, tmpl)
}

func newTextSender(url, tmpl string) (Sender, error) {
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	return NewWebhookSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
}

func (s *httpSender) Publish(ctx context.Context, payload Payload) error {
	reqBody, err := s.body(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", MessageID(payload))
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %w", ErrPublish, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sink http status %d", ErrPublish, resp.StatusCode)
	}
	return nil
}

func (s *httpSender) body(payload Payload) ([]byte, error) {
	if s.render == nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return b, nil
	}
	text, err := executeTemplate(s.render, payload)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return b, nil
}

func parseTemplate(tmpl string) (*template.Template, error) {
	funcs := template.FuncMap{
		"pretty_json": func(v any) string {
			out, _ := json.MarshalIndent(v, "", "  ")
			return string(out)
		},
		"short_addr": func(addr string) string {
			if len(addr) <= 10 {
				return addr
			}
			return addr[:6] + "..." + addr[len(addr)-4:]
		},
		// units renders a base-unit amount in whole units, e.g. wei with 18 decimals.
		"units": func(amount string, decimals int) (string, error) {
			d, err := decimal.NewFromString(amount)
			if err != nil {
				return "", fmt.Errorf("amount %q: %w", amount, err)
			}
			return d.Shift(int32(-decimals)).String(), nil
		},
	}
	t, err := template.New("msg").Funcs(funcs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return t, nil
}

func executeTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func defaultClient() *http.Client {
	return &http.Client{
		Timeout: 8 * time.Second,
	}
}
