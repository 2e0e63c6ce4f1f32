package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/devblac/chain-extractor/internal/source"
	"github.com/devblac/chain-extractor/internal/storage"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultDBPath     = "chain-extractor.db"
	defaultRetryDelay = 5 * time.Second

	defaultAttemptTimeout = 30 * time.Second
)

// Config holds the YAML configuration.
type Config struct {
	Version     int          `yaml:"version"`
	Global      GlobalConfig `yaml:"global"`
	Blockchains []Blockchain `yaml:"blockchains"`
	Sinks       []Sink       `yaml:"sinks"`
}

type GlobalConfig struct {
	DBPath         string `yaml:"db_path"`
	RetryDelay     string `yaml:"retry_delay"`
	AttemptTimeout string `yaml:"attempt_timeout"`
	QueueCapacity  int    `yaml:"queue_capacity"`
}

// Blockchain seeds one record of the blockchains table.
type Blockchain struct {
	Name                 string         `yaml:"name"`
	Symbol               string         `yaml:"symbol"`
	BlockIntervalSeconds int            `yaml:"block_interval_seconds"`
	Confirmations        uint64         `yaml:"confirmations"`
	Enabled              *bool          `yaml:"enabled,omitempty"`
	AdaptConcurrently    int            `yaml:"adapt_concurrently"`
	StartBlock           uint64         `yaml:"start_block"`
	Options              source.Options `yaml:"options"`
}

type Sink struct {
	ID         string            `yaml:"id"`
	Type       string            `yaml:"type"`
	WebhookURL string            `yaml:"webhook_url"`
	Template   string            `yaml:"template"`
	URL        string            `yaml:"url"`
	Method     string            `yaml:"method"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Stream     string            `yaml:"stream"`
	Subject    string            `yaml:"subject_prefix"`
}

var (
	envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)
	// Blockchain names become NATS subject tokens and metric labels.
	namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Load reads, interpolates env vars, parses YAML, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// Validate performs small, direct schema checks and fills defaults.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global: %w", err)
	}
	if len(c.Blockchains) == 0 {
		return errors.New("at least one blockchain is required")
	}
	if len(c.Sinks) == 0 {
		return errors.New("at least one sink is required")
	}

	names := map[string]struct{}{}
	for i := range c.Blockchains {
		b := &c.Blockchains[i]
		if _, exists := names[b.Name]; exists {
			return fmt.Errorf("duplicate blockchain name: %s", b.Name)
		}
		names[b.Name] = struct{}{}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("blockchain %s: %w", b.Name, err)
		}
	}

	sinkIDs := map[string]struct{}{}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		if _, exists := sinkIDs[s.ID]; exists {
			return fmt.Errorf("duplicate sink id: %s", s.ID)
		}
		sinkIDs[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sink %s: %w", s.ID, err)
		}
	}

	return nil
}

func (g *GlobalConfig) Validate() error {
	if g.DBPath == "" {
		g.DBPath = defaultDBPath
	}
	if g.QueueCapacity < 0 {
		return errors.New("queue_capacity must not be negative")
	}
	if err := positiveDuration("retry_delay", g.RetryDelay); err != nil {
		return err
	}
	return positiveDuration("attempt_timeout", g.AttemptTimeout)
}

func positiveDuration(key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", key)
	}
	return nil
}

// RetryDelayDuration returns the configured retry delay or the default.
func (g GlobalConfig) RetryDelayDuration() time.Duration {
	if d, err := time.ParseDuration(g.RetryDelay); err == nil && d > 0 {
		return d
	}
	return defaultRetryDelay
}

// AttemptTimeoutDuration bounds a single RPC or sink call.
func (g GlobalConfig) AttemptTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(g.AttemptTimeout); err == nil && d > 0 {
		return d
	}
	return defaultAttemptTimeout
}

func (b *Blockchain) Validate() error {
	if b.Name == "" {
		return errors.New("name is required")
	}
	if !namePattern.MatchString(b.Name) {
		return fmt.Errorf("name %q may only contain letters, digits, '-' and '_'", b.Name)
	}
	if b.Symbol == "" {
		return errors.New("symbol is required")
	}
	b.Symbol = strings.ToUpper(b.Symbol)
	if b.Options.RPCURL == "" {
		return errors.New("options.rpc_url is required")
	}
	if b.BlockIntervalSeconds < 0 || b.AdaptConcurrently < 0 || b.Options.ReceiptConcurrency < 0 {
		return errors.New("block_interval_seconds, adapt_concurrently and receipt_concurrency must not be negative")
	}
	if b.StartBlock == 1 {
		return errors.New("start_block must be 0 (start at the chain tip) or at least 2")
	}
	if b.BlockIntervalSeconds == 0 {
		b.BlockIntervalSeconds = 1
	}
	if b.AdaptConcurrently == 0 {
		b.AdaptConcurrently = 1
	}
	return nil
}

// IsEnabled defaults to true when enabled is omitted.
func (b Blockchain) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// Record converts the entry into a store record. StartBlock seeds both cursors so
// the first extracted block is StartBlock itself.
func (b Blockchain) Record() storage.Blockchain {
	var cursor uint64
	if b.StartBlock > 0 {
		cursor = b.StartBlock - 1
	}
	return storage.Blockchain{
		Name:                    b.Name,
		Symbol:                  b.Symbol,
		BlockIntervalSeconds:    b.BlockIntervalSeconds,
		Confirmations:           b.Confirmations,
		Enabled:                 b.IsEnabled(),
		AdaptConcurrently:       b.AdaptConcurrently,
		Options:                 b.Options,
		DirtyProcessedBlock:     cursor,
		ConfirmedProcessedBlock: cursor,
	}
}

func (s *Sink) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return errors.New("type is required")
	}

	switch strings.ToLower(s.Type) {
	case "slack", "teams":
		if s.WebhookURL == "" {
			return errors.New("webhook_url is required for slack/teams sinks")
		}
	case "webhook":
		if s.URL == "" {
			return errors.New("url is required for webhook sink")
		}
		if s.Method == "" {
			s.Method = "POST"
		}
	case "nats":
		if s.URL == "" || s.Stream == "" {
			return errors.New("url and stream are required for nats sink")
		}
	case "store", "log":
	default:
		return fmt.Errorf("unsupported sink type: %s", s.Type)
	}
	return nil
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
