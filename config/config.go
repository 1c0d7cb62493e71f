package config

import (
	"fmt"
	"time"
)

// Config is the host's sieve.yaml configuration (spec §4.9): where
// mailboxes live, which user the script runs as, and the optional
// dedup/notify/trace adapters to wire in.
type Config struct {
	Namespace NamespaceConfig `yaml:"namespace"`
	Username  string          `yaml:"username"`

	DefaultMailbox       string `yaml:"default_mailbox"`
	MailboxAutocreate    bool   `yaml:"mailbox_autocreate"`
	MailboxAutosubscribe bool   `yaml:"mailbox_autosubscribe"`

	Dedup  DedupConfig  `yaml:"dedup"`
	Notify NotifyConfig `yaml:"notify"`
	Trace  TraceConfig  `yaml:"trace"`
	Archive ArchiveConfig `yaml:"archive"`
}

// NamespaceConfig points at the Maildir tree root.
type NamespaceConfig struct {
	Root string `yaml:"root"`
}

// DedupConfig configures the Redis-backed duplicate-suppression store.
type DedupConfig struct {
	RedisURL string   `yaml:"redis_url"`
	TTL      Duration `yaml:"ttl"`
}

// NotifyConfig configures the webhook notifier.
type NotifyConfig struct {
	WebhookURL string            `yaml:"webhook_url"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Timeout    Duration          `yaml:"timeout,omitempty"`
	Retries    *int              `yaml:"retries,omitempty"`
}

// TraceConfig configures interpreter trace capture.
type TraceConfig struct {
	Path string `yaml:"path"`
}

// ArchiveConfig configures the optional S3 delivery mirror.
type ArchiveConfig struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"s3_path_style,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks the fields every host needs regardless of which optional
// adapters are configured.
func (c *Config) Validate() error {
	if c.Namespace.Root == "" {
		return fmt.Errorf("config: namespace.root is required")
	}
	if c.Username == "" {
		return fmt.Errorf("config: username is required")
	}
	if c.DefaultMailbox == "" {
		c.DefaultMailbox = "INBOX"
	}
	return nil
}
