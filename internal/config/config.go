package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/chatsync/internal/logging"
)

// Config represents the global ~/.chatsync/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Client is the per-profile client configuration.
type Client struct {
	APIURL       string `toml:"api_url"`
	WSURL        string `toml:"ws_url"`
	Transport    string `toml:"transport"` // "ws" or "nats"
	NATSURL      string `toml:"nats_url"`
	NATSCodec    string `toml:"nats_codec"` // "json" or "proto"
	UserID       string `toml:"user_id"`
	UserName     string `toml:"user_name"`
	AuthToken    string `toml:"auth_token"`
	PageSize     int    `toml:"page_size"`
	TypingWindow string `toml:"typing_window"`
	LogLevel     string `toml:"log_level"`
	MetricsAddr  string `toml:"metrics_addr"` // empty disables the endpoint
	HTTPRetries  int    `toml:"http_retries"`
}

// Defaults returns a client config pointing at a local server.
func Defaults() Client {
	return Client{
		APIURL:       "http://localhost:3000",
		WSURL:        "ws://localhost:3000/socket",
		Transport:    "ws",
		NATSURL:      "nats://localhost:4222",
		NATSCodec:    "json",
		PageSize:     20,
		TypingWindow: "2s",
		LogLevel:     "info",
		HTTPRetries:  3,
	}
}

// LoadClient reads a client config, filling unset fields from Defaults.
// A missing file yields Defaults.
func LoadClient(path string) (Client, error) {
	cfg := Defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Client{}, fmt.Errorf("read %s: %w", path, err)
	}
	return cfg, nil
}

// Window parses TypingWindow.
func (c Client) Window() time.Duration {
	d, err := time.ParseDuration(c.TypingWindow)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Validate reports the first invalid field.
func (c Client) Validate() error {
	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("api_url: %w", err)
	}
	switch c.Transport {
	case "ws":
		u, err := url.Parse(c.WSURL)
		if err != nil {
			return fmt.Errorf("ws_url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("ws_url: scheme must be ws or wss, got %q", u.Scheme)
		}
	case "nats":
		if c.NATSURL == "" {
			return errors.New("nats_url: required when transport is nats")
		}
		if c.NATSCodec != "json" && c.NATSCodec != "proto" {
			return fmt.Errorf("nats_codec: unknown codec %q", c.NATSCodec)
		}
	default:
		return fmt.Errorf("transport: unknown transport %q", c.Transport)
	}
	if c.UserID == "" {
		return errors.New("user_id: required")
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page_size: must not be negative, got %d", c.PageSize)
	}
	if _, err := time.ParseDuration(c.TypingWindow); err != nil {
		return fmt.Errorf("typing_window: %w", err)
	}
	if _, err := logging.LevelOf(c.LogLevel); err != nil {
		return err
	}
	return nil
}
