package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a Go duration string ("5s", "1m30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if v < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the global ~/.gigchat/config.toml.
type Config struct {
	DefaultProfile string    `toml:"default_profile"`
	Server         Server    `toml:"server"`
	Chat           Chat      `toml:"chat"`
	Reconnect      Reconnect `toml:"reconnect"`
}

// Server locates the marketplace backend.
type Server struct {
	APIURL    string `toml:"api_url"`
	SocketURL string `toml:"socket_url"`
}

// Chat tunes conversation behaviour.
type Chat struct {
	ReconcileWindow Duration `toml:"reconcile_window"`
	SendAckTimeout  Duration `toml:"send_ack_timeout"`
	TypingDebounce  Duration `toml:"typing_debounce"`
	ConnectTimeout  Duration `toml:"connect_timeout"`
	HistoryTimeout  Duration `toml:"history_timeout"`
}

// Reconnect paces redials after the connection drops. MaxAttempts 0 means unlimited.
type Reconnect struct {
	BaseDelay   Duration `toml:"base_delay"`
	MaxDelay    Duration `toml:"max_delay"`
	MaxAttempts int      `toml:"max_attempts"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Server: Server{
			APIURL:    "http://localhost:8000/api",
			SocketURL: "ws://localhost:8000/ws",
		},
		Chat: Chat{
			ReconcileWindow: Duration{5 * time.Second},
			SendAckTimeout:  Duration{15 * time.Second},
			TypingDebounce:  Duration{500 * time.Millisecond},
			ConnectTimeout:  Duration{10 * time.Second},
			HistoryTimeout:  Duration{15 * time.Second},
		},
		Reconnect: Reconnect{
			BaseDelay: Duration{500 * time.Millisecond},
			MaxDelay:  Duration{30 * time.Second},
		},
	}
}

// Load reads config from the given path over the defaults. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks fields that would make the client unusable.
func (c *Config) Validate() error {
	if c.Server.APIURL == "" {
		return errors.New("server.api_url is required")
	}
	if c.Server.SocketURL == "" {
		return errors.New("server.socket_url is required")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect.max_attempts must not be negative")
	}
	if c.Reconnect.MaxDelay.Duration > 0 && c.Reconnect.MaxDelay.Duration < c.Reconnect.BaseDelay.Duration {
		return errors.New("reconnect.max_delay must not be smaller than base_delay")
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
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
