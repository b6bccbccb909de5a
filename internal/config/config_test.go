package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Chat.SendAckTimeout = Duration{20 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Chat.SendAckTimeout.Duration != 20*time.Second {
		t.Errorf("SendAckTimeout = %v, want 20s", loaded.Chat.SendAckTimeout)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
api_url = "https://gigboard.example/api"
socket_url = "wss://gigboard.example/ws"

[chat]
reconcile_window = "2s"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.APIURL != "https://gigboard.example/api" {
		t.Errorf("APIURL = %q", cfg.Server.APIURL)
	}
	if cfg.Chat.ReconcileWindow.Duration != 2*time.Second {
		t.Errorf("ReconcileWindow = %v, want 2s", cfg.Chat.ReconcileWindow)
	}
	if cfg.Chat.TypingDebounce.Duration != 500*time.Millisecond {
		t.Errorf("TypingDebounce = %v, want default 500ms", cfg.Chat.TypingDebounce)
	}
	if cfg.DefaultProfile != "main" {
		t.Errorf("DefaultProfile = %q, want default main", cfg.DefaultProfile)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad duration", "[chat]\nsend_ack_timeout = \"soon\"\n"},
		{"negative duration", "[chat]\nsend_ack_timeout = \"-1s\"\n"},
		{"empty api url", "[server]\napi_url = \"\"\n"},
		{"max below base", "[reconnect]\nbase_delay = \"10s\"\nmax_delay = \"1s\"\n"},
		{"negative attempts", "[reconnect]\nmax_attempts = -2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}

	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Chat.ReconcileWindow.Duration != 5*time.Second {
		t.Errorf("ReconcileWindow = %v, want 5s", cfg.Chat.ReconcileWindow)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
