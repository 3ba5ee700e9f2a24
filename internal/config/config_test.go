package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{DefaultProfile: "work"}
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
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
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

func TestLoadClientMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.PageSize != 20 || cfg.Transport != "ws" {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if cfg.Window() != 2*time.Second {
		t.Errorf("Window() = %v, want 2s", cfg.Window())
	}
}

func TestLoadClientOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "user_id = \"u1\"\npage_size = 50\ntyping_window = \"3s\"\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UserID != "u1" || cfg.PageSize != 50 || cfg.Window() != 3*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.APIURL != Defaults().APIURL {
		t.Errorf("APIURL = %q, want default", cfg.APIURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadClientMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("page_size = \"many\""), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadClient(path); err == nil {
		t.Error("LoadClient() expected error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.UserID = "u1"

	tests := []struct {
		name    string
		mutate  func(*Client)
		wantErr string
	}{
		{"valid", func(*Client) {}, ""},
		{"no user", func(c *Client) { c.UserID = "" }, "user_id"},
		{"bad transport", func(c *Client) { c.Transport = "carrier-pigeon" }, "transport"},
		{"bad ws scheme", func(c *Client) { c.WSURL = "http://x" }, "ws_url"},
		{"nats ok", func(c *Client) { c.Transport = "nats" }, ""},
		{"nats bad codec", func(c *Client) { c.Transport = "nats"; c.NATSCodec = "xml" }, "nats_codec"},
		{"bad window", func(c *Client) { c.TypingWindow = "soon" }, "typing_window"},
		{"bad level", func(c *Client) { c.LogLevel = "loud" }, "log level"},
		{"negative page", func(c *Client) { c.PageSize = -1 }, "page_size"},
		{"bad api", func(c *Client) { c.APIURL = "::" }, "api_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
