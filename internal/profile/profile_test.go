package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/chatsync/internal/config"
)

func TestDir(t *testing.T) {
	root := t.TempDir()
	t.Setenv(HomeEnv, root)

	got := Dir("main")
	want := filepath.Join(root, "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	if got := BaseDir(); got != filepath.Join(home, ".chatsync") {
		t.Errorf("BaseDir() = %q", got)
	}
}

func TestPaths(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	tests := map[string]string{
		SocketPath("test"):       filepath.Join("profiles", "test", "client.sock"),
		LockPath("test"):         filepath.Join("profiles", "test", "LOCK"),
		CachePath("test"):        filepath.Join("profiles", "test", "cache.db"),
		ClientConfigPath("test"): filepath.Join("profiles", "test", "config.toml"),
		LogPath("test"):          filepath.Join("profiles", "test", "logs", "chatsync.log"),
	}
	for got, suffix := range tests {
		if !strings.HasSuffix(got, suffix) {
			t.Errorf("%q does not end with %q", got, suffix)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	if err := EnsureDir("test"); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	info, err := os.Stat(LogDir("test"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("log dir permission = %o, want 0700", perm)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if got := Resolve(""); got != DefaultName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultName)
	}
	if err := config.Save(ConfigPath(), &config.Config{DefaultProfile: "work"}); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "work" {
		t.Errorf("Resolve() with config = %q, want work", got)
	}
	if got := Resolve("flag"); got != "flag" {
		t.Errorf("Resolve(flag) = %q, want flag", got)
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"main", "work_2", "a-b", strings.Repeat("x", 64)}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) error = %v", name, err)
		}
	}
	invalid := []string{"", "Main", "a b", "../etc", strings.Repeat("x", 65)}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) should fail", name)
		}
	}
}
