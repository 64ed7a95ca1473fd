package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maddasher/titlebot/internal/auth"
)

func TestInitKeysFileCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titlebot.keys.yaml")

	key1, err := InitKeysFile(path, auth.RoleAdmin)
	if err != nil {
		t.Fatalf("init keys: %v", err)
	}
	if key1 == "" {
		t.Fatalf("expected generated key")
	}

	key2, err := InitKeysFile(path, auth.RoleGuardian)
	if err != nil {
		t.Fatalf("append key: %v", err)
	}

	ring, err := auth.LoadKeyring(path)
	if err != nil {
		t.Fatalf("load keyring: %v", err)
	}
	if role, ok := ring.RoleForKey(key1); !ok || role != auth.RoleAdmin {
		t.Fatalf("first key should be admin, got %s ok=%v", role, ok)
	}
	if role, ok := ring.RoleForKey(key2); !ok || role != auth.RoleGuardian {
		t.Fatalf("second key should be guardian, got %s ok=%v", role, ok)
	}
}

func TestInitKeysFileRejectsUnknownRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	if _, err := InitKeysFile(path, auth.Role("emperor")); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestInitConfigFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titlebot.yaml")
	if err := InitConfigFile(path); err != nil {
		t.Fatalf("init config: %v", err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != ":7787" || cfg.MinHoldMinutes != 60 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Titles) != 4 || cfg.Titles[0].Name != "Governor" {
		t.Fatalf("expected the standard roster, got %v", cfg.Titles)
	}

	if err := InitConfigFile(path); err == nil {
		t.Fatalf("expected refusal to clobber existing config")
	}
}

func TestLoadServerConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "titlebot.db" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titlebot.yaml")
	content := "listen_addr: \":9000\"\nmin_hold_minutes: 30\ntitles:\n  - name: Chancellor\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.MinHoldMinutes != 30 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Titles) != 1 || cfg.Titles[0].Name != "Chancellor" {
		t.Fatalf("title list not replaced: %v", cfg.Titles)
	}
	seed := cfg.Seed()
	if seed.MinHoldMinutes != 30 || seed.ReminderIntervalMinutes != 15 {
		t.Fatalf("seed conversion wrong: %+v", seed)
	}
}
