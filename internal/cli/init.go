// Package cli holds the file-shaped plumbing behind the titlebot
// commands: keys-file maintenance and the server config file.
package cli

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/maddasher/titlebot/internal/auth"
	"github.com/maddasher/titlebot/internal/core"
	"gopkg.in/yaml.v3"
)

type keysFile struct {
	DefaultPolicy struct {
		AllowLocalhostWithoutAuth *bool `yaml:"allow_localhost_without_auth"`
	} `yaml:"default_policy"`
	Roles map[string]roleKeys `yaml:"roles"`
}

type roleKeys struct {
	Keys []string `yaml:"keys"`
}

// InitKeysFile appends a freshly generated key under the given role,
// creating the file if needed, and returns the key (shown to the
// operator exactly once).
func InitKeysFile(path string, role auth.Role) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("keys file path required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}

	cfg, err := loadKeysFile(path)
	if err != nil {
		return "", err
	}
	if cfg.Roles == nil {
		cfg.Roles = make(map[string]roleKeys)
	}
	key, err := generateKey()
	if err != nil {
		return "", err
	}
	rk := cfg.Roles[string(role)]
	rk.Keys = append(rk.Keys, key)
	cfg.Roles[string(role)] = rk
	if cfg.DefaultPolicy.AllowLocalhostWithoutAuth == nil {
		val := true
		cfg.DefaultPolicy.AllowLocalhostWithoutAuth = &val
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", fmt.Errorf("marshal keys file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write keys file: %w", err)
	}
	return key, nil
}

func loadKeysFile(path string) (keysFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return keysFile{}, nil
		}
		return keysFile{}, fmt.Errorf("read keys file: %w", err)
	}
	var cfg keysFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return keysFile{}, fmt.Errorf("parse keys file: %w", err)
	}
	return cfg, nil
}

func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ServerConfig is the bootstrap file read by `titlebot serve`. The
// policy values only seed a fresh store; once a snapshot exists the
// stored config wins and runtime changes go through the admin API.
type ServerConfig struct {
	ListenAddr              string          `yaml:"listen_addr"`
	SocketPath              string          `yaml:"socket_path"`
	DBPath                  string          `yaml:"db_path"`
	AnnounceChannel         string          `yaml:"announce_channel"`
	MinHoldMinutes          int             `yaml:"min_hold_minutes"`
	ReminderIntervalMinutes int             `yaml:"reminder_interval_minutes"`
	MaxReminders            int             `yaml:"max_reminders"`
	Guardians               []string        `yaml:"guardians"`
	Titles                  []core.TitleDef `yaml:"titles"`
}

// DefaultServerConfig carries the stock policy and the standard title
// roster.
func DefaultServerConfig() ServerConfig {
	def := core.DefaultConfig()
	return ServerConfig{
		ListenAddr:              ":7787",
		DBPath:                  "titlebot.db",
		AnnounceChannel:         def.AnnounceChannel,
		MinHoldMinutes:          def.MinHoldMinutes,
		ReminderIntervalMinutes: def.ReminderIntervalMinutes,
		MaxReminders:            def.MaxReminders,
		Guardians:               []string{},
		Titles: []core.TitleDef{
			{Name: "Governor"},
			{Name: "Architect"},
			{Name: "Prefect"},
			{Name: "General"},
		},
	}
}

// LoadServerConfig reads the config file, falling back to defaults when
// it does not exist.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return ServerConfig{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// InitConfigFile writes the default config, refusing to clobber an
// existing file.
func InitConfigFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config file path required")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("check config file: %w", err)
	}

	cfg := DefaultServerConfig()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Seed converts the bootstrap values into the engine's config shape.
func (c ServerConfig) Seed() core.Config {
	return core.Config{
		MinHoldMinutes:          c.MinHoldMinutes,
		ReminderIntervalMinutes: c.ReminderIntervalMinutes,
		MaxReminders:            c.MaxReminders,
		Guardians:               c.Guardians,
		AnnounceChannel:         c.AnnounceChannel,
	}
}
