package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultKeysFile = "titlebot.keys.yaml"

// Role is an API access level. Order matters: member < guardian < admin.
type Role string

const (
	RoleMember   Role = "member"
	RoleGuardian Role = "guardian"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleMember:   1,
	RoleGuardian: 2,
	RoleAdmin:    3,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants everything min does.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

type keysFile struct {
	DefaultPolicy struct {
		AllowLocalhostWithoutAuth *bool `yaml:"allow_localhost_without_auth"`
	} `yaml:"default_policy"`
	Roles map[string]roleKeys `yaml:"roles"`
}

type roleKeys struct {
	Keys []string `yaml:"keys"`
}

type Keyring struct {
	AllowLocalhostWithoutAuth bool
	keyToRole                 map[string]Role
}

func ResolveKeysPath() string {
	if v := strings.TrimSpace(os.Getenv("TITLEBOT_KEYS_FILE")); v != "" {
		return v
	}
	return filepath.Join(".", defaultKeysFile)
}

func LoadKeyringFromEnv() (*Keyring, error) {
	return LoadKeyring(ResolveKeysPath())
}

// LoadKeyring reads the keys file, bootstrapping a dev admin key when
// the file does not exist yet. An empty path disables key auth and
// leaves only the localhost bypass.
func LoadKeyring(path string) (*Keyring, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultKeyring(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if _, err := BootstrapDevKey(path, RoleAdmin); err != nil {
				return nil, fmt.Errorf("bootstrap dev key: %w", err)
			}
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read keys file: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read keys file: %w", err)
		}
	}
	var cfg keysFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}
	ring := &Keyring{
		AllowLocalhostWithoutAuth: true,
		keyToRole:                 make(map[string]Role),
	}
	if cfg.DefaultPolicy.AllowLocalhostWithoutAuth != nil {
		ring.AllowLocalhostWithoutAuth = *cfg.DefaultPolicy.AllowLocalhostWithoutAuth
	}
	for name, keys := range cfg.Roles {
		role := Role(name)
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role in keys file: %q", name)
		}
		for _, key := range keys.Keys {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if existing, ok := ring.keyToRole[key]; ok && existing != role {
				return nil, fmt.Errorf("key listed under two roles: %q", key)
			}
			ring.keyToRole[key] = role
		}
	}
	return ring, nil
}

func defaultKeyring() *Keyring {
	return &Keyring{AllowLocalhostWithoutAuth: true, keyToRole: make(map[string]Role)}
}

func NewKeyring(allowLocalhost bool, keyToRole map[string]Role) *Keyring {
	clone := make(map[string]Role, len(keyToRole))
	for k, v := range keyToRole {
		clone[k] = v
	}
	return &Keyring{AllowLocalhostWithoutAuth: allowLocalhost, keyToRole: clone}
}

func (k *Keyring) RoleForKey(key string) (Role, bool) {
	if k == nil {
		return "", false
	}
	role, ok := k.keyToRole[key]
	return role, ok
}
