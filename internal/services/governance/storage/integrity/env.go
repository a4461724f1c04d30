package integrity

import (
	"fmt"
	"strings"

	"github.com/louisbranch/governing.space/internal/platform/config"
)

const defaultKeyID = "v1"

// Env holds the keyring environment variables.
type Env struct {
	// Keys is a comma-separated id=secret list for key rotation.
	Keys  string `env:"GOVERNING_SPACE_EVENT_HMAC_KEYS"`
	Key   string `env:"GOVERNING_SPACE_EVENT_HMAC_KEY"`
	KeyID string `env:"GOVERNING_SPACE_EVENT_HMAC_KEY_ID"`
}

// KeyringFromEnv loads the HMAC keyring configuration from environment variables.
func KeyringFromEnv() (*Keyring, error) {
	var cfg Env
	if err := config.ParseEnv(&cfg); err != nil {
		return nil, err
	}
	return cfg.Keyring()
}

// Keyring builds the keyring described by the configuration.
func (cfg Env) Keyring() (*Keyring, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		keyID = defaultKeyID
	}

	keySpec := strings.TrimSpace(cfg.Keys)
	if keySpec == "" {
		raw := strings.TrimSpace(cfg.Key)
		if raw == "" {
			return nil, fmt.Errorf("GOVERNING_SPACE_EVENT_HMAC_KEY is required")
		}
		return NewKeyring(map[string][]byte{keyID: []byte(raw)}, keyID)
	}

	keys := make(map[string][]byte)
	for _, entry := range strings.Split(keySpec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		id, value = strings.TrimSpace(id), strings.TrimSpace(value)
		if !ok || id == "" || value == "" {
			return nil, fmt.Errorf("invalid GOVERNING_SPACE_EVENT_HMAC_KEYS entry %q", id)
		}
		keys[id] = []byte(value)
	}
	return NewKeyring(keys, keyID)
}
