// Package hmackey generates journal signing keys in the environment format
// the event keyring reads.
package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/governing.space/internal/services/governance/storage/integrity"
)

// MinBytes is the shortest root key accepted.
const MinBytes = 16

// Config holds configuration for HMAC key generation.
type Config struct {
	Bytes int
	KeyID string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32, KeyID: "v1"}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	fs.StringVar(&cfg.KeyID, "key-id", cfg.KeyID, "identifier recorded with every signature")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key, checks the keyring accepts it, and writes the
// environment lines to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < MinBytes {
		return fmt.Errorf("bytes must be at least %d", MinBytes)
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" || strings.ContainsAny(keyID, "=,") {
		return errors.New("key id is required and must not contain '=' or ','")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	key := hex.EncodeToString(buf)
	if _, err := (integrity.Env{Key: key, KeyID: keyID}).Keyring(); err != nil {
		return fmt.Errorf("build keyring: %w", err)
	}
	_, err := fmt.Fprintf(out, "GOVERNING_SPACE_EVENT_HMAC_KEY_ID=%s\nGOVERNING_SPACE_EVENT_HMAC_KEY=%s\n", keyID, key)
	return err
}
