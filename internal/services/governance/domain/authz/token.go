package authz

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
)

const (
	// EnvCapabilityIssuer names the expected token issuer.
	EnvCapabilityIssuer = "GOVERNING_SPACE_CAPABILITY_ISSUER"
	// EnvCapabilityAudience names the expected token audience.
	EnvCapabilityAudience = "GOVERNING_SPACE_CAPABILITY_AUDIENCE"
	// EnvCapabilityPublicKey holds the base64 Ed25519 verification key.
	EnvCapabilityPublicKey = "GOVERNING_SPACE_CAPABILITY_PUBLIC_KEY"
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Issuer    string `env:"GOVERNING_SPACE_CAPABILITY_ISSUER"`
	Audience  string `env:"GOVERNING_SPACE_CAPABILITY_AUDIENCE"`
	PublicKey string `env:"GOVERNING_SPACE_CAPABILITY_PUBLIC_KEY"`
}

// TokenConfig defines how capability tokens are verified.
type TokenConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// capabilityClaims is the JWT body of a capability token.
type capabilityClaims struct {
	jwt.RegisteredClaims
	Capabilities []string `json:"capabilities"`
}

// LoadTokenConfigFromEnv reads capability token verification configuration.
// ok is false when no verifier is configured.
func LoadTokenConfigFromEnv(now func() time.Time) (cfg TokenConfig, ok bool, err error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return TokenConfig{}, false, fmt.Errorf("parse capability token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" && audience == "" && publicKey == "" {
		return TokenConfig{}, false, nil
	}
	if issuer == "" {
		return TokenConfig{}, false, fmt.Errorf("%s is required", EnvCapabilityIssuer)
	}
	if audience == "" {
		return TokenConfig{}, false, fmt.Errorf("%s is required", EnvCapabilityAudience)
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return TokenConfig{}, false, fmt.Errorf("decode capability public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return TokenConfig{}, false, fmt.Errorf("capability public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return TokenConfig{Issuer: issuer, Audience: audience, Key: ed25519.PublicKey(keyBytes), Now: now}, true, nil
}

// TokenAuthorizer grants the capabilities listed in a signed EdDSA token
// whose subject is the calling account.
type TokenAuthorizer struct {
	cfg TokenConfig
}

// NewTokenAuthorizer validates cfg and builds a token authorizer.
func NewTokenAuthorizer(cfg TokenConfig) (*TokenAuthorizer, error) {
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return nil, errors.New("capability token verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenAuthorizer{cfg: cfg}, nil
}

// Grants implements Authorizer. Callers without a token receive no grants.
func (a *TokenAuthorizer) Grants(_ context.Context, principal Principal) (Grants, error) {
	token := strings.TrimSpace(principal.Token)
	if token == "" {
		return Grants{}, nil
	}

	var parsed capabilityClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return a.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != a.cfg.Issuer {
		return nil, apperrors.WithMetadata(apperrors.CodeCapabilityTokenInvalid, "capability token issuer mismatch", map[string]string{"Field": "issuer"})
	}
	if !slices.Contains([]string(parsed.Audience), a.cfg.Audience) {
		return nil, apperrors.WithMetadata(apperrors.CodeCapabilityTokenInvalid, "capability token audience mismatch", map[string]string{"Field": "audience"})
	}
	if parsed.ExpiresAt == nil {
		return nil, apperrors.New(apperrors.CodeCapabilityTokenInvalid, "capability token exp is required")
	}
	now := a.cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return nil, apperrors.New(apperrors.CodeCapabilityTokenExpired, "capability token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return nil, apperrors.New(apperrors.CodeCapabilityTokenInvalid, "capability token not active yet")
	}
	if parsed.Subject == "" || parsed.Subject != strings.TrimSpace(principal.AccountID) {
		return nil, apperrors.WithMetadata(apperrors.CodeCapabilityTokenInvalid, "capability token subject mismatch", map[string]string{"Field": "sub"})
	}

	grants := Grants{}
	for _, name := range parsed.Capabilities {
		c, ok := ParseCapability(name)
		if !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeCapabilityTokenInvalid, "capability token names unknown capability", map[string]string{"Capability": name})
		}
		grants[c] = struct{}{}
	}
	return grants, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.Wrap(apperrors.CodeCapabilityTokenInvalid, "capability token signature is invalid", err)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.Wrap(apperrors.CodeCapabilityTokenInvalid, "capability token alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.CodeCapabilityTokenInvalid, "capability token is invalid", err)
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
