package cryptovault

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio"
)

// CipherCombo identifies the content-encryption scheme a vault was created
// with. It is fixed at vault-creation time and changed only by
// RotateCipherCombo, which re-encrypts every file.
type CipherCombo string

const (
	// SIVGCM pairs AES-SIV-encrypted names with AES-256-GCM file content:
	// 12-byte nonce, 16-byte tag, 68-byte header.
	SIVGCM CipherCombo = "SIV_GCM"
	// SIVCTRMAC pairs AES-SIV-encrypted names with AES-256-CTR content
	// authenticated by HMAC-SHA256: 16-byte nonce, 32-byte MAC, 88-byte
	// header.
	SIVCTRMAC CipherCombo = "SIV_CTRMAC"
)

func (c CipherCombo) valid() bool {
	return c == SIVGCM || c == SIVCTRMAC
}

const (
	configFormatVersion        = 8
	defaultShorteningThreshold = 220
)

// VaultConfig is the decoded, signature-verified content of
// vault.cryptomator. The token on disk is a compact, HMAC-SHA256-signed
// claims payload in the style of a JWS; signing and verification are
// built directly on crypto/hmac.
type VaultConfig struct {
	FormatVersion       int
	CipherCombo         CipherCombo
	ShorteningThreshold int
}

// Validate reports whether the config is self-consistent and within the
// bounds this implementation supports.
func (c VaultConfig) Validate() error {
	if c.FormatVersion != configFormatVersion {
		return fmt.Errorf("%w: vault config format %d", ErrUnsupportedVersion, c.FormatVersion)
	}
	if !c.CipherCombo.valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedCipher, c.CipherCombo)
	}
	if c.ShorteningThreshold <= 0 {
		return NewValidationError("ShorteningThreshold", c.ShorteningThreshold, "must be positive")
	}
	return nil
}

type configClaims struct {
	FormatVersion       int    `json:"format"`
	CipherCombo         string `json:"cipherCombo"`
	ShorteningThreshold int    `json:"shorteningThreshold"`
}

type configHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func b64Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// signConfig produces the compact three-segment token
// base64(header).base64(claims).base64(hmac), keyed by the vault's raw MAC
// key (not the same key-scoping discipline as MasterKey.WithMACKey, since
// the config token is signed once at creation/rotation time, not on every
// I/O).
func signConfig(cfg VaultConfig, macKey []byte) ([]byte, error) {
	header, err := json.Marshal(configHeader{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return nil, err
	}
	claims, err := json.Marshal(configClaims{
		FormatVersion:       cfg.FormatVersion,
		CipherCombo:         string(cfg.CipherCombo),
		ShorteningThreshold: cfg.ShorteningThreshold,
	})
	if err != nil {
		return nil, err
	}

	signingInput := b64(header) + "." + b64(claims)
	mac := hmac.New(sha256.New, macKey)
	mac.Write([]byte(signingInput))
	sig := mac.Sum(nil)

	return []byte(signingInput + "." + b64(sig)), nil
}

// parseAndVerifyConfig splits, decodes, and verifies a config token against
// macKey using a constant-time comparison, then validates the resulting
// claims.
func parseAndVerifyConfig(token []byte, macKey []byte) (VaultConfig, error) {
	parts := splitToken(token)
	if len(parts) != 3 {
		return VaultConfig{}, fmt.Errorf("%w: vault config token", ErrMalformed)
	}

	mac := hmac.New(sha256.New, macKey)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	expected := mac.Sum(nil)

	gotSig, err := b64Decode(parts[2])
	if err != nil {
		return VaultConfig{}, fmt.Errorf("%w: vault config signature", ErrMalformed)
	}
	if subtle.ConstantTimeCompare(expected, gotSig) != 1 {
		return VaultConfig{}, ErrAuthFailed
	}

	claimsRaw, err := b64Decode(parts[1])
	if err != nil {
		return VaultConfig{}, fmt.Errorf("%w: vault config claims", ErrMalformed)
	}
	var claims configClaims
	if err := json.Unmarshal(claimsRaw, &claims); err != nil {
		return VaultConfig{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cfg := VaultConfig{
		FormatVersion:       claims.FormatVersion,
		CipherCombo:         CipherCombo(claims.CipherCombo),
		ShorteningThreshold: claims.ShorteningThreshold,
	}
	if cfg.ShorteningThreshold == 0 {
		cfg.ShorteningThreshold = defaultShorteningThreshold
	}
	if err := cfg.Validate(); err != nil {
		return VaultConfig{}, err
	}
	return cfg, nil
}

func splitToken(token []byte) []string {
	var parts []string
	start := 0
	for i, b := range token {
		if b == '.' {
			parts = append(parts, string(token[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, string(token[start:]))
	return parts
}

// ReadVaultConfig loads and verifies vault.cryptomator at path against the
// vault's MAC key.
func ReadVaultConfig(path string, mk *MasterKey) (VaultConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return VaultConfig{}, NewPathError("read-config", path, err)
	}
	var cfg VaultConfig
	_, err = mk.WithMACKey(func(key *[32]byte) ([]byte, error) {
		c, err := parseAndVerifyConfig(raw, key[:])
		cfg = c
		return nil, err
	})
	return cfg, err
}

// WriteVaultConfig signs cfg with the vault's MAC key and atomically writes
// it to path.
func WriteVaultConfig(path string, cfg VaultConfig, mk *MasterKey) error {
	if cfg.ShorteningThreshold == 0 {
		cfg.ShorteningThreshold = defaultShorteningThreshold
	}
	if cfg.FormatVersion == 0 {
		cfg.FormatVersion = configFormatVersion
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	token, err := mk.WithMACKey(func(key *[32]byte) ([]byte, error) {
		return signConfig(cfg, key[:])
	})
	if err != nil {
		return err
	}

	f, err := renameio.TempFile("", path)
	if err != nil {
		return NewPathError("write-config", path, err)
	}
	defer f.Cleanup()
	if _, err := f.Write(token); err != nil {
		return NewPathError("write-config", path, err)
	}
	return f.CloseAtomicallyReplace()
}
