package cryptovault

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio"
	"golang.org/x/crypto/scrypt"
)

// Default scrypt cost parameters for masterkey.cryptomator, matching the
// values Cryptomator itself ships.
const (
	defaultScryptN       = 1 << 15
	defaultScryptR       = 8
	defaultScryptP       = 1
	masterKeyFileVersion = 999
)

// masterKeyFile is the JSON structure persisted as masterkey.cryptomator:
// the scrypt salt/cost parameters and the two RFC 3394-wrapped key halves.
// Field names and casing follow the on-disk format exactly; they are not
// meant to be idiomatic Go identifiers.
type masterKeyFile struct {
	ScryptSalt        []byte `json:"scryptSalt"`
	ScryptCostParam   int    `json:"scryptCostParam"`
	ScryptBlockSize   int    `json:"scryptBlockSize"`
	ScryptParallelism int    `json:"scryptParallelism,omitempty"`
	PrimaryMasterKey  []byte `json:"primaryMasterKey"`
	HmacMasterKey     []byte `json:"hmacMasterKey"`
	VersionMac        []byte `json:"versionMac,omitempty"`
	Version           int    `json:"version"`
}

// versionMacOf computes the file's HMAC-SHA256 over its big-endian version
// code, keyed by the unwrapped MAC key. It binds the version field to the
// key material so a downgrade edit is detectable.
func versionMacOf(macKey []byte, version int) []byte {
	mac := hmac.New(sha256.New, macKey)
	var vb [4]byte
	binary.BigEndian.PutUint32(vb[:], uint32(version))
	mac.Write(vb[:])
	return mac.Sum(nil)
}

// ScryptParams controls the password KDF cost used when wrapping a
// MasterKey into a masterkey.cryptomator file. The zero value resolves to
// Cryptomator's own defaults.
type ScryptParams struct {
	N int
	R int
	P int
}

func (p ScryptParams) withDefaults() ScryptParams {
	if p.N == 0 {
		p.N = defaultScryptN
	}
	if p.R == 0 {
		p.R = defaultScryptR
	}
	if p.P == 0 {
		p.P = defaultScryptP
	}
	return p
}

// UnlockMasterKeyFile reads and decrypts a masterkey.cryptomator-shaped file
// at path, deriving the KEK from password via scrypt and unwrapping both
// key halves with RFC 3394 key unwrap (keywrap.go). Returns ErrAuthFailed
// if the password is wrong or the file has been tampered with.
func UnlockMasterKeyFile(path string, password []byte) (*MasterKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewPathError("unlock", path, err)
	}
	return UnlockMasterKeyBytes(raw, password)
}

// UnlockMasterKeyBytes is UnlockMasterKeyFile without the filesystem read,
// for callers that already have the masterkey.cryptomator contents (e.g.
// fetched from a config service rather than local disk).
func UnlockMasterKeyBytes(raw []byte, password []byte) (*MasterKey, error) {
	var mkf masterKeyFile
	if err := json.Unmarshal(raw, &mkf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if mkf.ScryptCostParam == 0 || mkf.ScryptBlockSize == 0 {
		return nil, fmt.Errorf("%w: missing scrypt parameters", ErrMalformed)
	}
	if len(password) == 0 {
		return nil, NewValidationError("password", nil, "password must not be empty")
	}

	p := mkf.ScryptParallelism
	if p == 0 {
		p = defaultScryptP
	}
	kek, err := scrypt.Key(password, mkf.ScryptSalt, mkf.ScryptCostParam, mkf.ScryptBlockSize, p, 32)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	defer zeroizeSlice(kek)

	aesKey, err := unwrapKey(kek, mkf.PrimaryMasterKey)
	if err != nil {
		return nil, ErrAuthFailed
	}
	defer zeroizeSlice(aesKey)
	macKey, err := unwrapKey(kek, mkf.HmacMasterKey)
	if err != nil {
		zeroizeSlice(aesKey)
		return nil, ErrAuthFailed
	}
	defer zeroizeSlice(macKey)

	if len(mkf.VersionMac) > 0 {
		if subtle.ConstantTimeCompare(versionMacOf(macKey, mkf.Version), mkf.VersionMac) != 1 {
			return nil, ErrAuthFailed
		}
	}

	return newMasterKey(aesKey, macKey)
}

// WriteMasterKeyFile wraps mk under a scrypt-derived KEK and atomically
// writes the result to path as masterkey.cryptomator JSON, using
// renameio so a crash mid-write never leaves a corrupt or partial key
// file behind.
func WriteMasterKeyFile(path string, mk *MasterKey, password []byte, params ScryptParams) error {
	params = params.withDefaults()
	if len(password) == 0 {
		return NewValidationError("password", nil, "password must not be empty")
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	kek, err := scrypt.Key(password, salt, params.N, params.R, params.P, 32)
	if err != nil {
		return fmt.Errorf("scrypt: %w", err)
	}
	defer zeroizeSlice(kek)

	wrappedAES, err := mk.WithAESKey(func(key *[32]byte) ([]byte, error) {
		return wrapKey(kek, key[:])
	})
	if err != nil {
		return err
	}
	wrappedMAC, err := mk.WithMACKey(func(key *[32]byte) ([]byte, error) {
		return wrapKey(kek, key[:])
	})
	if err != nil {
		return err
	}
	versionMac, err := mk.WithMACKey(func(key *[32]byte) ([]byte, error) {
		return versionMacOf(key[:], masterKeyFileVersion), nil
	})
	if err != nil {
		return err
	}

	mkf := masterKeyFile{
		ScryptSalt:        salt,
		ScryptCostParam:   params.N,
		ScryptBlockSize:   params.R,
		ScryptParallelism: params.P,
		PrimaryMasterKey:  wrappedAES,
		HmacMasterKey:     wrappedMAC,
		VersionMac:        versionMac,
		Version:           masterKeyFileVersion,
	}

	data, err := json.MarshalIndent(mkf, "", "  ")
	if err != nil {
		return err
	}

	f, err := renameio.TempFile("", path)
	if err != nil {
		return NewPathError("write", path, err)
	}
	defer f.Cleanup()
	if _, err := f.Write(data); err != nil {
		return NewPathError("write", path, err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return NewPathError("write", path, err)
	}
	return nil
}

// ChangeMasterKeyPassword re-derives the KEK under a new password and
// rewrites path in place, without touching the key material itself or any
// encrypted file content — this is the narrow, cheap operation; compare
// RotateCipherCombo in keyrotation.go, which re-encrypts content.
func ChangeMasterKeyPassword(path string, oldPassword, newPassword []byte) error {
	mk, err := UnlockMasterKeyFile(path, oldPassword)
	if err != nil {
		return err
	}
	defer mk.Destroy()
	return WriteMasterKeyFile(path, mk, newPassword, ScryptParams{})
}

func zeroizeSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
