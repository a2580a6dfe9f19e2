package cryptovault

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/base64"
	"fmt"
)

var base32Encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NameCodec encrypts and decrypts the individual filename components stored
// under d/<shard>/<dirID storage path>, using the parent directory's ID as
// AES-SIV additional authenticated data so a ciphertext name can never be
// replayed into a different directory.
type NameCodec struct {
	siv                 *SIVEngine
	shorteningThreshold int
}

// NewNameCodec derives the codec's 64-byte SIV key from mk and applies the
// vault's configured shortening threshold.
func NewNameCodec(mk *MasterKey, shorteningThreshold int) (*NameCodec, error) {
	key, err := mk.sivKey()
	if err != nil {
		return nil, err
	}
	defer zeroizeSlice(key)
	siv, err := NewSIVEngine(key)
	if err != nil {
		return nil, err
	}
	if shorteningThreshold <= 0 {
		shorteningThreshold = defaultShorteningThreshold
	}
	return &NameCodec{siv: siv, shorteningThreshold: shorteningThreshold}, nil
}

// EncryptName encrypts a single plaintext path component for storage inside
// the directory identified by parent, returning the base32-no-padding
// ciphertext name (without the .c9r suffix, which callers append).
func (nc *NameCodec) EncryptName(plaintext string, parent DirId) (string, error) {
	if err := validatePathComponent(plaintext); err != nil {
		return "", err
	}
	ct, err := nc.siv.Encrypt([]byte(plaintext), []byte(parent))
	if err != nil {
		return "", err
	}
	return base32Encoding.EncodeToString(ct), nil
}

// DecryptName reverses EncryptName. ciphertext must be the base32 name with
// no .c9r suffix.
func (nc *NameCodec) DecryptName(ciphertext string, parent DirId) (string, error) {
	raw, err := base32Encoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	pt, err := nc.siv.Decrypt(raw, []byte(parent))
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(pt), nil
}

// HashDirID derives the two-level shard path segment for a directory ID:
// base32(SHA1(AES-SIV(dirID))), split as {first 2 chars}/{remaining 30}.
func (nc *NameCodec) HashDirID(id DirId) (shard, rest string, err error) {
	ct, err := nc.siv.Encrypt([]byte(id))
	if err != nil {
		return "", "", err
	}
	sum := sha1.Sum(ct)
	full := base32Encoding.EncodeToString(sum[:])
	if len(full) < 2 {
		return "", "", fmt.Errorf("%w: digest too short", ErrMalformed)
	}
	return full[:2], full[2:], nil
}

// NeedsShortening reports whether an encrypted name (including its .c9r
// suffix) exceeds the vault's shortening threshold and must instead be
// stored as a .c9s entry.
func (nc *NameCodec) NeedsShortening(encryptedNameWithSuffix string) bool {
	return len(encryptedNameWithSuffix) > nc.shorteningThreshold
}

// ShortenedName computes the deflated .c9s directory name for an
// over-length encrypted name: base64url(SHA1(encryptedNameWithSuffix)).
func ShortenedName(encryptedNameWithSuffix string) string {
	sum := sha1.Sum([]byte(encryptedNameWithSuffix))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
