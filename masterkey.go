package cryptovault

import (
	"crypto/rand"
	"runtime"
	"sync"
)

// MasterKey holds the vault's two 256-bit secrets: an AES key for content
// encryption and a MAC key for directory-ID hashing and the SIV_CTRMAC
// combo's authentication. Both are kept in mlocked, non-core-dumpable
// memory (memsafe.go) behind a RWMutex; access always goes through the
// With* closures, which never let the raw bytes outlive the critical
// section.
//
// A MasterKey constructed from a successful Unlock is immutable for its
// lifetime; Destroy zeroizes it. The zero value is not usable.
type MasterKey struct {
	mu     sync.RWMutex
	aesKey *lockedBytes
	macKey *lockedBytes
}

// newMasterKey takes ownership of aesKey/macKey, which must each be exactly
// 32 bytes. The caller's copies are not zeroized; callers that generated
// them locally are responsible for that.
func newMasterKey(aesKey, macKey []byte) (*MasterKey, error) {
	if err := validateKeySize(aesKey, 32); err != nil {
		return nil, err
	}
	if err := validateKeySize(macKey, 32); err != nil {
		return nil, err
	}
	lockedAES, err := newLockedBytes(aesKey)
	if err != nil {
		return nil, err
	}
	lockedMAC, err := newLockedBytes(macKey)
	if err != nil {
		lockedAES.zeroize()
		return nil, err
	}
	mk := &MasterKey{aesKey: lockedAES, macKey: lockedMAC}
	runtime.SetFinalizer(mk, (*MasterKey).Destroy)
	return mk, nil
}

// RandomMasterKey generates fresh key material for new-vault creation,
// using a cryptographic RNG.
func RandomMasterKey() (*MasterKey, error) {
	aesKey := make([]byte, 32)
	macKey := make([]byte, 32)
	if _, err := rand.Read(aesKey); err != nil {
		return nil, err
	}
	if _, err := rand.Read(macKey); err != nil {
		return nil, err
	}
	mk, err := newMasterKey(aesKey, macKey)
	for i := range aesKey {
		aesKey[i] = 0
	}
	for i := range macKey {
		macKey[i] = 0
	}
	return mk, err
}

// WithAESKey grants fn scoped read access to the 32-byte AES key and
// returns whatever fn returns. The slice passed to fn is only valid for
// the duration of the call.
func (mk *MasterKey) WithAESKey(fn func(key *[32]byte) ([]byte, error)) ([]byte, error) {
	mk.mu.RLock()
	defer mk.mu.RUnlock()
	return mk.aesKey.withBytes(func(b []byte) ([]byte, error) {
		var arr [32]byte
		copy(arr[:], b)
		defer zeroizeArray(&arr)
		return fn(&arr)
	})
}

// WithMACKey grants fn scoped read access to the 32-byte MAC key.
func (mk *MasterKey) WithMACKey(fn func(key *[32]byte) ([]byte, error)) ([]byte, error) {
	mk.mu.RLock()
	defer mk.mu.RUnlock()
	return mk.macKey.withBytes(func(b []byte) ([]byte, error) {
		var arr [32]byte
		copy(arr[:], b)
		defer zeroizeArray(&arr)
		return fn(&arr)
	})
}

// WithKeys grants fn scoped read access to both key halves under a single
// read-lock acquisition, for the content codec paths that need the AES key
// for encryption and the MAC key for authentication in the same critical
// section.
func (mk *MasterKey) WithKeys(fn func(enc, mac *[32]byte) error) error {
	mk.mu.RLock()
	defer mk.mu.RUnlock()
	_, err := mk.aesKey.withBytes(func(a []byte) ([]byte, error) {
		var enc [32]byte
		copy(enc[:], a)
		defer zeroizeArray(&enc)
		_, err := mk.macKey.withBytes(func(m []byte) ([]byte, error) {
			var mac [32]byte
			copy(mac[:], m)
			defer zeroizeArray(&mac)
			return nil, fn(&enc, &mac)
		})
		return nil, err
	})
	return err
}

// sivKey returns the 64-byte AES-SIV key used for filenames and directory
// IDs: MAC key first (S2V/CMAC half), then AES key (CTR half), matching
// the Cryptomator convention of keying SIV with (mac || enc).
func (mk *MasterKey) sivKey() ([]byte, error) {
	mk.mu.RLock()
	defer mk.mu.RUnlock()

	var out []byte
	_, err := mk.macKey.withBytes(func(mac []byte) ([]byte, error) {
		_, err := mk.aesKey.withBytes(func(aesB []byte) ([]byte, error) {
			out = make([]byte, 64)
			copy(out[:32], mac)
			copy(out[32:], aesB)
			return nil, nil
		})
		return nil, err
	})
	return out, err
}

// Destroy zeroizes the key material. Safe to call more than once; the
// MasterKey must not be used afterward.
func (mk *MasterKey) Destroy() {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	mk.aesKey.zeroize()
	mk.macKey.zeroize()
	runtime.SetFinalizer(mk, nil)
}

func zeroizeArray(a *[32]byte) {
	for i := range a {
		a[i] = 0
	}
}
