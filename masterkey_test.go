package cryptovault

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestMasterKeyWithAESKeyScoping(t *testing.T) {
	mk, err := RandomMasterKey()
	if err != nil {
		t.Fatalf("RandomMasterKey: %v", err)
	}
	defer mk.Destroy()

	var captured []byte
	_, err = mk.WithAESKey(func(key *[32]byte) ([]byte, error) {
		captured = append([]byte(nil), key[:]...)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("WithAESKey: %v", err)
	}
	if len(captured) != 32 {
		t.Fatalf("key length = %d, want 32", len(captured))
	}
}

func TestMasterKeyWithKeysExposesBothHalves(t *testing.T) {
	mk, err := RandomMasterKey()
	if err != nil {
		t.Fatalf("RandomMasterKey: %v", err)
	}
	defer mk.Destroy()

	var viaSingle [64]byte
	mk.WithAESKey(func(k *[32]byte) ([]byte, error) { copy(viaSingle[:32], k[:]); return nil, nil })
	mk.WithMACKey(func(k *[32]byte) ([]byte, error) { copy(viaSingle[32:], k[:]); return nil, nil })

	var viaPair [64]byte
	err = mk.WithKeys(func(enc, mac *[32]byte) error {
		copy(viaPair[:32], enc[:])
		copy(viaPair[32:], mac[:])
		return nil
	})
	if err != nil {
		t.Fatalf("WithKeys: %v", err)
	}
	if viaPair != viaSingle {
		t.Fatal("WithKeys must expose the same material as the single-key accessors")
	}
}

func TestMasterKeyFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "masterkey.cryptomator")
	password := []byte("correct horse battery staple")

	mk, err := RandomMasterKey()
	if err != nil {
		t.Fatalf("RandomMasterKey: %v", err)
	}
	var aesKey, macKey []byte
	mk.WithAESKey(func(k *[32]byte) ([]byte, error) { aesKey = append([]byte(nil), k[:]...); return nil, nil })
	mk.WithMACKey(func(k *[32]byte) ([]byte, error) { macKey = append([]byte(nil), k[:]...); return nil, nil })

	if err := WriteMasterKeyFile(path, mk, password, ScryptParams{N: 1 << 10, R: 8, P: 1}); err != nil {
		t.Fatalf("WriteMasterKeyFile: %v", err)
	}
	mk.Destroy()

	unlocked, err := UnlockMasterKeyFile(path, password)
	if err != nil {
		t.Fatalf("UnlockMasterKeyFile: %v", err)
	}
	defer unlocked.Destroy()

	var gotAES, gotMAC []byte
	unlocked.WithAESKey(func(k *[32]byte) ([]byte, error) { gotAES = append([]byte(nil), k[:]...); return nil, nil })
	unlocked.WithMACKey(func(k *[32]byte) ([]byte, error) { gotMAC = append([]byte(nil), k[:]...); return nil, nil })

	if !bytes.Equal(aesKey, gotAES) {
		t.Fatal("AES key did not round-trip")
	}
	if !bytes.Equal(macKey, gotMAC) {
		t.Fatal("MAC key did not round-trip")
	}
}

func TestMasterKeyFileWrongPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "masterkey.cryptomator")

	mk, _ := RandomMasterKey()
	defer mk.Destroy()
	if err := WriteMasterKeyFile(path, mk, []byte("right-password"), ScryptParams{N: 1 << 10, R: 8, P: 1}); err != nil {
		t.Fatalf("WriteMasterKeyFile: %v", err)
	}

	if _, err := UnlockMasterKeyFile(path, []byte("wrong-password")); err == nil {
		t.Fatal("expected unlock with wrong password to fail")
	}
}

func TestMasterKeyFileVersionTamperDetected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "masterkey.cryptomator")
	password := []byte("pw")

	mk, _ := RandomMasterKey()
	defer mk.Destroy()
	if err := WriteMasterKeyFile(path, mk, password, ScryptParams{N: 1 << 10, R: 8, P: 1}); err != nil {
		t.Fatalf("WriteMasterKeyFile: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var mkf masterKeyFile
	if err := json.Unmarshal(raw, &mkf); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	mkf.Version = 7
	tampered, err := json.Marshal(mkf)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if _, err := UnlockMasterKeyBytes(tampered, password); err != ErrAuthFailed {
		t.Fatalf("err = %v, want ErrAuthFailed for a tampered version field", err)
	}
}

func TestChangeMasterKeyPasswordPreservesKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "masterkey.cryptomator")

	mk, _ := RandomMasterKey()
	var aesKey []byte
	mk.WithAESKey(func(k *[32]byte) ([]byte, error) { aesKey = append([]byte(nil), k[:]...); return nil, nil })
	if err := WriteMasterKeyFile(path, mk, []byte("old-password"), ScryptParams{N: 1 << 10, R: 8, P: 1}); err != nil {
		t.Fatalf("WriteMasterKeyFile: %v", err)
	}
	mk.Destroy()

	if err := ChangeMasterKeyPassword(path, []byte("old-password"), []byte("new-password")); err != nil {
		t.Fatalf("ChangeMasterKeyPassword: %v", err)
	}

	unlocked, err := UnlockMasterKeyFile(path, []byte("new-password"))
	if err != nil {
		t.Fatalf("UnlockMasterKeyFile with new password: %v", err)
	}
	defer unlocked.Destroy()

	var gotAES []byte
	unlocked.WithAESKey(func(k *[32]byte) ([]byte, error) { gotAES = append([]byte(nil), k[:]...); return nil, nil })
	if !bytes.Equal(aesKey, gotAES) {
		t.Fatal("changing password must not change key material")
	}

	if _, err := UnlockMasterKeyFile(path, []byte("old-password")); err == nil {
		t.Fatal("old password must no longer unlock the file")
	}
}
