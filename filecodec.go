package cryptovault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// MaxChunkPayloadSize is the maximum plaintext size of one content chunk;
// files are split into chunks of at most this size before encryption.
const MaxChunkPayloadSize = 32 * 1024

// fileCipher encrypts and decrypts one file's header and content chunks
// under a given combo. Each open file gets a fresh per-file content key,
// generated once and wrapped into the header: headers
// are never reused across files, and the content key never appears outside
// this package's memory. encKey is the master AES key; macKey is the master
// MAC key, which carries all HMAC authentication in the SIV_CTRMAC combo
// and is ignored by SIV_GCM (whose AEAD tags authenticate on their own).
type fileCipher interface {
	// HeaderSize is the fixed on-disk size of the encrypted file header.
	HeaderSize() int
	// NewHeader generates a fresh content key and returns its encrypted
	// header plus the key material, ready for EncryptChunk.
	NewHeader(encKey, macKey *[32]byte) (header []byte, contentKey, headerNonce []byte, err error)
	// OpenHeader decrypts header and returns the content key and the
	// header nonce (used as chunk AAD).
	OpenHeader(encKey, macKey *[32]byte, header []byte) (contentKey, headerNonce []byte, err error)
	// EncryptChunk encrypts one plaintext chunk at chunkNumber.
	EncryptChunk(contentKey, macKey, headerNonce []byte, chunkNumber uint64, plaintext []byte) ([]byte, error)
	// DecryptChunk decrypts and authenticates one chunk.
	DecryptChunk(contentKey, macKey, headerNonce []byte, chunkNumber uint64, chunk []byte) ([]byte, error)
	// ChunkOverhead is the number of bytes a chunk adds beyond its
	// plaintext payload (nonce + tag/MAC).
	ChunkOverhead() int
}

func newFileCipher(combo CipherCombo) (fileCipher, error) {
	switch combo {
	case SIVGCM:
		return gcmFileCipher{}, nil
	case SIVCTRMAC:
		return ctrMacFileCipher{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCipher, combo)
	}
}

func chunkNumberBytes(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

// --- SIV_GCM combo: 12-byte header/chunk nonces, AES-256-GCM content. ---
// Header layout: 12-byte nonce || 40-byte encrypted payload (8 reserved
// 0xFF bytes + 32-byte content key) || 16-byte GCM tag = 68 bytes.

type gcmFileCipher struct{}

const (
	gcmNonceSize  = 12
	gcmTagSize    = 16
	gcmHeaderSize = gcmNonceSize + 8 + 32 + gcmTagSize // 68
)

func (gcmFileCipher) HeaderSize() int    { return gcmHeaderSize }
func (gcmFileCipher) ChunkOverhead() int { return gcmNonceSize + gcmTagSize }

func (gcmFileCipher) NewHeader(encKey, _ *[32]byte) (header []byte, contentKey, headerNonce []byte, err error) {
	contentKey = make([]byte, 32)
	if _, err = rand.Read(contentKey); err != nil {
		return nil, nil, nil, err
	}
	headerNonce = make([]byte, gcmNonceSize)
	if _, err = rand.Read(headerNonce); err != nil {
		return nil, nil, nil, err
	}

	payload := make([]byte, 8+32)
	for i := 0; i < 8; i++ {
		payload[i] = 0xFF
	}
	copy(payload[8:], contentKey)

	aead, err := newGCM(encKey[:])
	if err != nil {
		return nil, nil, nil, err
	}
	sealed := aead.Seal(nil, headerNonce, payload, nil)

	header = make([]byte, 0, gcmHeaderSize)
	header = append(header, headerNonce...)
	header = append(header, sealed...)
	return header, contentKey, headerNonce, nil
}

func (gcmFileCipher) OpenHeader(encKey, _ *[32]byte, header []byte) (contentKey, headerNonce []byte, err error) {
	if len(header) != gcmHeaderSize {
		return nil, nil, fmt.Errorf("%w: header size %d", ErrMalformed, len(header))
	}
	headerNonce = append([]byte(nil), header[:gcmNonceSize]...)
	sealed := header[gcmNonceSize:]

	aead, err := newGCM(encKey[:])
	if err != nil {
		return nil, nil, err
	}
	payload, err := aead.Open(nil, headerNonce, sealed, nil)
	if err != nil {
		return nil, nil, NewCryptoError("decrypt-header", "", -1, ErrAuthFailed)
	}
	if len(payload) != 40 {
		return nil, nil, fmt.Errorf("%w: header payload size", ErrMalformed)
	}
	contentKey = append([]byte(nil), payload[8:]...)
	return contentKey, headerNonce, nil
}

func (gcmFileCipher) EncryptChunk(contentKey, _, headerNonce []byte, chunkNumber uint64, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(contentKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	aad := append(append([]byte(nil), headerNonce...), chunkNumberBytes(chunkNumber)...)
	sealed := aead.Seal(nil, nonce, plaintext, aad)

	out := make([]byte, 0, gcmNonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (gcmFileCipher) DecryptChunk(contentKey, _, headerNonce []byte, chunkNumber uint64, chunk []byte) ([]byte, error) {
	if len(chunk) < gcmNonceSize+gcmTagSize {
		return nil, ErrShortRead
	}
	nonce := chunk[:gcmNonceSize]
	sealed := chunk[gcmNonceSize:]
	aad := append(append([]byte(nil), headerNonce...), chunkNumberBytes(chunkNumber)...)

	aead, err := newGCM(contentKey)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, NewCryptoError("decrypt-chunk", "", int64(chunkNumber), ErrAuthFailed)
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// --- SIV_CTRMAC combo: 16-byte nonces, AES-256-CTR content authenticated
// by HMAC-SHA256 under the master MAC key. Header layout: 16-byte nonce ||
// 40-byte CTR-encrypted payload || 32-byte HMAC over (nonce || payload) =
// 88 bytes. Chunk layout: 16-byte nonce || ciphertext || 32-byte HMAC over
// (headerNonce || chunkNumber || nonce || ciphertext).

type ctrMacFileCipher struct{}

const (
	ctrNonceSize  = 16
	ctrMacSize    = 32
	ctrHeaderSize = ctrNonceSize + 40 + ctrMacSize // 88
)

func (ctrMacFileCipher) HeaderSize() int    { return ctrHeaderSize }
func (ctrMacFileCipher) ChunkOverhead() int { return ctrNonceSize + ctrMacSize }

func (ctrMacFileCipher) NewHeader(encKey, macKey *[32]byte) (header []byte, contentKey, headerNonce []byte, err error) {
	contentKey = make([]byte, 32)
	if _, err = rand.Read(contentKey); err != nil {
		return nil, nil, nil, err
	}
	headerNonce = make([]byte, ctrNonceSize)
	if _, err = rand.Read(headerNonce); err != nil {
		return nil, nil, nil, err
	}

	payload := make([]byte, 8+32)
	for i := 0; i < 8; i++ {
		payload[i] = 0xFF
	}
	copy(payload[8:], contentKey)

	ciphertext, err := ctrCrypt(encKey[:], headerNonce, payload)
	if err != nil {
		return nil, nil, nil, err
	}

	mac := hmac.New(sha256.New, macKey[:])
	mac.Write(headerNonce)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	header = make([]byte, 0, ctrHeaderSize)
	header = append(header, headerNonce...)
	header = append(header, ciphertext...)
	header = append(header, tag...)
	return header, contentKey, headerNonce, nil
}

func (ctrMacFileCipher) OpenHeader(encKey, macKey *[32]byte, header []byte) (contentKey, headerNonce []byte, err error) {
	if len(header) != ctrHeaderSize {
		return nil, nil, fmt.Errorf("%w: header size %d", ErrMalformed, len(header))
	}
	headerNonce = append([]byte(nil), header[:ctrNonceSize]...)
	ciphertext := header[ctrNonceSize : ctrNonceSize+40]
	tag := header[ctrNonceSize+40:]

	mac := hmac.New(sha256.New, macKey[:])
	mac.Write(headerNonce)
	mac.Write(ciphertext)
	expected := mac.Sum(nil)
	if subtle.ConstantTimeCompare(expected, tag) != 1 {
		return nil, nil, NewCryptoError("decrypt-header", "", -1, ErrAuthFailed)
	}

	payload, err := ctrCrypt(encKey[:], headerNonce, ciphertext)
	if err != nil {
		return nil, nil, err
	}
	contentKey = append([]byte(nil), payload[8:]...)
	return contentKey, headerNonce, nil
}

func (ctrMacFileCipher) EncryptChunk(contentKey, macKey, headerNonce []byte, chunkNumber uint64, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, ctrNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext, err := ctrCrypt(contentKey, nonce, plaintext)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, macKey)
	mac.Write(headerNonce)
	mac.Write(chunkNumberBytes(chunkNumber))
	mac.Write(nonce)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	out := make([]byte, 0, ctrNonceSize+len(ciphertext)+ctrMacSize)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out, nil
}

func (ctrMacFileCipher) DecryptChunk(contentKey, macKey, headerNonce []byte, chunkNumber uint64, chunk []byte) ([]byte, error) {
	if len(chunk) < ctrNonceSize+ctrMacSize {
		return nil, ErrShortRead
	}
	nonce := chunk[:ctrNonceSize]
	ciphertext := chunk[ctrNonceSize : len(chunk)-ctrMacSize]
	tag := chunk[len(chunk)-ctrMacSize:]

	mac := hmac.New(sha256.New, macKey)
	mac.Write(headerNonce)
	mac.Write(chunkNumberBytes(chunkNumber))
	mac.Write(nonce)
	mac.Write(ciphertext)
	expected := mac.Sum(nil)
	if subtle.ConstantTimeCompare(expected, tag) != 1 {
		return nil, NewCryptoError("decrypt-chunk", "", int64(chunkNumber), ErrAuthFailed)
	}

	return ctrCrypt(contentKey, nonce, ciphertext)
}

// ctrCrypt runs AES-CTR; it is its own inverse.
func ctrCrypt(key, nonce, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	copy(iv, nonce)
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}
