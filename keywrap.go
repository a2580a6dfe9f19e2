package cryptovault

import (
	"crypto/aes"
	"crypto/subtle"
	"encoding/binary"
)

// keyWrapIV is the default integrity check register from RFC 3394 §2.2.3.1.
var keyWrapIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// wrapKey implements RFC 3394 AES key wrap. plaintext must be a multiple of
// 8 bytes and at least 16.
func wrapKey(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext)%8 != 0 || len(plaintext) < 16 {
		return nil, NewValidationError("plaintext", len(plaintext), "key wrap input must be a multiple of 8 bytes, at least 16")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(plaintext) / 8
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], plaintext[i*8:(i+1)*8])
	}

	var a [8]byte
	copy(a[:], keyWrapIV[:])

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			block.Encrypt(buf, buf)

			t := uint64(n*j + i)
			var tbuf [8]byte
			binary.BigEndian.PutUint64(tbuf[:], t)
			for k := 0; k < 8; k++ {
				a[k] = buf[k] ^ tbuf[k]
			}
			copy(r[i-1][:], buf[8:])
		}
	}

	out := make([]byte, 8+len(plaintext))
	copy(out[:8], a[:])
	for i := 0; i < n; i++ {
		copy(out[8+i*8:], r[i][:])
	}
	return out, nil
}

// unwrapKey implements RFC 3394 AES key unwrap, verifying the integrity
// register in constant time before returning plaintext.
func unwrapKey(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 24 {
		return nil, NewValidationError("wrapped", len(wrapped), "key unwrap input must be a multiple of 8 bytes, at least 24")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(wrapped)/8 - 1
	var a [8]byte
	copy(a[:], wrapped[:8])

	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], wrapped[8+i*8:8+(i+1)*8])
	}

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tbuf [8]byte
			binary.BigEndian.PutUint64(tbuf[:], t)

			var ax [8]byte
			for k := 0; k < 8; k++ {
				ax[k] = a[k] ^ tbuf[k]
			}
			copy(buf[:8], ax[:])
			copy(buf[8:], r[i-1][:])
			block.Decrypt(buf, buf)

			copy(a[:], buf[:8])
			copy(r[i-1][:], buf[8:])
		}
	}

	if subtle.ConstantTimeCompare(a[:], keyWrapIV[:]) != 1 {
		return nil, ErrAuthFailed
	}

	out := make([]byte, n*8)
	for i := 0; i < n; i++ {
		copy(out[i*8:], r[i][:])
	}
	return out, nil
}
