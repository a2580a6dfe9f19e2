package cryptovault

import "fmt"

// Shared precondition checks used across the content codec and vault
// operations layers; centralized here so error messages stay consistent.

// validateBuffer checks that buf is non-nil and at least minSize bytes.
func validateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return NewValidationError(name, nil, "buffer cannot be nil")
	}
	if minSize > 0 && len(buf) < minSize {
		return NewValidationError(name, len(buf), fmt.Sprintf("buffer too small: got %d bytes, need at least %d", len(buf), minSize))
	}
	return nil
}

// validateOffset rejects negative file offsets.
func validateOffset(offset int64, name string) error {
	if offset < 0 {
		return NewValidationError(name, offset, "offset cannot be negative")
	}
	return nil
}

// validateNonceSize checks a nonce against the size a given cipher combo
// expects (12 bytes for SIV_GCM, 16 for SIV_CTRMAC).
func validateNonceSize(nonce []byte, combo CipherCombo) error {
	if nonce == nil {
		return NewValidationError("nonce", nil, "nonce cannot be nil")
	}
	var want int
	switch combo {
	case SIVGCM:
		want = gcmNonceSize
	case SIVCTRMAC:
		want = ctrNonceSize
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedCipher, combo)
	}
	if len(nonce) != want {
		return NewValidationError("nonce", len(nonce), fmt.Sprintf("invalid nonce size: got %d, expected %d for %s", len(nonce), want, combo))
	}
	return nil
}

// validateKeySize checks that key is exactly expectedSize bytes.
func validateKeySize(key []byte, expectedSize int) error {
	if key == nil {
		return NewValidationError("key", nil, "key cannot be nil")
	}
	if len(key) != expectedSize {
		return NewValidationError("key", len(key), fmt.Sprintf("invalid key size: got %d, expected %d", len(key), expectedSize))
	}
	return nil
}

// validateChunkIndex checks a chunk index against the highest valid index
// for a file of a known chunk count.
func validateChunkIndex(index, maxIndex int64, context string) error {
	if index < 0 || index > maxIndex {
		return NewValidationError("chunk_index", index, fmt.Sprintf("%s: chunk index %d out of range [0, %d]", context, index, maxIndex))
	}
	return nil
}

// validateVaultPathArg rejects an empty path where one must name an
// entry (as opposed to the root, which uses the empty VaultPath
// legitimately in ResolvePath).
func validateVaultPathArg(path VaultPath) error {
	if path == "" {
		return NewValidationError("path", path, "path must not be empty")
	}
	return nil
}
