package cryptovault

import "fmt"

// MaxSymlinkTargetLength bounds a symlink target to 4096 bytes, well within
// one chunk of plaintext (MaxChunkPayloadSize), mirroring common filesystem
// limits; longer targets are rejected.
const MaxSymlinkTargetLength = 4096

// writeSymlinkTarget authenticates and writes target to the symlink.c9r
// content path using the same fixed-header/chunked codec as regular file
// content, so a symlink target benefits from the same tamper detection.
func writeSymlinkTarget(path string, encKey, macKey *[32]byte, combo CipherCombo, target string) error {
	if len(target) == 0 || len(target) > MaxSymlinkTargetLength {
		return fmt.Errorf("%w: symlink target length %d", ErrInvalidArgument, len(target))
	}
	w, err := CreateWriter(path, encKey, macKey, combo)
	if err != nil {
		return err
	}
	if _, err := w.Append([]byte(target)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// readSymlinkTarget decrypts and returns a symlink's target.
func readSymlinkTarget(path string, encKey, macKey *[32]byte, combo CipherCombo) (string, error) {
	r, err := OpenReader(path, encKey, macKey, combo)
	if err != nil {
		return "", err
	}
	defer r.Close()

	buf := make([]byte, r.Size())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return "", err
	}
	return string(buf), nil
}
