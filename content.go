package cryptovault

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// chunkPlaintextSize returns how many plaintext bytes chunk index idx of a
// file holds, given the file's total plaintext size.
func chunkPlaintextSize(totalPlaintext int64, idx int64) int64 {
	remaining := totalPlaintext - idx*MaxChunkPayloadSize
	if remaining <= 0 {
		return 0
	}
	if remaining > MaxChunkPayloadSize {
		return MaxChunkPayloadSize
	}
	return remaining
}

// plaintextSizeFromCiphertext computes a file's total plaintext size from
// its on-disk ciphertext size and the combo's per-chunk overhead: every
// full chunk contributes MaxChunkPayloadSize bytes of plaintext, the
// trailing partial chunk contributes whatever is left after subtracting
// its own overhead.
func plaintextSizeFromCiphertext(cipherSize int64, hdr fileCipher) (int64, error) {
	body := cipherSize - int64(hdr.HeaderSize())
	if body < 0 {
		return 0, fmt.Errorf("%w: file shorter than header", ErrMalformed)
	}
	if body == 0 {
		return 0, nil
	}
	overhead := int64(hdr.ChunkOverhead())
	fullCiphertextChunk := int64(MaxChunkPayloadSize) + overhead

	fullChunks := body / fullCiphertextChunk
	rem := body % fullCiphertextChunk
	total := fullChunks * MaxChunkPayloadSize
	if rem > 0 {
		if rem <= overhead {
			return 0, fmt.Errorf("%w: trailing chunk shorter than overhead", ErrMalformed)
		}
		total += rem - overhead
	}
	return total, nil
}

// Reader provides random-access, authenticated reads over one encrypted
// vault file. Every ReadAt call decrypts and verifies only the chunks it
// needs; there is no whole-file buffering.
type Reader struct {
	mu          sync.Mutex
	f           *os.File
	cipher      fileCipher
	contentKey  []byte
	macKey      []byte
	headerNonce []byte
	size        int64
}

// OpenReader opens path for authenticated reading under the master-key
// halves encKey/macKey. combo must match the cipher combo the file was
// encrypted with.
func OpenReader(path string, encKey, macKey *[32]byte, combo CipherCombo) (*Reader, error) {
	fc, err := newFileCipher(combo)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, NewPathError("read", path, err)
	}

	header := make([]byte, fc.HeaderSize())
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrShortRead
		}
		return nil, err
	}
	contentKey, headerNonce, err := fc.OpenHeader(encKey, macKey, header)
	if err != nil {
		f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size, err := plaintextSizeFromCiphertext(info.Size(), fc)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Reader{
		f:           f,
		cipher:      fc,
		contentKey:  contentKey,
		macKey:      append([]byte(nil), macKey[:]...),
		headerNonce: headerNonce,
		size:        size,
	}, nil
}

// Size returns the file's plaintext length.
func (r *Reader) Size() int64 { return r.size }

// ReadAt implements io.ReaderAt over the decrypted plaintext.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if err := validateOffset(off, "off"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if off >= r.size {
		return 0, io.EOF
	}
	want := p
	if int64(len(want)) > r.size-off {
		want = want[:r.size-off]
	}

	n := 0
	for n < len(want) {
		abs := off + int64(n)
		chunkIdx := abs / MaxChunkPayloadSize
		chunkOff := abs % MaxChunkPayloadSize

		plain, err := r.readChunk(chunkIdx)
		if err != nil {
			return n, err
		}
		copied := copy(want[n:], plain[chunkOff:])
		n += copied
	}
	if len(want) < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *Reader) readChunk(idx int64) ([]byte, error) {
	maxIdx := r.size / MaxChunkPayloadSize
	if err := validateChunkIndex(idx, maxIdx, "readChunk"); err != nil {
		return nil, err
	}
	plainLen := chunkPlaintextSize(r.size, idx)
	if plainLen == 0 {
		return nil, io.EOF
	}
	cipherLen := plainLen + int64(r.cipher.ChunkOverhead())
	offset := int64(r.cipher.HeaderSize()) + idx*(MaxChunkPayloadSize+int64(r.cipher.ChunkOverhead()))

	buf := make([]byte, cipherLen)
	if _, err := r.f.ReadAt(buf, offset); err != nil {
		if err == io.EOF {
			return nil, ErrShortRead
		}
		return nil, err
	}
	return r.cipher.DecryptChunk(r.contentKey, r.macKey, r.headerNonce, uint64(idx), buf)
}

// Close zeroizes the reader's key material and releases the underlying
// file descriptor.
func (r *Reader) Close() error {
	zeroizeSlice(r.contentKey)
	zeroizeSlice(r.macKey)
	return r.f.Close()
}

// Writer provides chunk-aligned authenticated writes over one encrypted
// vault file. Writes that do not start or end on a chunk boundary trigger
// a read-modify-write of the affected chunk, which re-authenticates and
// re-encrypts it under a fresh per-chunk nonce — chunks are rewritten
// wholesale, never patched in place. A Writer moves through the
// states Open, ActiveChunks (content written but not finalized), and
// Finalized once Close has flushed every pending chunk.
type Writer struct {
	mu          sync.Mutex
	f           *os.File
	cipher      fileCipher
	contentKey  []byte
	macKey      []byte
	headerNonce []byte
	size        int64
	finalized   bool
}

// CreateWriter creates (or truncates) path, writes a fresh header under the
// master-key halves encKey/macKey, and returns a Writer ready to accept
// content.
func CreateWriter(path string, encKey, macKey *[32]byte, combo CipherCombo) (*Writer, error) {
	fc, err := newFileCipher(combo)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, NewPathError("write", path, err)
	}

	header, contentKey, headerNonce, err := fc.NewHeader(encKey, macKey)
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(header); err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{
		f:           f,
		cipher:      fc,
		contentKey:  contentKey,
		macKey:      append([]byte(nil), macKey[:]...),
		headerNonce: headerNonce,
	}, nil
}

// OpenWriter opens an existing encrypted file for in-place writes without
// discarding its content: the header is read back and its content key
// reused, so previously written chunks stay decryptable while new ones are
// patched in or appended.
func OpenWriter(path string, encKey, macKey *[32]byte, combo CipherCombo) (*Writer, error) {
	fc, err := newFileCipher(combo)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, NewPathError("write", path, err)
	}

	header := make([]byte, fc.HeaderSize())
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrShortRead
		}
		return nil, err
	}
	contentKey, headerNonce, err := fc.OpenHeader(encKey, macKey, header)
	if err != nil {
		f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size, err := plaintextSizeFromCiphertext(info.Size(), fc)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{
		f:           f,
		cipher:      fc,
		contentKey:  contentKey,
		macKey:      append([]byte(nil), macKey[:]...),
		headerNonce: headerNonce,
		size:        size,
	}, nil
}

// Size returns the plaintext size written so far.
func (w *Writer) Size() int64 { return w.size }

// WriteAt authenticates and writes plaintext starting at off. Non-aligned
// writes read, decrypt, patch, and re-encrypt the straddled chunk(s). A
// write starting past the current end first zero-fills the gap, so every
// chunk between the old end and off stays decryptable.
func (w *Writer) WriteAt(p []byte, off int64) (int, error) {
	if err := validateOffset(off, "off"); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return 0, fmt.Errorf("%w: write to finalized file", ErrInvalidArgument)
	}
	if off > w.size {
		if err := w.fillGap(off); err != nil {
			return 0, err
		}
	}
	return w.writeLocked(p, off)
}

// fillGap extends the plaintext with zeros up to off. Caller holds w.mu.
func (w *Writer) fillGap(off int64) error {
	zeros := make([]byte, MaxChunkPayloadSize)
	for w.size < off {
		n := off - w.size
		if n > MaxChunkPayloadSize {
			n = MaxChunkPayloadSize
		}
		if _, err := w.writeLocked(zeros[:n], w.size); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeLocked(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		abs := off + int64(n)
		chunkIdx := abs / MaxChunkPayloadSize
		chunkOff := abs % MaxChunkPayloadSize
		room := MaxChunkPayloadSize - chunkOff
		chunkLen := int64(len(p) - n)
		if chunkLen > room {
			chunkLen = room
		}

		existing, err := w.loadPlainChunk(chunkIdx)
		if err != nil {
			return n, err
		}
		needed := chunkOff + chunkLen
		if int64(len(existing)) < needed {
			grown := make([]byte, needed)
			copy(grown, existing)
			existing = grown
		}
		copy(existing[chunkOff:], p[n:n+int(chunkLen)])

		if err := w.storeChunk(chunkIdx, existing); err != nil {
			return n, err
		}
		n += int(chunkLen)

		end := abs + chunkLen
		if end > w.size {
			w.size = end
		}
	}
	return n, nil
}

// loadPlainChunk reads and decrypts chunk idx as it currently stands on
// disk, returning an empty slice if the chunk does not exist yet (a write
// past the current end of file).
func (w *Writer) loadPlainChunk(idx int64) ([]byte, error) {
	plainLen := chunkPlaintextSize(w.size, idx)
	if plainLen == 0 {
		return nil, nil
	}
	cipherLen := plainLen + int64(w.cipher.ChunkOverhead())
	offset := int64(w.cipher.HeaderSize()) + idx*(MaxChunkPayloadSize+int64(w.cipher.ChunkOverhead()))

	buf := make([]byte, cipherLen)
	if _, err := w.f.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return w.cipher.DecryptChunk(w.contentKey, w.macKey, w.headerNonce, uint64(idx), buf)
}

func (w *Writer) storeChunk(idx int64, plain []byte) error {
	encrypted, err := w.cipher.EncryptChunk(w.contentKey, w.macKey, w.headerNonce, uint64(idx), plain)
	if err != nil {
		return err
	}
	offset := int64(w.cipher.HeaderSize()) + idx*(MaxChunkPayloadSize+int64(w.cipher.ChunkOverhead()))
	_, err = w.f.WriteAt(encrypted, offset)
	return err
}

// Append writes p immediately past the current end of file.
func (w *Writer) Append(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return 0, fmt.Errorf("%w: write to finalized file", ErrInvalidArgument)
	}
	return w.writeLocked(p, w.size)
}

// Truncate changes the plaintext length to size, re-encrypting the chunk
// straddling the new boundary if size falls inside it, and dropping every
// full chunk beyond it.
func (w *Writer) Truncate(size int64) error {
	if err := validateOffset(size, "size"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return fmt.Errorf("%w: truncate on finalized file", ErrInvalidArgument)
	}

	switch {
	case size < w.size:
		fullChunks := size / MaxChunkPayloadSize
		chunkOff := size % MaxChunkPayloadSize
		newCipherLen := int64(w.cipher.HeaderSize()) + fullChunks*(MaxChunkPayloadSize+int64(w.cipher.ChunkOverhead()))
		if chunkOff > 0 {
			existing, err := w.loadPlainChunk(fullChunks)
			if err != nil {
				return err
			}
			if int64(len(existing)) > chunkOff {
				existing = existing[:chunkOff]
			}
			if err := w.storeChunk(fullChunks, existing); err != nil {
				return err
			}
			newCipherLen += chunkOff + int64(w.cipher.ChunkOverhead())
		}
		if err := w.f.Truncate(newCipherLen); err != nil {
			return err
		}
		w.size = size
	case size > w.size:
		if err := w.fillGap(size); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the file, moving the Writer to its Finalized
// state. Safe to call once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return nil
	}
	w.finalized = true
	zeroizeSlice(w.contentKey)
	zeroizeSlice(w.macKey)
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
