package cryptovault

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestWriterReaderRoundTripSingleChunk(t *testing.T) {
	for _, combo := range []CipherCombo{SIVGCM, SIVCTRMAC} {
		t.Run(string(combo), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "content.c9r")
			encKey, macKey := testFileKey(t), testFileKey(t)

			w, err := CreateWriter(path, encKey, macKey, combo)
			if err != nil {
				t.Fatalf("CreateWriter: %v", err)
			}
			data := []byte("small plaintext payload")
			if _, err := w.Append(data); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			r, err := OpenReader(path, encKey, macKey, combo)
			if err != nil {
				t.Fatalf("OpenReader: %v", err)
			}
			defer r.Close()
			if r.Size() != int64(len(data)) {
				t.Fatalf("Size() = %d, want %d", r.Size(), len(data))
			}
			got := make([]byte, len(data))
			if _, err := r.ReadAt(got, 0); err != nil {
				t.Fatalf("ReadAt: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("round trip mismatch: got %q, want %q", got, data)
			}
		})
	}
}

func TestWriterReaderRoundTripMultiChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.c9r")
	encKey, macKey := testFileKey(t), testFileKey(t)

	total := MaxChunkPayloadSize*2 + 1234
	data := make([]byte, total)
	for i := range data {
		data[i] = byte(i)
	}

	w, err := CreateWriter(path, encKey, macKey, SIVGCM)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if _, err := w.Append(data); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path, encKey, macKey, SIVGCM)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	if r.Size() != int64(total) {
		t.Fatalf("Size() = %d, want %d", r.Size(), total)
	}

	got := make([]byte, total)
	if _, err := r.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("multi-chunk round trip mismatch")
	}

	partial := make([]byte, 500)
	n, err := r.ReadAt(partial, int64(MaxChunkPayloadSize)-100)
	if err != nil {
		t.Fatalf("ReadAt straddling chunk boundary: %v", err)
	}
	if n != len(partial) {
		t.Fatalf("n = %d, want %d", n, len(partial))
	}
	if !bytes.Equal(partial, data[MaxChunkPayloadSize-100:MaxChunkPayloadSize-100+500]) {
		t.Fatal("straddling read mismatch")
	}
}

func TestWriterUnalignedWritePatchesChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.c9r")
	encKey, macKey := testFileKey(t), testFileKey(t)

	w, err := CreateWriter(path, encKey, macKey, SIVCTRMAC)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if _, err := w.Append(bytes.Repeat([]byte{'a'}, 100)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := w.WriteAt([]byte("PATCH"), 10); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path, encKey, macKey, SIVCTRMAC)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	got := make([]byte, 100)
	if _, err := r.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	want := bytes.Repeat([]byte{'a'}, 100)
	copy(want[10:15], "PATCH")
	if !bytes.Equal(got, want) {
		t.Fatalf("patched content mismatch: got %q, want %q", got, want)
	}
}

func TestOpenWriterPreservesExistingContent(t *testing.T) {
	for _, combo := range []CipherCombo{SIVGCM, SIVCTRMAC} {
		t.Run(string(combo), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "content.c9r")
			encKey, macKey := testFileKey(t), testFileKey(t)

			w, err := CreateWriter(path, encKey, macKey, combo)
			if err != nil {
				t.Fatalf("CreateWriter: %v", err)
			}
			if _, err := w.Append([]byte("hello, ")); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			w2, err := OpenWriter(path, encKey, macKey, combo)
			if err != nil {
				t.Fatalf("OpenWriter: %v", err)
			}
			if w2.Size() != 7 {
				t.Fatalf("Size() = %d, want 7", w2.Size())
			}
			if _, err := w2.Append([]byte("world")); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := w2.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			r, err := OpenReader(path, encKey, macKey, combo)
			if err != nil {
				t.Fatalf("OpenReader: %v", err)
			}
			defer r.Close()
			got := make([]byte, r.Size())
			if _, err := r.ReadAt(got, 0); err != nil {
				t.Fatalf("ReadAt: %v", err)
			}
			if string(got) != "hello, world" {
				t.Fatalf("got %q, want %q", got, "hello, world")
			}
		})
	}
}

func TestWriterTruncateShrinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.c9r")
	encKey, macKey := testFileKey(t), testFileKey(t)

	w, err := CreateWriter(path, encKey, macKey, SIVGCM)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if _, err := w.Append(bytes.Repeat([]byte{'x'}, 1000)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Truncate(10); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path, encKey, macKey, SIVGCM)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	if r.Size() != 10 {
		t.Fatalf("Size() = %d, want 10", r.Size())
	}
	got := make([]byte, 10)
	if _, err := r.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{'x'}, 10)) {
		t.Fatal("truncated content mismatch")
	}
}

func TestWriterTruncateAcrossChunkBoundary(t *testing.T) {
	for _, combo := range []CipherCombo{SIVGCM, SIVCTRMAC} {
		t.Run(string(combo), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "content.c9r")
			encKey, macKey := testFileKey(t), testFileKey(t)

			data := bytes.Repeat([]byte{'y'}, 2*MaxChunkPayloadSize+100)
			w, err := CreateWriter(path, encKey, macKey, combo)
			if err != nil {
				t.Fatalf("CreateWriter: %v", err)
			}
			if _, err := w.Append(data); err != nil {
				t.Fatalf("Append: %v", err)
			}
			// The new length lands mid-way through chunk 1, so the partial
			// chunk must be re-encrypted and the ciphertext cut to exactly
			// one full chunk plus the partial one.
			newLen := int64(MaxChunkPayloadSize + 50)
			if err := w.Truncate(newLen); err != nil {
				t.Fatalf("Truncate: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			r, err := OpenReader(path, encKey, macKey, combo)
			if err != nil {
				t.Fatalf("OpenReader: %v", err)
			}
			defer r.Close()
			if r.Size() != newLen {
				t.Fatalf("Size() = %d, want %d", r.Size(), newLen)
			}
			got := make([]byte, newLen)
			if _, err := r.ReadAt(got, 0); err != nil {
				t.Fatalf("ReadAt: %v", err)
			}
			if !bytes.Equal(got, data[:newLen]) {
				t.Fatal("content mismatch after boundary-crossing truncate")
			}
		})
	}
}

func TestWriterTruncateGrowsWithZeros(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.c9r")
	encKey, macKey := testFileKey(t), testFileKey(t)

	w, err := CreateWriter(path, encKey, macKey, SIVGCM)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if _, err := w.Append([]byte("abc")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Truncate(10); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path, encKey, macKey, SIVGCM)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	got := make([]byte, r.Size())
	if _, err := r.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	want := append([]byte("abc"), make([]byte, 7)...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReaderWrongFileKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.c9r")
	encKey, macKey := testFileKey(t), testFileKey(t)
	wrongEnc, wrongMac := testFileKey(t), testFileKey(t)

	w, err := CreateWriter(path, encKey, macKey, SIVGCM)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	w.Append([]byte("data"))
	w.Close()

	if _, err := OpenReader(path, wrongEnc, wrongMac, SIVGCM); err == nil {
		t.Fatal("expected OpenReader under the wrong file key to fail")
	}
}
