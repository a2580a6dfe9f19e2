package cryptovault

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// atomicReplace moves tmpPath over finalPath. On the platforms this module
// supports, os.Rename within the same filesystem is already atomic; unlike
// masterkeyfile.go and config.go, this path does not go through renameio
// because tmpPath is already a real file on the same volume as finalPath,
// not a pending write that needs a fresh temp name allocated for it.
func atomicReplace(tmpPath, finalPath string) error {
	return os.Rename(tmpPath, finalPath)
}

// RotationOptions controls a RotateCipherCombo run.
type RotationOptions struct {
	// Concurrency bounds how many files are re-encrypted in parallel.
	// Zero means defaultMaxConcurrentIO.
	Concurrency int64
	// DryRun walks the tree and returns without writing anything; the
	// files found by the walk are not reported to the caller.
	DryRun bool
}

// RotateCipherCombo re-encrypts every file in the vault under newCombo,
// replacing each file's header and every content chunk, then rewrites the
// signed vault config to declare the new combo. Unlike ChangeMasterKeyPassword
// (masterkeyfile.go), which only rewraps the key file, this walks and
// rewrites the entire content tree, so it is the expensive operation: a
// vault with N bytes of content does roughly N bytes of I/O.
//
// File names and directory structure are untouched — only content framing
// changes — since filenames are never covered by the content cipher combo.
func (v *Vault) RotateCipherCombo(ctx context.Context, newCombo CipherCombo, opts RotationOptions) error {
	if !newCombo.valid() {
		return ErrUnsupportedCipher
	}
	if newCombo == v.cfg.CipherCombo {
		return nil
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrentIO
	}

	files, err := v.collectFilePaths(RootDirId, "")
	if err != nil {
		return err
	}

	if opts.DryRun {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(concurrency))
	for _, f := range files {
		f := f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return v.reencryptFile(f, newCombo)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	v.cfg.CipherCombo = newCombo
	return WriteVaultConfig(filepath.Join(v.root, configFile), v.cfg, v.mk)
}

// collectFilePaths walks the plaintext tree rooted at id, returning the
// VaultPath of every regular file beneath it.
func (v *Vault) collectFilePaths(id DirId, prefix VaultPath) ([]VaultPath, error) {
	storagePath, err := v.storagePath(id)
	if err != nil {
		return nil, err
	}
	entries, err := v.listDir(storagePath, id)
	if err != nil {
		if err == ErrDirIDMissing {
			return nil, nil
		}
		return nil, err
	}

	var out []VaultPath
	for _, e := range entries {
		p := joinPath(prefix, e.Name)
		switch e.Type {
		case EntryTypeFile:
			out = append(out, p)
		case EntryTypeDirectory:
			children, err := v.collectFilePaths(e.DirId, p)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		}
	}
	return out, nil
}

// reencryptFile reads path under the vault's current combo and rewrites it
// under newCombo, using a temporary sibling file so a crash mid-rotation
// never leaves a half-rewritten file under the entry's real name.
func (v *Vault) reencryptFile(path VaultPath, newCombo CipherCombo) error {
	r, err := v.ResolvePath(path)
	if err != nil {
		return err
	}
	contentPath := contentPathFor(r.entryPaths, EntryTypeFile)
	tmpPath := contentPath + ".rotating"

	err = v.withFileKeys(func(enc, mac *[32]byte) error {
		rd, err := OpenReader(contentPath, enc, mac, v.cfg.CipherCombo)
		if err != nil {
			return err
		}
		defer rd.Close()

		plain := make([]byte, rd.Size())
		if _, err := rd.ReadAt(plain, 0); err != nil {
			return err
		}

		w, err := CreateWriter(tmpPath, enc, mac, newCombo)
		if err != nil {
			return err
		}
		if _, err := w.Append(plain); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
	if err != nil {
		return err
	}
	return atomicReplace(tmpPath, contentPath)
}
