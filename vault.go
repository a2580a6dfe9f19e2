package cryptovault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Vault is the synchronous vault surface: each call does
// its own locking-free directory resolution and blocks the calling
// goroutine for the duration of its I/O. AsyncVault (vault_async.go) wraps
// a Vault with the lock hierarchy, handle table, and caches needed for
// concurrent access; Vault itself assumes single-threaded use.
type Vault struct {
	root  string
	mk    *MasterKey
	cfg   VaultConfig
	codec *NameCodec

	// dirPaths caches DirId → storage directory path, saving the SIV
	// encryption and SHA-1 hash on every resolution hop. The mapping is
	// deterministic, so entries only ever leave through eviction or the
	// directory's deletion.
	dirPaths *vaultCache[string]
}

// configFile and masterKeyFileName are vault.cryptomator and
// masterkey.cryptomator at the root of vaultDir.
const (
	configFile        = "vault.cryptomator"
	masterKeyFileName = "masterkey.cryptomator"
)

// CreateVault initializes a brand-new vault at vaultDir: fresh master key,
// signed config, and an empty root data directory, then protects it with
// password.
func CreateVault(vaultDir string, password []byte, combo CipherCombo) (*Vault, error) {
	if combo == "" {
		combo = SIVGCM
	}
	if err := os.MkdirAll(vaultDir, 0o700); err != nil {
		return nil, NewPathError("create-vault", vaultDir, err)
	}

	mk, err := RandomMasterKey()
	if err != nil {
		return nil, err
	}
	if err := WriteMasterKeyFile(filepath.Join(vaultDir, masterKeyFileName), mk, password, ScryptParams{}); err != nil {
		mk.Destroy()
		return nil, err
	}

	cfg := VaultConfig{FormatVersion: configFormatVersion, CipherCombo: combo, ShorteningThreshold: defaultShorteningThreshold}
	if err := WriteVaultConfig(filepath.Join(vaultDir, configFile), cfg, mk); err != nil {
		mk.Destroy()
		return nil, err
	}

	v, err := newVault(vaultDir, mk, cfg, Options{})
	if err != nil {
		mk.Destroy()
		return nil, err
	}

	rootPath, err := v.storagePath(RootDirId)
	if err != nil {
		mk.Destroy()
		return nil, err
	}
	if err := os.MkdirAll(rootPath, 0o700); err != nil {
		mk.Destroy()
		return nil, NewPathError("create-vault", rootPath, err)
	}
	return v, nil
}

// UnlockVault opens an existing vault directory with password, verifying
// both the masterkey and the signed config token.
func UnlockVault(vaultDir string, password []byte) (*Vault, error) {
	return UnlockVaultWithOptions(vaultDir, password, Options{})
}

// UnlockVaultWithOptions is UnlockVault with explicit tuning: cache
// bounds, TTL, and a shortening-threshold override.
func UnlockVaultWithOptions(vaultDir string, password []byte, opts Options) (*Vault, error) {
	mk, err := UnlockMasterKeyFile(filepath.Join(vaultDir, masterKeyFileName), password)
	if err != nil {
		return nil, err
	}
	cfg, err := ReadVaultConfig(filepath.Join(vaultDir, configFile), mk)
	if err != nil {
		mk.Destroy()
		return nil, err
	}
	v, err := newVault(vaultDir, mk, cfg, opts)
	if err != nil {
		mk.Destroy()
		return nil, err
	}
	return v, nil
}

func newVault(vaultDir string, mk *MasterKey, cfg VaultConfig, opts Options) (*Vault, error) {
	opts = opts.withDefaults()
	threshold := cfg.ShorteningThreshold
	if opts.ShorteningThreshold > 0 {
		threshold = opts.ShorteningThreshold
	}
	codec, err := NewNameCodec(mk, threshold)
	if err != nil {
		return nil, err
	}
	return &Vault{
		root:     vaultDir,
		mk:       mk,
		cfg:      cfg,
		codec:    codec,
		dirPaths: newVaultCache[string](opts.CacheCapacity, opts.CacheTTL, false),
	}, nil
}

// Close destroys the vault's in-memory key material. The Vault must not be
// used afterward.
func (v *Vault) Close() {
	v.mk.Destroy()
}

// withFileKeys scopes fn to both master-key halves: the AES key for
// content encryption and the MAC key for the CTR+HMAC combo's
// authentication.
func (v *Vault) withFileKeys(fn func(enc, mac *[32]byte) error) error {
	return v.mk.WithKeys(fn)
}

// storagePath resolves (and caches) the on-disk data directory for id.
func (v *Vault) storagePath(id DirId) (string, error) {
	return v.dirPaths.GetOrLoad(string(id), func() (string, bool, error) {
		p, err := calculateDirectoryStoragePath(v.root, v.codec, id)
		if err != nil {
			return "", false, err
		}
		return p, true, nil
	})
}

// resolved is the result of walking a VaultPath down to its entry.
type resolved struct {
	parent     DirId // directory ID of the containing directory
	parentPath string
	entryPaths EntryPaths
	typ        EntryType
	childDirId DirId // valid only when typ == EntryTypeDirectory
}

// ResolvePath walks path component by component from the vault root,
// looking up each directory's DirId and the next component's storage
// location, and classifies the final entry by which marker file it
// contains.
func (v *Vault) ResolvePath(path VaultPath) (resolved, error) {
	parts, err := splitPath(path)
	if err != nil {
		return resolved{}, err
	}
	if len(parts) == 0 {
		rootPath, err := v.storagePath(RootDirId)
		if err != nil {
			return resolved{}, err
		}
		return resolved{typ: EntryTypeDirectory, childDirId: RootDirId, parentPath: rootPath}, nil
	}

	currentDirId := RootDirId
	var r resolved
	for i, name := range parts {
		dirStoragePath, err := v.storagePath(currentDirId)
		if err != nil {
			return resolved{}, err
		}
		ep, err := locateEntryRoot(dirStoragePath, v.codec, name, currentDirId)
		if err != nil {
			return resolved{}, err
		}
		typ, err := classifyByMarkers(ep)
		if err != nil {
			return resolved{}, NewPathError("resolve", string(path), ErrNotFound)
		}

		last := i == len(parts)-1
		if !last && typ != EntryTypeDirectory {
			return resolved{}, NewPathError("resolve", string(path), ErrNotDirectory)
		}

		r = resolved{parent: currentDirId, parentPath: dirStoragePath, entryPaths: ep, typ: typ}
		if typ == EntryTypeDirectory {
			id, err := readDirId(contentPathFor(ep, EntryTypeDirectory))
			if err != nil {
				return resolved{}, err
			}
			r.childDirId = id
			currentDirId = id
		}
	}
	return r, nil
}

// resolveParent resolves the containing directory of a to-be-touched
// entry, mapping a missing parent to ErrParentMissing so callers of the
// mutation surface aren't handed a bare NotFound for a path they never
// named.
func (v *Vault) resolveParent(parentPath VaultPath) (resolved, error) {
	r, err := v.ResolvePath(parentPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return resolved{}, fmt.Errorf("%w: %s", ErrParentMissing, parentPath)
		}
		return resolved{}, err
	}
	if r.typ != EntryTypeDirectory && parentPath != "" {
		return resolved{}, ErrNotDirectory
	}
	return r, nil
}

// classifyByMarkers stats ep.Root (and, for a plain entry, the marker
// files beneath it) to decide whether it is a file, directory, or symlink.
func classifyByMarkers(ep EntryPaths) (EntryType, error) {
	info, err := os.Stat(ep.Root)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return EntryTypeFile, nil
	}
	// A shortened plain-file entry is still a directory on disk
	// (holding contents.c9r + name.c9r); only dir.c9r/symlink.c9r
	// markers promote it to directory/symlink.
	if _, err := os.Stat(filepath.Join(ep.Root, dirMarkerFile)); err == nil {
		return EntryTypeDirectory, nil
	}
	if _, err := os.Stat(filepath.Join(ep.Root, symlinkFile)); err == nil {
		return EntryTypeSymlink, nil
	}
	return EntryTypeFile, nil
}

func readDirId(markerPath string) (DirId, error) {
	data, err := os.ReadFile(markerPath)
	if err != nil {
		return "", NewPathError("read-dirid", markerPath, err)
	}
	return DirId(data), nil
}

func writeDirIdMarker(markerPath string, id DirId) error {
	if err := os.MkdirAll(filepath.Dir(markerPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(markerPath, []byte(id), 0o600)
}

// writeShortenedNameFile records the full encrypted name of a .c9s entry
// in its name.c9r companion, so listings can recover the original name
// from the hashed directory entry.
func (v *Vault) writeShortenedNameFile(ep EntryPaths, name string, parent DirId) error {
	encrypted, err := v.codec.EncryptName(name, parent)
	if err != nil {
		return err
	}
	return os.WriteFile(ep.NamePath, []byte(encrypted+dirSuffix), 0o600)
}

// ensureFileEntry materializes the on-disk scaffolding for the entry named
// name under parent: for shortened entries, the .c9s directory and its
// name.c9r companion; for plain entries, just the parent's storage
// directory. The payload itself is the caller's to write.
func (v *Vault) ensureFileEntry(parent DirId, name string) (EntryPaths, error) {
	dirStoragePath, err := v.storagePath(parent)
	if err != nil {
		return EntryPaths{}, err
	}
	ep, err := locateEntryRoot(dirStoragePath, v.codec, name, parent)
	if err != nil {
		return EntryPaths{}, err
	}
	if ep.Format == EntryFormatShortened {
		if err := os.MkdirAll(ep.Root, 0o700); err != nil {
			return EntryPaths{}, err
		}
		if err := v.writeShortenedNameFile(ep, name, parent); err != nil {
			return EntryPaths{}, err
		}
	} else if err := os.MkdirAll(dirStoragePath, 0o700); err != nil {
		return EntryPaths{}, err
	}
	return ep, nil
}

// EntryType reports the type of the entry at path.
func (v *Vault) EntryType(path VaultPath) (EntryType, error) {
	r, err := v.ResolvePath(path)
	if err != nil {
		return 0, err
	}
	return r.typ, nil
}

// listDir returns the raw (name, DirId-if-directory) entries of the
// directory storage path dirStoragePath, decrypting each ciphertext name
// under parent as AAD and resolving any .c9s shortened entries via their
// name.c9r file.
func (v *Vault) listDir(dirStoragePath string, parent DirId) ([]FileInfo, error) {
	entries, err := os.ReadDir(dirStoragePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDirIDMissing
		}
		return nil, err
	}

	var out []FileInfo
	for _, e := range entries {
		base, format := extractEncryptedBaseName(e.Name())
		var encryptedName string
		var root string
		if format == EntryFormatShortened {
			root = filepath.Join(dirStoragePath, e.Name())
			raw, err := os.ReadFile(filepath.Join(root, shortNameFile))
			if err != nil {
				continue // orphaned .c9s folder, skip
			}
			encryptedName, _ = extractEncryptedBaseName(string(raw))
		} else {
			encryptedName = base
			root = filepath.Join(dirStoragePath, e.Name())
		}

		plain, err := v.codec.DecryptName(encryptedName, parent)
		if err != nil {
			continue // undecryptable entry, skip rather than fail the whole listing
		}

		ep := EntryPaths{Format: format, Root: root}
		if format == EntryFormatShortened {
			ep.NamePath = filepath.Join(root, shortNameFile)
		}
		typ, err := classifyByMarkers(ep)
		if err != nil {
			continue
		}

		info, statErr := os.Stat(contentPathFor(ep, typ))
		var modTime time.Time
		if statErr == nil {
			modTime = info.ModTime()
		}

		switch typ {
		case EntryTypeDirectory:
			id, err := readDirId(contentPathFor(ep, EntryTypeDirectory))
			if err != nil {
				continue
			}
			out = append(out, buildDirectoryInfo(plain, id, modTime))
		case EntryTypeSymlink:
			out = append(out, buildSymlinkInfo(plain, modTime))
		default:
			fc, err := newFileCipher(v.cfg.CipherCombo)
			if err != nil {
				continue
			}
			var size int64
			if statErr == nil {
				size, _ = plaintextSizeFromCiphertext(info.Size(), fc)
			}
			out = append(out, buildFileInfo(plain, size, modTime))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListDirectory lists every entry (file, directory, symlink) directly
// inside path.
func (v *Vault) ListDirectory(path VaultPath) ([]FileInfo, error) {
	r, err := v.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if r.typ != EntryTypeDirectory && path != "" {
		return nil, ErrNotDirectory
	}
	dirStoragePath, err := v.storagePath(r.childDirId)
	if err != nil {
		return nil, err
	}
	return v.listDir(dirStoragePath, r.childDirId)
}

// ListFiles, ListDirectories, and ListSymlinks filter ListDirectory's
// output by entry type.
func (v *Vault) ListFiles(path VaultPath) ([]FileInfo, error) {
	return v.filterList(path, EntryTypeFile)
}

func (v *Vault) ListDirectories(path VaultPath) ([]FileInfo, error) {
	return v.filterList(path, EntryTypeDirectory)
}

func (v *Vault) ListSymlinks(path VaultPath) ([]FileInfo, error) {
	return v.filterList(path, EntryTypeSymlink)
}

func (v *Vault) filterList(path VaultPath, typ EntryType) ([]FileInfo, error) {
	all, err := v.ListDirectory(path)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(all))
	for _, fi := range all {
		if fi.Type == typ {
			out = append(out, fi)
		}
	}
	return out, nil
}

// ReadByPath reads the full plaintext content of the file at path.
func (v *Vault) ReadByPath(path VaultPath) ([]byte, error) {
	r, err := v.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if r.typ != EntryTypeFile {
		return nil, ErrIsDirectory
	}
	contentPath := contentPathFor(r.entryPaths, EntryTypeFile)

	var out []byte
	err = v.withFileKeys(func(enc, mac *[32]byte) error {
		rd, err := OpenReader(contentPath, enc, mac, v.cfg.CipherCombo)
		if err != nil {
			return err
		}
		defer rd.Close()
		out = make([]byte, rd.Size())
		_, err = rd.ReadAt(out, 0)
		if err != nil {
			return err
		}
		return nil
	})
	return out, err
}

// WriteByPath writes data as the full content of the file at path, creating
// it (and its ciphertext-name scaffolding) if it does not already exist.
func (v *Vault) WriteByPath(path VaultPath, data []byte) error {
	parentPath, name, err := parentAndName(path)
	if err != nil {
		return err
	}
	parentResolved, err := v.resolveParent(parentPath)
	if err != nil {
		return err
	}

	dirStoragePath, err := v.storagePath(parentResolved.childDirId)
	if err != nil {
		return err
	}
	ep, err := locateEntryRoot(dirStoragePath, v.codec, name, parentResolved.childDirId)
	if err != nil {
		return err
	}
	if _, err := os.Stat(ep.Root); err == nil {
		typ, cerr := classifyByMarkers(ep)
		if cerr == nil && typ == EntryTypeDirectory {
			return ErrIsDirectory
		}
		if cerr == nil && typ == EntryTypeSymlink {
			return ErrAlreadyExists
		}
	}

	ep, err = v.ensureFileEntry(parentResolved.childDirId, name)
	if err != nil {
		return err
	}

	contentPath := contentPathFor(ep, EntryTypeFile)
	return v.withFileKeys(func(enc, mac *[32]byte) error {
		w, err := CreateWriter(contentPath, enc, mac, v.cfg.CipherCombo)
		if err != nil {
			return err
		}
		if _, err := w.Append(data); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
}

// CreateDirectoryByPath creates the single directory named by the final
// component of path; its parent must already exist.
func (v *Vault) CreateDirectoryByPath(path VaultPath) error {
	parentPath, name, err := parentAndName(path)
	if err != nil {
		return err
	}
	if name == "" {
		return NewValidationError("path", path, "cannot create the vault root")
	}
	parentResolved, err := v.resolveParent(parentPath)
	if err != nil {
		return err
	}

	dirStoragePath, err := v.storagePath(parentResolved.childDirId)
	if err != nil {
		return err
	}
	ep, err := locateEntryRoot(dirStoragePath, v.codec, name, parentResolved.childDirId)
	if err != nil {
		return err
	}
	if _, err := os.Stat(ep.Root); err == nil {
		return ErrAlreadyExists
	}

	newID := newDirId()
	// Cryptomator's create-directory ordering: the child's entry must be
	// materialized at the parent's location first, and only then does its
	// own storage tree get created. A crash between the two leaves a
	// dangling entry (cleanable: the dir.c9r marker points at a DirId whose
	// storage tree doesn't exist yet) rather than an orphaned data
	// directory nothing references.
	if ep.Format == EntryFormatShortened {
		if err := os.MkdirAll(ep.Root, 0o700); err != nil {
			return err
		}
		if err := v.writeShortenedNameFile(ep, name, parentResolved.childDirId); err != nil {
			return err
		}
	} else if err := os.MkdirAll(dirStoragePath, 0o700); err != nil {
		return err
	}

	if err := writeDirIdMarker(contentPathFor(ep, EntryTypeDirectory), newID); err != nil {
		return err
	}

	newStoragePath, err := v.storagePath(newID)
	if err != nil {
		return err
	}
	return os.MkdirAll(newStoragePath, 0o700)
}

// CreateDirectoryAll creates path and any missing ancestor directories.
func (v *Vault) CreateDirectoryAll(path VaultPath) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	var built VaultPath
	for _, p := range parts {
		built = joinPath(built, p)
		typ, err := v.EntryType(built)
		if err == nil {
			if typ != EntryTypeDirectory {
				return fmt.Errorf("%w: %s", ErrNotDirectory, built)
			}
			continue
		}
		if err := v.CreateDirectoryByPath(built); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByPath removes the file or symlink at path.
func (v *Vault) DeleteByPath(path VaultPath) error {
	r, err := v.ResolvePath(path)
	if err != nil {
		return err
	}
	if r.typ == EntryTypeDirectory {
		return ErrIsDirectory
	}
	return os.RemoveAll(r.entryPaths.Root)
}

// DeleteDirectoryByPath removes an empty directory at path.
func (v *Vault) DeleteDirectoryByPath(path VaultPath) error {
	if err := validateVaultPathArg(path); err != nil {
		return err
	}
	r, err := v.ResolvePath(path)
	if err != nil {
		return err
	}
	if r.typ != EntryTypeDirectory {
		return ErrNotDirectory
	}
	storagePath, err := v.storagePath(r.childDirId)
	if err != nil {
		return err
	}
	entries, err := v.listDir(storagePath, r.childDirId)
	if err != nil && err != ErrDirIDMissing {
		return err
	}
	if len(entries) > 0 {
		return ErrNotEmpty
	}
	if err := os.RemoveAll(storagePath); err != nil {
		return err
	}
	v.dirPaths.Invalidate(string(r.childDirId))
	return os.RemoveAll(r.entryPaths.Root)
}

// DeleteDirectoryRecursiveByPath removes path and everything beneath it,
// walking the plaintext tree so every descendant directory's own data
// directory is also removed — deleting a directory's .c9r entry alone
// would orphan its d/ shard subtree. It returns the number of files and
// directories deleted; on any child error it aborts and returns the
// partial counts alongside the error, so callers get best-effort progress.
func (v *Vault) DeleteDirectoryRecursiveByPath(path VaultPath) (files, dirs int, err error) {
	r, err := v.ResolvePath(path)
	if err != nil {
		return 0, 0, err
	}
	if r.typ != EntryTypeDirectory {
		return 0, 0, ErrNotDirectory
	}
	files, dirs, err = v.deleteDirRecursive(r.childDirId)
	if err != nil {
		return files, dirs, err
	}
	if err := os.RemoveAll(r.entryPaths.Root); err != nil {
		return files, dirs, err
	}
	return files, dirs + 1, nil
}

// deleteDirRecursive removes id's own data directory and everything beneath
// it, depth-first post-order, accumulating how many files and directories
// (not counting id itself) were deleted along the way.
func (v *Vault) deleteDirRecursive(id DirId) (files, dirs int, err error) {
	storagePath, err := v.storagePath(id)
	if err != nil {
		return 0, 0, err
	}
	entries, err := v.listDir(storagePath, id)
	if err != nil {
		if err == ErrDirIDMissing {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	for _, e := range entries {
		if e.Type == EntryTypeDirectory {
			childFiles, childDirs, err := v.deleteDirRecursive(e.DirId)
			files += childFiles
			dirs += childDirs
			if err != nil {
				return files, dirs, err
			}
			dirs++
		} else {
			files++
		}
	}
	if err := os.RemoveAll(storagePath); err != nil {
		return files, dirs, err
	}
	v.dirPaths.Invalidate(string(id))
	return files, dirs, nil
}

// MoveFileByPath renames the entry at src to dst, re-encrypting its name
// under the destination parent's DirId. It fails with ErrDstExists when
// something already lives at dst; MoveFileOverwriteByPath replaces it
// instead. Cross-directory moves of a directory simply relocate its .c9r
// entry — the moved directory's own DirId and data directory never change,
// so no content is re-encrypted; only the name is, and for regular files
// the content key travels inside the file's own header regardless of where
// it lives.
//
// A move between two plain (unshortened) names is a single os.Rename of the
// entry. A move to or from a shortened (.c9s) name, or one that first removes
// an existing destination (MoveFileOverwriteByPath), takes several separate
// filesystem steps and is not atomic with respect to a crash.
func (v *Vault) MoveFileByPath(src, dst VaultPath) error {
	return v.moveFile(src, dst, false)
}

// MoveFileOverwriteByPath is MoveFileByPath, except an existing file or
// symlink at dst is replaced. A directory at dst is never replaced; that
// case fails with ErrIsDirectory.
func (v *Vault) MoveFileOverwriteByPath(src, dst VaultPath) error {
	return v.moveFile(src, dst, true)
}

func (v *Vault) moveFile(src, dst VaultPath, overwrite bool) error {
	srcResolved, err := v.ResolvePath(src)
	if err != nil {
		return err
	}
	dstParentPath, dstName, err := parentAndName(dst)
	if err != nil {
		return err
	}
	dstParentResolved, err := v.resolveParent(dstParentPath)
	if err != nil {
		return err
	}

	dstDirStoragePath, err := v.storagePath(dstParentResolved.childDirId)
	if err != nil {
		return err
	}
	dstEP, err := locateEntryRoot(dstDirStoragePath, v.codec, dstName, dstParentResolved.childDirId)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dstEP.Root); err == nil {
		if !overwrite {
			return ErrDstExists
		}
		typ, cerr := classifyByMarkers(dstEP)
		if cerr == nil && typ == EntryTypeDirectory {
			return ErrIsDirectory
		}
		if err := os.RemoveAll(dstEP.Root); err != nil {
			return err
		}
	}

	if dstEP.Format == EntryFormatShortened {
		if err := os.MkdirAll(dstEP.Root, 0o700); err != nil {
			return err
		}
		if err := v.writeShortenedNameFile(dstEP, dstName, dstParentResolved.childDirId); err != nil {
			return err
		}
	} else if err := os.MkdirAll(dstDirStoragePath, 0o700); err != nil {
		return err
	}

	return moveEntryPayload(srcResolved.entryPaths, srcResolved.typ, dstEP)
}

// moveEntryPayload relocates one entry's on-disk payload from src to dst,
// handling every shortened↔plain transition. A plain-to-plain move is a
// single rename of the entry root; every other combination moves the
// payload (the content file for regular files, the marker file for
// directories and symlinks) and then clears whatever scaffolding the
// source format left behind.
func moveEntryPayload(src EntryPaths, typ EntryType, dst EntryPaths) error {
	if src.Format == EntryFormatPlain && dst.Format == EntryFormatPlain {
		return os.Rename(src.Root, dst.Root)
	}

	// Plain directory/symlink payloads live under a .c9r directory that
	// must exist before the marker can land in it; a shortened dst root
	// was already created by the caller alongside its name.c9r.
	if dst.Format == EntryFormatPlain && typ != EntryTypeFile {
		if err := os.MkdirAll(dst.Root, 0o700); err != nil {
			return err
		}
	}
	if err := os.Rename(contentPathFor(src, typ), contentPathFor(dst, typ)); err != nil {
		return err
	}
	if src.Format == EntryFormatShortened || typ != EntryTypeFile {
		return os.RemoveAll(src.Root)
	}
	return nil
}

// WriteSymlinkByPath creates a symlink entry at path pointing at target.
func (v *Vault) WriteSymlinkByPath(path VaultPath, target string) error {
	parentPath, name, err := parentAndName(path)
	if err != nil {
		return err
	}
	parentResolved, err := v.resolveParent(parentPath)
	if err != nil {
		return err
	}
	dirStoragePath, err := v.storagePath(parentResolved.childDirId)
	if err != nil {
		return err
	}
	ep, err := locateEntryRoot(dirStoragePath, v.codec, name, parentResolved.childDirId)
	if err != nil {
		return err
	}
	if _, err := os.Stat(ep.Root); err == nil {
		return ErrAlreadyExists
	}
	if err := os.MkdirAll(ep.Root, 0o700); err != nil {
		return err
	}
	if ep.Format == EntryFormatShortened {
		if err := v.writeShortenedNameFile(ep, name, parentResolved.childDirId); err != nil {
			return err
		}
	}
	return v.withFileKeys(func(enc, mac *[32]byte) error {
		return writeSymlinkTarget(contentPathFor(ep, EntryTypeSymlink), enc, mac, v.cfg.CipherCombo, target)
	})
}

// ReadSymlinkByPath returns the target of the symlink at path.
func (v *Vault) ReadSymlinkByPath(path VaultPath) (string, error) {
	r, err := v.ResolvePath(path)
	if err != nil {
		return "", err
	}
	if r.typ != EntryTypeSymlink {
		return "", fmt.Errorf("%w: not a symlink", ErrInvalidArgument)
	}
	var target string
	err = v.withFileKeys(func(enc, mac *[32]byte) error {
		t, err := readSymlinkTarget(contentPathFor(r.entryPaths, EntryTypeSymlink), enc, mac, v.cfg.CipherCombo)
		target = t
		return err
	})
	return target, err
}
