package cryptovault

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// defaultMaxConcurrentIO bounds how many blocking filesystem operations an
// AsyncVault will run at once, independent of how many goroutines call into
// it. Overridable via Options.BlockingPoolSize.
const defaultMaxConcurrentIO = 32

// OpenMode selects what an Open handle may do.
type OpenMode int

const (
	// OpenRead opens an existing file for random-access reads.
	OpenRead OpenMode = iota
	// OpenWrite opens for read-modify-write at arbitrary offsets,
	// preserving existing content. The file is created if missing.
	OpenWrite
	// OpenAppend opens for writes at the current end of file, creating it
	// if missing. Offsets passed to Write are ignored.
	OpenAppend
	// OpenTruncate discards any existing content, creating the file if
	// missing.
	OpenTruncate
)

// AsyncVault wraps a Vault with the concurrency-control surface mount
// backends need: a per-DirId lock hierarchy, an open-handle table, cache
// invalidation, and a bounded pool for dispatching blocking I/O. Every
// method takes a context so a caller can cancel a queued operation before
// its turn comes.
type AsyncVault struct {
	v       *Vault
	locks   *dirLockTable
	handles *handleTable
	sem     *semaphore.Weighted

	// globalMu is the outermost lock in the hierarchy: every normal
	// operation holds it shared for its duration (via dispatch), and
	// ChangePassword takes it exclusively so a password rewrap never races
	// a concurrent directory or file operation.
	globalMu sync.RWMutex

	dirCache  *vaultCache[[]FileInfo]
	attrCache *vaultCache[FileInfo]
}

// NewAsyncVault wraps v with default tuning. v must not be used directly
// (by any other caller) once wrapped, since AsyncVault's locking discipline
// assumes it owns all access.
func NewAsyncVault(v *Vault) *AsyncVault {
	return NewAsyncVaultWithOptions(v, Options{})
}

// NewAsyncVaultWithOptions wraps v with explicit cache and pool tuning.
func NewAsyncVaultWithOptions(v *Vault, opts Options) *AsyncVault {
	opts = opts.withDefaults()
	return &AsyncVault{
		v:         v,
		locks:     newDirLockTable(),
		handles:   newHandleTable(),
		sem:       semaphore.NewWeighted(int64(opts.BlockingPoolSize)),
		dirCache:  newVaultCache[[]FileInfo](opts.CacheCapacity, opts.CacheTTL, false),
		attrCache: newVaultCache[FileInfo](4*opts.CacheCapacity, opts.CacheTTL, opts.EnableNegativeCache),
	}
}

// dispatch runs fn on the calling goroutine after acquiring a slot in the
// concurrency-limiting semaphore and the vault-global lock in shared mode,
// honoring ctx cancellation while waiting.
func (a *AsyncVault) dispatch(ctx context.Context, fn func() error) error {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer a.sem.Release(1)
	a.globalMu.RLock()
	defer a.globalMu.RUnlock()
	return fn()
}

// ChangePassword rewraps the vault's master-key file under a new password.
// It takes the vault-global lock exclusively, blocking until every in-flight
// operation holding the shared lock has finished and holding off new ones
// until the rewrap completes. The underlying AES/MAC key material is
// unchanged by a password change — only its on-disk wrapping is rewritten
// — so no open Handle or cache entry is invalidated by this call.
func (a *AsyncVault) ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer a.sem.Release(1)
	a.globalMu.Lock()
	defer a.globalMu.Unlock()
	return ChangeMasterKeyPassword(filepath.Join(a.v.root, masterKeyFileName), oldPassword, newPassword)
}

// ListDirectory lists path's entries, serving from the directory cache
// when possible and taking the directory's read lock for the duration of
// an on-disk listing.
func (a *AsyncVault) ListDirectory(ctx context.Context, path VaultPath) ([]FileInfo, error) {
	var out []FileInfo
	err := a.dispatch(ctx, func() error {
		r, err := a.v.ResolvePath(path)
		if err != nil {
			return err
		}
		lock := a.locks.get(r.childDirId)
		lock.RLock()
		defer lock.RUnlock()

		out, err = a.listCached(r.childDirId, path)
		return err
	})
	return out, err
}

// listCached serves a directory listing through the dir cache. Callers
// must hold the directory's lock (shared suffices).
func (a *AsyncVault) listCached(id DirId, path VaultPath) ([]FileInfo, error) {
	return a.dirCache.GetOrLoad(string(id), func() ([]FileInfo, bool, error) {
		entries, err := a.v.ListDirectory(path)
		if err != nil {
			return nil, false, err
		}
		return entries, true, nil
	})
}

// EntryType reports the type of the entry at path under its parent's read
// lock.
func (a *AsyncVault) EntryType(ctx context.Context, path VaultPath) (EntryType, error) {
	var typ EntryType
	err := a.dispatch(ctx, func() error {
		parentPath, _, err := parentAndName(path)
		if err != nil {
			return err
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.RLock()
		defer lock.RUnlock()
		typ, err = a.v.EntryType(path)
		return err
	})
	return typ, err
}

// GetAttr returns path's attributes, served from the attribute cache when
// fresh. A confirmed-absent path is recorded as a negative entry when the
// vault was built with EnableNegativeCache, so repeated lookups of a
// missing name don't each pay a directory listing.
func (a *AsyncVault) GetAttr(ctx context.Context, path VaultPath) (FileInfo, error) {
	var fi FileInfo
	err := a.dispatch(ctx, func() error {
		parentPath, name, err := parentAndName(path)
		if err != nil {
			return err
		}
		if name == "" {
			fi = FileInfo{Type: EntryTypeDirectory}
			return nil
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.RLock()
		defer lock.RUnlock()

		fi, err = a.attrCache.GetOrLoad(string(path), func() (FileInfo, bool, error) {
			entries, err := a.listCached(parentResolved.childDirId, parentPath)
			if err != nil {
				return FileInfo{}, false, err
			}
			for _, e := range entries {
				if e.Name == name {
					return e, true, nil
				}
			}
			return FileInfo{}, false, nil
		})
		return err
	})
	return fi, err
}

// ListFiles, ListDirectories, and ListSymlinks filter ListDirectory's
// (cached) output by entry type.
func (a *AsyncVault) ListFiles(ctx context.Context, path VaultPath) ([]FileInfo, error) {
	return a.filterList(ctx, path, EntryTypeFile)
}

func (a *AsyncVault) ListDirectories(ctx context.Context, path VaultPath) ([]FileInfo, error) {
	return a.filterList(ctx, path, EntryTypeDirectory)
}

func (a *AsyncVault) ListSymlinks(ctx context.Context, path VaultPath) ([]FileInfo, error) {
	return a.filterList(ctx, path, EntryTypeSymlink)
}

func (a *AsyncVault) filterList(ctx context.Context, path VaultPath, typ EntryType) ([]FileInfo, error) {
	all, err := a.ListDirectory(ctx, path)
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

// ReadByPath reads the full plaintext content of the file at path under its
// parent's read lock.
func (a *AsyncVault) ReadByPath(ctx context.Context, path VaultPath) ([]byte, error) {
	var out []byte
	err := a.dispatch(ctx, func() error {
		parentPath, _, err := parentAndName(path)
		if err != nil {
			return err
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.RLock()
		defer lock.RUnlock()
		out, err = a.v.ReadByPath(path)
		return err
	})
	return out, err
}

// WriteByPath writes data as the full content of the file at path under its
// parent's write lock, invalidating the parent's cached listing and the
// path's cached attributes on success.
func (a *AsyncVault) WriteByPath(ctx context.Context, path VaultPath, data []byte) error {
	return a.dispatch(ctx, func() error {
		parentPath, _, err := parentAndName(path)
		if err != nil {
			return err
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.Lock()
		defer lock.Unlock()

		if err := a.v.WriteByPath(path, data); err != nil {
			return err
		}
		a.invalidate(parentResolved.childDirId, path)
		return nil
	})
}

// CreateDirectoryByPath creates the directory named by path's final
// component under its parent's write lock.
func (a *AsyncVault) CreateDirectoryByPath(ctx context.Context, path VaultPath) error {
	return a.dispatch(ctx, func() error {
		parentPath, _, err := parentAndName(path)
		if err != nil {
			return err
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.Lock()
		defer lock.Unlock()

		if err := a.v.CreateDirectoryByPath(path); err != nil {
			return err
		}
		a.invalidate(parentResolved.childDirId, path)
		return nil
	})
}

// CreateDirectoryAll creates path and any missing ancestor directories,
// delegating each level's creation to CreateDirectoryByPath so every mkdir
// along the way takes that level's own parent lock rather than holding one
// lock across the whole walk.
func (a *AsyncVault) CreateDirectoryAll(ctx context.Context, path VaultPath) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	var built VaultPath
	for _, p := range parts {
		built = joinPath(built, p)
		typ, err := a.EntryType(ctx, built)
		if err == nil {
			if typ != EntryTypeDirectory {
				return fmt.Errorf("%w: %s", ErrNotDirectory, built)
			}
			continue
		}
		if err := a.CreateDirectoryByPath(ctx, built); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDirectoryByPath removes the empty directory at path under its
// parent's write lock.
func (a *AsyncVault) DeleteDirectoryByPath(ctx context.Context, path VaultPath) error {
	return a.dispatch(ctx, func() error {
		parentPath, _, err := parentAndName(path)
		if err != nil {
			return err
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.Lock()
		defer lock.Unlock()

		if err := a.v.DeleteDirectoryByPath(path); err != nil {
			return err
		}
		a.invalidate(parentResolved.childDirId, path)
		return nil
	})
}

// DeleteDirectoryRecursiveByPath removes path and everything beneath it
// under its parent's write lock, returning the same partial-progress counts
// as the sync surface. The parent's cache is invalidated
// even on a partial failure, since some descendants may already be gone.
func (a *AsyncVault) DeleteDirectoryRecursiveByPath(ctx context.Context, path VaultPath) (files, dirs int, err error) {
	err = a.dispatch(ctx, func() error {
		parentPath, _, perr := parentAndName(path)
		if perr != nil {
			return perr
		}
		parentResolved, perr := a.v.ResolvePath(parentPath)
		if perr != nil {
			return perr
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.Lock()
		defer lock.Unlock()

		var derr error
		files, dirs, derr = a.v.DeleteDirectoryRecursiveByPath(path)
		a.invalidate(parentResolved.childDirId, path)
		return derr
	})
	return files, dirs, err
}

// WriteSymlinkByPath creates a symlink entry at path pointing at target
// under its parent's write lock.
func (a *AsyncVault) WriteSymlinkByPath(ctx context.Context, path VaultPath, target string) error {
	return a.dispatch(ctx, func() error {
		parentPath, _, err := parentAndName(path)
		if err != nil {
			return err
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.Lock()
		defer lock.Unlock()

		if err := a.v.WriteSymlinkByPath(path, target); err != nil {
			return err
		}
		a.invalidate(parentResolved.childDirId, path)
		return nil
	})
}

// ReadSymlinkByPath returns the target of the symlink at path under its
// parent's read lock.
func (a *AsyncVault) ReadSymlinkByPath(ctx context.Context, path VaultPath) (string, error) {
	var target string
	err := a.dispatch(ctx, func() error {
		parentPath, _, err := parentAndName(path)
		if err != nil {
			return err
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.RLock()
		defer lock.RUnlock()
		target, err = a.v.ReadSymlinkByPath(path)
		return err
	})
	return target, err
}

// Open opens path in mode and returns a Handle. OpenRead takes the parent
// directory's read lock for the duration of the open; the write modes take
// the write lock and create the file (including its ciphertext-name
// scaffolding) if it does not exist yet, so a concurrent listing never
// observes a half-materialized entry.
func (a *AsyncVault) Open(ctx context.Context, path VaultPath, mode OpenMode) (Handle, error) {
	var h Handle
	err := a.dispatch(ctx, func() error {
		parentPath, name, err := parentAndName(path)
		if err != nil {
			return err
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}

		lock := a.locks.get(parentResolved.childDirId)
		writable := mode != OpenRead
		unlock := lock.RUnlock
		if writable {
			lock.Lock()
			unlock = lock.Unlock
		} else {
			lock.RLock()
		}
		defer unlock()

		r, err := a.v.ResolvePath(path)
		exists := err == nil
		switch {
		case err != nil && (!writable || !errors.Is(err, ErrNotFound)):
			return err
		case exists && r.typ != EntryTypeFile:
			return ErrIsDirectory
		}

		ep := r.entryPaths
		if !exists {
			ep, err = a.v.ensureFileEntry(parentResolved.childDirId, name)
			if err != nil {
				return err
			}
		}

		of := &openFile{path: path, parent: parentResolved.childDirId, mode: mode}
		contentPath := contentPathFor(ep, EntryTypeFile)
		err = a.v.withFileKeys(func(enc, mac *[32]byte) error {
			switch {
			case mode == OpenRead:
				rd, err := OpenReader(contentPath, enc, mac, a.v.cfg.CipherCombo)
				of.reader = rd
				return err
			case !exists || mode == OpenTruncate:
				w, err := CreateWriter(contentPath, enc, mac, a.v.cfg.CipherCombo)
				of.writer = w
				return err
			default:
				w, err := OpenWriter(contentPath, enc, mac, a.v.cfg.CipherCombo)
				of.writer = w
				return err
			}
		})
		if err != nil {
			return err
		}
		if !exists || mode == OpenTruncate {
			a.invalidate(parentResolved.childDirId, path)
		}
		h = a.handles.register(of)
		return nil
	})
	return h, err
}

// Read reads len(p) bytes at off from the handle opened for reading.
func (a *AsyncVault) Read(ctx context.Context, h Handle, p []byte, off int64) (int, error) {
	var n int
	err := a.dispatch(ctx, func() error {
		of, ok := a.handles.lookup(h)
		if !ok || of.reader == nil {
			return fmt.Errorf("%w: handle not open for reading", ErrInvalidArgument)
		}
		var rerr error
		n, rerr = of.reader.ReadAt(p, off)
		return rerr
	})
	return n, err
}

// Write writes p through the handle opened for writing — at off, or at the
// current end of file for OpenAppend handles — taking the parent
// directory's write lock and invalidating its cached listing and
// attributes since the write changes the file's size/mtime.
func (a *AsyncVault) Write(ctx context.Context, h Handle, p []byte, off int64) (int, error) {
	var n int
	err := a.dispatch(ctx, func() error {
		of, ok := a.handles.lookup(h)
		if !ok || of.writer == nil {
			return fmt.Errorf("%w: handle not open for writing", ErrInvalidArgument)
		}
		lock := a.locks.get(of.parent)
		lock.Lock()
		defer lock.Unlock()

		var werr error
		if of.mode == OpenAppend {
			n, werr = of.writer.Append(p)
		} else {
			n, werr = of.writer.WriteAt(p, off)
		}
		if werr == nil {
			a.invalidate(of.parent, of.path)
		}
		return werr
	})
	return n, err
}

// Truncate changes the plaintext length of the file behind h, which must
// be open for writing.
func (a *AsyncVault) Truncate(ctx context.Context, h Handle, size int64) error {
	return a.dispatch(ctx, func() error {
		of, ok := a.handles.lookup(h)
		if !ok || of.writer == nil {
			return fmt.Errorf("%w: handle not open for writing", ErrInvalidArgument)
		}
		lock := a.locks.get(of.parent)
		lock.Lock()
		defer lock.Unlock()

		if err := of.writer.Truncate(size); err != nil {
			return err
		}
		a.invalidate(of.parent, of.path)
		return nil
	})
}

// Close flushes and releases the handle.
func (a *AsyncVault) Close(ctx context.Context, h Handle) error {
	return a.dispatch(ctx, func() error {
		of, ok := a.handles.lookup(h)
		if !ok {
			return fmt.Errorf("%w: unknown handle", ErrInvalidArgument)
		}
		a.handles.release(h)
		if of.writer != nil {
			return of.writer.Close()
		}
		if of.reader != nil {
			return of.reader.Close()
		}
		return nil
	})
}

// MoveFileByPath renames src to dst, taking both parent directories' write
// locks in a fixed order to avoid deadlocking against a concurrent reverse
// rename, then invalidates both directories' cached listings. An existing
// destination fails the move with ErrDstExists.
func (a *AsyncVault) MoveFileByPath(ctx context.Context, src, dst VaultPath) error {
	return a.moveFile(ctx, src, dst, false)
}

// MoveFileOverwriteByPath is MoveFileByPath, except an existing file or
// symlink at dst is replaced under the same pair of locks.
func (a *AsyncVault) MoveFileOverwriteByPath(ctx context.Context, src, dst VaultPath) error {
	return a.moveFile(ctx, src, dst, true)
}

func (a *AsyncVault) moveFile(ctx context.Context, src, dst VaultPath, overwrite bool) error {
	return a.dispatch(ctx, func() error {
		srcParent, _, err := parentAndName(src)
		if err != nil {
			return err
		}
		dstParent, _, err := parentAndName(dst)
		if err != nil {
			return err
		}
		srcParentResolved, err := a.v.ResolvePath(srcParent)
		if err != nil {
			return err
		}
		dstParentResolved, err := a.v.ResolvePath(dstParent)
		if err != nil {
			return err
		}

		unlock := a.locks.lockTwo(srcParentResolved.childDirId, dstParentResolved.childDirId)
		defer unlock()

		if err := a.v.moveFile(src, dst, overwrite); err != nil {
			return err
		}
		a.invalidate(srcParentResolved.childDirId, src)
		a.invalidate(dstParentResolved.childDirId, dst)
		return nil
	})
}

// DeleteByPath removes the file or symlink at path under its parent's
// write lock.
func (a *AsyncVault) DeleteByPath(ctx context.Context, path VaultPath) error {
	return a.dispatch(ctx, func() error {
		parentPath, _, err := parentAndName(path)
		if err != nil {
			return err
		}
		parentResolved, err := a.v.ResolvePath(parentPath)
		if err != nil {
			return err
		}
		lock := a.locks.get(parentResolved.childDirId)
		lock.Lock()
		defer lock.Unlock()

		if err := a.v.DeleteByPath(path); err != nil {
			return err
		}
		a.invalidate(parentResolved.childDirId, path)
		return nil
	})
}

// invalidate drops the cached facts a successful mutation under parent may
// have changed: the parent's listing and the mutated path's attributes.
// The DirId-path cache is handled by the sync Vault itself, whose mapping
// only changes on directory deletion.
func (a *AsyncVault) invalidate(parent DirId, path VaultPath) {
	a.dirCache.Invalidate(string(parent))
	a.attrCache.Invalidate(string(path))
}

// Warm concurrently pre-populates the attribute cache for a batch of
// paths, using errgroup to fan the lookups out and stop at the first
// unexpected error while still letting ctx cancellation abort the rest.
// Missing paths are tolerated (and recorded as negative entries when the
// negative cache is enabled).
func (a *AsyncVault) Warm(ctx context.Context, paths []VaultPath) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			if _, err := a.GetAttr(gctx, p); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
