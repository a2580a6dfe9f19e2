package cryptovault

import (
	"context"
	"io"
)

// MountBackend is the interface a FUSE, NFS, or WebDAV adapter implements
// against to expose a vault's plaintext view to the OS. Building
// such an adapter is out of scope for this package; MountBackend exists so
// one can be written against a stable surface without reaching into
// AsyncVault's internals.
type MountBackend interface {
	// Lookup resolves path to its entry type and, if it is a file, its
	// plaintext size.
	Lookup(ctx context.Context, path VaultPath) (FileInfo, error)
	// GetAttr refreshes just the metadata for an already-resolved entry,
	// favoring the attribute cache over ResolvePath's full walk.
	GetAttr(ctx context.Context, path VaultPath) (FileInfo, error)
	// OpenReader returns a streaming reader for path's content.
	OpenReader(ctx context.Context, path VaultPath) (io.ReadCloser, error)
	// OpenWriter returns a streaming writer for path. Any existing content
	// is discarded when the writer is opened, and each Write goes through
	// to the file as it is made.
	OpenWriter(ctx context.Context, path VaultPath) (io.WriteCloser, error)
	// Invalidate tells the backend that path's cached attributes or
	// directory listing are stale and must be refetched before reuse —
	// the same event AsyncVault's own caches react to internally.
	Invalidate(path VaultPath)
}

// handleReadCloser adapts a Handle to io.ReadCloser for a MountBackend
// implementation built directly on an AsyncVault.
type handleReadCloser struct {
	ctx context.Context
	av  *AsyncVault
	h   Handle
	off int64
}

func (h *handleReadCloser) Read(p []byte) (int, error) {
	n, err := h.av.Read(h.ctx, h.h, p, h.off)
	h.off += int64(n)
	return n, err
}

func (h *handleReadCloser) Close() error {
	return h.av.Close(h.ctx, h.h)
}

type handleWriteCloser struct {
	ctx context.Context
	av  *AsyncVault
	h   Handle
	off int64
}

func (h *handleWriteCloser) Write(p []byte) (int, error) {
	if err := validateBuffer(p, "p", 0); err != nil {
		return 0, err
	}
	n, err := h.av.Write(h.ctx, h.h, p, h.off)
	h.off += int64(n)
	return n, err
}

func (h *handleWriteCloser) Close() error {
	return h.av.Close(h.ctx, h.h)
}

// asyncMountBackend is a minimal MountBackend built directly on an
// AsyncVault, useful as a reference implementation or for in-process
// testing of the streaming surface without a real FUSE/NFS/WebDAV stack.
type asyncMountBackend struct {
	av *AsyncVault
}

// NewAsyncMountBackend wraps av as a MountBackend.
func NewAsyncMountBackend(av *AsyncVault) MountBackend {
	return &asyncMountBackend{av: av}
}

func (b *asyncMountBackend) Lookup(ctx context.Context, path VaultPath) (FileInfo, error) {
	return b.GetAttr(ctx, path)
}

func (b *asyncMountBackend) GetAttr(ctx context.Context, path VaultPath) (FileInfo, error) {
	return b.av.GetAttr(ctx, path)
}

func (b *asyncMountBackend) OpenReader(ctx context.Context, path VaultPath) (io.ReadCloser, error) {
	h, err := b.av.Open(ctx, path, OpenRead)
	if err != nil {
		return nil, err
	}
	return &handleReadCloser{ctx: ctx, av: b.av, h: h}, nil
}

func (b *asyncMountBackend) OpenWriter(ctx context.Context, path VaultPath) (io.WriteCloser, error) {
	h, err := b.av.Open(ctx, path, OpenTruncate)
	if err != nil {
		return nil, err
	}
	return &handleWriteCloser{ctx: ctx, av: b.av, h: h}, nil
}

func (b *asyncMountBackend) Invalidate(path VaultPath) {
	b.av.attrCache.Invalidate(string(path))
	if r, err := b.av.v.ResolvePath(path); err == nil && r.typ == EntryTypeDirectory {
		b.av.dirCache.Invalidate(string(r.childDirId))
	}
}
