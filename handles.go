package cryptovault

import "sync/atomic"

// Handle is an opaque, monotonically increasing identifier for an open
// file. Handles are never reused within a process lifetime, so a stale
// handle from a closed file can never alias a new one.
type Handle uint64

// openFile bundles the state an async vault tracks for one open handle:
// its logical path (for error messages), the DirId of its parent (to take
// the right directory lock on writes that might trigger re-encryption),
// the mode it was opened in, and the underlying Reader/Writer.
type openFile struct {
	path   VaultPath
	parent DirId
	mode   OpenMode
	reader *Reader
	writer *Writer
}

// handleTable issues and tracks open-file handles.
type handleTable struct {
	next    atomic.Uint64
	entries syncMap[Handle, *openFile]
}

func newHandleTable() *handleTable {
	return &handleTable{entries: newSyncMap[Handle, *openFile]()}
}

func (t *handleTable) register(f *openFile) Handle {
	h := Handle(t.next.Add(1))
	t.entries.store(h, f)
	return h
}

func (t *handleTable) lookup(h Handle) (*openFile, bool) {
	return t.entries.load(h)
}

func (t *handleTable) release(h Handle) {
	t.entries.delete(h)
}
