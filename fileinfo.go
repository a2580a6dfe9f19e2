package cryptovault

import "time"

// FileInfo describes one resolved vault entry in terms of its plaintext
// view: logical name, type, and (for files) plaintext size, independent of
// the on-disk ciphertext layout that produced it. This is what the
// ListFiles / ListDirectories / ListSymlinks accessors return.
type FileInfo struct {
	Name    string
	Type    EntryType
	Size    int64
	ModTime time.Time
	DirId   DirId // valid only when Type == EntryTypeDirectory
}

func buildFileInfo(name string, size int64, modTime time.Time) FileInfo {
	return FileInfo{Name: name, Type: EntryTypeFile, Size: size, ModTime: modTime}
}

func buildDirectoryInfo(name string, id DirId, modTime time.Time) FileInfo {
	return FileInfo{Name: name, Type: EntryTypeDirectory, DirId: id, ModTime: modTime}
}

func buildSymlinkInfo(name string, modTime time.Time) FileInfo {
	return FileInfo{Name: name, Type: EntryTypeSymlink, ModTime: modTime}
}
