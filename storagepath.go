package cryptovault

import "path/filepath"

// On-disk marker file/suffix names from the Cryptomator vault format.
const (
	dirSuffix       = ".c9r"
	shortenedSuffix = ".c9s"
	dirMarkerFile   = "dir.c9r"
	symlinkFile     = "symlink.c9r"
	contentsFile    = "contents.c9r"
	shortNameFile   = "name.c9r"
	dataDirName     = "d"
)

// EntryFormat distinguishes a plain .c9r entry from a deflated .c9s one;
// only .c9s entries carry a separate name.c9r file holding the original
// (un-shortened) encrypted name.
type EntryFormat int

const (
	EntryFormatPlain EntryFormat = iota
	EntryFormatShortened
)

// EntryPaths locates every on-disk file that makes up one vault entry.
// Root is the absolute filesystem path to the .c9r or .c9s entry itself;
// for directories and symlinks, the payload lives in a marker file beneath
// Root, while a plain file's content is Root itself.
type EntryPaths struct {
	Format EntryFormat
	// Root is the .c9r (or .c9s) directory/file path.
	Root string
	// NamePath is Root/name.c9r, set only when Format is
	// EntryFormatShortened.
	NamePath string
}

// dataDir returns <vaultRoot>/d.
func dataDir(vaultRoot string) string {
	return filepath.Join(vaultRoot, dataDirName)
}

// calculateDirectoryStoragePath computes the physical directory on disk
// that holds the (already-encrypted) entries of the directory identified
// by id: <vaultRoot>/d/<shard>/<rest>.
func calculateDirectoryStoragePath(vaultRoot string, codec *NameCodec, id DirId) (string, error) {
	shard, rest, err := codec.HashDirID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir(vaultRoot), shard, rest), nil
}

// locateEntryRoot computes the Root and Format of the entry named plainName
// inside the directory identified by parent — before anything is known
// about what type of entry it is, since the ciphertext name depends only on
// the plaintext name and the parent DirId. Callers classify the
// entry's type afterward by checking which marker file Root contains.
func locateEntryRoot(dirStoragePath string, codec *NameCodec, plainName string, parent DirId) (EntryPaths, error) {
	encrypted, err := codec.EncryptName(plainName, parent)
	if err != nil {
		return EntryPaths{}, err
	}
	withSuffix := encrypted + dirSuffix
	if !codec.NeedsShortening(withSuffix) {
		return EntryPaths{
			Format: EntryFormatPlain,
			Root:   filepath.Join(dirStoragePath, withSuffix),
		}, nil
	}
	shortened := ShortenedName(withSuffix)
	root := filepath.Join(dirStoragePath, shortened+shortenedSuffix)
	return EntryPaths{
		Format:   EntryFormatShortened,
		Root:     root,
		NamePath: filepath.Join(root, shortNameFile),
	}, nil
}

// contentPathFor locates the entry's payload once its type is known: the
// root itself for a plain file, or the type-appropriate marker file beneath
// root for a directory, symlink, or shortened file.
func contentPathFor(ep EntryPaths, typ EntryType) string {
	switch typ {
	case EntryTypeDirectory:
		return filepath.Join(ep.Root, dirMarkerFile)
	case EntryTypeSymlink:
		return filepath.Join(ep.Root, symlinkFile)
	default:
		if ep.Format == EntryFormatShortened {
			return filepath.Join(ep.Root, contentsFile)
		}
		return ep.Root
	}
}

// extractEncryptedBaseName strips the .c9r/.c9s suffix from a directory
// entry's base name, returning the remaining ciphertext (or, for a .c9s
// entry, the shortened hash — callers must read name.c9r to recover the
// full ciphertext name).
func extractEncryptedBaseName(dirEntryName string) (name string, format EntryFormat) {
	if n, ok := trimSuffix(dirEntryName, shortenedSuffix); ok {
		return n, EntryFormatShortened
	}
	if n, ok := trimSuffix(dirEntryName, dirSuffix); ok {
		return n, EntryFormatPlain
	}
	return dirEntryName, EntryFormatPlain
}

func trimSuffix(s, suffix string) (string, bool) {
	if len(s) <= len(suffix) || s[len(s)-len(suffix):] != suffix {
		return "", false
	}
	return s[:len(s)-len(suffix)], true
}
