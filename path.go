package cryptovault

import (
	"fmt"
	"strings"
)

// DirId is the opaque UUID-shaped identifier Cryptomator uses to name a
// directory's storage location independent of its logical path. The root
// directory is identified by the empty DirId.
type DirId string

// RootDirId is the well-known directory ID of the vault root.
const RootDirId DirId = ""

// EntryType classifies what a resolved vault entry is.
type EntryType int

const (
	EntryTypeFile EntryType = iota
	EntryTypeDirectory
	EntryTypeSymlink
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeFile:
		return "file"
	case EntryTypeDirectory:
		return "directory"
	case EntryTypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// VaultPath is a clean, slash-separated logical path inside the vault,
// always relative to the vault root and never carrying a leading slash.
type VaultPath string

// splitPath breaks a VaultPath into its components, validating each one:
// no empty components, no "." or "..", no embedded NUL or path separator
// inside a component.
func splitPath(p VaultPath) ([]string, error) {
	s := string(p)
	s = strings.Trim(s, "/")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "/")
	for _, c := range parts {
		if err := validatePathComponent(c); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

func validatePathComponent(c string) error {
	if c == "" {
		return fmt.Errorf("%w: empty path component", ErrInvalidPath)
	}
	if c == "." || c == ".." {
		return fmt.Errorf("%w: %q is not a valid path component", ErrInvalidPath, c)
	}
	if strings.ContainsRune(c, 0) {
		return fmt.Errorf("%w: path component contains NUL", ErrInvalidPath)
	}
	if strings.ContainsRune(c, '/') {
		return fmt.Errorf("%w: path component contains separator", ErrInvalidPath)
	}
	return nil
}

// parentAndName returns the VaultPath one level up, and the final component name.
// For the root, it returns ("", "").
func parentAndName(p VaultPath) (VaultPath, string, error) {
	parts, err := splitPath(p)
	if err != nil {
		return "", "", err
	}
	if len(parts) == 0 {
		return "", "", nil
	}
	return VaultPath(strings.Join(parts[:len(parts)-1], "/")), parts[len(parts)-1], nil
}

// joinPath appends name to the VaultPath dir.
func joinPath(dir VaultPath, name string) VaultPath {
	if dir == "" {
		return VaultPath(name)
	}
	return VaultPath(string(dir) + "/" + name)
}
