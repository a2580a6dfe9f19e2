package cryptovault

import "github.com/google/uuid"

// newDirId generates a fresh, random directory ID for a newly created
// directory.
// Collisions are astronomically unlikely with UUIDv4, the same guarantee
// Cryptomator itself relies on.
func newDirId() DirId {
	return DirId(uuid.NewString())
}
