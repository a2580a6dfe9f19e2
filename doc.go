// Package cryptovault implements the core of a Cryptomator-compatible
// encrypted vault: a directory of opaque ciphertext blobs that this package
// transforms into a read/write logical file tree.
//
// # Overview
//
// A vault on disk is an ordinary directory containing a signed
// vault.cryptomator configuration, a masterkey.cryptomator key file, and a
// d/ subdirectory holding a two-level hash-sharded tree of encrypted
// directories and files. cryptovault never writes plaintext to disk: every
// read decrypts on the fly, every write encrypts before the first byte
// touches storage.
//
// # Cipher combos
//
// The on-disk format defines exactly two file-content cipher combos:
//
//   - SIV_GCM: AES-GCM chunks, a 12-byte nonce and 16-byte tag per chunk.
//   - SIV_CTRMAC: AES-CTR chunks authenticated with HMAC-SHA256, a 16-byte
//     nonce and 32-byte MAC per chunk.
//
// Filenames are always encrypted with AES-SIV (RFC 5297), which is
// deterministic: the same (directory, name) pair always encrypts to the
// same ciphertext, which is what makes directory lookups possible without
// decrypting every sibling.
//
// # Basic usage
//
//	v, err := cryptovault.UnlockVault(root, []byte("hunter2"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer v.Close()
//	if err := v.WriteByPath("hello.txt", []byte("hi")); err != nil {
//	    log.Fatal(err)
//	}
//	data, err := v.ReadByPath("hello.txt")
//
// # Security considerations
//
// Protected against: unauthorized access to the vault at rest, tampering
// with ciphertext (every chunk and header is authenticated), offline
// brute-force of the password (scrypt with the vault's configured cost).
//
// Not protected against: memory dumps while plaintext is resident, compromise
// of the host process, metadata leakage (directory-tree shape, file sizes).
//
// # Concurrency
//
// This package exposes two surfaces. Vault (vault.go) is a synchronous,
// single-caller surface with no internal locking, suited to CLI-style
// tools. AsyncVault (vault_async.go) adds the per-directory lock hierarchy,
// an open-handle table, and cache invalidation needed for many concurrent
// readers and writers, and is what a mount backend (FUSE, NFS, WebDAV — none
// of which this package implements) should drive.
package cryptovault
