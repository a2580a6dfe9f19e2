package cryptovault

import (
	"context"
	"sync"
	"testing"
)

func createTestAsyncVault(t *testing.T) *AsyncVault {
	t.Helper()
	return NewAsyncVault(createTestVault(t))
}

func TestAsyncVaultWriteReadRoundTrip(t *testing.T) {
	v := createTestVault(t)
	av := NewAsyncVault(v)
	ctx := context.Background()

	if err := v.WriteByPath("file.txt", []byte("seed")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}

	h, err := av.Open(ctx, "file.txt", OpenRead)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 4)
	n, err := av.Read(ctx, h, buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 4 || string(buf) != "seed" {
		t.Fatalf("got %q, want %q", buf[:n], "seed")
	}
	if err := av.Close(ctx, h); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestAsyncVaultWriteInvalidatesDirCache(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.v.WriteByPath("a.txt", []byte("x")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	entries, err := av.ListDirectory(ctx, "")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}

	h, err := av.Open(ctx, "a.txt", OpenTruncate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := av.Write(ctx, h, []byte("new content"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, found, _ := av.dirCache.Get(string(RootDirId)); found {
		t.Fatal("root listing still cached after Write")
	}
	if err := av.Close(ctx, h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := av.v.ReadByPath("a.txt")
	if err != nil {
		t.Fatalf("ReadByPath: %v", err)
	}
	if string(got) != "new content" {
		t.Fatalf("got %q, want %q", got, "new content")
	}
}

func TestAsyncVaultMoveLocksBothParentsWithoutDeadlock(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.v.CreateDirectoryAll("src"); err != nil {
		t.Fatalf("CreateDirectoryAll: %v", err)
	}
	if err := av.v.CreateDirectoryAll("dst"); err != nil {
		t.Fatalf("CreateDirectoryAll: %v", err)
	}
	if err := av.v.WriteByPath("src/a.txt", []byte("a")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	if err := av.v.WriteByPath("dst/b.txt", []byte("b")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make(chan error, 2)
	go func() {
		defer wg.Done()
		errs <- av.MoveFileByPath(ctx, "src/a.txt", "dst/a.txt")
	}()
	go func() {
		defer wg.Done()
		errs <- av.MoveFileByPath(ctx, "dst/b.txt", "src/b.txt")
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("MoveFileByPath: %v", err)
		}
	}
}

func TestAsyncVaultDeleteByPath(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.v.WriteByPath("gone.txt", []byte("x")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	if err := av.DeleteByPath(ctx, "gone.txt"); err != nil {
		t.Fatalf("DeleteByPath: %v", err)
	}
	if _, err := av.v.EntryType("gone.txt"); err == nil {
		t.Fatal("expected entry to be gone")
	}
}

func TestAsyncVaultReadWriteByPath(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.WriteByPath(ctx, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	got, err := av.ReadByPath(ctx, "a.txt")
	if err != nil {
		t.Fatalf("ReadByPath: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
	typ, err := av.EntryType(ctx, "a.txt")
	if err != nil {
		t.Fatalf("EntryType: %v", err)
	}
	if typ != EntryTypeFile {
		t.Fatalf("EntryType = %v, want %v", typ, EntryTypeFile)
	}
}

func TestAsyncVaultCreateDirectoryAllAndList(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.CreateDirectoryAll(ctx, "a/b"); err != nil {
		t.Fatalf("CreateDirectoryAll: %v", err)
	}
	if err := av.WriteByPath(ctx, "a/b/file.txt", []byte("x")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	if err := av.WriteSymlinkByPath(ctx, "a/b/link", "file.txt"); err != nil {
		t.Fatalf("WriteSymlinkByPath: %v", err)
	}

	files, err := av.ListFiles(ctx, "a/b")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("len(files) = %d, want 1", len(files))
	}
	symlinks, err := av.ListSymlinks(ctx, "a/b")
	if err != nil {
		t.Fatalf("ListSymlinks: %v", err)
	}
	if len(symlinks) != 1 {
		t.Fatalf("len(symlinks) = %d, want 1", len(symlinks))
	}
	dirs, err := av.ListDirectories(ctx, "a")
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("len(dirs) = %d, want 1", len(dirs))
	}

	target, err := av.ReadSymlinkByPath(ctx, "a/b/link")
	if err != nil {
		t.Fatalf("ReadSymlinkByPath: %v", err)
	}
	if target != "file.txt" {
		t.Fatalf("target = %q, want %q", target, "file.txt")
	}
}

func TestAsyncVaultDeleteDirectory(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.CreateDirectoryByPath(ctx, "empty"); err != nil {
		t.Fatalf("CreateDirectoryByPath: %v", err)
	}
	if err := av.DeleteDirectoryByPath(ctx, "empty"); err != nil {
		t.Fatalf("DeleteDirectoryByPath: %v", err)
	}
	if _, err := av.EntryType(ctx, "empty"); err == nil {
		t.Fatal("expected entry to be gone")
	}
}

func TestAsyncVaultDeleteDirectoryRecursiveByPath(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.CreateDirectoryAll(ctx, "a/b"); err != nil {
		t.Fatalf("CreateDirectoryAll: %v", err)
	}
	if err := av.WriteByPath(ctx, "a/b/file.txt", []byte("x")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}

	files, dirs, err := av.DeleteDirectoryRecursiveByPath(ctx, "a")
	if err != nil {
		t.Fatalf("DeleteDirectoryRecursiveByPath: %v", err)
	}
	if files != 1 {
		t.Fatalf("files = %d, want 1", files)
	}
	if dirs != 2 {
		t.Fatalf("dirs = %d, want 2", dirs)
	}
	if _, err := av.EntryType(ctx, "a"); err == nil {
		t.Fatal("expected entry to be gone")
	}
}

func TestAsyncVaultChangePassword(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.v.WriteByPath("a.txt", []byte("seed")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}

	if err := av.ChangePassword(ctx, []byte("test-password"), []byte("new-password")); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := UnlockVault(av.v.root, []byte("test-password")); err == nil {
		t.Fatal("expected old password to be rejected after ChangePassword")
	}
	unlocked, err := UnlockVault(av.v.root, []byte("new-password"))
	if err != nil {
		t.Fatalf("UnlockVault with new password: %v", err)
	}
	defer unlocked.Close()

	got, err := unlocked.ReadByPath("a.txt")
	if err != nil {
		t.Fatalf("ReadByPath: %v", err)
	}
	if string(got) != "seed" {
		t.Fatalf("got %q, want %q", got, "seed")
	}
}

func TestAsyncVaultListDirectoryAfterChangePassword(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.v.WriteByPath("a.txt", []byte("x")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	if err := av.ChangePassword(ctx, []byte("test-password"), []byte("new-password")); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := av.ListDirectory(ctx, ""); err != nil {
		t.Fatalf("ListDirectory after ChangePassword: %v", err)
	}
}

func TestAsyncVaultOpenCreatesMissingFile(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	h, err := av.Open(ctx, "fresh.txt", OpenTruncate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := av.Write(ctx, h, []byte("created"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := av.Close(ctx, h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := av.ReadByPath(ctx, "fresh.txt")
	if err != nil {
		t.Fatalf("ReadByPath: %v", err)
	}
	if string(got) != "created" {
		t.Fatalf("got %q, want %q", got, "created")
	}
}

func TestAsyncVaultOpenWritePreservesContent(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.WriteByPath(ctx, "a.txt", []byte("0123456789")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	h, err := av.Open(ctx, "a.txt", OpenWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := av.Write(ctx, h, []byte("AB"), 4); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := av.Close(ctx, h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := av.ReadByPath(ctx, "a.txt")
	if err != nil {
		t.Fatalf("ReadByPath: %v", err)
	}
	if string(got) != "0123AB6789" {
		t.Fatalf("got %q, want %q", got, "0123AB6789")
	}
}

func TestAsyncVaultOpenAppendIgnoresOffset(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.WriteByPath(ctx, "log.txt", []byte("first")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	h, err := av.Open(ctx, "log.txt", OpenAppend)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := av.Write(ctx, h, []byte("|second"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := av.Close(ctx, h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := av.ReadByPath(ctx, "log.txt")
	if err != nil {
		t.Fatalf("ReadByPath: %v", err)
	}
	if string(got) != "first|second" {
		t.Fatalf("got %q, want %q", got, "first|second")
	}
}

func TestAsyncVaultTruncateHandle(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.WriteByPath(ctx, "a.txt", []byte("0123456789")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	h, err := av.Open(ctx, "a.txt", OpenWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := av.Truncate(ctx, h, 4); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if err := av.Close(ctx, h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := av.ReadByPath(ctx, "a.txt")
	if err != nil {
		t.Fatalf("ReadByPath: %v", err)
	}
	if string(got) != "0123" {
		t.Fatalf("got %q, want %q", got, "0123")
	}
}

func TestAsyncVaultGetAttr(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.WriteByPath(ctx, "a.txt", []byte("four")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	fi, err := av.GetAttr(ctx, "a.txt")
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if fi.Type != EntryTypeFile || fi.Size != 4 {
		t.Fatalf("GetAttr = %+v, want file of size 4", fi)
	}
	if _, found, _ := av.attrCache.Get("a.txt"); !found {
		t.Fatal("expected GetAttr to populate the attribute cache")
	}

	if _, err := av.GetAttr(ctx, "missing.txt"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAsyncVaultNegativeCacheRemembersAbsence(t *testing.T) {
	v := createTestVault(t)
	av := NewAsyncVaultWithOptions(v, Options{EnableNegativeCache: true})
	ctx := context.Background()

	if _, err := av.GetAttr(ctx, "nope.txt"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, found, negative := av.attrCache.Get("nope.txt"); !found || !negative {
		t.Fatalf("found=%v negative=%v, want a cached negative entry", found, negative)
	}
}

func TestAsyncVaultWarmPopulatesAttrCache(t *testing.T) {
	av := createTestAsyncVault(t)
	ctx := context.Background()

	if err := av.v.WriteByPath("a.txt", []byte("a")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	if err := av.v.WriteByPath("b.txt", []byte("b")); err != nil {
		t.Fatalf("WriteByPath: %v", err)
	}
	if err := av.Warm(ctx, []VaultPath{"a.txt", "b.txt", "missing.txt"}); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if _, found, _ := av.attrCache.Get("a.txt"); !found {
		t.Fatal("expected a.txt to be cached after Warm")
	}
	if _, found, _ := av.attrCache.Get("b.txt"); !found {
		t.Fatal("expected b.txt to be cached after Warm")
	}
}
