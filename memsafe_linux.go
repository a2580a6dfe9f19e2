//go:build linux

package cryptovault

import "golang.org/x/sys/unix"

// platformLock mlocks buf so it is never paged to swap, and where the
// kernel supports it (Linux), advises the buffer out of core dumps.
func platformLock(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := unix.Mlock(buf); err != nil {
		return err
	}
	_ = unix.Madvise(buf, unix.MADV_DONTDUMP) // best-effort; not all kernels support it
	return nil
}

func platformUnlock(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = unix.Munlock(buf)
}
