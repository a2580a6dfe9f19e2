//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package cryptovault

import "golang.org/x/sys/unix"

// platformLock mlocks buf so it is never paged to swap. MADV_DONTDUMP is a
// Linux-only advisory flag; these kernels have no equivalent exposed
// through x/sys/unix, so mlock is all we get here.
func platformLock(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Mlock(buf)
}

func platformUnlock(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = unix.Munlock(buf)
}
