package cryptovault

// lockedBytes is a fixed-size byte buffer whose backing memory is mlocked
// and marked non-dumpable where the host OS supports it. It never exposes
// its slice directly — callers must go
// through withBytes, matching the "closure-style accessor" the master key
// is built on.
type lockedBytes struct {
	buf    []byte
	locked bool
}

// newLockedBytes copies src into a freshly allocated, mlocked buffer. src
// is not modified or zeroized by this call; callers that derived src
// themselves are responsible for wiping it.
func newLockedBytes(src []byte) (*lockedBytes, error) {
	buf := make([]byte, len(src))
	copy(buf, src)

	lb := &lockedBytes{buf: buf}
	if err := platformLock(buf); err == nil {
		lb.locked = true
	}
	// A failure to mlock/madvise is not fatal: the key still works, it is
	// just not protected against swap or core dumps. ErrKeyAccess is
	// reserved for the read path, not construction.
	return lb, nil
}

// withBytes invokes fn with the protected buffer and returns its result.
// The buffer is never valid outside the call to fn.
func (lb *lockedBytes) withBytes(fn func([]byte) ([]byte, error)) ([]byte, error) {
	if lb == nil || lb.buf == nil {
		return nil, ErrKeyAccess
	}
	return fn(lb.buf)
}

// zeroize overwrites the buffer and releases the memory lock. Safe to call
// more than once.
func (lb *lockedBytes) zeroize() {
	if lb == nil || lb.buf == nil {
		return
	}
	for i := range lb.buf {
		lb.buf[i] = 0
	}
	if lb.locked {
		platformUnlock(lb.buf)
		lb.locked = false
	}
	lb.buf = nil
}
