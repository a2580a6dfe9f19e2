package cryptovault

import "testing"

func TestHandleTableRegisterLookupRelease(t *testing.T) {
	table := newHandleTable()
	of := &openFile{path: "a.txt"}

	h := table.register(of)
	got, ok := table.lookup(h)
	if !ok || got != of {
		t.Fatalf("lookup(%v) = (%v, %v), want (%v, true)", h, got, ok, of)
	}

	table.release(h)
	if _, ok := table.lookup(h); ok {
		t.Fatal("expected handle to be gone after release")
	}
}

func TestHandleTableNeverReusesHandles(t *testing.T) {
	table := newHandleTable()
	h1 := table.register(&openFile{path: "a.txt"})
	table.release(h1)
	h2 := table.register(&openFile{path: "b.txt"})

	if h1 == h2 {
		t.Fatal("expected a fresh handle to never reuse a released one")
	}
}
