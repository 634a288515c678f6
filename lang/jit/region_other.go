//go:build !unix

package jit

import "errors"

// mmapRegion, mprotectRW and mprotectRX have no portable implementation
// outside unix-like targets (the mmap/mprotect
// pair is POSIX-specific too). On these GOOS values jit.Compile fails
// cleanly and every function stays interpreter-only, which is always a
// legal outcome.
var errNoCodeRegion = errors.New("jit: native code region unsupported on this OS")

func mmapRegion(size int) ([]byte, error)    { return nil, errNoCodeRegion }
func mprotectRW(mem []byte) error            { return errNoCodeRegion }
func mprotectRX(mem []byte) (uintptr, error) { return 0, errNoCodeRegion }
