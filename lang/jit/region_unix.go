//go:build unix

package jit

import (
	"syscall"
	"unsafe"
)

// mmapRegion reserves size bytes of anonymous, private memory, initially
// writable (the region is writable during emission, then re-mapped
// executable). The returned slice's
// header never changes again (len == cap == size): CodeRegion only ever
// writes within it and toggles its protection bits, it never grows or
// moves the mapping.
func mmapRegion(size int) ([]byte, error) {
	mem, err := syscall.Mmap(-1, 0, size,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_ANON|syscall.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return mem, nil
}

func baseAddr(mem []byte) uintptr {
	if len(mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&mem[0]))
}

// mprotectRW restores the region to writable so Commit can copy in a
// newly emitted function's bytes.
func mprotectRW(mem []byte) error {
	return syscall.Mprotect(mem, syscall.PROT_READ|syscall.PROT_WRITE)
}

// mprotectRX remaps the region executable and returns its base address.
// The runtime never writes to an executable mapping: nothing touches mem
// again until the next mprotectRW call.
func mprotectRX(mem []byte) (uintptr, error) {
	if err := syscall.Mprotect(mem, syscall.PROT_READ|syscall.PROT_EXEC); err != nil {
		return 0, err
	}
	return baseAddr(mem), nil
}
