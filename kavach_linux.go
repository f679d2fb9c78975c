package prahari

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// protect marks the guard page starting at addr as no-access, so that any
// read or write of it raises a fault.
func protect(addr uintptr) error {
	return unix.Mprotect(pageSlice(addr), unix.PROT_NONE)
}

// release restores the guard page starting at addr to read/write access.
func release(addr uintptr) error {
	return unix.Mprotect(pageSlice(addr), unix.PROT_READ|unix.PROT_WRITE)
}

// pageSlice views the guard page at addr as a byte slice for the syscall
// wrapper. The memory is owned by the caller of the guard, not by the Go
// heap; addr must be page-aligned.
func pageSlice(addr uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), PageSize)
}
