package prahari

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	// LazyDLL and NewProc are used for dynamically loading kernel32.dll functions.
	modkernel32        = syscall.NewLazyDLL("kernel32.dll")
	procVirtualProtect = modkernel32.NewProc("VirtualProtect")
)

const (
	// PAGE_NOACCESS: Disables all access to the committed region of pages.
	PAGE_NOACCESS = 0x01
	// PAGE_READWRITE: Enables read and write access to the committed region of pages.
	PAGE_READWRITE = 0x04
)

// protect marks the guard page starting at addr as no-access using
// VirtualProtect on Windows.
func protect(addr uintptr) error {
	return virtualProtect(addr, PAGE_NOACCESS)
}

// release restores the guard page starting at addr to read/write access.
func release(addr uintptr) error {
	return virtualProtect(addr, PAGE_READWRITE)
}

func virtualProtect(addr uintptr, prot uint32) error {
	var old uint32

	// VirtualProtect changes the protection on a region of committed pages in
	// the virtual address space of the calling process.
	ret, _, err := procVirtualProtect.Call(
		addr,                          // lpAddress: base address of the region
		uintptr(PageSize),             // dwSize: size of the region
		uintptr(prot),                 // flNewProtect: new page protection
		uintptr(unsafe.Pointer(&old)), // lpflOldProtect: receives the previous protection
	)

	if ret == 0 {
		return fmt.Errorf("VirtualProtect failed: %v", err)
	}

	return nil
}
