package prahari

const (
	// PageBits is the width of the guard page in bits.
	PageBits = 14
	// PageSize is the size of the guard page in bytes (16 KiB).
	PageSize = 1 << PageBits
)

// pageMask rounds an address down to the guard page boundary.
const pageMask = ^uintptr(PageSize - 1)
