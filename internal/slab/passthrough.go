package slab

import "unsafe"

// systemAllocate services a SizeRouter request above MaxPooledSize by
// going straight to a blockSource, the same acquire/release abstraction
// pools use for their blocks. The original source's passthrough used
// aligned_alloc(n, n) — alignment equal to size — which only the system
// allocator can promise for an arbitrary n that happens not to be a power
// of two; blockSource.acquire already has to solve exactly that problem
// for block-sized allocations, so the oversize path reuses it with size
// rounded up to a power of two at least as large as n, and the rounded
// size is what's threaded back through to release.
func systemAllocate(n uintptr) unsafe.Pointer {
	rounded := nextPowerOfTwo(n)

	base, ok := osBlockSource.acquire(rounded)
	if !ok {
		return nil
	}

	return unsafe.Pointer(base) //nolint:govet // base came from a blockSource
}

func systemDeallocate(ptr unsafe.Pointer, n uintptr) {
	rounded := nextPowerOfTwo(n)
	osBlockSource.release(uintptr(ptr), rounded)
}

func nextPowerOfTwo(n uintptr) uintptr {
	if n == 0 {
		return 1
	}

	p := uintptr(1)
	for p < n {
		p <<= 1
	}

	return p
}
