//go:build unix

package slab

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixBlockSource backs blocks with anonymous mmap regions. mmap only
// guarantees page alignment, so acquire maps 2*size bytes and trims the
// slack on both sides of the first size-aligned window back to the kernel,
// the standard technique for an aligned allocation on top of mmap.
type unixBlockSource struct{}

var osBlockSource blockSource = unixBlockSource{}

func (unixBlockSource) acquire(size uintptr) (uintptr, bool) {
	raw, err := unix.Mmap(-1, 0, int(2*size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, false
	}

	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + size - 1) &^ (size - 1)

	if head := aligned - base; head > 0 {
		_ = unix.Munmap(raw[:head])
	}

	tailStart := aligned + size
	rawEnd := base + 2*size

	if tailStart < rawEnd {
		tail := unsafe.Slice((*byte)(unsafe.Pointer(tailStart)), int(rawEnd-tailStart))
		_ = unix.Munmap(tail)
	}

	return aligned, true
}

func (unixBlockSource) release(base, size uintptr) {
	region := unsafe.Slice((*byte)(unsafe.Pointer(base)), int(size))
	_ = unix.Munmap(region)
}
