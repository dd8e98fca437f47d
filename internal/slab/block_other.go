//go:build !unix && !windows

package slab

import (
	"sync"
	"unsafe"
)

// genericBlockSource is the portability fallback for platforms with no
// mmap/VirtualAlloc equivalent wired up (js/wasm, plan9, ...). It backs
// blocks with ordinary Go slices, over-allocated by size-1 bytes so an
// aligned window can be carved out of the middle, following the same
// "fall back to a generic path when the fast one is unavailable" shape as
// asyncio's CopyFileToConnGeneric.
//
// Because the backing storage is a Go slice, something has to keep it
// reachable for the GC for as long as the block is in use — the aligned
// uintptr handed to callers on its own is invisible to the collector.
// liveBlocks plays exactly the role SystemAllocatorImpl.allocatedSlices
// plays for the same reason.
type genericBlockSource struct {
	liveBlocks sync.Map // aligned base uintptr -> []byte
}

var osBlockSource blockSource = &genericBlockSource{}

func (s *genericBlockSource) acquire(size uintptr) (uintptr, bool) {
	buf := make([]byte, size+size-1)
	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (base + size - 1) &^ (size - 1)

	s.liveBlocks.Store(aligned, buf)

	return aligned, true
}

func (s *genericBlockSource) release(base, _ uintptr) {
	s.liveBlocks.Delete(base)
}
