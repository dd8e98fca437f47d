// Package slab implements a process-wide fixed-size-class slab allocator:
// a SizeRouter dispatching to K SlabPools, each a bump-allocated arena with
// a lock-free intrusive free-list for O(1) slot reuse.
package slab

import "unsafe"

// pointerSize is the width of the free-list link stored in a free slot's
// first word. A slot smaller than this cannot host the link, so Init
// clamps slotSize up to it.
const pointerSize = unsafe.Sizeof(uintptr(0))

// Reference constants from the host project's size-class table: S, K and B.
// SizeRouter accepts overrides at construction; these are the defaults used
// by NewDefaultSizeRouter and by the host allocator facade when the caller
// does not ask for anything else.
const (
	DefaultSlotBaseSize  uintptr = 8    // S
	DefaultSizeClassCount int    = 64   // K
	DefaultBlockSize     uintptr = 4096 // B
)
