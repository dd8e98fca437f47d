package slab

import "unsafe"

// SizeRouter dispatches a byte size to one of sizeClassCount SlabPools with
// slot sizes slotBaseSize, 2*slotBaseSize, ..., sizeClassCount*slotBaseSize,
// or to a system-allocator passthrough for sizes above that ceiling.
type SizeRouter struct {
	pools          []*SlabPool
	slotBaseSize   uintptr
	sizeClassCount int
	blockSize      uintptr
	maxPooledSize  uintptr
	source         blockSource
}

// NewSizeRouter builds a router with sizeClassCount pools of slot sizes
// slotBaseSize, 2*slotBaseSize, ..., each backed by blockSize-byte blocks.
// Init must be called before any Allocate/Deallocate.
func NewSizeRouter(slotBaseSize uintptr, sizeClassCount int, blockSize uintptr) *SizeRouter {
	return &SizeRouter{
		pools:          make([]*SlabPool, sizeClassCount),
		slotBaseSize:   slotBaseSize,
		sizeClassCount: sizeClassCount,
		blockSize:      blockSize,
		maxPooledSize:  slotBaseSize * uintptr(sizeClassCount),
		source:         osBlockSource,
	}
}

// NewDefaultSizeRouter builds a router using the package's reference
// constants (S=8, K=64, B=4096, so MaxPooledSize=512).
func NewDefaultSizeRouter() *SizeRouter {
	return NewSizeRouter(DefaultSlotBaseSize, DefaultSizeClassCount, DefaultBlockSize)
}

// Init initializes every pool, pool i with slot size (i+1)*slotBaseSize.
// Not thread-safe: call it once before any concurrent Allocate/Deallocate
// begins.
func (r *SizeRouter) Init() {
	for i := range r.pools {
		r.pools[i] = NewSlabPool(r.blockSize, r.source)
		r.pools[i].Init(uintptr(i+1) * r.slotBaseSize)
	}
}

// MaxPooledSize is the largest size served by a pool (K*S); requests above
// this are forwarded to the system allocator.
func (r *SizeRouter) MaxPooledSize() uintptr { return r.maxPooledSize }

// poolIndex maps a byte size in (0, MaxPooledSize] to its pool index:
// ceil(n/S) - 1, computed as (n-1)/S via integer division.
func (r *SizeRouter) poolIndex(n uintptr) int {
	return int((n - 1) / r.slotBaseSize)
}

// Allocate returns a region of at least n bytes, or nil for n==0 or an
// exhausted system allocator. Sizes above MaxPooledSize are forwarded to
// the system allocator and must be released via Deallocate with the same
// n; sizes in range are served by the matching pool's bump/free-list
// allocation.
func (r *SizeRouter) Allocate(n uintptr) unsafe.Pointer {
	if n == 0 {
		return nil
	}

	if n > r.maxPooledSize {
		return systemAllocate(n)
	}

	return r.pools[r.poolIndex(n)].Allocate()
}

// Deallocate returns a region obtained from Allocate(n). ptr==nil or n==0
// is a no-op. n must match the value originally passed to Allocate —
// pools are selected by n, not by inspecting ptr, so a mismatched n is a
// caller error the router cannot detect.
func (r *SizeRouter) Deallocate(ptr unsafe.Pointer, n uintptr) {
	if ptr == nil || n == 0 {
		return
	}

	if n > r.maxPooledSize {
		systemDeallocate(ptr, n)

		return
	}

	r.pools[r.poolIndex(n)].Deallocate(ptr)
}

// BlockCnt sums BlockCnt across every pool.
func (r *SizeRouter) BlockCnt() uint64 {
	var total uint64
	for i := range r.pools {
		total += r.pools[i].BlockCnt()
	}

	return total
}

// FreeSlotCnt sums FreeSlotCnt across every pool.
func (r *SizeRouter) FreeSlotCnt() uint64 {
	var total uint64
	for i := range r.pools {
		total += r.pools[i].FreeSlotCnt()
	}

	return total
}

// Pool exposes the pool backing a given size class index, 0..sizeClassCount-1,
// for direct per-pool testing as described in the package's external
// interface (pool.init/allocate/deallocate/blockCnt/freeSlotCnt).
func (r *SizeRouter) Pool(index int) *SlabPool { return r.pools[index] }

// Destroy releases every pool's blocks. The router must not be used
// afterward.
func (r *SizeRouter) Destroy() {
	for i := range r.pools {
		r.pools[i].Destroy()
	}
}
