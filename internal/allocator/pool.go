package allocator

import (
	"sync"
	"unsafe"

	"github.com/orizon-lang/slabpool/internal/slab"
)

// SlabAllocatorImpl adapts a slab.SizeRouter to the Allocator interface. The
// router's own API is size-symmetric (Allocate/Deallocate both take n), but
// Allocator.Free takes only a pointer, so this type tracks each live
// pointer's size the same way SystemAllocatorImpl tracks its slices.
type SlabAllocatorImpl struct {
	router *slab.SizeRouter
	config *Config

	mu   sync.RWMutex
	live map[unsafe.Pointer]uintptr

	allocCount uint64
	freeCount  uint64
}

// NewSlabAllocator builds a slab allocator with sizeClassCount pools of
// slot sizes slotBaseSize, 2*slotBaseSize, ..., each backed by blockSize
// blocks, sized from config. Requests above the pooled ceiling fall
// through to the router's own system-allocator passthrough.
func NewSlabAllocator(config *Config) *SlabAllocatorImpl {
	router := slab.NewSizeRouter(config.SlotBaseSize, config.SizeClassCount, config.BlockSize)
	router.Init()

	return &SlabAllocatorImpl{
		router: router,
		config: config,
		live:   make(map[unsafe.Pointer]uintptr),
	}
}

// Alloc allocates size bytes from the underlying size router.
func (sl *SlabAllocatorImpl) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	ptr := sl.router.Allocate(size)
	if ptr == nil {
		return nil
	}

	sl.mu.Lock()
	sl.live[ptr] = size
	sl.allocCount++
	sl.mu.Unlock()

	return ptr
}

// Free returns ptr to the router. ptr must have come from this allocator's
// Alloc; a pointer this allocator never handed out is silently ignored,
// since there is no size to recover for it.
func (sl *SlabAllocatorImpl) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	sl.mu.Lock()
	size, ok := sl.live[ptr]
	if ok {
		delete(sl.live, ptr)
		sl.freeCount++
	}
	sl.mu.Unlock()

	if !ok {
		return
	}

	sl.router.Deallocate(ptr, size)
}

// Realloc reallocates memory, copying the smaller of the old and new sizes.
func (sl *SlabAllocatorImpl) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return sl.Alloc(newSize)
	}

	if newSize == 0 {
		sl.Free(ptr)

		return nil
	}

	sl.mu.RLock()
	oldSize := sl.live[ptr]
	sl.mu.RUnlock()

	newPtr := sl.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	copySize := oldSize
	if newSize < oldSize {
		copySize = newSize
	}

	if copySize > 0 {
		copyMemory(newPtr, ptr, copySize)
	}

	sl.Free(ptr)

	return newPtr
}

// TotalAllocated returns the sum of sizes passed to still-live Alloc calls.
func (sl *SlabAllocatorImpl) TotalAllocated() uintptr {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	var total uintptr
	for _, size := range sl.live {
		total += size
	}

	return total
}

// TotalFreed is not tracked per-byte by the router; callers interested in
// byte-level freed totals should use SystemAllocatorKind instead.
func (sl *SlabAllocatorImpl) TotalFreed() uintptr {
	return 0
}

// ActiveAllocations returns the number of pointers currently live.
func (sl *SlabAllocatorImpl) ActiveAllocations() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	return len(sl.live)
}

// Stats returns allocation statistics computed from the live-pointer map.
// The router's block and free-list-hit counters are not included; they are
// reported by BlockCnt and FreeSlotCnt.
func (sl *SlabAllocatorImpl) Stats() AllocatorStats {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	var bytesInUse uintptr
	for _, size := range sl.live {
		bytesInUse += size
	}

	return AllocatorStats{
		TotalAllocated:    bytesInUse,
		ActiveAllocations: len(sl.live),
		AllocationCount:   sl.allocCount,
		FreeCount:         sl.freeCount,
		BytesInUse:        bytesInUse,
	}
}

// Reset is a no-op: the router's pools keep every block they've ever
// acquired for the lifetime of the allocator, by design.
func (sl *SlabAllocatorImpl) Reset() {}

// BlockCnt reports blocks acquired across every size class, summed.
func (sl *SlabAllocatorImpl) BlockCnt() uint64 { return sl.router.BlockCnt() }

// FreeSlotCnt reports free-list hits across every size class, summed. Per
// the router's own semantics, this counts Alloc calls served from a
// free-list, not Free calls.
func (sl *SlabAllocatorImpl) FreeSlotCnt() uint64 { return sl.router.FreeSlotCnt() }

// Router exposes the underlying size router for callers that want direct
// access to per-class pools (testing, NewElement/DeleteElement generics).
func (sl *SlabAllocatorImpl) Router() *slab.SizeRouter { return sl.router }
