package slab

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// SlabPool is a single-size-class arena: it bump-allocates slots out of
// blockSize-aligned blocks obtained from a blockSource, growing by
// acquiring a new block when the current one is exhausted, and recycles
// released slots through a lock-free free-list.
//
// The zero value is not ready to use; construct with NewSlabPool and call
// Init exactly once before any Allocate/Deallocate.
type SlabPool struct {
	source blockSource

	blockSize uintptr
	slotSize  uintptr

	// growMu guards firstBlock, curSlot, lastSlot and blockCnt: the only
	// blocking point in the pool, taken solely on the bump-allocation slow
	// path. Allocate's free-list fast path and Deallocate never take it.
	growMu sync.Mutex

	firstBlock uintptr // address of the most recently acquired block, 0 if none
	curSlot    uintptr // bump cursor within firstBlock
	lastSlot   uintptr // one-past-the-last-usable-slot sentinel within firstBlock

	freeList freeList

	blockCnt    atomic.Uint64
	freeSlotCnt atomic.Uint64
}

// NewSlabPool constructs a pool that will carve blockSize-aligned,
// blockSize-byte blocks from source. No backing memory is acquired until
// the first Allocate.
func NewSlabPool(blockSize uintptr, source blockSource) *SlabPool {
	return &SlabPool{
		source:    source,
		blockSize: blockSize,
	}
}

// NewDefaultSlabPool uses the package's default block size and the
// platform's native blockSource.
func NewDefaultSlabPool() *SlabPool {
	return NewSlabPool(DefaultBlockSize, osBlockSource)
}

// Init sets the pool's slot size, clamped up to pointerSize so a free slot
// always has room for the free-list link. Must be called exactly once,
// before any Allocate/Deallocate; calling it again afterward is undefined.
func (p *SlabPool) Init(slotSize uintptr) {
	if slotSize < pointerSize {
		slotSize = pointerSize
	}

	p.slotSize = slotSize
}

// Allocate returns a slotSize-byte, slotSize-aligned region, or nil if the
// pool is exhausted and the system allocator could not supply a new
// block. Contents are unspecified.
func (p *SlabPool) Allocate() unsafe.Pointer {
	if addr, ok := p.freeList.pop(); ok {
		p.freeSlotCnt.Add(1)

		return unsafe.Pointer(addr) //nolint:govet // addr came from a prior Allocate of this pool
	}

	p.growMu.Lock()
	defer p.growMu.Unlock()

	if p.firstBlock == 0 || p.curSlot >= p.lastSlot {
		if !p.growOneBlock() {
			return nil
		}
	}

	ret := p.curSlot
	p.curSlot += p.slotSize

	return unsafe.Pointer(ret) //nolint:govet // ret is within the block just grown/bumped
}

// Deallocate returns ptr to the pool's free-list. ptr must have been
// returned by this same pool's Allocate; the pool does not validate this.
// A nil ptr is a no-op.
func (p *SlabPool) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	debugCheckSlot(p, uintptr(ptr))

	p.freeList.push(uintptr(ptr))
}

// growOneBlock acquires one new block from the system allocator, retrying
// up to 10 times on transient failure, and sets up the bump cursor for it.
// Caller must hold growMu.
func (p *SlabPool) growOneBlock() bool {
	var base uintptr

	var ok bool

	for attempt := 0; attempt < 10; attempt++ {
		base, ok = p.source.acquire(p.blockSize)
		if ok {
			break
		}
	}

	if !ok {
		return false
	}

	writeLink(base, p.firstBlock)
	p.firstBlock = base

	payloadStart := base + pointerSize
	padding := (p.slotSize - payloadStart%p.slotSize) % p.slotSize

	p.curSlot = payloadStart + padding
	p.lastSlot = base + p.blockSize - p.slotSize + 1

	p.blockCnt.Add(1)

	return true
}

// Destroy releases every block this pool owns back to the system
// allocator. The pool must not be used afterward. It does not touch the
// free-list: every free-list node lives inside an owned block, so walking
// the block chain is sufficient.
func (p *SlabPool) Destroy() {
	p.growMu.Lock()
	defer p.growMu.Unlock()

	block := p.firstBlock
	for block != 0 {
		next := readLink(block)
		p.source.release(block, p.blockSize)
		block = next
	}

	p.firstBlock, p.curSlot, p.lastSlot = 0, 0, 0
}

// BlockCnt reports the number of blocks acquired over the pool's
// lifetime. Monotonically non-decreasing.
func (p *SlabPool) BlockCnt() uint64 { return p.blockCnt.Load() }

// FreeSlotCnt reports the cumulative number of successful free-list pops,
// not the number of slots currently free. This matches the lock-free
// source's counter semantics (see the package-level Open Questions note
// in the project's design ledger): it increments on Allocate's free-list
// hit, not on Deallocate's push.
func (p *SlabPool) FreeSlotCnt() uint64 { return p.freeSlotCnt.Load() }

// SlotSize returns the pool's configured slot size.
func (p *SlabPool) SlotSize() uintptr { return p.slotSize }
