//go:build slabdebug

package slab

import "github.com/orizon-lang/slabpool/internal/errors"

// debugCheckSlot asserts ptr falls inside a block this pool owns and is
// aligned to the pool's slot size, panicking with a SizeClassMismatch
// otherwise. Only compiled in with the slabdebug build tag; never runs in
// a default build and never changes release-path behavior.
func debugCheckSlot(p *SlabPool, ptr uintptr) {
	p.growMu.Lock()
	defer p.growMu.Unlock()

	block := p.firstBlock
	for block != 0 {
		blockEnd := block + p.blockSize
		if ptr >= block && ptr < blockEnd {
			if ptr%p.slotSize != 0 {
				panic(errors.SizeClassMismatch(ptr, p.slotSize, ptr%p.slotSize))
			}

			return
		}

		block = readLink(block)
	}

	panic(errors.SizeClassMismatch(ptr, p.slotSize, 0))
}
