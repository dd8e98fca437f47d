//go:build !slabdebug

package slab

// debugCheckSlot is a no-op in release builds; see debug_on.go for the
// slabdebug-tagged assertion.
func debugCheckSlot(p *SlabPool, ptr uintptr) {}
