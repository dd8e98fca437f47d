package slab

import "unsafe"

// NewElement allocates a slot sized for T from router and returns it as a
// *T, zero-valued. It is the Go analogue of the original source's
// HashBucket::NewElement<T> template, minus placement-new: Go has no
// constructor to run, so the caller gets a zeroed T{} the same way any
// fresh *T from new(T) would be, rather than uninitialized slab storage.
func NewElement[T any](router *SizeRouter) *T {
	size := unsafe.Sizeof(*new(T))

	ptr := router.Allocate(size)
	if ptr == nil {
		return nil
	}

	elem := (*T)(ptr)
	*elem = *new(T)

	return elem
}

// DeleteElement returns p's storage to router. It is the counterpart to
// NewElement; since Go has no destructors there is nothing to run before
// the Deallocate call, unlike the original's DeleteElement<T> which called
// ptr->~T() first.
func DeleteElement[T any](router *SizeRouter, p *T) {
	if p == nil {
		return
	}

	router.Deallocate(unsafe.Pointer(p), unsafe.Sizeof(*p))
}
