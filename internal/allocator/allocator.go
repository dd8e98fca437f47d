// Package allocator provides memory allocation services for the slabpool
// runtime: a thin, pluggable facade (system / slab) in front of the
// concrete allocation strategies implemented in internal/slab and this
// package's own system allocator.
package allocator

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/orizon-lang/slabpool/internal/slab"
)

// AllocatorKind defines the type of allocator.
type AllocatorKind int

const (
	SystemAllocatorKind AllocatorKind = iota
	SlabAllocatorKind
)

// Allocator defines the interface for memory allocators.
type Allocator interface {
	Alloc(size uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer)
	Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer
	TotalAllocated() uintptr
	TotalFreed() uintptr
	ActiveAllocations() int
	Stats() AllocatorStats
	Reset() // A no-op for both allocator kinds in this package
}

// AllocatorStats provides allocation statistics.
type AllocatorStats struct {
	TotalAllocated    uintptr
	TotalFreed        uintptr
	ActiveAllocations int
	PeakAllocations   int
	AllocationCount   uint64
	FreeCount         uint64
	BytesInUse        uintptr
	SystemMemory      uintptr
}

// GlobalAllocator provides the process-wide default allocator.
var GlobalAllocator Allocator

// Initialize sets up the global allocator.
func Initialize(kind AllocatorKind, options ...Option) error {
	config := defaultConfig()
	for _, opt := range options {
		opt(config)
	}

	switch kind {
	case SystemAllocatorKind:
		GlobalAllocator = NewSystemAllocator(config)
	case SlabAllocatorKind:
		GlobalAllocator = NewSlabAllocator(config)
	default:
		return fmt.Errorf("unknown allocator kind: %v", kind)
	}

	return nil
}

// Configuration for allocators.
type Config struct {
	MaxAllocations  int
	MemoryLimit     uintptr
	AlignmentSize   uintptr
	EnableTracking  bool
	EnableDebug     bool
	EnableLeakCheck bool

	// SlotBaseSize, SizeClassCount and BlockSize configure SlabAllocatorKind:
	// SizeClassCount pools with slot sizes SlotBaseSize, 2*SlotBaseSize, ...,
	// each backed by BlockSize blocks. See internal/slab for the router and
	// pool this drives.
	SlotBaseSize   uintptr
	SizeClassCount int
	BlockSize      uintptr
}

type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		EnableTracking:  true,
		EnableDebug:     false,
		MaxAllocations:  1000000,
		MemoryLimit:     1024 * 1024 * 1024, // 1GB limit
		EnableLeakCheck: true,
		AlignmentSize:   8, // 8-byte alignment
		SlotBaseSize:    slab.DefaultSlotBaseSize,
		SizeClassCount:  slab.DefaultSizeClassCount,
		BlockSize:       slab.DefaultBlockSize,
	}
}

// Option functions.
func WithTracking(enabled bool) Option {
	return func(c *Config) { c.EnableTracking = enabled }
}

func WithDebug(enabled bool) Option {
	return func(c *Config) { c.EnableDebug = enabled }
}

func WithMemoryLimit(limit uintptr) Option {
	return func(c *Config) { c.MemoryLimit = limit }
}

func WithLeakCheck(enabled bool) Option {
	return func(c *Config) { c.EnableLeakCheck = enabled }
}

func WithAlignment(alignment uintptr) Option {
	return func(c *Config) { c.AlignmentSize = alignment }
}

func WithSlotBaseSize(size uintptr) Option {
	return func(c *Config) { c.SlotBaseSize = size }
}

func WithSizeClassCount(count int) Option {
	return func(c *Config) { c.SizeClassCount = count }
}

func WithBlockSize(size uintptr) Option {
	return func(c *Config) { c.BlockSize = size }
}

// Allocation metadata for tracking.
type AllocationInfo struct {
	StackTrace []uintptr
	Size       uintptr
	Timestamp  int64
}

// SystemAllocatorImpl implements a simple wrapper around Go's memory allocator.
type SystemAllocatorImpl struct {
	config            *Config
	activeAllocations map[unsafe.Pointer]*AllocationInfo
	allocatedSlices   map[unsafe.Pointer][]byte
	totalAllocated    uintptr
	totalFreed        uintptr
	allocationCount   uint64
	freeCount         uint64
	peakAllocations   int
	mu                sync.RWMutex
}

// NewSystemAllocator creates a new system allocator.
func NewSystemAllocator(config *Config) *SystemAllocatorImpl {
	return &SystemAllocatorImpl{
		config:            config,
		activeAllocations: make(map[unsafe.Pointer]*AllocationInfo),
		allocatedSlices:   make(map[unsafe.Pointer][]byte),
	}
}

// shouldCheckMemoryLimit returns true if memory limit checking is enabled
func (sa *SystemAllocatorImpl) shouldCheckMemoryLimit() bool {
	return sa.config.MemoryLimit > 0 && sa.config.EnableTracking
}

// shouldTrackAllocation returns true if allocation tracking is enabled
func (sa *SystemAllocatorImpl) shouldTrackAllocation() bool {
	return sa.config.EnableTracking
}

// Alloc allocates memory using the system allocator with optimized performance.
func (sa *SystemAllocatorImpl) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	// Optimized size alignment with bit operations
	alignedSize := alignUp(size, sa.config.AlignmentSize)
	if alignedSize == 0 {
		return nil // Overflow or invalid size
	}

	// Optimized memory limit check - only if tracking is enabled
	if sa.shouldCheckMemoryLimit() {
		current := atomic.LoadUintptr(&sa.totalAllocated) - atomic.LoadUintptr(&sa.totalFreed)
		if current+alignedSize > sa.config.MemoryLimit {
			return nil // Out of memory
		}
	}

	// Allocate memory using Go slice with reduced overhead
	slice := make([]byte, alignedSize)
	if len(slice) != int(alignedSize) || len(slice) == 0 {
		return nil
	}

	ptr := unsafe.Pointer(&slice[0])

	// The slice is always stored so the GC keeps it alive; allocation info
	// is recorded only if tracking is enabled.
	if sa.shouldTrackAllocation() {
		sa.mu.Lock()
		sa.allocatedSlices[ptr] = slice
		sa.activeAllocations[ptr] = &AllocationInfo{
			Size:      alignedSize,
			Timestamp: getTimestamp(),
		}
		sa.mu.Unlock()
	} else {
		// Fast path: just store slice without allocation info
		sa.mu.Lock()
		sa.allocatedSlices[ptr] = slice
		sa.mu.Unlock()
	}

	// Update statistics atomically for performance
	atomic.AddUintptr(&sa.totalAllocated, alignedSize)
	atomic.AddUint64(&sa.allocationCount, 1)

	return ptr
}

// Free frees memory allocated by the system allocator.
func (sa *SystemAllocatorImpl) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	var size uintptr

	// Get size from tracking if enabled.
	if sa.shouldTrackAllocation() {
		size = sa.untrackAllocation(ptr)
	}

	// Remove slice reference to allow GC.
	sa.mu.Lock()
	if slice, exists := sa.allocatedSlices[ptr]; exists {
		size = uintptr(len(slice)) // Get actual size

		delete(sa.allocatedSlices, ptr)
	}
	sa.mu.Unlock()

	// Update statistics.
	atomic.AddUintptr(&sa.totalFreed, size)
	atomic.AddUint64(&sa.freeCount, 1)
}

// Realloc reallocates memory.
func (sa *SystemAllocatorImpl) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return sa.Alloc(newSize)
	}

	if newSize == 0 {
		sa.Free(ptr)

		return nil
	}

	// Get old size from tracking.
	var oldSize uintptr

	if sa.config.EnableTracking {
		sa.mu.RLock()
		if info, exists := sa.activeAllocations[ptr]; exists {
			oldSize = info.Size
		}
		sa.mu.RUnlock()
	}

	// Allocate new memory.
	newPtr := sa.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	// Copy old data.
	if oldSize > 0 {
		copySize := oldSize
		if newSize < oldSize {
			copySize = newSize
		}

		copyMemory(newPtr, ptr, copySize)
	}

	// Free old memory.
	sa.Free(ptr)

	return newPtr
}

// TotalAllocated returns total allocated bytes.
func (sa *SystemAllocatorImpl) TotalAllocated() uintptr {
	return atomic.LoadUintptr(&sa.totalAllocated)
}

// TotalFreed returns total freed bytes.
func (sa *SystemAllocatorImpl) TotalFreed() uintptr {
	return atomic.LoadUintptr(&sa.totalFreed)
}

// ActiveAllocations returns the number of active allocations.
func (sa *SystemAllocatorImpl) ActiveAllocations() int {
	if !sa.config.EnableTracking {
		return 0
	}

	sa.mu.RLock()
	defer sa.mu.RUnlock()

	return len(sa.activeAllocations)
}

// Stats returns allocation statistics.
func (sa *SystemAllocatorImpl) Stats() AllocatorStats {
	sa.mu.RLock()
	defer sa.mu.RUnlock()

	return AllocatorStats{
		TotalAllocated:    atomic.LoadUintptr(&sa.totalAllocated),
		TotalFreed:        atomic.LoadUintptr(&sa.totalFreed),
		ActiveAllocations: len(sa.activeAllocations),
		PeakAllocations:   sa.peakAllocations,
		AllocationCount:   atomic.LoadUint64(&sa.allocationCount),
		FreeCount:         atomic.LoadUint64(&sa.freeCount),
		BytesInUse:        atomic.LoadUintptr(&sa.totalAllocated) - atomic.LoadUintptr(&sa.totalFreed),
		SystemMemory:      getSystemMemory(),
	}
}

// Reset is a no-op for system allocator.
func (sa *SystemAllocatorImpl) Reset() {
	// System allocator doesn't support reset.
}

// Helper methods.

func (sa *SystemAllocatorImpl) trackAllocation(ptr unsafe.Pointer, size uintptr) {
	info := &AllocationInfo{
		Size:      size,
		Timestamp: getTimestamp(),
	}

	if sa.config.EnableDebug {
		info.StackTrace = captureStackTrace()
	}

	sa.mu.Lock()

	sa.activeAllocations[ptr] = info
	if len(sa.activeAllocations) > sa.peakAllocations {
		sa.peakAllocations = len(sa.activeAllocations)
	}
	sa.mu.Unlock()
}

func (sa *SystemAllocatorImpl) untrackAllocation(ptr unsafe.Pointer) uintptr {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if info, exists := sa.activeAllocations[ptr]; exists {
		delete(sa.activeAllocations, ptr)

		return info.Size
	}

	return 0
}

// Utility functions.

// alignUp aligns a size up to the nearest multiple of alignment.
func alignUp(size, alignment uintptr) uintptr {
	return (size + alignment - 1) &^ (alignment - 1)
}

// copyMemory copies memory from src to dst.
func copyMemory(dst, src unsafe.Pointer, size uintptr) {
	// Use Go's copy function.
	dstSlice := (*[1 << 30]byte)(dst)[:size:size]
	srcSlice := (*[1 << 30]byte)(src)[:size:size]
	copy(dstSlice, srcSlice)
}

// getTimestamp returns current timestamp (simplified).
func getTimestamp() int64 {
	return 0 // Simplified for bootstrap
}

// captureStackTrace captures the current stack trace.
func captureStackTrace() []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])

	return pcs[:n]
}

// getSystemMemory returns system memory usage.
func getSystemMemory() uintptr {
	var m runtime.MemStats

	runtime.ReadMemStats(&m)

	return uintptr(m.Sys)
}

// Memory leak detection.

// CheckLeaks checks for memory leaks.
func (sa *SystemAllocatorImpl) CheckLeaks() []LeakInfo {
	if !sa.config.EnableLeakCheck || !sa.config.EnableTracking {
		return nil
	}

	sa.mu.RLock()
	defer sa.mu.RUnlock()

	var leaks []LeakInfo
	for ptr, info := range sa.activeAllocations {
		leaks = append(leaks, LeakInfo{
			Pointer:    ptr,
			Size:       info.Size,
			Timestamp:  info.Timestamp,
			StackTrace: info.StackTrace,
		})
	}

	return leaks
}

// LeakInfo represents information about a memory leak.
type LeakInfo struct {
	Pointer    unsafe.Pointer
	StackTrace []uintptr
	Size       uintptr
	Timestamp  int64
}

// FormatLeaks formats leak information for display.
func FormatLeaks(leaks []LeakInfo) string {
	if len(leaks) == 0 {
		return "No memory leaks detected"
	}

	result := fmt.Sprintf("Detected %d memory leaks:\n", len(leaks))
	for i, leak := range leaks {
		result += fmt.Sprintf("  Leak %d: %d bytes at %p\n", i+1, leak.Size, leak.Pointer)
		if len(leak.StackTrace) > 0 {
			result += "    Stack trace:\n"
			frames := runtime.CallersFrames(leak.StackTrace)

			for {
				frame, more := frames.Next()
				result += fmt.Sprintf("      %s:%d %s\n", frame.File, frame.Line, frame.Function)

				if !more {
					break
				}
			}
		}
	}

	return result
}

// Global allocation functions for convenience.

// Alloc allocates memory using the global allocator.
func Alloc(size uintptr) unsafe.Pointer {
	if GlobalAllocator == nil {
		// There is no fallback: calling this before Initialize panics.
		panic("Global allocator not initialized")
	}

	return GlobalAllocator.Alloc(size)
}

// Free frees memory using the global allocator.
func Free(ptr unsafe.Pointer) {
	if GlobalAllocator == nil {
		panic("Global allocator not initialized")
	}

	GlobalAllocator.Free(ptr)
}

// Realloc reallocates memory using the global allocator.
func Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if GlobalAllocator == nil {
		panic("Global allocator not initialized")
	}

	return GlobalAllocator.Realloc(ptr, newSize)
}

// GetStats returns global allocator statistics.
func GetStats() AllocatorStats {
	if GlobalAllocator == nil {
		return AllocatorStats{}
	}

	return GlobalAllocator.Stats()
}
