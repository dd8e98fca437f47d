//go:build windows

package slab

import (
	"golang.org/x/sys/windows"
)

// windowsBlockSource backs blocks with VirtualAlloc regions. VirtualAlloc
// only guarantees allocation-granularity alignment (64KB), so acquire
// reserves a window twice the requested size, releases it, and re-reserves
// the aligned sub-range found inside it — the same reserve/probe/commit
// dance internal/runtime/asyncio's Windows build files use around
// mswsock/TransmitFile for a handle that can't be obtained directly.
// Another thread can in principle steal the freed address between the
// probe and the re-reserve; growOneBlock already retries acquire up to 10
// times, which absorbs the rare collision.
type windowsBlockSource struct{}

var osBlockSource blockSource = windowsBlockSource{}

func (windowsBlockSource) acquire(size uintptr) (uintptr, bool) {
	probe, err := windows.VirtualAlloc(0, 2*size, windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, false
	}

	aligned := (probe + size - 1) &^ (size - 1)
	_ = windows.VirtualFree(probe, 0, windows.MEM_RELEASE)

	addr, err := windows.VirtualAlloc(aligned, size, windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil || addr != aligned {
		if addr != 0 {
			_ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		}

		return 0, false
	}

	return addr, true
}

func (windowsBlockSource) release(base, _ uintptr) {
	_ = windows.VirtualFree(base, 0, windows.MEM_RELEASE)
}
