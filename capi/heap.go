package capi

/*
#include <stdlib.h>
*/
import "C"

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/rawbridge/errors"
	"github.com/wippyai/rawbridge/ledger"
	"github.com/wippyai/rawbridge/transfer"
)

// cHeap is the C heap. malloc's alignment covers every block we allocate.
type cHeap struct{}

func (cHeap) Alloc(size uint64, align uint32) (unsafe.Pointer, error) {
	p := C.malloc(C.size_t(size))
	if p == nil {
		return nil, errors.AllocationFailed(errors.PhaseTransfer, size, uint64(align))
	}
	return p, nil
}

func (cHeap) Free(ptr unsafe.Pointer, size uint64, align uint32) error {
	C.free(ptr)
	return nil
}

func (cHeap) Bytes(ptr unsafe.Pointer, size uint64) ([]byte, error) {
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (cHeap) Order() binary.ByteOrder {
	return binary.NativeEndian
}

var _ transfer.Heap[unsafe.Pointer] = cHeap{}

type heapSet struct {
	record  transfer.Heap[unsafe.Pointer]
	samples transfer.Heap[unsafe.Pointer]
	text    transfer.Heap[unsafe.Pointer]
}

var (
	accounting   atomic.Pointer[ledger.Ledger]
	accountingMu sync.Mutex
	plainHeaps   = heapSet{record: cHeap{}, samples: cHeap{}, text: cHeap{}}
	trackedSet   atomic.Pointer[heapSet]
)

func addr(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p))
}

func heaps() heapSet {
	if hs := trackedSet.Load(); hs != nil {
		return *hs
	}
	return plainHeaps
}

// EnableAccounting records every C allocation the library makes in a
// ledger and returns it. Calling it again returns the same ledger.
// Allocations made before accounting was enabled are not tracked.
func EnableAccounting() *ledger.Ledger {
	accountingMu.Lock()
	defer accountingMu.Unlock()

	if l := accounting.Load(); l != nil {
		return l
	}
	l := ledger.New()
	trackedSet.Store(&heapSet{
		record:  transfer.Tracked[unsafe.Pointer](cHeap{}, l, ledger.KindRecord, addr),
		samples: transfer.Tracked[unsafe.Pointer](cHeap{}, l, ledger.KindSamples, addr),
		text:    transfer.Tracked[unsafe.Pointer](cHeap{}, l, ledger.KindText, addr),
	})
	l.Subscribe(unknownFrees{})
	accounting.Store(l)
	return l
}

// unknownFrees reports frees of addresses the ledger never saw, which
// with accounting on means a double free or a foreign pointer.
type unknownFrees struct{}

func (unknownFrees) OnLedgerEvent(e ledger.Event) {
	if e.Type == ledger.EventUnknownRelease {
		Logger().Warn("free of untracked allocation", zap.Uint64("addr", e.Addr))
	}
}

// LiveAllocations reports the number of outstanding allocations, or -1
// when accounting is off.
func LiveAllocations() int {
	l := accounting.Load()
	if l == nil {
		return -1
	}
	return l.Len()
}
