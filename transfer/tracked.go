package transfer

import (
	"encoding/binary"

	"github.com/wippyai/rawbridge/ledger"
)

// Tracked wraps a heap so every Alloc and Free is mirrored in a ledger.
// addr maps a heap pointer to its ledger key.
func Tracked[P comparable](h Heap[P], l *ledger.Ledger, kind ledger.Kind, addr func(P) uint64) Heap[P] {
	if l == nil {
		return h
	}
	return &trackedHeap[P]{heap: h, ledger: l, kind: kind, addr: addr}
}

type trackedHeap[P comparable] struct {
	heap   Heap[P]
	ledger *ledger.Ledger
	addr   func(P) uint64
	kind   ledger.Kind
}

func (t *trackedHeap[P]) Alloc(size uint64, align uint32) (P, error) {
	ptr, err := t.heap.Alloc(size, align)
	if err != nil {
		return ptr, err
	}
	_ = t.ledger.Record(t.addr(ptr), size, t.kind)
	return ptr, nil
}

func (t *trackedHeap[P]) Free(ptr P, size uint64, align uint32) error {
	_, _ = t.ledger.Release(t.addr(ptr))
	return t.heap.Free(ptr, size, align)
}

func (t *trackedHeap[P]) Bytes(ptr P, size uint64) ([]byte, error) {
	return t.heap.Bytes(ptr, size)
}

func (t *trackedHeap[P]) Order() binary.ByteOrder {
	return t.heap.Order()
}
