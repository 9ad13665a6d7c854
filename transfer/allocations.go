package transfer

import (
	"go.uber.org/multierr"
)

// Allocation is one block recorded for rollback.
type Allocation[P comparable] struct {
	heap  Heap[P]
	Ptr   P
	Size  uint64
	Align uint32
}

// Allocations records every block an in-flight result owns. If any later
// step fails the list is rolled back; once the result is published the
// list is committed and forgets the blocks.
type Allocations[P comparable] struct {
	heap        Heap[P]
	allocations []Allocation[P]
}

// NewAllocations creates an empty list over h.
func NewAllocations[P comparable](h Heap[P]) *Allocations[P] {
	return &Allocations[P]{
		heap:        h,
		allocations: make([]Allocation[P], 0, 4),
	}
}

// Alloc allocates on the list's heap and records the block.
func (al *Allocations[P]) Alloc(size uint64, align uint32) (P, error) {
	return al.AllocOn(al.heap, size, align)
}

// AllocOn allocates on h and records the block; Rollback frees it on h.
// h must share the address space of the list's heap, e.g. a differently
// tracked view of it.
func (al *Allocations[P]) AllocOn(h Heap[P], size uint64, align uint32) (P, error) {
	ptr, err := h.Alloc(size, align)
	if err != nil {
		return ptr, err
	}
	al.allocations = append(al.allocations, Allocation[P]{
		heap:  h,
		Ptr:   ptr,
		Size:  size,
		Align: align,
	})
	return ptr, nil
}

// Rollback frees every recorded block in reverse order and empties the
// list. Free errors are combined; every block is attempted.
func (al *Allocations[P]) Rollback() error {
	var null P
	var err error
	for i := len(al.allocations) - 1; i >= 0; i-- {
		a := al.allocations[i]
		if a.Ptr == null {
			continue
		}
		err = multierr.Append(err, a.heap.Free(a.Ptr, a.Size, a.Align))
	}
	al.Reset()
	return err
}

// Commit hands ownership of the recorded blocks to the foreign side.
func (al *Allocations[P]) Commit() {
	al.Reset()
}

func (al *Allocations[P]) Reset() {
	al.allocations = al.allocations[:0]
}

func (al *Allocations[P]) Count() int {
	return len(al.allocations)
}
