// Package transfer moves decoded sample buffers onto a foreign heap.
//
// A foreign caller cannot reach Go-managed memory, so every buffer it
// receives is a fresh copy on its own heap. Transfer copies the samples,
// tags them with their DataType and publishes a Descriptor. Reclaim is the
// inverse: it reads the tag first, derives the element size from it and
// frees exactly the bytes Transfer allocated.
//
//	allocs := transfer.NewAllocations(heap)
//	desc, err := transfer.Transfer(heap, img.Data, allocs)
//	if err != nil {
//	    allocs.Rollback()
//	    return err
//	}
//	allocs.Commit()
//	...
//	err = transfer.Reclaim(heap, desc)
//
// The Heap interface is generic over the pointer representation so the C
// heap (unsafe.Pointer) and wasm32 linear memory (uint32) share this code.
//
// # Rollback
//
// Allocations records every block of an in-flight result. If a later step
// fails, Rollback frees them all so nothing partial stays reachable. Commit
// hands the blocks to the foreign side once the result is published.
//
// # Accounting
//
// Tracked mirrors a heap's allocations in a ledger.Ledger so tests and
// embedders can verify that every published buffer is reclaimed once.
package transfer
