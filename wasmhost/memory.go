package wasmhost

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/rawbridge"
	"github.com/wippyai/rawbridge/errors"
	"github.com/wippyai/rawbridge/transfer"
)

type guestMemory interface {
	rawbridge.Memory
	rawbridge.MemorySizer
}

// memoryWrapper adapts wazero api.Memory to rawbridge.Memory.
type memoryWrapper struct {
	mem api.Memory
}

func isValidMemory(mem api.Memory) bool {
	if mem == nil {
		return false
	}
	// Check for typed nil (interface non-nil but concrete value nil)
	return !reflect.ValueOf(mem).IsNil()
}

func wrapMemory(mem api.Memory) *memoryWrapper {
	if !isValidMemory(mem) {
		return nil
	}
	return &memoryWrapper{mem: mem}
}

func (m *memoryWrapper) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *memoryWrapper) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *memoryWrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *memoryWrapper) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *memoryWrapper) Size() uint32 {
	return m.mem.Size()
}

// reallocAllocator adapts the guest's cabi_realloc export to
// rawbridge.Allocator.
type reallocAllocator struct {
	ctx context.Context
	fn  api.Function
}

func wrapAllocator(ctx context.Context, fn api.Function) *reallocAllocator {
	if fn == nil {
		return nil
	}
	return &reallocAllocator{ctx: ctx, fn: fn}
}

// Alloc calls cabi_realloc(0, 0, align, size).
func (a *reallocAllocator) Alloc(size, align uint32) (uint32, error) {
	results, err := a.fn.Call(a.ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		return 0, fmt.Errorf("allocation failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocation returned no result")
	}
	ptr := api.DecodeU32(results[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseTransfer, uint64(size), uint64(align))
	}
	return ptr, nil
}

// Free calls cabi_realloc(ptr, size, align, 0).
func (a *reallocAllocator) Free(ptr, size, align uint32) error {
	if _, err := a.fn.Call(a.ctx, uint64(ptr), uint64(size), uint64(align), 0); err != nil {
		return fmt.Errorf("free failed: %w", err)
	}
	return nil
}

// guestHeap is guest linear memory seen as a transfer.Heap. Pointers are
// wasm32 addresses and 0 is null.
type guestHeap struct {
	mem   rawbridge.Memory
	alloc rawbridge.Allocator
}

func (g *guestHeap) Alloc(size uint64, align uint32) (uint32, error) {
	if size > math.MaxUint32 {
		return 0, errors.Overflow(errors.PhaseTransfer, nil, size, "wasm32 size")
	}
	return g.alloc.Alloc(uint32(size), align)
}

func (g *guestHeap) Free(ptr uint32, size uint64, align uint32) error {
	if size > math.MaxUint32 {
		return errors.Overflow(errors.PhaseReclaim, nil, size, "wasm32 size")
	}
	return g.alloc.Free(ptr, uint32(size), align)
}

func (g *guestHeap) Bytes(ptr uint32, size uint64) ([]byte, error) {
	if size > math.MaxUint32 {
		return nil, errors.Overflow(errors.PhaseTransfer, nil, size, "wasm32 size")
	}
	return g.mem.Read(ptr, uint32(size))
}

func (g *guestHeap) Order() binary.ByteOrder {
	return binary.LittleEndian
}

var _ transfer.Heap[uint32] = (*guestHeap)(nil)

var (
	_ guestMemory         = (*memoryWrapper)(nil)
	_ rawbridge.Allocator = (*reallocAllocator)(nil)
)
