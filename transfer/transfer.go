package transfer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wippyai/rawbridge/decoder"
	"github.com/wippyai/rawbridge/errors"
)

// DataType tags the element type of a transferred sample buffer.
type DataType uint32

const (
	Integer DataType = 0 // uint16 samples
	Float   DataType = 1 // float32 samples
)

// ElemSize returns the size in bytes of one element, or false for an
// unknown tag.
func (t DataType) ElemSize() (uint32, bool) {
	switch t {
	case Integer:
		return 2, true
	case Float:
		return 4, true
	default:
		return 0, false
	}
}

func (t DataType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("data_type(%d)", uint32(t))
	}
}

// TypeOf returns the tag for a sample variant.
func TypeOf(s decoder.Samples) (DataType, error) {
	switch s.(type) {
	case decoder.IntegerSamples:
		return Integer, nil
	case decoder.FloatSamples:
		return Float, nil
	default:
		return 0, errors.InvalidEnum(errors.PhaseTransfer, []string{"data"}, fmt.Sprintf("%T", s), "sample variant")
	}
}

// Heap is a foreign heap that owns transferred buffers. P is the pointer
// representation of that heap: unsafe.Pointer for the C heap, uint32 for
// wasm32 linear memory. The zero P is the null pointer.
type Heap[P comparable] interface {
	// Alloc reserves size bytes aligned to align.
	Alloc(size uint64, align uint32) (P, error)
	// Free releases a block previously returned by Alloc.
	Free(ptr P, size uint64, align uint32) error
	// Bytes returns a writable view of size bytes at ptr.
	Bytes(ptr P, size uint64) ([]byte, error)
	// Order is the byte order of the foreign side.
	Order() binary.ByteOrder
}

// Descriptor is the published handle of a transferred buffer.
// Len counts elements, not bytes.
type Descriptor[P comparable] struct {
	Ptr  P
	Len  uint64
	Type DataType
}

// Size returns the buffer size in bytes.
func (d Descriptor[P]) Size() (uint64, bool) {
	elem, ok := d.Type.ElemSize()
	if !ok {
		return 0, false
	}
	return d.Len * uint64(elem), true
}

// Transfer copies samples into a fresh buffer on h and returns its
// descriptor. The tag is fixed before allocation and Ptr/Len are only
// published once the copy is complete. A non-nil allocs must be a list
// over h; the buffer is recorded there so a later failure can roll it
// back. With a nil list a failed copy frees the buffer itself.
//
// An empty sample set transfers as a null pointer with Len 0.
func Transfer[P comparable](h Heap[P], s decoder.Samples, allocs *Allocations[P]) (Descriptor[P], error) {
	dt, err := TypeOf(s)
	if err != nil {
		return Descriptor[P]{}, err
	}
	elem, _ := dt.ElemSize()

	n := uint64(s.Len())
	if n == 0 {
		return Descriptor[P]{Type: dt}, nil
	}
	if n > math.MaxUint64/uint64(elem) {
		return Descriptor[P]{}, errors.Overflow(errors.PhaseTransfer, []string{"data"}, n, "buffer size")
	}
	size := n * uint64(elem)

	var ptr P
	if allocs != nil {
		ptr, err = allocs.Alloc(size, elem)
	} else {
		ptr, err = h.Alloc(size, elem)
	}
	if err != nil {
		return Descriptor[P]{}, err
	}

	buf, err := h.Bytes(ptr, size)
	if err != nil {
		if allocs == nil {
			_ = h.Free(ptr, size, elem)
		}
		return Descriptor[P]{}, err
	}

	order := h.Order()
	switch v := s.(type) {
	case decoder.IntegerSamples:
		for i, x := range v {
			order.PutUint16(buf[i*2:], x)
		}
	case decoder.FloatSamples:
		for i, x := range v {
			order.PutUint32(buf[i*4:], math.Float32bits(x))
		}
	}

	return Descriptor[P]{Type: dt, Ptr: ptr, Len: n}, nil
}

// Reclaim frees a buffer published by Transfer. The tag is read first and
// is the only source of the element size; an unknown tag frees nothing.
// A null Ptr is a no-op.
func Reclaim[P comparable](h Heap[P], d Descriptor[P]) error {
	size, ok := d.Size()
	if !ok {
		return errors.InvalidEnum(errors.PhaseReclaim, []string{"data_type"}, uint32(d.Type), "data type")
	}
	var null P
	if d.Ptr == null {
		return nil
	}
	elem, _ := d.Type.ElemSize()
	return h.Free(d.Ptr, size, elem)
}
