package rawbridge

// Memory is the guest linear memory a RawImage is published into.
// Multi-byte values are little-endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer reports the current size of a Memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator is the guest's own allocator. Every block handed to a guest
// comes from it, so the guest may free results itself.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32) error
}
