package decoder

const signatureLen = 16

// Source is a read-only view over caller-owned input bytes.
type Source struct {
	data []byte
}

// NewSource wraps data without copying it.
func NewSource(data []byte) *Source {
	return &Source{data: data}
}

// Bytes returns the whole input.
func (s *Source) Bytes() []byte {
	return s.data
}

// Len returns the input size in bytes.
func (s *Source) Len() int {
	return len(s.data)
}

// Signature returns up to the first 16 bytes for format detection.
func (s *Source) Signature() []byte {
	if len(s.data) < signatureLen {
		return s.data
	}
	return s.data[:signatureLen]
}
