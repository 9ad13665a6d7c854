// Package tiff reads TIFF image file directories from an in-memory buffer.
//
// Only the directory structure is parsed here; interpreting tags is left to
// the raw formats built on top of it.
package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Field types
const (
	TypeByte      = 1
	TypeASCII     = 2
	TypeShort     = 3
	TypeLong      = 4
	TypeRational  = 5
	TypeSByte     = 6
	TypeUndefined = 7
	TypeSShort    = 8
	TypeSLong     = 9
	TypeSRational = 10
	TypeFloat     = 11
	TypeDouble    = 12
	TypeIFD       = 13
)

const (
	byteOrderLittleEndian = 0x4949 // "II"
	byteOrderBigEndian    = 0x4d4d // "MM"
	magic                 = 42

	headerSize = 8
	entrySize  = 12
	maxEntries = 4096
)

var (
	ErrInvalidHeader = errors.New("tiff: invalid header")
	ErrTruncated     = errors.New("tiff: truncated directory")
)

var typeSizes = [...]uint32{
	TypeByte:      1,
	TypeASCII:     1,
	TypeShort:     2,
	TypeLong:      4,
	TypeRational:  8,
	TypeSByte:     1,
	TypeUndefined: 1,
	TypeSShort:    2,
	TypeSLong:     4,
	TypeSRational: 8,
	TypeFloat:     4,
	TypeDouble:    8,
	TypeIFD:       4,
}

// TypeSize returns the size in bytes of one value of the field type, or 0
// for unknown types.
func TypeSize(typ uint16) uint32 {
	if int(typ) >= len(typeSizes) {
		return 0
	}
	return typeSizes[typ]
}

// HasSignature reports whether data starts with a TIFF header in either byte order.
func HasSignature(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return (data[0] == 'I' && data[1] == 'I' && data[2] == 42 && data[3] == 0) ||
		(data[0] == 'M' && data[1] == 'M' && data[2] == 0 && data[3] == 42)
}

// File is a parsed TIFF header with its first directory.
type File struct {
	Order binary.ByteOrder
	IFD0  *IFD
	data  []byte
}

// Parse reads the header and IFD0. The returned File references data
// without copying it.
func Parse(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, ErrInvalidHeader
	}

	var order binary.ByteOrder
	switch binary.BigEndian.Uint16(data[0:2]) {
	case byteOrderLittleEndian:
		order = binary.LittleEndian
	case byteOrderBigEndian:
		order = binary.BigEndian
	default:
		return nil, ErrInvalidHeader
	}

	if order.Uint16(data[2:4]) != magic {
		return nil, ErrInvalidHeader
	}

	f := &File{Order: order, data: data}

	ifd0, err := f.ReadIFD(order.Uint32(data[4:8]))
	if err != nil {
		return nil, fmt.Errorf("read IFD0: %w", err)
	}
	f.IFD0 = ifd0
	return f, nil
}

// ReadIFD parses the directory at offset.
func (f *File) ReadIFD(offset uint32) (*IFD, error) {
	data := f.data
	if offset < headerSize || uint64(offset)+2 > uint64(len(data)) {
		return nil, fmt.Errorf("%w: offset %d outside file of %d bytes", ErrTruncated, offset, len(data))
	}

	n := uint32(f.Order.Uint16(data[offset : offset+2]))
	if n == 0 || n > maxEntries {
		return nil, fmt.Errorf("tiff: directory at %d has %d entries", offset, n)
	}

	end := uint64(offset) + 2 + uint64(n)*entrySize + 4
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: directory at %d needs %d bytes", ErrTruncated, offset, end)
	}

	ifd := &IFD{
		Offset:  offset,
		entries: make(map[uint16]Entry, n),
		order:   f.Order,
	}

	pos := offset + 2
	for i := uint32(0); i < n; i++ {
		raw := data[pos : pos+entrySize]
		pos += entrySize

		e := Entry{
			Tag:   f.Order.Uint16(raw[0:2]),
			Type:  f.Order.Uint16(raw[2:4]),
			Count: f.Order.Uint32(raw[4:8]),
		}

		size := TypeSize(e.Type)
		if size == 0 {
			// Unknown field types are skipped per TIFF 6.0.
			continue
		}

		total := uint64(size) * uint64(e.Count)
		if total <= 4 {
			e.raw = raw[8 : 8+total]
		} else {
			valueOff := uint64(f.Order.Uint32(raw[8:12]))
			if valueOff+total > uint64(len(data)) {
				return nil, fmt.Errorf("%w: tag 0x%04x value at %d+%d", ErrTruncated, e.Tag, valueOff, total)
			}
			e.raw = data[valueOff : valueOff+total]
		}
		ifd.entries[e.Tag] = e
	}

	ifd.Next = f.Order.Uint32(data[pos : pos+4])
	return ifd, nil
}

// Entry is one directory entry with its value bytes resolved.
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	raw   []byte
}

// IFD is an image file directory.
type IFD struct {
	entries map[uint16]Entry
	order   binary.ByteOrder
	Offset  uint32
	Next    uint32
}

// Has reports whether tag is present.
func (d *IFD) Has(tag uint16) bool {
	_, ok := d.entries[tag]
	return ok
}

// Len returns the number of recognized entries.
func (d *IFD) Len() int {
	return len(d.entries)
}

// Uint returns the first value of an integer tag.
func (d *IFD) Uint(tag uint16) (uint32, bool) {
	vals, ok := d.Uints(tag)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// Uints returns all values of a BYTE, SHORT, LONG or IFD tag.
func (d *IFD) Uints(tag uint16) ([]uint32, bool) {
	e, ok := d.entries[tag]
	if !ok {
		return nil, false
	}

	out := make([]uint32, e.Count)
	switch e.Type {
	case TypeByte, TypeUndefined:
		for i := range out {
			out[i] = uint32(e.raw[i])
		}
	case TypeShort:
		for i := range out {
			out[i] = uint32(d.order.Uint16(e.raw[i*2:]))
		}
	case TypeLong, TypeIFD:
		for i := range out {
			out[i] = d.order.Uint32(e.raw[i*4:])
		}
	default:
		return nil, false
	}
	return out, true
}

// Bytes returns the raw value bytes of a BYTE or UNDEFINED tag.
func (d *IFD) Bytes(tag uint16) ([]byte, bool) {
	e, ok := d.entries[tag]
	if !ok || (e.Type != TypeByte && e.Type != TypeUndefined) {
		return nil, false
	}
	return e.raw, true
}

// ASCII returns a string tag with trailing NULs and spaces removed.
func (d *IFD) ASCII(tag uint16) (string, bool) {
	e, ok := d.entries[tag]
	if !ok || (e.Type != TypeASCII && e.Type != TypeUndefined && e.Type != TypeByte) {
		return "", false
	}
	b := e.raw
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	for len(b) > 0 && b[len(b)-1] == ' ' {
		b = b[:len(b)-1]
	}
	return string(b), true
}

// Rational returns the first unsigned rational of a RATIONAL tag.
func (d *IFD) Rational(tag uint16) (num, den uint32, ok bool) {
	e, found := d.entries[tag]
	if !found || e.Type != TypeRational || e.Count == 0 {
		return 0, 0, false
	}
	return d.order.Uint32(e.raw[0:4]), d.order.Uint32(e.raw[4:8]), true
}

// SRational returns the first signed rational of an SRATIONAL tag.
func (d *IFD) SRational(tag uint16) (num, den int32, ok bool) {
	e, found := d.entries[tag]
	if !found || e.Type != TypeSRational || e.Count == 0 {
		return 0, 0, false
	}
	return int32(d.order.Uint32(e.raw[0:4])), int32(d.order.Uint32(e.raw[4:8])), true
}

// Floats converts any numeric tag to float64 values. Rationals with a zero
// denominator become 0.
func (d *IFD) Floats(tag uint16) ([]float64, bool) {
	e, ok := d.entries[tag]
	if !ok {
		return nil, false
	}

	out := make([]float64, e.Count)
	switch e.Type {
	case TypeByte, TypeShort, TypeLong:
		vals, _ := d.Uints(tag)
		for i, v := range vals {
			out[i] = float64(v)
		}
	case TypeSShort:
		for i := range out {
			out[i] = float64(int16(d.order.Uint16(e.raw[i*2:])))
		}
	case TypeSLong:
		for i := range out {
			out[i] = float64(int32(d.order.Uint32(e.raw[i*4:])))
		}
	case TypeRational:
		for i := range out {
			n := d.order.Uint32(e.raw[i*8:])
			q := d.order.Uint32(e.raw[i*8+4:])
			if q != 0 {
				out[i] = float64(n) / float64(q)
			}
		}
	case TypeSRational:
		for i := range out {
			n := int32(d.order.Uint32(e.raw[i*8:]))
			q := int32(d.order.Uint32(e.raw[i*8+4:]))
			if q != 0 {
				out[i] = float64(n) / float64(q)
			}
		}
	case TypeFloat:
		for i := range out {
			out[i] = float64(math.Float32frombits(d.order.Uint32(e.raw[i*4:])))
		}
	case TypeDouble:
		for i := range out {
			out[i] = math.Float64frombits(d.order.Uint64(e.raw[i*8:]))
		}
	default:
		return nil, false
	}
	return out, true
}
