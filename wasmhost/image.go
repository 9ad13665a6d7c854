package wasmhost

import (
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/rawbridge/boundary"
	"github.com/wippyai/rawbridge/decoder"
	"github.com/wippyai/rawbridge/errors"
	"github.com/wippyai/rawbridge/layout"
	"github.com/wippyai/rawbridge/transfer"
)

// GuestImage is a RawImage read back from guest memory.
type GuestImage struct {
	Data   transfer.Descriptor[uint32]
	Record boundary.Record
}

// Layout returns the wasm32 layout of RawImage.
func Layout() layout.Image {
	l, err := layout.Wasm32()
	if err != nil {
		panic(err)
	}
	return l
}

var le = binary.LittleEndian

func putFloats(b []byte, off uint32, vals []float32) {
	for i, v := range vals {
		le.PutUint32(b[off+uint32(i)*4:], math.Float32bits(v))
	}
}

func floats(b []byte, off uint32, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(le.Uint32(b[off+uint32(i)*4:]))
	}
}

// encodeImage serializes r and d into b, which must be l.Size bytes.
func encodeImage(b []byte, l layout.Image, r *boundary.Record, d transfer.Descriptor[uint32]) {
	clear(b)
	le.PutUint32(b[l.Width:], r.Width)
	le.PutUint32(b[l.Height:], r.Height)
	le.PutUint32(b[l.CPP:], r.CPP)
	le.PutUint32(b[l.BPS:], r.BPS)
	copy(b[l.CFA:], r.CFA[:])
	putFloats(b, l.BlackLevels, r.BlackLevels[:])
	putFloats(b, l.WhiteLevels, r.WhiteLevels[:])
	putFloats(b, l.WBCoeffs, r.WBCoeffs[:])
	putFloats(b, l.ColorMatrix, r.ColorMatrix[:])

	m, md := l.Metadata, &r.Metadata
	copy(b[m.Make:], md.Make[:])
	copy(b[m.Model:], md.Model[:])
	copy(b[m.CleanMake:], md.CleanMake[:])
	copy(b[m.CleanModel:], md.CleanModel[:])

	x, ex := m.Exif, &md.Exif
	le.PutUint16(b[x.Orientation:], ex.Orientation)
	le.PutUint32(b[x.ExposureTime:], ex.ExposureTime[0])
	le.PutUint32(b[x.ExposureTime+4:], ex.ExposureTime[1])
	le.PutUint32(b[x.FNumber:], ex.FNumber[0])
	le.PutUint32(b[x.FNumber+4:], ex.FNumber[1])
	le.PutUint16(b[x.ISOSpeedRatings:], ex.ISOSpeedRatings)
	copy(b[x.DateTimeOriginal:], ex.DateTimeOriginal[:])
	le.PutUint32(b[x.BrightnessValue:], uint32(ex.BrightnessValue[0]))
	le.PutUint32(b[x.BrightnessValue+4:], uint32(ex.BrightnessValue[1]))
	le.PutUint32(b[x.ExposureBias:], uint32(ex.ExposureBias[0]))
	le.PutUint32(b[x.ExposureBias+4:], uint32(ex.ExposureBias[1]))
	le.PutUint32(b[x.FocalLength:], ex.FocalLength[0])
	le.PutUint32(b[x.FocalLength+4:], ex.FocalLength[1])
	copy(b[x.LensMake:], ex.LensMake[:])
	copy(b[x.LensModel:], ex.LensModel[:])

	le.PutUint32(b[l.DataType:], uint32(d.Type))
	le.PutUint32(b[l.DataPtr:], d.Ptr)
	le.PutUint32(b[l.DataLen:], uint32(d.Len))
}

func decodeImage(b []byte, l layout.Image) *GuestImage {
	g := &GuestImage{}
	r := &g.Record
	r.Width = le.Uint32(b[l.Width:])
	r.Height = le.Uint32(b[l.Height:])
	r.CPP = le.Uint32(b[l.CPP:])
	r.BPS = le.Uint32(b[l.BPS:])
	copy(r.CFA[:], b[l.CFA:])
	floats(b, l.BlackLevels, r.BlackLevels[:])
	floats(b, l.WhiteLevels, r.WhiteLevels[:])
	floats(b, l.WBCoeffs, r.WBCoeffs[:])
	floats(b, l.ColorMatrix, r.ColorMatrix[:])

	m, md := l.Metadata, &r.Metadata
	copy(md.Make[:], b[m.Make:])
	copy(md.Model[:], b[m.Model:])
	copy(md.CleanMake[:], b[m.CleanMake:])
	copy(md.CleanModel[:], b[m.CleanModel:])

	x, ex := m.Exif, &md.Exif
	ex.Orientation = le.Uint16(b[x.Orientation:])
	ex.ExposureTime = [2]uint32{le.Uint32(b[x.ExposureTime:]), le.Uint32(b[x.ExposureTime+4:])}
	ex.FNumber = [2]uint32{le.Uint32(b[x.FNumber:]), le.Uint32(b[x.FNumber+4:])}
	ex.ISOSpeedRatings = le.Uint16(b[x.ISOSpeedRatings:])
	copy(ex.DateTimeOriginal[:], b[x.DateTimeOriginal:])
	ex.BrightnessValue = [2]int32{int32(le.Uint32(b[x.BrightnessValue:])), int32(le.Uint32(b[x.BrightnessValue+4:]))}
	ex.ExposureBias = [2]int32{int32(le.Uint32(b[x.ExposureBias:])), int32(le.Uint32(b[x.ExposureBias+4:]))}
	ex.FocalLength = [2]uint32{le.Uint32(b[x.FocalLength:]), le.Uint32(b[x.FocalLength+4:])}
	copy(ex.LensMake[:], b[x.LensMake:])
	copy(ex.LensModel[:], b[x.LensModel:])

	g.Data = transfer.Descriptor[uint32]{
		Type: transfer.DataType(le.Uint32(b[l.DataType:])),
		Ptr:  le.Uint32(b[l.DataPtr:]),
		Len:  uint64(le.Uint32(b[l.DataLen:])),
	}
	return g
}

// ReadImage reads the RawImage at ptr from guest memory.
func ReadImage(mem api.Memory, ptr uint32) (*GuestImage, error) {
	l := Layout()
	b, ok := mem.Read(ptr, l.Size)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseHost, []string{"image"}, int(ptr), int(mem.Size()))
	}
	return decodeImage(b, l), nil
}

// Samples copies the sample buffer of g out of guest memory.
func (g *GuestImage) Samples(mem api.Memory) (decoder.Samples, error) {
	size, ok := g.Data.Size()
	if !ok {
		return nil, errors.InvalidEnum(errors.PhaseHost, []string{"data_type"}, uint32(g.Data.Type), "data type")
	}
	if size > math.MaxUint32 {
		return nil, errors.Overflow(errors.PhaseHost, []string{"data"}, size, "wasm32 size")
	}
	b, ok := mem.Read(g.Data.Ptr, uint32(size))
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseHost, []string{"data"}, int(g.Data.Ptr), int(mem.Size()))
	}
	switch g.Data.Type {
	case transfer.Float:
		out := make(decoder.FloatSamples, g.Data.Len)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(b[i*4:]))
		}
		return out, nil
	default:
		out := make(decoder.IntegerSamples, g.Data.Len)
		for i := range out {
			out[i] = le.Uint16(b[i*2:])
		}
		return out, nil
	}
}
