package capi

/*
#cgo CFLAGS: -I${SRCDIR}/include
#define RAWBRIDGE_NO_PROTOTYPES
#include "rawbridge.h"
#include <string.h>
*/
import "C"

import (
	"math"
	"strings"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/rawbridge/boundary"
	"github.com/wippyai/rawbridge/decoder"
	"github.com/wippyai/rawbridge/errors"
	"github.com/wippyai/rawbridge/transfer"
)

const imageAlign = 8

// Image is a RawImage on the C heap, as handed to C callers.
type Image struct {
	ptr *C.RawImage
}

// Decode decodes data into a RawImage on the C heap. The image must be
// released with Free.
func Decode(data []byte) (*Image, error) {
	var ptr unsafe.Pointer
	err := boundary.Guard(func() error {
		var err error
		ptr, err = decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Image{ptr: (*C.RawImage)(ptr)}, nil
}

func decode(data []byte) (unsafe.Pointer, error) {
	img, err := boundary.Decode(data)
	if err != nil {
		return nil, err
	}

	hs := heaps()
	return boundary.Publish[unsafe.Pointer](img, hs.samples, func(allocs *transfer.Allocations[unsafe.Pointer], d transfer.Descriptor[unsafe.Pointer]) (unsafe.Pointer, error) {
		if uint64(C.size_t(d.Len)) != d.Len {
			return nil, errors.Overflow(errors.PhaseTransfer, []string{"data_len"}, d.Len, "size_t")
		}
		p, err := allocs.AllocOn(hs.record, uint64(C.sizeof_RawImage), imageAlign)
		if err != nil {
			return nil, err
		}
		writeImage((*C.RawImage)(p), &img.Record, d)
		return p, nil
	})
}

func writeImage(dst *C.RawImage, r *boundary.Record, d transfer.Descriptor[unsafe.Pointer]) {
	C.memset(unsafe.Pointer(dst), 0, C.size_t(C.sizeof_RawImage))

	dst.width = C.uint32_t(r.Width)
	dst.height = C.uint32_t(r.Height)
	dst.cpp = C.uint32_t(r.CPP)
	dst.bps = C.uint32_t(r.BPS)
	*text(&dst.cfa) = r.CFA
	*(*[4]float32)(unsafe.Pointer(&dst.black_levels)) = r.BlackLevels
	*(*[4]float32)(unsafe.Pointer(&dst.white_levels)) = r.WhiteLevels
	*(*[4]float32)(unsafe.Pointer(&dst.wb_coeffs)) = r.WBCoeffs
	*(*[9]float32)(unsafe.Pointer(&dst.color_matrix)) = r.ColorMatrix

	md := &dst.metadata
	*text(&md.make) = r.Metadata.Make
	*text(&md.model) = r.Metadata.Model
	*text(&md.clean_make) = r.Metadata.CleanMake
	*text(&md.clean_model) = r.Metadata.CleanModel

	ex, e := &md.exif, &r.Metadata.Exif
	ex.orientation = C.uint16_t(e.Orientation)
	*(*[2]uint32)(unsafe.Pointer(&ex.exposure_time)) = e.ExposureTime
	*(*[2]uint32)(unsafe.Pointer(&ex.fnumber)) = e.FNumber
	ex.iso_speed_ratings = C.uint16_t(e.ISOSpeedRatings)
	*text(&ex.date_time_original) = e.DateTimeOriginal
	*(*[2]int32)(unsafe.Pointer(&ex.brightness_value)) = e.BrightnessValue
	*(*[2]int32)(unsafe.Pointer(&ex.exposure_bias)) = e.ExposureBias
	*(*[2]uint32)(unsafe.Pointer(&ex.focal_length)) = e.FocalLength
	*text(&ex.lens_make) = e.LensMake
	*text(&ex.lens_model) = e.LensModel

	dst.data_type = C.RawDataType(d.Type)
	dst.data_ptr = d.Ptr
	dst.data_len = C.size_t(d.Len)
}

func text(p *[boundary.TextLen]C.char) *[boundary.TextLen]byte {
	return (*[boundary.TextLen]byte)(unsafe.Pointer(p))
}

func readRecord(src *C.RawImage) boundary.Record {
	var r boundary.Record
	r.Width = uint32(src.width)
	r.Height = uint32(src.height)
	r.CPP = uint32(src.cpp)
	r.BPS = uint32(src.bps)
	r.CFA = *text(&src.cfa)
	r.BlackLevels = *(*[4]float32)(unsafe.Pointer(&src.black_levels))
	r.WhiteLevels = *(*[4]float32)(unsafe.Pointer(&src.white_levels))
	r.WBCoeffs = *(*[4]float32)(unsafe.Pointer(&src.wb_coeffs))
	r.ColorMatrix = *(*[9]float32)(unsafe.Pointer(&src.color_matrix))

	md := &src.metadata
	r.Metadata.Make = *text(&md.make)
	r.Metadata.Model = *text(&md.model)
	r.Metadata.CleanMake = *text(&md.clean_make)
	r.Metadata.CleanModel = *text(&md.clean_model)

	ex, e := &md.exif, &r.Metadata.Exif
	e.Orientation = uint16(ex.orientation)
	e.ExposureTime = *(*[2]uint32)(unsafe.Pointer(&ex.exposure_time))
	e.FNumber = *(*[2]uint32)(unsafe.Pointer(&ex.fnumber))
	e.ISOSpeedRatings = uint16(ex.iso_speed_ratings)
	e.DateTimeOriginal = *text(&ex.date_time_original)
	e.BrightnessValue = *(*[2]int32)(unsafe.Pointer(&ex.brightness_value))
	e.ExposureBias = *(*[2]int32)(unsafe.Pointer(&ex.exposure_bias))
	e.FocalLength = *(*[2]uint32)(unsafe.Pointer(&ex.focal_length))
	e.LensMake = *text(&ex.lens_make)
	e.LensModel = *text(&ex.lens_model)
	return r
}

func descriptor(src *C.RawImage) transfer.Descriptor[unsafe.Pointer] {
	return transfer.Descriptor[unsafe.Pointer]{
		Type: transfer.DataType(src.data_type),
		Ptr:  src.data_ptr,
		Len:  uint64(src.data_len),
	}
}

// freeImage releases an image published by decode. The data_type tag is
// read first and decides the sample buffer size; with an unknown tag the
// samples leak and only the struct is freed.
func freeImage(p unsafe.Pointer) {
	if p == nil {
		return
	}
	err := boundary.Guard(func() error {
		hs := heaps()
		img := (*C.RawImage)(p)
		if err := transfer.Reclaim(hs.samples, descriptor(img)); err != nil {
			Logger().Warn("sample buffer not reclaimed", zap.Uintptr("image", uintptr(p)), zap.Error(err))
		}
		return hs.record.Free(p, uint64(C.sizeof_RawImage), imageAlign)
	})
	if err != nil {
		Logger().Warn("free_image failed", zap.Error(err))
	}
}

// newError copies the diagnostic of err to a NUL-terminated C string.
// It returns nil if the string cannot be allocated.
func newError(err error) unsafe.Pointer {
	msg := err.Error()
	if i := strings.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}
	size := uint64(len(msg) + 1)

	p, aerr := heaps().text.Alloc(size, 1)
	if aerr != nil {
		Logger().Warn("diagnostic not delivered", zap.NamedError("cause", err), zap.Error(aerr))
		return nil
	}
	b := unsafe.Slice((*byte)(p), size)
	copy(b, msg)
	b[len(msg)] = 0
	return p
}

func freeError(p unsafe.Pointer) {
	if p == nil {
		return
	}
	n := uint64(C.strlen((*C.char)(p)))
	if err := heaps().text.Free(p, n+1, 1); err != nil {
		Logger().Warn("free_error failed", zap.Error(err))
	}
}

// errorString reads a diagnostic returned through error_out.
func errorString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	return C.GoString((*C.char)(p))
}

// Ptr returns the C pointer, suitable for passing to C code.
func (img *Image) Ptr() unsafe.Pointer {
	return unsafe.Pointer(img.ptr)
}

// Record reads the struct back into its Go mirror.
func (img *Image) Record() boundary.Record {
	return readRecord(img.ptr)
}

// DataType returns the sample element type.
func (img *Image) DataType() transfer.DataType {
	return transfer.DataType(img.ptr.data_type)
}

// Len returns the number of samples.
func (img *Image) Len() int {
	return int(img.ptr.data_len)
}

// Samples copies the sample buffer into Go memory.
func (img *Image) Samples() (decoder.Samples, error) {
	d := descriptor(img.ptr)
	switch d.Type {
	case transfer.Integer:
		if d.Ptr == nil {
			return decoder.IntegerSamples{}, nil
		}
		return append(decoder.IntegerSamples(nil), unsafe.Slice((*uint16)(d.Ptr), d.Len)...), nil
	case transfer.Float:
		if d.Ptr == nil {
			return decoder.FloatSamples{}, nil
		}
		src := unsafe.Slice((*uint32)(d.Ptr), d.Len)
		out := make(decoder.FloatSamples, len(src))
		for i, v := range src {
			out[i] = math.Float32frombits(v)
		}
		return out, nil
	default:
		return nil, errors.InvalidEnum(errors.PhaseReclaim, []string{"data_type"}, uint32(d.Type), "data type")
	}
}

// Free releases the image and its samples. The Image must not be used
// afterwards.
func (img *Image) Free() {
	if img == nil || img.ptr == nil {
		return
	}
	freeImage(unsafe.Pointer(img.ptr))
	img.ptr = nil
}
