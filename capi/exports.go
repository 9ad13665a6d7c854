package capi

/*
#cgo CFLAGS: -I${SRCDIR}/include
#define RAWBRIDGE_NO_PROTOTYPES
#include "rawbridge.h"
*/
import "C"

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/rawbridge/boundary"
)

//export rawbridge_decode_buffer
func rawbridge_decode_buffer(buffer *C.uint8_t, length C.size_t, errorOut **C.char) *C.RawImage {
	p := decodeBuffer(unsafe.Pointer(buffer), uint64(length), (*unsafe.Pointer)(unsafe.Pointer(errorOut)))
	return (*C.RawImage)(p)
}

//export rawbridge_free_image
func rawbridge_free_image(image *C.RawImage) {
	freeImage(unsafe.Pointer(image))
}

//export rawbridge_free_error
func rawbridge_free_error(msg *C.char) {
	freeError(unsafe.Pointer(msg))
}

// decodeBuffer implements rawbridge_decode_buffer. A nil buffer or zero
// length is an empty input. errOut may be nil; otherwise it receives the
// diagnostic on failure and nil on success.
func decodeBuffer(buffer unsafe.Pointer, length uint64, errOut *unsafe.Pointer) unsafe.Pointer {
	var ptr unsafe.Pointer
	err := boundary.Guard(func() error {
		var data []byte
		if buffer != nil && length > 0 {
			data = unsafe.Slice((*byte)(buffer), length)
		}
		var err error
		ptr, err = decode(data)
		return err
	})
	if err != nil {
		Logger().Debug("rawbridge_decode_buffer failed", zap.Uint64("len", length), zap.Error(err))
		if errOut != nil {
			*errOut = newError(err)
		}
		return nil
	}
	if errOut != nil {
		*errOut = nil
	}
	return ptr
}
