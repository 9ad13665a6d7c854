// Package decoder is the raw image decoding collaborator behind the boundary.
//
// A Registry auto-detects the container from its leading bytes and returns a
// Decoder bound to that source. Decoding is split into two independent calls:
//
//	dec, err := decoder.Default().Get(src)
//	img, err := dec.RawImage(src, decoder.Params{})
//	md, err := dec.RawMetadata(src, decoder.Params{})
//
// RawImage is mandatory for a usable result. RawMetadata is optional and may
// fail on its own (ErrNoMetadata for containers without a metadata block).
//
// Built-in formats:
//
//	dng - TIFF/DNG with uncompressed CFA or LinearRaw strips, 1-16 bit
//	      integer or 32-bit float samples
//	cfa - 128-byte " AFC" header followed by 16-bit little-endian Bayer samples
//
// Pixel storage is a tagged variant: IntegerSamples ([]uint16) or
// FloatSamples ([]float32).
package decoder
