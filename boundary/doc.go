// Package boundary is the shared core of the foreign entry points.
//
// It turns the decoder's rich result into a flat Record that maps field for
// field onto the foreign RawImage struct, and it is the failure barrier
// between the decoder and callers that cannot take part in Go's error or
// panic model.
//
// # Decode
//
//	img, err := boundary.Decode(data)
//	if err != nil {
//	    // errors.KindOf(err) is one of empty_input, no_decoder_found,
//	    // decode_failed or internal_fault; err.Error() is the diagnostic.
//	}
//
// The sequence is: input check, format detection, primary decode,
// best-effort metadata, record build. Only the first three can fail the
// decode. A failed metadata read leaves Record.Metadata zero. A panic at
// any step becomes an internal_fault error with a generic message.
//
// # Lossy flattening
//
// Text fields are fixed 32-byte NUL-terminated buffers (see PutFixed).
// Absent Exif fields are zero, indistinguishable from a genuine zero. A
// missing color matrix for the reference illuminant is all zero. Absent
// white balance slots stay NaN as reported by the decoder.
//
// # Publication
//
// Publish moves an Image onto a foreign heap: the samples through the
// transfer package, then the struct through a surface-specific writer. The
// step runs under Guard and rolls back every block on failure.
package boundary
