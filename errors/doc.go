// Package errors provides structured error types for the rawbridge module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the decoder format, a field path and the cause chain.
//
// Four kinds form the boundary taxonomy that foreign callers can observe:
//
//	KindEmptyInput    - nil or zero-length input buffer
//	KindNoDecoder     - no registered format recognized the input
//	KindDecodeFailed  - the format was recognized but decoding failed
//	KindInternalFault - a panic inside the decoder was recovered
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidData).
//		Path("ifd0", "StripOffsets").
//		Format("dng").
//		Detail("strip %d exceeds file size", i).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.DecodeFailed("dng", cause)
//	err := errors.OutOfBounds(errors.PhaseDecode, path, 4096, 1024)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
