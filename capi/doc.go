// Package capi is the C ABI surface of the library.
//
// Built with -buildmode=c-shared (see cmd/librawbridge), it exports
//
//	RawImage *rawbridge_decode_buffer(uint8_t *buffer, size_t len, char **error_out);
//	void rawbridge_free_image(RawImage *image);
//	void rawbridge_free_error(char *error);
//
// declared in include/rawbridge.h. Images, sample buffers and diagnostics
// are allocated with malloc; each must go back through its free function
// exactly once.
//
// Go code can use the same path through Decode and (*Image).Free, which
// is how the package is tested. EnableAccounting turns on a ledger of live
// allocations for leak checks.
package capi
