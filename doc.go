// Package rawbridge exposes a raw camera image decoder to callers that do
// not share Go's runtime: C programs through a shared library and
// WebAssembly guests through a wazero host module.
//
// A caller hands over a byte buffer and gets back either a flat RawImage
// struct, allocated on the caller's side of the boundary, or a diagnostic
// string. Every result is released through the matching free entry point.
//
// # Architecture Overview
//
//	rawbridge/           Root package with the guest Memory and Allocator interfaces
//	├── boundary/        Decode sequence, record builder, failure barrier
//	├── transfer/        Sample buffer hand-off to a foreign heap and back
//	├── layout/          wasm32 layout of the RawImage struct
//	├── ledger/          Optional accounting of live foreign allocations
//	├── decoder/         Built-in DNG and CFA decoders with auto-detection
//	├── errors/          Structured error types for diagnostics
//	├── capi/            C ABI entry points and rawbridge.h
//	├── wasmhost/        wazero host module for wasm guests
//	└── cmd/librawbridge c-shared build target
//
// # C callers
//
// Build the shared library:
//
//	go build -buildmode=c-shared -o librawbridge.so ./cmd/librawbridge
//
// and use it through capi/include/rawbridge.h:
//
//	char *err = NULL;
//	RawImage *img = rawbridge_decode_buffer(buf, len, &err);
//	if (img == NULL) {
//	    fprintf(stderr, "%s\n", err);
//	    rawbridge_free_error(err);
//	    return;
//	}
//	// img->data_ptr holds img->data_len samples of img->data_type
//	rawbridge_free_image(img);
//
// # WebAssembly guests
//
// Register the host module before instantiating the guest:
//
//	rt := wazero.NewRuntime(ctx)
//	host := wasmhost.New()
//	if _, err := host.Instantiate(ctx, rt); err != nil {
//	    return err
//	}
//	mod, err := rt.Instantiate(ctx, guestWasm)
//
// The guest imports decode_buffer, free_image and free_error from the
// "rawbridge" module and must export memory and cabi_realloc.
//
// # Ownership
//
// Exactly one free per successful decode. The sample buffer is tagged with
// its element type; the free reads the tag to compute the buffer size.
// Nothing is pooled or cached between calls.
package rawbridge
