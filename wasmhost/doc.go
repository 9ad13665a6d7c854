// Package wasmhost exposes the decoder to WebAssembly guests as a wazero
// host module.
//
// The module (named "rawbridge" unless WithModuleName says otherwise)
// exports three functions:
//
//	decode_buffer(buffer i32, len i32, error_out i32) -> i32
//	free_image(image i32)
//	free_error(error i32)
//
// Results live in the calling guest's linear memory and are allocated
// through its cabi_realloc export, using the canonical ABI convention
// (cabi_realloc(0, 0, align, size) to allocate and
// cabi_realloc(ptr, size, align, 0) to free). The guest must also export
// its memory. A guest missing either gets 0 from decode_buffer and no
// diagnostic.
//
// The RawImage struct uses the wasm32 layout from Layout(): pointers and
// size_t are 4 bytes, the data_type enum is a u32.
//
// # Usage
//
//	host := wasmhost.New(wasmhost.WithLedger(ledger.New()))
//	if _, err := host.Instantiate(ctx, rt); err != nil {
//	    return err
//	}
//	guest, err := rt.Instantiate(ctx, guestWasm)
//
// A wazero module instance is single-threaded. Concurrent guests need
// separate instances; one Host serves all of them.
package wasmhost
