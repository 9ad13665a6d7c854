package wasmhost

// Hand-assembled guest modules for the host tests.
//
// The full guest imports decode_buffer, free_image and free_error, exports
// one trampoline per import (decode, release, release_error) and a bump
// cabi_realloc. Two mutable globals are exported: "live" counts
// outstanding allocations and "limit" caps the bump pointer so a test can
// make the allocator return 0.

const (
	guestHeapBase = 1024
	guestPages    = 4
	guestLimit    = guestPages * 65536
)

const (
	i32Type = 0x7f

	opEnd       = 0x0b
	opIf        = 0x04
	opElse      = 0x05
	opCall      = 0x10
	opLocalGet  = 0x20
	opLocalSet  = 0x21
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Const  = 0x41
	opI32Eqz    = 0x45
	opI32GtU    = 0x4b
	opI32Add    = 0x6a
	opI32Sub    = 0x6b
	opI32And    = 0x71
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, body []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(body)))...)
	return append(out, body...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func body(locals []byte, code ...byte) []byte {
	b := append(append([]byte{}, locals...), code...)
	b = append(b, opEnd)
	return append(uleb(uint32(len(b))), b...)
}

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// guestWasm returns a guest importing its entry points from module.
func guestWasm(module string) []byte {
	types := section(0x01, vec(
		[]byte{0x60, 0x03, i32Type, i32Type, i32Type, 0x01, i32Type},          // 0: decode_buffer
		[]byte{0x60, 0x01, i32Type, 0x00},                                     // 1: free_*
		[]byte{0x60, 0x04, i32Type, i32Type, i32Type, i32Type, 0x01, i32Type}, // 2: cabi_realloc
	))

	imports := section(0x02, vec(
		cat(name(module), name("decode_buffer"), []byte{0x00, 0x00}),
		cat(name(module), name("free_image"), []byte{0x00, 0x01}),
		cat(name(module), name("free_error"), []byte{0x00, 0x01}),
	))

	// Functions 3..6 follow the three imports.
	funcs := section(0x03, vec([]byte{0x02}, []byte{0x00}, []byte{0x01}, []byte{0x01}))

	memory := section(0x05, vec([]byte{0x00, guestPages}))

	global := func(init int32) []byte {
		return cat([]byte{i32Type, 0x01, opI32Const}, sleb(init), []byte{opEnd})
	}
	globals := section(0x06, vec(
		global(guestHeapBase), // 0: bump pointer
		global(0),             // 1: live
		global(guestLimit),    // 2: limit
	))

	exports := section(0x07, vec(
		cat(name("memory"), []byte{0x02, 0x00}),
		cat(name("cabi_realloc"), []byte{0x00, 0x03}),
		cat(name("decode"), []byte{0x00, 0x04}),
		cat(name("release"), []byte{0x00, 0x05}),
		cat(name("release_error"), []byte{0x00, 0x06}),
		cat(name("live"), []byte{0x03, 0x01}),
		cat(name("limit"), []byte{0x03, 0x02}),
	))

	// cabi_realloc(old, old_size, align, new_size); local 4 is the result.
	realloc := body([]byte{0x01, 0x01, i32Type},
		opLocalGet, 3,
		opI32Eqz,
		opIf, i32Type,
		opGlobalGet, 1, opI32Const, 1, opI32Sub, opGlobalSet, 1,
		opI32Const, 0,
		opElse,
		// p = (heap + align - 1) & -align
		opGlobalGet, 0, opLocalGet, 2, opI32Add, opI32Const, 1, opI32Sub,
		opI32Const, 0, opLocalGet, 2, opI32Sub,
		opI32And,
		opLocalSet, 4,
		opLocalGet, 4, opLocalGet, 3, opI32Add,
		opGlobalGet, 2,
		opI32GtU,
		opIf, i32Type,
		opI32Const, 0,
		opElse,
		opLocalGet, 4, opLocalGet, 3, opI32Add, opGlobalSet, 0,
		opGlobalGet, 1, opI32Const, 1, opI32Add, opGlobalSet, 1,
		opLocalGet, 4,
		opEnd,
		opEnd,
	)
	decode := body([]byte{0x00}, opLocalGet, 0, opLocalGet, 1, opLocalGet, 2, opCall, 0)
	release := body([]byte{0x00}, opLocalGet, 0, opCall, 1)
	releaseError := body([]byte{0x00}, opLocalGet, 0, opCall, 2)

	code := section(0x0a, cat(uleb(4), realloc, decode, release, releaseError))

	return cat(wasmHeader, types, imports, funcs, memory, globals, exports, code)
}

// memoryOnlyWasm exports one page of memory and no allocator.
var memoryOnlyWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory" (6 bytes + string)
	0x02, 0x00, // kind: memory, index 0
}

// emptyWasm has neither memory nor exports.
var emptyWasm = wasmHeader
