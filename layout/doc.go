// Package layout computes the memory layout of the RawImage struct for
// foreign heaps that cgo does not describe, namely wasm32 linear memory.
//
// The struct is modelled as a WIT record and laid out with canonical ABI
// rules: fixed arrays become tuples of their element type, rationals are
// two-element tuples and the data type tag is a u32.
package layout
