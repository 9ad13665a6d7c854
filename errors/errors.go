package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase names the step of a decode or release that failed.
type Phase string

const (
	PhaseInput    Phase = "input"    // argument validation at the entry point
	PhaseDetect   Phase = "detect"   // decoder lookup
	PhaseDecode   Phase = "decode"   // primary image decode
	PhaseBuild    Phase = "build"    // result struct assembly
	PhaseTransfer Phase = "transfer" // ownership transfer to the foreign heap
	PhaseReclaim  Phase = "reclaim"  // reclamation of a published result
	PhaseHost     Phase = "host"     // wasm host module wiring
)

// Kind is the failure category. It is the stable part of a diagnostic.
type Kind string

// Decode kinds. boundary.Decode fails with exactly one of these; the
// publication step that follows it can also fail with allocation,
// overflow or out_of_bounds.
const (
	KindEmptyInput    Kind = "empty_input"
	KindNoDecoder     Kind = "no_decoder_found"
	KindDecodeFailed  Kind = "decode_failed"
	KindInternalFault Kind = "internal_fault"
)

// Supporting kinds, found as causes inside decode_failed or returned by
// the transfer and host layers.
const (
	KindAllocation     Kind = "allocation"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindInvalidEnum    Kind = "invalid_enum"
	KindOverflow       Kind = "overflow"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindNotInitialized Kind = "not_initialized"
)

// InternalFaultMessage is the generic diagnostic for a recovered panic.
const InternalFaultMessage = "an internal failure occurred during decoding"

// Error is a boundary failure. Error() renders the diagnostic text handed
// to foreign callers, so Value never appears in it.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Format string
	Detail string
	Path   []string
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Format != "" {
		b.WriteString(": format ")
		b.WriteString(e.Format)
	}

	if e.Detail != "" {
		if e.Format != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Phase and Kind only.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder assembles an Error field by field.
type Builder struct {
	err Error
}

// New starts an Error in the given phase.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path is the dotted field location, e.g. metadata.exif.fnumber.
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) Format(f string) *Builder {
	b.err.Format = f
	return b
}

func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail formats msg with args when any are given.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

func (b *Builder) Build() *Error {
	return &b.err
}

// Boundary constructors

// EmptyInput reports a nil or zero-length input buffer
func EmptyInput() *Error {
	return &Error{
		Phase:  PhaseInput,
		Kind:   KindEmptyInput,
		Detail: "empty buffer provided",
	}
}

// NoDecoder reports that no registered format recognized the input
func NoDecoder(cause error) *Error {
	return &Error{
		Phase:  PhaseDetect,
		Kind:   KindNoDecoder,
		Detail: "failed to get decoder",
		Cause:  cause,
	}
}

// DecodeFailed reports a collaborator failure after the format was recognized
func DecodeFailed(format string, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindDecodeFailed,
		Format: format,
		Detail: "failed to decode raw image",
		Cause:  cause,
	}
}

// InternalFault converts a recovered panic value into an error. The panic
// value is kept in Value for logging but never rendered into the message.
func InternalFault(recovered any) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInternalFault,
		Detail: InternalFaultMessage,
		Value:  recovered,
	}
}

// Transfer and host helpers

// AllocationFailed reports a foreign allocator returning null.
func AllocationFailed(phase Phase, size, align uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds reports a read or write past the end of a memory.
func OutOfBounds(phase Phase, path []string, offset, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("offset %d out of bounds (length %d)", offset, length),
		Value:  offset,
	}
}

// Overflow reports a value that does not fit the foreign integer width.
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// InvalidEnum reports a tag outside its enumeration, typically data_type.
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Path:   path,
		Detail: fmt.Sprintf("invalid enum value %v for %s", value, enumType),
		Value:  value,
	}
}

func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotInitialized reports a guest export the host depends on being absent.
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
	}
}
