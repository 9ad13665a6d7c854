package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindInvalidData,
				Path:   []string{"ifd0", "StripOffsets"},
				Format: "dng",
				Detail: "strip exceeds file",
			},
			contains: []string{"[decode]", "invalid_data", "ifd0.StripOffsets", "format dng", " - strip exceeds file"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseReclaim,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[reclaim]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseTransfer,
				Kind:   KindAllocation,
				Detail: "heap exhausted",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[transfer]", "allocation", ": heap exhausted", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := DecodeFailed("dng", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause in chain")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDetect,
		Kind:  KindNoDecoder,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseDetect, Kind: KindNoDecoder}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindNoDecoder}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDetect, Kind: KindDecodeFailed}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseDetect, Kind: KindNoDecoder}) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("x"), ""},
		{"direct", EmptyInput(), KindEmptyInput},
		{"wrapped", fmt.Errorf("ctx: %w", InternalFault("boom")), KindInternalFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDecode, KindInvalidData).
		Path("ifd0", "BitsPerSample").
		Format("dng").
		Value(12).
		Cause(cause).
		Detail("unsupported depth %d", 12).
		Build()

	if err.Phase != PhaseDecode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDecode)
	}
	if err.Kind != KindInvalidData {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidData)
	}
	if len(err.Path) != 2 || err.Path[1] != "BitsPerSample" {
		t.Errorf("Path = %v", err.Path)
	}
	if err.Format != "dng" {
		t.Errorf("Format = %v, want dng", err.Format)
	}
	if err.Value != 12 {
		t.Errorf("Value = %v, want 12", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "unsupported depth 12" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestBoundaryConstructors(t *testing.T) {
	t.Run("EmptyInput", func(t *testing.T) {
		err := EmptyInput()
		if err.Phase != PhaseInput || err.Kind != KindEmptyInput {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("NoDecoder", func(t *testing.T) {
		err := NoDecoder(errors.New("unrecognized"))
		if err.Kind != KindNoDecoder {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Error(), "unrecognized") {
			t.Errorf("message %q should carry the cause", err.Error())
		}
	})

	t.Run("InternalFault hides panic value", func(t *testing.T) {
		err := InternalFault("index out of range [7] with length 3")
		if err.Kind != KindInternalFault {
			t.Errorf("Kind = %v", err.Kind)
		}
		if strings.Contains(err.Error(), "index out of range") {
			t.Errorf("message %q leaks panic detail", err.Error())
		}
		if !strings.Contains(err.Error(), InternalFaultMessage) {
			t.Errorf("message %q missing generic text", err.Error())
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseTransfer, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseDecode, []string{"strip"}, 10, 5)
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("InvalidEnum", func(t *testing.T) {
		err := InvalidEnum(PhaseReclaim, []string{"data_type"}, 7, "DataType")
		if err.Kind != KindInvalidEnum {
			t.Errorf("Kind = %v", err.Kind)
		}
	})
}
