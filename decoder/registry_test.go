package decoder_test

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/rawbridge/decoder"
	"github.com/wippyai/rawbridge/decoder/rawtest"
)

type stubDecoder struct{}

func (stubDecoder) Format() string { return "stub" }

func (stubDecoder) RawImage(*decoder.Source, decoder.Params) (*decoder.RawImage, error) {
	return nil, stderrors.New("stub")
}

func (stubDecoder) RawMetadata(*decoder.Source, decoder.Params) (*decoder.Metadata, error) {
	return nil, decoder.ErrNoMetadata
}

func TestRegistry_Get(t *testing.T) {
	r := decoder.NewRegistry()
	if _, err := r.Get(decoder.NewSource([]byte("anything"))); !stderrors.Is(err, decoder.ErrUnknownFormat) {
		t.Fatalf("empty registry error = %v", err)
	}

	r.Register(decoder.Format{
		Name:  "stub",
		Match: func(sig []byte) bool { return bytes.HasPrefix(sig, []byte("STUB")) },
		Open:  func(*decoder.Source) (decoder.Decoder, error) { return stubDecoder{}, nil },
	})
	r.Register(decoder.Format{Name: "nomatch"})

	dec, err := r.Get(decoder.NewSource([]byte("STUB-data")))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if dec.Format() != "stub" {
		t.Errorf("format = %q", dec.Format())
	}
	if got := r.Formats(); len(got) != 2 || got[0] != "stub" || got[1] != "nomatch" {
		t.Errorf("Formats() = %v", got)
	}
}

func TestDefault_Detection(t *testing.T) {
	if got := decoder.Default().Formats(); len(got) != 2 || got[0] != "dng" || got[1] != "cfa" {
		t.Fatalf("default formats = %v", got)
	}

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{"dng", rawtest.DNG{Width: 2, Height: 2, CFA: []byte{0, 1, 1, 2}}.Build(), "dng"},
		{"cfa", rawtest.CFA{Width: 2, Height: 2}.Build(), "cfa"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'}, ""},
		{"random", bytes.Repeat([]byte{0xAB}, 256), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := decoder.Default().Get(decoder.NewSource(tt.data))
			if tt.format == "" {
				if !stderrors.Is(err, decoder.ErrUnknownFormat) {
					t.Errorf("error = %v, want ErrUnknownFormat", err)
				}
				if err != nil && !strings.Contains(err.Error(), "tried dng, cfa") {
					t.Errorf("error %q does not list the tried formats", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if dec.Format() != tt.format {
				t.Errorf("format = %q, want %q", dec.Format(), tt.format)
			}
		})
	}
}

func TestSource_Signature(t *testing.T) {
	long := decoder.NewSource(make([]byte, 100))
	if len(long.Signature()) != 16 || long.Len() != 100 {
		t.Errorf("signature len = %d", len(long.Signature()))
	}
	short := decoder.NewSource([]byte{1, 2, 3})
	if len(short.Signature()) != 3 {
		t.Errorf("short signature len = %d", len(short.Signature()))
	}
}

func TestCleanNames(t *testing.T) {
	tests := []struct {
		maker, model       string
		cleanMake, cleanMd string
	}{
		{"NIKON CORPORATION", "NIKON Z 8", "Nikon", "Z 8"},
		{"Canon", "Canon EOS R6", "Canon", "EOS R6"},
		{"SONY", "ILCE-7M4", "Sony", "ILCE-7M4"},
		{"OM Digital Solutions", "OM-1", "OM System", "OM-1"},
		{"  Acme Optics ", "Acme Optics X1", "Acme Optics", "X1"},
		{"Canon", "canon EOS R8", "Canon", "EOS R8"},
		{"ıris", "ıRIS X2", "ıris", "X2"},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		if got := decoder.CleanMake(tt.maker); got != tt.cleanMake {
			t.Errorf("CleanMake(%q) = %q, want %q", tt.maker, got, tt.cleanMake)
		}
		if got := decoder.CleanModel(tt.maker, tt.model); got != tt.cleanMd {
			t.Errorf("CleanModel(%q, %q) = %q, want %q", tt.maker, tt.model, got, tt.cleanMd)
		}
	}
}

func TestLevels_AsBayerArray(t *testing.T) {
	tests := []struct {
		in   []float32
		want [4]float32
	}{
		{nil, [4]float32{}},
		{[]float32{5}, [4]float32{5, 5, 5, 5}},
		{[]float32{1, 2}, [4]float32{1, 2, 1, 2}},
		{[]float32{1, 2, 3, 4, 5}, [4]float32{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		if got := (decoder.Levels{Values: tt.in}).AsBayerArray(); got != tt.want {
			t.Errorf("AsBayerArray(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
