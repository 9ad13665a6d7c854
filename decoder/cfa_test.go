package decoder_test

import (
	"encoding/binary"
	stderrors "errors"
	"math"
	"testing"

	"github.com/wippyai/rawbridge/decoder"
	"github.com/wippyai/rawbridge/decoder/rawtest"
	"github.com/wippyai/rawbridge/errors"
)

func TestCFA_Decode(t *testing.T) {
	tests := []struct {
		phase     uint8
		precision uint8
		pattern   string
		bps       int
	}{
		{0, 12, "GBRG", 12},
		{1, 14, "BGGR", 14},
		{2, 0, "RGGB", 16},
		{3, 16, "GRBG", 16},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			c := rawtest.CFA{Width: 6, Height: 4, Phase: tt.phase, Precision: tt.precision}
			src := decoder.NewSource(c.Build())

			dec, err := decoder.Default().Get(src)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if dec.Format() != "cfa" {
				t.Fatalf("format = %q", dec.Format())
			}
			img, err := dec.RawImage(src, decoder.Params{})
			if err != nil {
				t.Fatalf("RawImage failed: %v", err)
			}

			if img.Width != 6 || img.Height != 4 || img.CPP != 1 || img.BPS != tt.bps {
				t.Errorf("dims = %dx%d cpp=%d bps=%d", img.Width, img.Height, img.CPP, img.BPS)
			}
			if img.Camera.CFA.Name != tt.pattern {
				t.Errorf("pattern = %q, want %q", img.Camera.CFA.Name, tt.pattern)
			}
			if img.WhiteLevel.Values[0] != float32(uint32(1)<<tt.bps-1) {
				t.Errorf("white = %v", img.WhiteLevel.Values)
			}
			if !math.IsNaN(float64(img.WBCoeffs[0])) {
				t.Errorf("wb = %v, want NaN", img.WBCoeffs)
			}
			samples := img.Data.(decoder.IntegerSamples)
			if len(samples) != 24 {
				t.Fatalf("sample count = %d", len(samples))
			}
			for i, v := range samples {
				if v != c.Sample(i) {
					t.Fatalf("sample %d = %d, want %d", i, v, c.Sample(i))
				}
			}

			if _, err := dec.RawMetadata(src, decoder.Params{}); !stderrors.Is(err, decoder.ErrNoMetadata) {
				t.Errorf("RawMetadata error = %v, want ErrNoMetadata", err)
			}
		})
	}
}

func TestCFA_Errors(t *testing.T) {
	good := rawtest.CFA{Width: 4, Height: 4, Phase: 2, Precision: 12}.Build()

	badPhase := append([]byte(nil), good...)
	badPhase[16] = 7

	badPrecision := append([]byte(nil), good...)
	badPrecision[17] = 20

	tests := []struct {
		name string
		data []byte
		kind errors.Kind
	}{
		{"payload too short", good[:len(good)-2], errors.KindInvalidData},
		{"payload too long", append(append([]byte(nil), good...), 0, 0), errors.KindInvalidData},
		{"unknown phase", badPhase, errors.KindInvalidEnum},
		{"precision above 16", badPrecision, errors.KindUnsupported},
		{"block grid wrapping 64 bits", cfaBlocks(good, 1<<31, 1<<31), errors.KindInvalidData},
		{"block grid beyond payload", cfaBlocks(good, 0x80000000, 1), errors.KindInvalidData},
		{"empty block grid", cfaBlocks(good[:decoder.CFAHeaderSize], 0, 5), errors.KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := decoder.NewSource(tt.data)
			dec, err := decoder.Default().Get(src)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			_, err = dec.RawImage(src, decoder.Params{})
			if errors.KindOf(err) != tt.kind {
				t.Errorf("kind = %q, want %q (%v)", errors.KindOf(err), tt.kind, err)
			}
		})
	}
}

// cfaBlocks rewrites the block dimensions of a CFA header.
func cfaBlocks(data []byte, w, h uint32) []byte {
	out := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(out[8:], w)
	binary.LittleEndian.PutUint32(out[12:], h)
	return out
}

func TestCFA_ShortHeader(t *testing.T) {
	data := rawtest.CFA{Width: 2, Height: 2}.Build()[:64]
	if _, err := decoder.Default().Get(decoder.NewSource(data)); err == nil {
		t.Fatal("expected error for truncated header")
	}
}
