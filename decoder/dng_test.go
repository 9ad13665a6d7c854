package decoder_test

import (
	"math"
	"testing"

	"github.com/wippyai/rawbridge/decoder"
	"github.com/wippyai/rawbridge/decoder/rawtest"
	"github.com/wippyai/rawbridge/errors"
)

func decodeDNG(t *testing.T, d rawtest.DNG) (*decoder.RawImage, *decoder.Metadata, error) {
	t.Helper()
	src := decoder.NewSource(d.Build())
	dec, err := decoder.Default().Get(src)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if dec.Format() != "dng" {
		t.Fatalf("expected dng decoder, got %q", dec.Format())
	}
	img, err := dec.RawImage(src, decoder.Params{})
	if err != nil {
		return nil, nil, err
	}
	md, err := dec.RawMetadata(src, decoder.Params{})
	return img, md, err
}

func TestDNG_BayerInteger(t *testing.T) {
	d := rawtest.DNG{
		Width:         8,
		Height:        6,
		CFA:           []byte{0, 1, 1, 2},
		Make:          "NIKON CORPORATION",
		Model:         "NIKON D850",
		BlackLevel:    []uint32{600, 601, 602, 603},
		WhiteLevel:    15520,
		AsShotNeutral: [][2]uint32{{1, 2}, {1, 1}, {2, 3}},
		ColorMatrices: []rawtest.ColorMatrix{rawtest.Identity(17), rawtest.Identity(21)},
		Orientation:   6,
	}
	img, md, err := decodeDNG(t, d)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if img.Width != 8 || img.Height != 6 || img.CPP != 1 || img.BPS != 16 {
		t.Errorf("dims = %dx%d cpp=%d bps=%d", img.Width, img.Height, img.CPP, img.BPS)
	}
	if img.Camera.CFA.Name != "RGGB" || img.Camera.CFA.Width != 2 || img.Camera.CFA.Height != 2 {
		t.Errorf("cfa = %+v", img.Camera.CFA)
	}
	if img.Camera.Make != "NIKON CORPORATION" || img.Camera.CleanMake != "Nikon" || img.Camera.CleanModel != "D850" {
		t.Errorf("camera = %+v", img.Camera)
	}
	if got := img.BlackLevel.AsBayerArray(); got != [4]float32{600, 601, 602, 603} {
		t.Errorf("black = %v", got)
	}
	if got := img.WhiteLevel.AsBayerArray(); got != [4]float32{15520, 15520, 15520, 15520} {
		t.Errorf("white = %v", got)
	}
	if img.WBCoeffs[0] != 2 || img.WBCoeffs[1] != 1 || img.WBCoeffs[2] != 1.5 || !math.IsNaN(float64(img.WBCoeffs[3])) {
		t.Errorf("wb = %v", img.WBCoeffs)
	}
	if m := img.ColorMatrix[decoder.D65]; len(m) != 9 || m[0] != 1 || m[1] != 0 || m[4] != 1 {
		t.Errorf("D65 matrix = %v", m)
	}
	if _, ok := img.ColorMatrix[decoder.StandardA]; !ok {
		t.Error("StandardA matrix missing")
	}

	samples, ok := img.Data.(decoder.IntegerSamples)
	if !ok {
		t.Fatalf("expected IntegerSamples, got %T", img.Data)
	}
	want := d.Samples().(decoder.IntegerSamples)
	if len(samples) != len(want) {
		t.Fatalf("sample count = %d, want %d", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, samples[i], want[i])
		}
	}

	if md.Exif.Orientation == nil || *md.Exif.Orientation != 6 {
		t.Errorf("orientation = %v", md.Exif.Orientation)
	}
	if md.Exif.ExposureTime != nil {
		t.Error("exposure time should be absent")
	}
}

func TestDNG_LinearFloat(t *testing.T) {
	d := rawtest.DNG{Width: 5, Height: 3, Float: true, BigEndian: true}
	img, _, err := decodeDNG(t, d)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if img.CPP != 3 || img.BPS != 32 || img.Camera.CFA.Name != "" {
		t.Errorf("cpp=%d bps=%d cfa=%q", img.CPP, img.BPS, img.Camera.CFA.Name)
	}
	samples, ok := img.Data.(decoder.FloatSamples)
	if !ok {
		t.Fatalf("expected FloatSamples, got %T", img.Data)
	}
	if samples.Len() != 5*3*3 {
		t.Fatalf("sample count = %d", samples.Len())
	}
	for i, v := range samples {
		if v != d.FloatSample(i) {
			t.Fatalf("sample %d = %v, want %v", i, v, d.FloatSample(i))
		}
	}
	if img.WhiteLevel.Values[0] != 1 {
		t.Errorf("float white level = %v", img.WhiteLevel.Values)
	}
	for i, v := range img.WBCoeffs {
		if !math.IsNaN(float64(v)) {
			t.Errorf("wb[%d] = %v, want NaN", i, v)
		}
	}
	if len(img.ColorMatrix) != 0 {
		t.Errorf("expected no color matrices, got %v", img.ColorMatrix)
	}
}

func TestDNG_PackedBits(t *testing.T) {
	for _, bps := range []int{8, 10, 12, 14} {
		d := rawtest.DNG{Width: 7, Height: 4, CFA: []byte{1, 0, 2, 1}, BitsPerSample: bps, Strips: 3}
		img, _, err := decodeDNG(t, d)
		if err != nil {
			t.Fatalf("%d-bit decode failed: %v", bps, err)
		}
		if img.BPS != bps {
			t.Errorf("bps = %d, want %d", img.BPS, bps)
		}
		if img.WhiteLevel.Values[0] != float32(uint32(1)<<bps-1) {
			t.Errorf("%d-bit default white = %v", bps, img.WhiteLevel.Values)
		}
		got := img.Data.(decoder.IntegerSamples)
		for i := range got {
			if got[i] != d.IntSample(i) {
				t.Fatalf("%d-bit sample %d = %d, want %d", bps, i, got[i], d.IntSample(i))
			}
		}
	}
}

func TestDNG_SubIFDAndExif(t *testing.T) {
	d := rawtest.DNG{
		Width:  4,
		Height: 4,
		CFA:    []byte{2, 1, 1, 0},
		SubIFD: true,
		Make:   "Canon",
		Model:  "Canon EOS R5",
		Exif: &rawtest.Exif{
			ExposureTime:     [2]uint32{1, 250},
			FNumber:          [2]uint32{28, 10},
			ISO:              400,
			DateTimeOriginal: "2024:05:01 10:20:30",
			BrightnessValue:  [2]int32{-5, 10},
			ExposureBias:     [2]int32{-1, 3},
			FocalLength:      [2]uint32{50, 1},
			LensMake:         "Canon",
			LensModel:        "RF50mm F1.8 STM",
		},
	}
	img, md, err := decodeDNG(t, d)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if img.Camera.CFA.Name != "BGGR" || img.Camera.CleanModel != "EOS R5" {
		t.Errorf("camera = %+v", img.Camera)
	}

	e := md.Exif
	if e.ExposureTime == nil || *e.ExposureTime != (decoder.Rational{N: 1, D: 250}) {
		t.Errorf("exposure = %v", e.ExposureTime)
	}
	if e.FNumber == nil || *e.FNumber != (decoder.Rational{N: 28, D: 10}) {
		t.Errorf("fnumber = %v", e.FNumber)
	}
	if e.ISOSpeedRatings == nil || *e.ISOSpeedRatings != 400 {
		t.Errorf("iso = %v", e.ISOSpeedRatings)
	}
	if e.DateTimeOriginal == nil || *e.DateTimeOriginal != "2024:05:01 10:20:30" {
		t.Errorf("date = %v", e.DateTimeOriginal)
	}
	if e.BrightnessValue == nil || *e.BrightnessValue != (decoder.SRational{N: -5, D: 10}) {
		t.Errorf("brightness = %v", e.BrightnessValue)
	}
	if e.ExposureBias == nil || *e.ExposureBias != (decoder.SRational{N: -1, D: 3}) {
		t.Errorf("bias = %v", e.ExposureBias)
	}
	if e.FocalLength == nil || *e.FocalLength != (decoder.Rational{N: 50, D: 1}) {
		t.Errorf("focal = %v", e.FocalLength)
	}
	if e.LensModel == nil || *e.LensModel != "RF50mm F1.8 STM" {
		t.Errorf("lens = %v", e.LensModel)
	}
	if e.Orientation != nil {
		t.Errorf("orientation should be absent, got %d", *e.Orientation)
	}
}

func TestDNG_TruncatedStrip(t *testing.T) {
	data := rawtest.DNG{Width: 16, Height: 16, CFA: []byte{0, 1, 1, 2}}.Build()
	src := decoder.NewSource(data[:len(data)-100])

	dec, err := decoder.Default().Get(src)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	_, err = dec.RawImage(src, decoder.Params{})
	if err == nil {
		t.Fatal("expected error for truncated strip")
	}
	if errors.KindOf(err) != errors.KindOutOfBounds {
		t.Errorf("kind = %q, want out_of_bounds (%v)", errors.KindOf(err), err)
	}
}

func TestDNG_HostileSizes(t *testing.T) {
	repeat := func(n int, v uint32) []uint32 {
		out := make([]uint32, n)
		for i := range out {
			out[i] = v
		}
		return out
	}

	tests := []struct {
		override map[uint16][]uint32
		name     string
		kind     errors.Kind
		float    bool
	}{
		{
			name: "strip counts summing past 4 GiB",
			override: map[uint16][]uint32{
				rawtest.TagStripOffsets:    repeat(2000, 8),
				rawtest.TagStripByteCounts: repeat(2000, 0xFFFFFFFF),
			},
			kind: errors.KindOutOfBounds,
		},
		{
			name: "strips re-reading the file",
			override: map[uint16][]uint32{
				rawtest.TagStripOffsets:    repeat(200, 0),
				rawtest.TagStripByteCounts: repeat(200, 100),
			},
			kind: errors.KindInvalidData,
		},
		{
			name: "width*height*spp wrapping to zero",
			override: map[uint16][]uint32{
				rawtest.TagImageWidth:      {1 << 31},
				rawtest.TagImageLength:     {1 << 31},
				rawtest.TagSamplesPerPixel: {4},
				rawtest.TagStripByteCounts: {0},
			},
			kind:  errors.KindInvalidData,
			float: true,
		},
		{
			name:     "width larger than the file",
			override: map[uint16][]uint32{rawtest.TagImageWidth: {0xFFFFFFFF}},
			kind:     errors.KindInvalidData,
		},
		{
			name:     "height larger than the file",
			override: map[uint16][]uint32{rawtest.TagImageLength: {1 << 30}},
			kind:     errors.KindInvalidData,
		},
		{
			name:     "huge samples per pixel",
			override: map[uint16][]uint32{rawtest.TagSamplesPerPixel: {0xFFFFFFFF}},
			kind:     errors.KindInvalidData,
		},
		{
			name:     "zero samples per pixel",
			override: map[uint16][]uint32{rawtest.TagSamplesPerPixel: {0}},
			kind:     errors.KindInvalidData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := rawtest.DNG{Width: 4, Height: 4, Float: tt.float, Override: tt.override}
			if !tt.float {
				d.CFA = []byte{0, 1, 1, 2}
			}
			src := decoder.NewSource(d.Build())
			dec, err := decoder.Default().Get(src)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			img, err := dec.RawImage(src, decoder.Params{})
			if img != nil {
				t.Fatalf("expected no image, got %dx%dx%d with %d samples", img.Width, img.Height, img.CPP, img.Data.Len())
			}
			if errors.KindOf(err) != tt.kind {
				t.Errorf("kind = %q, want %q (%v)", errors.KindOf(err), tt.kind, err)
			}
		})
	}
}

func TestSampleCount(t *testing.T) {
	tests := []struct {
		dims []uint64
		want uint64
		ok   bool
	}{
		{nil, 1, true},
		{[]uint64{4, 3, 2}, 24, true},
		{[]uint64{1 << 31, 1 << 31, 4}, 0, false},
		{[]uint64{1 << 32, 1 << 32}, 0, false},
		{[]uint64{1 << 32, 0, 1 << 40}, 0, true},
		{[]uint64{math.MaxUint32, math.MaxUint32}, math.MaxUint32 * math.MaxUint32, true},
	}
	for _, tt := range tests {
		got, ok := decoder.SampleCount(tt.dims...)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SampleCount(%v) = %d, %v; want %d, %v", tt.dims, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDNG_ImageIndex(t *testing.T) {
	src := decoder.NewSource(rawtest.DNG{Width: 2, Height: 2, CFA: []byte{0, 1, 1, 2}}.Build())
	dec, err := decoder.Default().Get(src)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	_, err = dec.RawImage(src, decoder.Params{ImageIndex: 1})
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("kind = %q, want not_found", errors.KindOf(err))
	}
}

func TestDNG_NoRawImage(t *testing.T) {
	// A SubIFD file whose raw directory is unreachable leaves only the
	// reduced IFD0, which is not a raw image.
	data := rawtest.DNG{Width: 2, Height: 2, CFA: []byte{0, 1, 1, 2}, SubIFD: true}.Build()
	for i := 8; i+4 <= len(data); i++ {
		// corrupt the SubIFDs pointer: tag 0x014A, type LONG, count 1
		if data[i] == 0x4A && data[i+1] == 0x01 && data[i+2] == 4 && data[i+3] == 0 {
			data[i+8], data[i+9], data[i+10], data[i+11] = 0xFF, 0xFF, 0xFF, 0x00
			break
		}
	}
	if _, err := decoder.Default().Get(decoder.NewSource(data)); err == nil {
		t.Fatal("expected Get to fail without a raw IFD")
	}
}
