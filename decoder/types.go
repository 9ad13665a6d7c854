package decoder

import (
	"fmt"
	"math/bits"
)

// RawImage is a decoded raw image as produced by a Decoder.
type RawImage struct {
	Camera      Camera
	Data        Samples
	ColorMatrix map[Illuminant][]float32
	BlackLevel  Levels
	WhiteLevel  Levels
	// WBCoeffs are the as-shot white balance coefficients in RGBE order.
	// Slots the file does not provide are NaN.
	WBCoeffs [4]float32
	Width    int
	Height   int
	// CPP is the number of components per pixel: 1 for CFA data, 3 for linear RGB.
	CPP int
	// BPS is the number of bits per sample as stored in the file.
	BPS int
}

// Camera identifies the capturing device.
type Camera struct {
	Make       string
	Model      string
	CleanMake  string
	CleanModel string
	CFA        CFA
}

// CFA describes the color filter array layout.
type CFA struct {
	// Name is the pattern read row by row, e.g. "RGGB". Empty for non-CFA data.
	Name   string
	Width  int
	Height int
}

// Levels holds per-CFA-cell (or per-channel) sensor levels.
type Levels struct {
	Values []float32
}

// AsBayerArray expands the levels to the four cells of a 2x2 Bayer block,
// repeating shorter level sets.
func (l Levels) AsBayerArray() [4]float32 {
	var out [4]float32
	if len(l.Values) == 0 {
		return out
	}
	for i := range out {
		out[i] = l.Values[i%len(l.Values)]
	}
	return out
}

// Samples is the decoded pixel storage. It is either IntegerSamples or FloatSamples.
type Samples interface {
	// Len returns the number of samples (not bytes).
	Len() int
	samples()
}

// IntegerSamples holds 16-bit unsigned samples.
type IntegerSamples []uint16

// FloatSamples holds 32-bit floating point samples.
type FloatSamples []float32

func (s IntegerSamples) Len() int { return len(s) }
func (s FloatSamples) Len() int   { return len(s) }

func (IntegerSamples) samples() {}
func (FloatSamples) samples()   {}

// SampleCount multiplies image dimensions. It reports false when the
// product overflows 64 bits.
func SampleCount(dims ...uint64) (uint64, bool) {
	n := uint64(1)
	for _, d := range dims {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// Illuminant is an EXIF/DNG light source code.
type Illuminant uint16

const (
	IlluminantUnknown Illuminant = 0
	Daylight          Illuminant = 1
	Fluorescent       Illuminant = 2
	Tungsten          Illuminant = 3
	Flash             Illuminant = 4
	StandardA         Illuminant = 17
	StandardB         Illuminant = 18
	StandardC         Illuminant = 19
	D55               Illuminant = 20
	D65               Illuminant = 21
	D75               Illuminant = 22
	D50               Illuminant = 23
)

func (i Illuminant) String() string {
	switch i {
	case IlluminantUnknown:
		return "unknown"
	case Daylight:
		return "daylight"
	case Fluorescent:
		return "fluorescent"
	case Tungsten:
		return "tungsten"
	case Flash:
		return "flash"
	case StandardA:
		return "A"
	case StandardB:
		return "B"
	case StandardC:
		return "C"
	case D55:
		return "D55"
	case D65:
		return "D65"
	case D75:
		return "D75"
	case D50:
		return "D50"
	default:
		return fmt.Sprintf("illuminant(%d)", uint16(i))
	}
}

// Metadata is the secondary, optional decode result.
type Metadata struct {
	Exif Exif
}

// Exif holds the subset of EXIF fields the boundary forwards. Nil means
// the field was absent from the file.
type Exif struct {
	Orientation      *uint16
	ExposureTime     *Rational
	FNumber          *Rational
	ISOSpeedRatings  *uint16
	DateTimeOriginal *string
	BrightnessValue  *SRational
	ExposureBias     *SRational
	FocalLength      *Rational
	LensMake         *string
	LensModel        *string
}

// Rational is an unsigned fraction.
type Rational struct {
	N uint32
	D uint32
}

// SRational is a signed fraction.
type SRational struct {
	N int32
	D int32
}

// Params tunes a decode.
type Params struct {
	// ImageIndex selects among the raw images a file carries.
	ImageIndex int
}
