package boundary

import (
	"math"

	"github.com/wippyai/rawbridge/decoder"
	"github.com/wippyai/rawbridge/transfer"
)

// Record is the flat form of a decoded image: fixed arrays and scalars
// only, in the field order of the foreign RawImage struct. The sample
// buffer descriptor is not part of it; it is filled in on publication.
type Record struct {
	Metadata    Metadata
	CFA         [TextLen]byte
	ColorMatrix [9]float32
	BlackLevels [4]float32
	WhiteLevels [4]float32
	// WBCoeffs are RGBE; slots the file does not provide are NaN.
	WBCoeffs [4]float32
	Width    uint32
	Height   uint32
	CPP      uint32
	BPS      uint32
}

// Metadata is the flat camera identification and Exif block. A failed
// metadata read leaves it zero.
type Metadata struct {
	Make       [TextLen]byte
	Model      [TextLen]byte
	CleanMake  [TextLen]byte
	CleanModel [TextLen]byte
	Exif       Exif
}

// Exif holds the forwarded Exif fields; absent fields are zero.
type Exif struct {
	DateTimeOriginal [TextLen]byte
	LensMake         [TextLen]byte
	LensModel        [TextLen]byte
	ExposureTime     [2]uint32
	FNumber          [2]uint32
	FocalLength      [2]uint32
	BrightnessValue  [2]int32
	ExposureBias     [2]int32
	Orientation      uint16
	ISOSpeedRatings  uint16
}

// Image is a decode result that has not crossed the boundary yet: the flat
// record plus the Go-owned samples.
type Image struct {
	Samples decoder.Samples
	Format  string
	Record  Record
}

// DataType returns the tag the samples will carry across the boundary.
func (img *Image) DataType() (transfer.DataType, error) {
	return transfer.TypeOf(img.Samples)
}

// Elements returns width*height*cpp, the element count the published
// buffer must have. ok is false when the product overflows.
func (r *Record) Elements() (n uint64, ok bool) {
	return decoder.SampleCount(uint64(r.Width), uint64(r.Height), uint64(r.CPP))
}

// BayerPattern identifies a 2x2 CFA layout.
type BayerPattern uint8

const (
	BayerUnknown BayerPattern = iota
	BayerRGGB
	BayerGRBG
	BayerGBRG
	BayerBGGR
)

func (p BayerPattern) String() string {
	switch p {
	case BayerRGGB:
		return "RGGB"
	case BayerGRBG:
		return "GRBG"
	case BayerGBRG:
		return "GBRG"
	case BayerBGGR:
		return "BGGR"
	default:
		return "unknown"
	}
}

// BayerPattern maps the CFA name to a 2x2 pattern. Other layouts (X-Trans,
// linear RGB) report BayerUnknown.
func (r *Record) BayerPattern() BayerPattern {
	switch DecodeFixed(r.CFA[:]) {
	case "RGGB":
		return BayerRGGB
	case "GRBG":
		return BayerGRBG
	case "GBRG":
		return BayerGBRG
	case "BGGR":
		return BayerBGGR
	default:
		return BayerUnknown
	}
}

// PixelPrecision returns ceil(log2(white level)) of the first CFA cell,
// the number of significant bits of integer samples. It is 0 when the
// white level is not a positive finite value.
func (r *Record) PixelPrecision() int {
	w := float64(r.WhiteLevels[0])
	if !(w > 0) || math.IsInf(w, 0) {
		return 0
	}
	return int(math.Ceil(math.Log2(w)))
}
