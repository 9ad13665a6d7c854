package layout

import (
	"fmt"
	"sync"

	"go.bytecodealliance.org/wit"
)

// TextLen is the size of every fixed-width text field, terminator included.
const TextLen = 32

// Image holds absolute byte offsets of the RawImage struct fields.
type Image struct {
	Metadata    Metadata
	Size        uint32
	Align       uint32
	Width       uint32
	Height      uint32
	CPP         uint32
	BPS         uint32
	CFA         uint32
	BlackLevels uint32
	WhiteLevels uint32
	WBCoeffs    uint32
	ColorMatrix uint32
	DataType    uint32
	DataPtr     uint32
	DataLen     uint32
}

// Metadata holds absolute offsets of the RawMetadata fields.
type Metadata struct {
	Exif       Exif
	Make       uint32
	Model      uint32
	CleanMake  uint32
	CleanModel uint32
}

// Exif holds absolute offsets of the RawExif fields.
type Exif struct {
	Orientation      uint32
	ExposureTime     uint32
	FNumber          uint32
	ISOSpeedRatings  uint32
	DateTimeOriginal uint32
	BrightnessValue  uint32
	ExposureBias     uint32
	FocalLength      uint32
	LensMake         uint32
	LensModel        uint32
}

func array(t wit.Type, n int) *wit.TypeDef {
	types := make([]wit.Type, n)
	for i := range types {
		types[i] = t
	}
	return &wit.TypeDef{Kind: &wit.Tuple{Types: types}}
}

// Types returns the RawImage record as WIT types, with the metadata and
// exif records nested as fields.
func Types() (image, metadata, exif *wit.TypeDef) {
	text := func() *wit.TypeDef { return array(wit.U8{}, TextLen) }
	urational := func() *wit.TypeDef { return array(wit.U32{}, 2) }
	srational := func() *wit.TypeDef { return array(wit.S32{}, 2) }

	exif = &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "orientation", Type: wit.U16{}},
		{Name: "exposure-time", Type: urational()},
		{Name: "fnumber", Type: urational()},
		{Name: "iso-speed-ratings", Type: wit.U16{}},
		{Name: "date-time-original", Type: text()},
		{Name: "brightness-value", Type: srational()},
		{Name: "exposure-bias", Type: srational()},
		{Name: "focal-length", Type: urational()},
		{Name: "lens-make", Type: text()},
		{Name: "lens-model", Type: text()},
	}}}

	metadata = &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "make", Type: text()},
		{Name: "model", Type: text()},
		{Name: "clean-make", Type: text()},
		{Name: "clean-model", Type: text()},
		{Name: "exif", Type: exif},
	}}}

	image = &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "width", Type: wit.U32{}},
		{Name: "height", Type: wit.U32{}},
		{Name: "cpp", Type: wit.U32{}},
		{Name: "bps", Type: wit.U32{}},
		{Name: "cfa", Type: text()},
		{Name: "black-levels", Type: array(wit.F32{}, 4)},
		{Name: "white-levels", Type: array(wit.F32{}, 4)},
		{Name: "wb-coeffs", Type: array(wit.F32{}, 4)},
		{Name: "color-matrix", Type: array(wit.F32{}, 9)},
		{Name: "metadata", Type: metadata},
		// C enums are int-sized.
		{Name: "data-type", Type: wit.U32{}},
		{Name: "data-ptr", Type: wit.U32{}},
		{Name: "data-len", Type: wit.U32{}},
	}}}
	return image, metadata, exif
}

var (
	wasm32     Image
	wasm32Err  error
	wasm32Once sync.Once
)

// Wasm32 returns the RawImage layout for a wasm32 guest.
func Wasm32() (Image, error) {
	wasm32Once.Do(func() {
		wasm32, wasm32Err = Compute(NewCalculator())
	})
	return wasm32, wasm32Err
}

// Compute derives the RawImage layout with c.
func Compute(c *Calculator) (Image, error) {
	imageT, metadataT, exifT := Types()
	var infos [3]Info
	for i, t := range []*wit.TypeDef{imageT, metadataT, exifT} {
		info, err := c.Calculate(t)
		if err != nil {
			return Image{}, err
		}
		infos[i] = info
	}
	img, md, ex := infos[0], infos[1], infos[2]

	var err error
	field := func(info Info, name string, base uint32) uint32 {
		off, ok := info.Offsets[name]
		if !ok && err == nil {
			err = fmt.Errorf("layout: record has no field %q", name)
		}
		return base + off
	}

	out := Image{
		Size:        img.Size,
		Align:       img.Align,
		Width:       field(img, "width", 0),
		Height:      field(img, "height", 0),
		CPP:         field(img, "cpp", 0),
		BPS:         field(img, "bps", 0),
		CFA:         field(img, "cfa", 0),
		BlackLevels: field(img, "black-levels", 0),
		WhiteLevels: field(img, "white-levels", 0),
		WBCoeffs:    field(img, "wb-coeffs", 0),
		ColorMatrix: field(img, "color-matrix", 0),
		DataType:    field(img, "data-type", 0),
		DataPtr:     field(img, "data-ptr", 0),
		DataLen:     field(img, "data-len", 0),
	}

	mdBase := field(img, "metadata", 0)
	out.Metadata = Metadata{
		Make:       field(md, "make", mdBase),
		Model:      field(md, "model", mdBase),
		CleanMake:  field(md, "clean-make", mdBase),
		CleanModel: field(md, "clean-model", mdBase),
	}

	exBase := field(md, "exif", mdBase)
	out.Metadata.Exif = Exif{
		Orientation:      field(ex, "orientation", exBase),
		ExposureTime:     field(ex, "exposure-time", exBase),
		FNumber:          field(ex, "fnumber", exBase),
		ISOSpeedRatings:  field(ex, "iso-speed-ratings", exBase),
		DateTimeOriginal: field(ex, "date-time-original", exBase),
		BrightnessValue:  field(ex, "brightness-value", exBase),
		ExposureBias:     field(ex, "exposure-bias", exBase),
		FocalLength:      field(ex, "focal-length", exBase),
		LensMake:         field(ex, "lens-make", exBase),
		LensModel:        field(ex, "lens-model", exBase),
	}
	return out, err
}
