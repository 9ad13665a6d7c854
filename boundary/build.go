package boundary

import (
	"github.com/wippyai/rawbridge/decoder"
)

// metadataResult is the optional channel of a decode. Its error is logged
// and dropped; it never reaches the caller.
type metadataResult struct {
	md  *decoder.Metadata
	err error
}

func fetchMetadata(dec decoder.Decoder, src *decoder.Source, params decoder.Params) metadataResult {
	md, err := dec.RawMetadata(src, params)
	if err == nil && md == nil {
		md = &decoder.Metadata{}
	}
	return metadataResult{md: md, err: err}
}

// Build flattens a decoded image into a Record.
//
// Dimensions are narrowed to uint32 without range checks. The color matrix
// is the one calibrated for illuminant; a missing matrix, or one with fewer
// than nine entries, leaves it all zero. A nil md leaves the whole Metadata
// block zero, camera identification included.
func Build(img *decoder.RawImage, md *decoder.Metadata, illuminant decoder.Illuminant) Record {
	r := Record{
		Width:       uint32(img.Width),
		Height:      uint32(img.Height),
		CPP:         uint32(img.CPP),
		BPS:         uint32(img.BPS),
		CFA:         EncodeFixed(img.Camera.CFA.Name),
		BlackLevels: img.BlackLevel.AsBayerArray(),
		WhiteLevels: img.WhiteLevel.AsBayerArray(),
		WBCoeffs:    img.WBCoeffs,
	}

	if m, ok := img.ColorMatrix[illuminant]; ok && len(m) >= len(r.ColorMatrix) {
		copy(r.ColorMatrix[:], m)
	}

	if md != nil {
		r.Metadata = buildMetadata(img.Camera, &md.Exif)
	}
	return r
}

func buildMetadata(cam decoder.Camera, e *decoder.Exif) Metadata {
	m := Metadata{
		Make:       EncodeFixed(cam.Make),
		Model:      EncodeFixed(cam.Model),
		CleanMake:  EncodeFixed(cam.CleanMake),
		CleanModel: EncodeFixed(cam.CleanModel),
	}

	x := &m.Exif
	if e.Orientation != nil {
		x.Orientation = *e.Orientation
	}
	if e.ExposureTime != nil {
		x.ExposureTime = [2]uint32{e.ExposureTime.N, e.ExposureTime.D}
	}
	if e.FNumber != nil {
		x.FNumber = [2]uint32{e.FNumber.N, e.FNumber.D}
	}
	if e.ISOSpeedRatings != nil {
		x.ISOSpeedRatings = *e.ISOSpeedRatings
	}
	if e.DateTimeOriginal != nil {
		x.DateTimeOriginal = EncodeFixed(*e.DateTimeOriginal)
	}
	if e.BrightnessValue != nil {
		x.BrightnessValue = [2]int32{e.BrightnessValue.N, e.BrightnessValue.D}
	}
	if e.ExposureBias != nil {
		x.ExposureBias = [2]int32{e.ExposureBias.N, e.ExposureBias.D}
	}
	if e.FocalLength != nil {
		x.FocalLength = [2]uint32{e.FocalLength.N, e.FocalLength.D}
	}
	if e.LensMake != nil {
		x.LensMake = EncodeFixed(*e.LensMake)
	}
	if e.LensModel != nil {
		x.LensModel = EncodeFixed(*e.LensModel)
	}
	return m
}
