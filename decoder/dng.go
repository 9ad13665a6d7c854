package decoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wippyai/rawbridge/decoder/internal/tiff"
	"github.com/wippyai/rawbridge/errors"
)

const dngName = "dng"

// TIFF/DNG tag IDs
const (
	tagNewSubFileType         = 0x00FE
	tagImageWidth             = 0x0100
	tagImageLength            = 0x0101
	tagBitsPerSample          = 0x0102
	tagCompression            = 0x0103
	tagPhotometric            = 0x0106
	tagMake                   = 0x010F
	tagModel                  = 0x0110
	tagStripOffsets           = 0x0111
	tagOrientation            = 0x0112
	tagSamplesPerPixel        = 0x0115
	tagRowsPerStrip           = 0x0116
	tagStripByteCounts        = 0x0117
	tagPlanarConfig           = 0x011C
	tagTileOffsets            = 0x0144
	tagSubIFDs                = 0x014A
	tagSampleFormat           = 0x0153
	tagCFARepeatPatternDim    = 0x828D
	tagCFAPattern             = 0x828E
	tagExifIFD                = 0x8769
	tagDNGVersion             = 0xC612
	tagUniqueCameraModel      = 0xC614
	tagBlackLevel             = 0xC61A
	tagWhiteLevel             = 0xC61D
	tagColorMatrix1           = 0xC621
	tagColorMatrix2           = 0xC622
	tagAsShotNeutral          = 0xC628
	tagCalibrationIlluminant1 = 0xC65A
	tagCalibrationIlluminant2 = 0xC65B
)

// EXIF sub-IFD tag IDs
const (
	exifTagExposureTime      = 0x829A
	exifTagFNumber           = 0x829D
	exifTagISO               = 0x8827
	exifTagDateTimeOriginal  = 0x9003
	exifTagBrightnessValue   = 0x9203
	exifTagExposureBiasValue = 0x9204
	exifTagFocalLength       = 0x920A
	exifTagLensMake          = 0xA433
	exifTagLensModel         = 0xA434
)

const (
	photometricCFA       = 32803
	photometricLinearRaw = 34892

	compressionNone = 1

	sampleFormatUint  = 1
	sampleFormatFloat = 3
)

// cfaColors maps CFAPattern color codes to their letters.
var cfaColors = [...]byte{'R', 'G', 'B', 'C', 'M', 'Y', 'W'}

// DNGFormat returns the format entry for TIFF-based raw files (DNG and
// plain TIFF/EP with uncompressed CFA or linear raw data).
func DNGFormat() Format {
	return Format{
		Name:  dngName,
		Match: tiff.HasSignature,
		Open:  openDNG,
	}
}

type dngDecoder struct {
	file *tiff.File
	raws []*tiff.IFD
}

func openDNG(src *Source) (Decoder, error) {
	f, err := tiff.Parse(src.Bytes())
	if err != nil {
		return nil, err
	}

	d := &dngDecoder{file: f}
	d.collectRawIFDs()
	if len(d.raws) == 0 {
		return nil, fmt.Errorf("tiff file has no CFA or linear raw image")
	}
	return d, nil
}

// collectRawIFDs finds full-resolution raw directories in IFD0 and its SubIFDs.
func (d *dngDecoder) collectRawIFDs() {
	candidates := []*tiff.IFD{d.file.IFD0}
	if offsets, ok := d.file.IFD0.Uints(tagSubIFDs); ok {
		for _, off := range offsets {
			sub, err := d.file.ReadIFD(off)
			if err != nil {
				continue
			}
			candidates = append(candidates, sub)
		}
	}

	for _, ifd := range candidates {
		if subType, ok := ifd.Uint(tagNewSubFileType); ok && subType != 0 {
			continue
		}
		photometric, _ := ifd.Uint(tagPhotometric)
		if photometric == photometricCFA || photometric == photometricLinearRaw {
			d.raws = append(d.raws, ifd)
		}
	}
}

func (d *dngDecoder) Format() string {
	return dngName
}

func (d *dngDecoder) RawImage(src *Source, params Params) (*RawImage, error) {
	if params.ImageIndex < 0 || params.ImageIndex >= len(d.raws) {
		return nil, errors.New(errors.PhaseDecode, errors.KindNotFound).
			Format(dngName).
			Detail("image index %d out of range (%d raw images)", params.ImageIndex, len(d.raws)).
			Build()
	}
	raw := d.raws[params.ImageIndex]
	ifd0 := d.file.IFD0

	width, ok := raw.Uint(tagImageWidth)
	if !ok || width == 0 {
		return nil, fieldError("ImageWidth", "missing or zero")
	}
	height, ok := raw.Uint(tagImageLength)
	if !ok || height == 0 {
		return nil, fieldError("ImageLength", "missing or zero")
	}
	spp, ok := raw.Uint(tagSamplesPerPixel)
	if !ok {
		spp = 1
	}
	if spp == 0 {
		return nil, fieldError("SamplesPerPixel", "zero")
	}
	bps, ok := raw.Uint(tagBitsPerSample)
	if !ok {
		return nil, fieldError("BitsPerSample", "missing")
	}
	if c, ok := raw.Uint(tagCompression); ok && c != compressionNone {
		return nil, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("compression %d", c))
	}
	if planar, ok := raw.Uint(tagPlanarConfig); ok && planar != 1 && spp > 1 {
		return nil, errors.Unsupported(errors.PhaseDecode, "planar sample layout")
	}
	if raw.Has(tagTileOffsets) {
		return nil, errors.Unsupported(errors.PhaseDecode, "tiled image data")
	}
	sampleFormat, ok := raw.Uint(tagSampleFormat)
	if !ok {
		sampleFormat = sampleFormatUint
	}

	photometric, _ := raw.Uint(tagPhotometric)

	maker, _ := ifd0.ASCII(tagMake)
	model, ok := ifd0.ASCII(tagModel)
	if !ok {
		model, _ = ifd0.ASCII(tagUniqueCameraModel)
	}

	img := &RawImage{
		Camera:      newCamera(maker, model),
		Width:       int(width),
		Height:      int(height),
		CPP:         int(spp),
		BPS:         int(bps),
		ColorMatrix: readColorMatrices(ifd0),
		WBCoeffs:    readWhiteBalance(ifd0),
	}

	if photometric == photometricCFA {
		cfa, err := readCFA(raw)
		if err != nil {
			return nil, err
		}
		img.Camera.CFA = cfa
	}

	// Every sample takes at least one bit of the file, which bounds the
	// count before anything is sized from it.
	count, ok := SampleCount(uint64(width), uint64(height), uint64(spp))
	if !ok || count > 8*uint64(src.Len()) || count > math.MaxInt {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path("dimensions").
			Format(dngName).
			Detail("%dx%dx%d samples do not fit a %d-byte file", width, height, spp, src.Len()).
			Build()
	}

	strips, err := d.stripData(raw, src.Bytes())
	if err != nil {
		return nil, err
	}

	switch sampleFormat {
	case sampleFormatFloat:
		if bps != 32 {
			return nil, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("%d-bit float samples", bps))
		}
		img.Data, err = unpackFloat32(strips, int(count), d.file.Order)
		img.WhiteLevel = readLevels(raw, tagWhiteLevel, 1)
	case sampleFormatUint:
		rowSamples := int(uint64(width) * uint64(spp))
		img.Data, err = unpackUint(strips, rowSamples, int(height), int(bps), d.file.Order)
		img.WhiteLevel = readLevels(raw, tagWhiteLevel, float32(uint32(1)<<min(bps, 16)-1))
	default:
		return nil, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("sample format %d", sampleFormat))
	}
	if err != nil {
		return nil, err
	}
	img.BlackLevel = readLevels(raw, tagBlackLevel, 0)

	return img, nil
}

func (d *dngDecoder) RawMetadata(src *Source, params Params) (*Metadata, error) {
	ifd0 := d.file.IFD0
	exif := ifd0
	if off, ok := ifd0.Uint(tagExifIFD); ok {
		sub, err := d.file.ReadIFD(off)
		if err != nil {
			return nil, fmt.Errorf("read exif IFD: %w", err)
		}
		exif = sub
	}

	// Tags are looked up in the Exif IFD first, then in IFD0, where some
	// DNG writers place them.
	dirs := []*tiff.IFD{exif, ifd0}

	md := &Metadata{}
	e := &md.Exif
	if v, ok := ifd0.Uint(tagOrientation); ok {
		o := uint16(v)
		e.Orientation = &o
	}
	for _, dir := range dirs {
		if e.ExposureTime == nil {
			e.ExposureTime = rational(dir, exifTagExposureTime)
		}
		if e.FNumber == nil {
			e.FNumber = rational(dir, exifTagFNumber)
		}
		if e.ISOSpeedRatings == nil {
			if v, ok := dir.Uint(exifTagISO); ok {
				iso := uint16(v)
				e.ISOSpeedRatings = &iso
			}
		}
		if e.DateTimeOriginal == nil {
			e.DateTimeOriginal = ascii(dir, exifTagDateTimeOriginal)
		}
		if e.BrightnessValue == nil {
			e.BrightnessValue = srational(dir, exifTagBrightnessValue)
		}
		if e.ExposureBias == nil {
			e.ExposureBias = srational(dir, exifTagExposureBiasValue)
		}
		if e.FocalLength == nil {
			e.FocalLength = rational(dir, exifTagFocalLength)
		}
		if e.LensMake == nil {
			e.LensMake = ascii(dir, exifTagLensMake)
		}
		if e.LensModel == nil {
			e.LensModel = ascii(dir, exifTagLensModel)
		}
	}
	return md, nil
}

// stripData concatenates the image strips in file order. Strips are
// disjoint parts of the file, so together they can never exceed it.
func (d *dngDecoder) stripData(raw *tiff.IFD, data []byte) ([]byte, error) {
	offsets, ok := raw.Uints(tagStripOffsets)
	if !ok {
		return nil, fieldError("StripOffsets", "missing")
	}
	counts, ok := raw.Uints(tagStripByteCounts)
	if !ok || len(counts) != len(offsets) {
		return nil, fieldError("StripByteCounts", "missing or mismatched with StripOffsets")
	}

	strips := make([][]byte, len(offsets))
	var total uint64
	for i := range offsets {
		strip, err := sliceStrip(data, i, offsets[i], counts[i])
		if err != nil {
			return nil, err
		}
		strips[i] = strip
		total += uint64(len(strip))
	}
	if total > uint64(len(data)) {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path("strips").
			Format(dngName).
			Detail("strips total %d bytes in a %d-byte file", total, len(data)).
			Build()
	}
	if len(strips) == 1 {
		return strips[0], nil
	}

	out := make([]byte, 0, total)
	for _, strip := range strips {
		out = append(out, strip...)
	}
	return out, nil
}

func sliceStrip(data []byte, i int, off, n uint32) ([]byte, error) {
	end := uint64(off) + uint64(n)
	if end > uint64(len(data)) {
		return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
			Path("strip", fmt.Sprint(i)).
			Format(dngName).
			Detail("strip ends at %d beyond file size %d", end, len(data)).
			Build()
	}
	return data[off:end], nil
}

// unpackUint reads MSB-first packed integer samples; rows start on a byte boundary.
func unpackUint(data []byte, rowSamples, rows, bps int, order binary.ByteOrder) (IntegerSamples, error) {
	if bps < 1 || bps > 16 {
		return nil, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("%d-bit integer samples", bps))
	}

	rowBytes := (uint64(rowSamples)*uint64(bps) + 7) / 8
	need, ok := SampleCount(rowBytes, uint64(rows))
	if !ok || uint64(len(data)) < need {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Format(dngName).
			Detail("image data has %d bytes, need %d rows of %d", len(data), rows, rowBytes).
			Build()
	}

	out := make(IntegerSamples, rowSamples*rows)
	switch bps {
	case 8:
		for i := range out {
			out[i] = uint16(data[i])
		}
	case 16:
		for i := range out {
			out[i] = order.Uint16(data[i*2:])
		}
	default:
		for y := 0; y < rows; y++ {
			row := data[uint64(y)*rowBytes : uint64(y+1)*rowBytes]
			dst := out[y*rowSamples : (y+1)*rowSamples]
			var acc uint32
			var nbits, pos int
			for x := range dst {
				for nbits < bps {
					acc = acc<<8 | uint32(row[pos])
					pos++
					nbits += 8
				}
				nbits -= bps
				dst[x] = uint16(acc >> uint(nbits) & (1<<uint(bps) - 1))
			}
		}
	}
	return out, nil
}

func unpackFloat32(data []byte, count int, order binary.ByteOrder) (FloatSamples, error) {
	if uint64(len(data))/4 < uint64(count) {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Format(dngName).
			Detail("image data has %d bytes, need %d float samples", len(data), count).
			Build()
	}
	out := make(FloatSamples, count)
	for i := range out {
		out[i] = math.Float32frombits(order.Uint32(data[i*4:]))
	}
	return out, nil
}

func readCFA(raw *tiff.IFD) (CFA, error) {
	dims, ok := raw.Uints(tagCFARepeatPatternDim)
	if !ok || len(dims) != 2 || dims[0] == 0 || dims[1] == 0 {
		return CFA{}, fieldError("CFARepeatPatternDim", "missing or invalid")
	}
	pattern, ok := raw.Bytes(tagCFAPattern)
	if !ok || len(pattern) != int(dims[0]*dims[1]) {
		return CFA{}, fieldError("CFAPattern", "missing or does not match repeat dimensions")
	}

	name := make([]byte, len(pattern))
	for i, c := range pattern {
		if int(c) >= len(cfaColors) {
			return CFA{}, fieldError("CFAPattern", fmt.Sprintf("unknown color code %d", c))
		}
		name[i] = cfaColors[c]
	}
	return CFA{Name: string(name), Height: int(dims[0]), Width: int(dims[1])}, nil
}

func readLevels(ifd *tiff.IFD, tag uint16, fallback float32) Levels {
	vals, ok := ifd.Floats(tag)
	if !ok || len(vals) == 0 {
		return Levels{Values: []float32{fallback}}
	}
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return Levels{Values: out}
}

func readWhiteBalance(ifd0 *tiff.IFD) [4]float32 {
	nan := float32(math.NaN())
	wb := [4]float32{nan, nan, nan, nan}
	neutral, ok := ifd0.Floats(tagAsShotNeutral)
	if !ok {
		return wb
	}
	for i := 0; i < len(neutral) && i < len(wb); i++ {
		if neutral[i] != 0 {
			wb[i] = float32(1 / neutral[i])
		}
	}
	return wb
}

func readColorMatrices(ifd0 *tiff.IFD) map[Illuminant][]float32 {
	pairs := []struct{ matrix, illuminant uint16 }{
		{tagColorMatrix1, tagCalibrationIlluminant1},
		{tagColorMatrix2, tagCalibrationIlluminant2},
	}

	out := make(map[Illuminant][]float32)
	for _, p := range pairs {
		vals, ok := ifd0.Floats(p.matrix)
		if !ok {
			continue
		}
		ill, _ := ifd0.Uint(p.illuminant)
		m := make([]float32, len(vals))
		for i, v := range vals {
			m[i] = float32(v)
		}
		out[Illuminant(ill)] = m
	}
	return out
}

func rational(ifd *tiff.IFD, tag uint16) *Rational {
	n, d, ok := ifd.Rational(tag)
	if !ok {
		return nil
	}
	return &Rational{N: n, D: d}
}

func srational(ifd *tiff.IFD, tag uint16) *SRational {
	n, d, ok := ifd.SRational(tag)
	if !ok {
		return nil
	}
	return &SRational{N: n, D: d}
}

func ascii(ifd *tiff.IFD, tag uint16) *string {
	s, ok := ifd.ASCII(tag)
	if !ok {
		return nil
	}
	return &s
}

func fieldError(field, detail string) *errors.Error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(field).
		Format(dngName).
		Detail("%s", detail).
		Build()
}
