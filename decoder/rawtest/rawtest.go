// Package rawtest builds small synthetic raw files for tests.
package rawtest

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/wippyai/rawbridge/decoder"
)

// DNG describes a synthetic TIFF/DNG file.
type DNG struct {
	Exif  *Exif
	Make  string
	Model string
	// CFA is the 2x2 color pattern (0=R, 1=G, 2=B). Nil writes LinearRaw RGB.
	CFA           []byte
	BlackLevel    []uint32
	AsShotNeutral [][2]uint32
	ColorMatrices []ColorMatrix
	Width         int
	Height        int
	// BitsPerSample applies to integer samples; 0 means 16.
	BitsPerSample int
	// Strips splits the image data; 0 means a single strip.
	Strips      int
	WhiteLevel  uint32
	Orientation uint16
	Float       bool
	BigEndian   bool
	// SubIFD stores the raw image in a SubIFD behind a reduced IFD0.
	SubIFD bool
	// Override replaces raw IFD tags with LONG values after everything
	// else is written, including StripOffsets. Used to corrupt files.
	Override map[uint16][]uint32
}

// Tags that Override is typically used on.
const (
	TagImageWidth      = tagImageWidth
	TagImageLength     = tagImageLength
	TagSamplesPerPixel = tagSamplesPerPixel
	TagStripOffsets    = tagStripOffsets
	TagStripByteCounts = tagStripByteCounts
)

// ColorMatrix is one ColorMatrixN/CalibrationIlluminantN pair.
type ColorMatrix struct {
	Illuminant uint16
	Values     [9][2]int32
}

// Exif holds the Exif IFD fields to write. Empty strings are omitted.
type Exif struct {
	DateTimeOriginal string
	LensMake         string
	LensModel        string
	ExposureTime     [2]uint32
	FNumber          [2]uint32
	FocalLength      [2]uint32
	BrightnessValue  [2]int32
	ExposureBias     [2]int32
	ISO              uint16
}

// Identity returns a color matrix that maps each channel to itself.
func Identity(illuminant uint16) ColorMatrix {
	cm := ColorMatrix{Illuminant: illuminant}
	for i := range cm.Values {
		cm.Values[i] = [2]int32{0, 1}
	}
	cm.Values[0] = [2]int32{1, 1}
	cm.Values[4] = [2]int32{1, 1}
	cm.Values[8] = [2]int32{1, 1}
	return cm
}

// SamplesPerPixel returns 1 for CFA data and 3 for LinearRaw.
func (d DNG) SamplesPerPixel() int {
	if d.CFA == nil {
		return 3
	}
	return 1
}

// Count returns width*height*samples per pixel.
func (d DNG) Count() int {
	return d.Width * d.Height * d.SamplesPerPixel()
}

func (d DNG) bits() int {
	switch {
	case d.Float:
		return 32
	case d.BitsPerSample == 0:
		return 16
	default:
		return d.BitsPerSample
	}
}

// IntSample returns the value written for integer sample i.
func (d DNG) IntSample(i int) uint16 {
	maxVal := 1<<d.bits() - 1
	return uint16((i*37 + 11) % (maxVal + 1))
}

// FloatSample returns the value written for float sample i.
func (d DNG) FloatSample(i int) float32 {
	return float32(i%251) / 250
}

// Samples returns the expected decoded samples.
func (d DNG) Samples() decoder.Samples {
	n := d.Count()
	if d.Float {
		out := make(decoder.FloatSamples, n)
		for i := range out {
			out[i] = d.FloatSample(i)
		}
		return out
	}
	out := make(decoder.IntegerSamples, n)
	for i := range out {
		out[i] = d.IntSample(i)
	}
	return out
}

func (d DNG) order() binary.ByteOrder {
	if d.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// pixelData encodes the samples; each row starts on a byte boundary.
func (d DNG) pixelData() (data []byte, rowBytes int) {
	order := d.order()
	rowSamples := d.Width * d.SamplesPerPixel()
	bps := d.bits()
	rowBytes = (rowSamples*bps + 7) / 8
	data = make([]byte, rowBytes*d.Height)

	for y := 0; y < d.Height; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		for x := 0; x < rowSamples; x++ {
			i := y*rowSamples + x
			switch {
			case d.Float:
				order.PutUint32(row[x*4:], math.Float32bits(d.FloatSample(i)))
			case bps == 16:
				order.PutUint16(row[x*2:], d.IntSample(i))
			case bps == 8:
				row[x] = byte(d.IntSample(i))
			default:
				putBits(row, x*bps, bps, uint32(d.IntSample(i)))
			}
		}
	}
	return data, rowBytes
}

// putBits writes v MSB-first at bit position pos.
func putBits(row []byte, pos, n int, v uint32) {
	for b := n - 1; b >= 0; b-- {
		if v>>uint(b)&1 == 1 {
			row[pos/8] |= 0x80 >> uint(pos%8)
		}
		pos++
	}
}

// Build serializes the file.
func (d DNG) Build() []byte {
	order := d.order()
	pixels, rowBytes := d.pixelData()

	strips := d.Strips
	if strips <= 0 {
		strips = 1
	}
	if strips > d.Height {
		strips = d.Height
	}
	rowsPerStrip := (d.Height + strips - 1) / strips
	strips = (d.Height + rowsPerStrip - 1) / rowsPerStrip

	raw := &dir{order: order}
	ifd0 := raw
	if d.SubIFD {
		ifd0 = &dir{order: order}
		ifd0.longs(tagNewSubFileType, 1)
		ifd0.longs(tagImageWidth, 1)
		ifd0.longs(tagImageLength, 1)
		ifd0.longs(tagSubIFDs, 0)
		raw.longs(tagNewSubFileType, 0)
	}

	spp := d.SamplesPerPixel()
	raw.longs(tagImageWidth, uint32(d.Width))
	raw.longs(tagImageLength, uint32(d.Height))
	bpsVals := make([]uint16, spp)
	for i := range bpsVals {
		bpsVals[i] = uint16(d.bits())
	}
	raw.shorts(tagBitsPerSample, bpsVals...)
	raw.shorts(tagCompression, 1)
	raw.shorts(tagSamplesPerPixel, uint16(spp))
	raw.longs(tagRowsPerStrip, uint32(rowsPerStrip))
	raw.longs(tagStripOffsets, make([]uint32, strips)...)
	counts := make([]uint32, strips)
	for i := range counts {
		rows := rowsPerStrip
		if (i+1)*rowsPerStrip > d.Height {
			rows = d.Height - i*rowsPerStrip
		}
		counts[i] = uint32(rows * rowBytes)
	}
	raw.longs(tagStripByteCounts, counts...)
	raw.shorts(tagPlanarConfig, 1)
	if d.Float {
		raw.shorts(tagSampleFormat, 3)
	}
	if d.CFA != nil {
		raw.shorts(tagPhotometric, photometricCFA)
		raw.shorts(tagCFARepeatPatternDim, 2, 2)
		raw.bytes(tagCFAPattern, d.CFA)
	} else {
		raw.shorts(tagPhotometric, photometricLinearRaw)
	}
	if len(d.BlackLevel) > 0 {
		raw.longs(tagBlackLevel, d.BlackLevel...)
	}
	if d.WhiteLevel != 0 {
		raw.longs(tagWhiteLevel, d.WhiteLevel)
	}
	for tag, vals := range d.Override {
		raw.longs(tag, vals...)
	}

	ifd0.bytes(tagDNGVersion, []byte{1, 4, 0, 0})
	if d.Make != "" {
		ifd0.ascii(tagMake, d.Make)
	}
	if d.Model != "" {
		ifd0.ascii(tagModel, d.Model)
	}
	if d.Orientation != 0 {
		ifd0.shorts(tagOrientation, d.Orientation)
	}
	if len(d.AsShotNeutral) > 0 {
		ifd0.rationals(tagAsShotNeutral, d.AsShotNeutral...)
	}
	matrixTags := [][2]uint16{
		{tagColorMatrix1, tagCalibrationIlluminant1},
		{tagColorMatrix2, tagCalibrationIlluminant2},
	}
	for i, cm := range d.ColorMatrices {
		if i >= len(matrixTags) {
			break
		}
		ifd0.srationals(matrixTags[i][0], cm.Values[:]...)
		ifd0.shorts(matrixTags[i][1], cm.Illuminant)
	}

	var exif *dir
	if d.Exif != nil {
		exif = d.Exif.dir(order)
		ifd0.longs(tagExifIFD, 0)
	}

	// Layout: header, IFD0, raw SubIFD, Exif IFD, pixel data.
	off := uint32(8)
	ifd0Off := off
	off += ifd0.size()
	rawOff := ifd0Off
	if d.SubIFD {
		rawOff = off
		off += raw.size()
		ifd0.longs(tagSubIFDs, rawOff)
	}
	if exif != nil {
		ifd0.longs(tagExifIFD, off)
		off += exif.size()
	}
	pixelOff := off

	offsets := make([]uint32, strips)
	pos := pixelOff
	for i := range offsets {
		offsets[i] = pos
		pos += counts[i]
	}
	if _, ok := d.Override[tagStripOffsets]; !ok {
		raw.longs(tagStripOffsets, offsets...)
	}

	buf := make([]byte, int(pixelOff)+len(pixels))
	if d.BigEndian {
		copy(buf, "MM")
	} else {
		copy(buf, "II")
	}
	order.PutUint16(buf[2:], 42)
	order.PutUint32(buf[4:], ifd0Off)

	ifd0.write(buf, ifd0Off)
	if d.SubIFD {
		raw.write(buf, rawOff)
	}
	if exif != nil {
		ptr, _ := ifd0.entry(tagExifIFD)
		exif.write(buf, order.Uint32(ptr))
	}
	copy(buf[pixelOff:], pixels)
	return buf
}

func (e *Exif) dir(order binary.ByteOrder) *dir {
	x := &dir{order: order}
	x.rationals(exifTagExposureTime, e.ExposureTime)
	x.rationals(exifTagFNumber, e.FNumber)
	x.shorts(exifTagISO, e.ISO)
	if e.DateTimeOriginal != "" {
		x.ascii(exifTagDateTimeOriginal, e.DateTimeOriginal)
	}
	x.srationals(exifTagBrightnessValue, e.BrightnessValue)
	x.srationals(exifTagExposureBiasValue, e.ExposureBias)
	x.rationals(exifTagFocalLength, e.FocalLength)
	if e.LensMake != "" {
		x.ascii(exifTagLensMake, e.LensMake)
	}
	if e.LensModel != "" {
		x.ascii(exifTagLensModel, e.LensModel)
	}
	return x
}

// CFA describes a synthetic " AFC" Bayer container.
type CFA struct {
	Width     int
	Height    int
	Phase     uint8
	Precision uint8
}

// Sample returns the value written for sample i.
func (c CFA) Sample(i int) uint16 {
	p := int(c.Precision)
	if p == 0 {
		p = 16
	}
	return uint16((i*53 + 7) % (1 << p))
}

// Build serializes the container.
func (c CFA) Build() []byte {
	n := c.Width * c.Height
	buf := make([]byte, decoder.CFAHeaderSize+n*2)
	binary.LittleEndian.PutUint32(buf[0:], decoder.CFAMagic)
	binary.LittleEndian.PutUint32(buf[4:], 1)
	binary.LittleEndian.PutUint32(buf[8:], uint32(c.Width/2))
	binary.LittleEndian.PutUint32(buf[12:], uint32(c.Height/2))
	buf[16] = c.Phase
	buf[17] = c.Precision
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[decoder.CFAHeaderSize+i*2:], c.Sample(i))
	}
	return buf
}

// TIFF tag IDs and field types used by the builders.
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
	tagSubIFDs                = 0x014A
	tagSampleFormat           = 0x0153
	tagCFARepeatPatternDim    = 0x828D
	tagCFAPattern             = 0x828E
	tagExifIFD                = 0x8769
	tagDNGVersion             = 0xC612
	tagBlackLevel             = 0xC61A
	tagWhiteLevel             = 0xC61D
	tagColorMatrix1           = 0xC621
	tagColorMatrix2           = 0xC622
	tagAsShotNeutral          = 0xC628
	tagCalibrationIlluminant1 = 0xC65A
	tagCalibrationIlluminant2 = 0xC65B

	exifTagExposureTime      = 0x829A
	exifTagFNumber           = 0x829D
	exifTagISO               = 0x8827
	exifTagDateTimeOriginal  = 0x9003
	exifTagBrightnessValue   = 0x9203
	exifTagExposureBiasValue = 0x9204
	exifTagFocalLength       = 0x920A
	exifTagLensMake          = 0xA433
	exifTagLensModel         = 0xA434

	photometricCFA       = 32803
	photometricLinearRaw = 34892

	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSRational = 10
)

type entry struct {
	data  []byte
	count uint32
	tag   uint16
	typ   uint16
}

// dir accumulates entries of one IFD. Setting a tag twice replaces it.
type dir struct {
	order   binary.ByteOrder
	entries []entry
}

func (d *dir) set(tag, typ uint16, count uint32, data []byte) {
	for i := range d.entries {
		if d.entries[i].tag == tag {
			d.entries[i] = entry{tag: tag, typ: typ, count: count, data: data}
			return
		}
	}
	d.entries = append(d.entries, entry{tag: tag, typ: typ, count: count, data: data})
}

func (d *dir) entry(tag uint16) ([]byte, bool) {
	for _, e := range d.entries {
		if e.tag == tag {
			return e.data, true
		}
	}
	return nil, false
}

func (d *dir) bytes(tag uint16, v []byte) {
	d.set(tag, typeByte, uint32(len(v)), append([]byte(nil), v...))
}

func (d *dir) ascii(tag uint16, s string) {
	b := append([]byte(s), 0)
	d.set(tag, typeASCII, uint32(len(b)), b)
}

func (d *dir) shorts(tag uint16, vals ...uint16) {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		d.order.PutUint16(b[i*2:], v)
	}
	d.set(tag, typeShort, uint32(len(vals)), b)
}

func (d *dir) longs(tag uint16, vals ...uint32) {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		d.order.PutUint32(b[i*4:], v)
	}
	d.set(tag, typeLong, uint32(len(vals)), b)
}

func (d *dir) rationals(tag uint16, vals ...[2]uint32) {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		d.order.PutUint32(b[i*8:], v[0])
		d.order.PutUint32(b[i*8+4:], v[1])
	}
	d.set(tag, typeRational, uint32(len(vals)), b)
}

func (d *dir) srationals(tag uint16, vals ...[2]int32) {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		d.order.PutUint32(b[i*8:], uint32(v[0]))
		d.order.PutUint32(b[i*8+4:], uint32(v[1]))
	}
	d.set(tag, typeSRational, uint32(len(vals)), b)
}

// size returns the directory plus its out-of-line values.
func (d *dir) size() uint32 {
	n := uint32(2 + 12*len(d.entries) + 4)
	for _, e := range d.entries {
		if len(e.data) > 4 {
			n += uint32(len(e.data)+1) &^ 1
		}
	}
	return n
}

func (d *dir) write(buf []byte, off uint32) {
	sort.Slice(d.entries, func(i, j int) bool { return d.entries[i].tag < d.entries[j].tag })

	o := d.order
	o.PutUint16(buf[off:], uint16(len(d.entries)))
	pos := off + 2
	ext := off + uint32(2+12*len(d.entries)+4)
	for _, e := range d.entries {
		o.PutUint16(buf[pos:], e.tag)
		o.PutUint16(buf[pos+2:], e.typ)
		o.PutUint32(buf[pos+4:], e.count)
		if len(e.data) <= 4 {
			copy(buf[pos+8:pos+12], e.data)
		} else {
			o.PutUint32(buf[pos+8:], ext)
			copy(buf[ext:], e.data)
			ext += uint32(len(e.data)+1) &^ 1
		}
		pos += 12
	}
	o.PutUint32(buf[pos:], 0)
}
