package decoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wippyai/rawbridge/errors"
)

const cfaName = "cfa"

const (
	// CFAMagic is the little-endian header ID, " AFC" on disk.
	CFAMagic = 1128677664
	// CFAHeaderSize is the fixed header length preceding the samples.
	CFAHeaderSize = 128
)

// cfaPhases maps the header's Bayer phase to a pattern name.
var cfaPhases = [...]string{"GBRG", "BGGR", "RGGB", "GRBG"}

// CFAFormat returns the format entry for the headered 16-bit Bayer container.
func CFAFormat() Format {
	return Format{
		Name: cfaName,
		Match: func(sig []byte) bool {
			return len(sig) >= 4 && binary.LittleEndian.Uint32(sig) == CFAMagic
		},
		Open: openCFA,
	}
}

type cfaHeader struct {
	version     uint32
	blockWidth  uint32
	blockHeight uint32
	phase       uint8
	precision   uint8
}

type cfaDecoder struct {
	header cfaHeader
}

func openCFA(src *Source) (Decoder, error) {
	data := src.Bytes()
	if len(data) < CFAHeaderSize {
		return nil, fmt.Errorf("cfa: header needs %d bytes, have %d", CFAHeaderSize, len(data))
	}
	return &cfaDecoder{header: cfaHeader{
		version:     binary.LittleEndian.Uint32(data[4:8]),
		blockWidth:  binary.LittleEndian.Uint32(data[8:12]),
		blockHeight: binary.LittleEndian.Uint32(data[12:16]),
		phase:       data[16],
		precision:   data[17],
	}}, nil
}

func (d *cfaDecoder) Format() string {
	return cfaName
}

func (d *cfaDecoder) RawImage(src *Source, params Params) (*RawImage, error) {
	if params.ImageIndex != 0 {
		return nil, errors.New(errors.PhaseDecode, errors.KindNotFound).
			Format(cfaName).
			Detail("image index %d out of range (1 raw image)", params.ImageIndex).
			Build()
	}

	h := d.header
	if int(h.phase) >= len(cfaPhases) {
		return nil, errors.InvalidEnum(errors.PhaseDecode, []string{"phase"}, h.phase, "bayer phase")
	}

	precision := int(h.precision)
	if precision == 0 {
		precision = 16
	}
	if precision > 16 {
		return nil, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("%d-bit precision", precision))
	}

	if h.blockWidth == 0 || h.blockHeight == 0 {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path("dimensions").
			Format(cfaName).
			Detail("empty %dx%d block grid", h.blockWidth, h.blockHeight).
			Build()
	}
	width := 2 * uint64(h.blockWidth)
	height := 2 * uint64(h.blockHeight)
	payload := src.Bytes()[CFAHeaderSize:]
	size, ok := SampleCount(width, height, 2)
	if !ok || size != uint64(len(payload)) {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Format(cfaName).
			Detail("file size does not match %dx%d 16-bit samples (got %d bytes)", width, height, len(payload)).
			Build()
	}
	count := size / 2

	samples := make(IntegerSamples, count)
	for i := range samples {
		samples[i] = binary.LittleEndian.Uint16(payload[i*2:])
	}

	nan := float32(math.NaN())
	return &RawImage{
		Camera: Camera{
			CFA: CFA{Name: cfaPhases[h.phase], Width: 2, Height: 2},
		},
		Data:        samples,
		ColorMatrix: map[Illuminant][]float32{},
		BlackLevel:  Levels{Values: []float32{0}},
		WhiteLevel:  Levels{Values: []float32{float32(uint32(1)<<precision - 1)}},
		WBCoeffs:    [4]float32{nan, nan, nan, nan},
		Width:       int(width),
		Height:      int(height),
		CPP:         1,
		BPS:         precision,
	}, nil
}

// RawMetadata always fails: the container has no metadata block.
func (d *cfaDecoder) RawMetadata(src *Source, params Params) (*Metadata, error) {
	return nil, ErrNoMetadata
}
