package boundary

import (
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/rawbridge/decoder"
	"github.com/wippyai/rawbridge/errors"
	"github.com/wippyai/rawbridge/transfer"
)

// Guard runs fn and converts a panic into an internal fault. Every entry
// point runs its work inside it.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("recovered panic at boundary",
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = errors.InternalFault(r)
		}
	}()
	return fn()
}

// Decode runs detection, the primary decode and the record build.
// An empty input fails before any decoder runs. A lookup failure is a
// no_decoder_found error, a primary decode failure a decode_failed error,
// and a panic anywhere in the sequence an internal_fault. Metadata is
// best effort: its failure leaves Record.Metadata zero.
func Decode(data []byte, opts ...Option) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.EmptyInput()
	}
	cfg := newConfig(opts)

	var img *Image
	err := Guard(func() error {
		var err error
		img, err = decode(data, cfg)
		return err
	})
	if err != nil {
		Logger().Debug("decode failed", zap.Int("size", len(data)), zap.Error(err))
		return nil, err
	}
	return img, nil
}

func decode(data []byte, cfg config) (*Image, error) {
	src := decoder.NewSource(data)

	dec, err := cfg.registry.Get(src)
	if err != nil {
		return nil, errors.NoDecoder(err)
	}
	format := dec.Format()
	Logger().Debug("decoding", zap.String("format", format), zap.Int("size", len(data)))

	raw, err := dec.RawImage(src, cfg.params)
	if err != nil {
		return nil, errors.DecodeFailed(format, err)
	}
	if raw == nil || raw.Data == nil {
		return nil, errors.DecodeFailed(format,
			errors.InvalidData(errors.PhaseDecode, []string{"data"}, "decoder returned no samples"))
	}

	meta := fetchMetadata(dec, src, cfg.params)
	if meta.err != nil {
		Logger().Debug("metadata unavailable, using zero metadata",
			zap.String("format", format),
			zap.Error(meta.err))
		meta.md = nil
	}

	if raw.Width <= 0 || raw.Height <= 0 || raw.CPP <= 0 ||
		uint64(raw.Width) > math.MaxUint32 || uint64(raw.Height) > math.MaxUint32 || uint64(raw.CPP) > math.MaxUint32 {
		return nil, errors.DecodeFailed(format,
			errors.New(errors.PhaseBuild, errors.KindInvalidData).
				Path("dimensions").
				Detail("%dx%dx%d is not a uint32 image shape", raw.Width, raw.Height, raw.CPP).
				Build())
	}

	rec := Build(raw, meta.md, cfg.illuminant)
	want, ok := rec.Elements()
	if n := uint64(raw.Data.Len()); !ok || n != want {
		return nil, errors.DecodeFailed(format,
			errors.New(errors.PhaseBuild, errors.KindInvalidData).
				Path("data").
				Detail("sample count %d does not match %dx%dx%d", n, rec.Width, rec.Height, rec.CPP).
				Build())
	}

	Logger().Debug("decoded",
		zap.String("format", format),
		zap.Uint32("width", rec.Width),
		zap.Uint32("height", rec.Height),
		zap.Uint32("cpp", rec.CPP))
	return &Image{Record: rec, Samples: raw.Data, Format: format}, nil
}

// Publish moves img onto a foreign heap. The samples are transferred to
// heap and write then allocates and fills the foreign struct, recording its
// own blocks in allocs. The whole step runs inside Guard; on any failure
// every block is rolled back and nothing is published.
func Publish[P comparable](img *Image, heap transfer.Heap[P], write func(allocs *transfer.Allocations[P], desc transfer.Descriptor[P]) (P, error)) (P, error) {
	allocs := transfer.NewAllocations(heap)

	var ptr P
	err := Guard(func() error {
		desc, err := transfer.Transfer(heap, img.Samples, allocs)
		if err != nil {
			return err
		}
		ptr, err = write(allocs, desc)
		return err
	})
	if err != nil {
		n := allocs.Count()
		if rbErr := allocs.Rollback(); rbErr != nil {
			Logger().Warn("rollback failed", zap.Int("blocks", n), zap.Error(rbErr))
			err = multierr.Append(err, rbErr)
		} else {
			Logger().Debug("rolled back partial result", zap.Int("blocks", n))
		}
		var null P
		return null, err
	}
	allocs.Commit()
	return ptr, nil
}
