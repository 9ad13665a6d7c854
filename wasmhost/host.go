package wasmhost

import (
	"bytes"
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/rawbridge/boundary"
	"github.com/wippyai/rawbridge/errors"
	"github.com/wippyai/rawbridge/ledger"
	"github.com/wippyai/rawbridge/transfer"
)

// Host provides the decode entry points to wasm guests. One Host can serve
// any number of guest instances; each call works on the calling module's
// memory and allocator.
type Host struct {
	ledger     *ledger.Ledger
	tags       sync.Map
	moduleName string
	decodeOpts []boundary.Option
	nextTag    atomic.Uint64
}

// New creates a Host.
func New(opts ...Option) *Host {
	h := &Host{moduleName: DefaultModuleName}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ModuleName returns the import module name guests link against.
func (h *Host) ModuleName() string {
	return h.moduleName
}

// Ledger returns the accounting ledger, or nil.
func (h *Host) Ledger() *ledger.Ledger {
	return h.ledger
}

const i32 = api.ValueTypeI32

// Instantiate registers the host module in rt. It must happen before any
// guest importing it is instantiated.
func (h *Host) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(h.moduleName)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.decodeBuffer), []api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("buffer", "len", "error_out").
		Export("decode_buffer")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.freeImage), []api.ValueType{i32}, nil).
		WithParameterNames("image").
		Export("free_image")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.freeError), []api.ValueType{i32}, nil).
		WithParameterNames("error").
		Export("free_error")

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "instantiate host module "+h.moduleName)
	}
	Logger().Debug("host module instantiated", zap.String("module", h.moduleName))
	return mod, nil
}

func (h *Host) decodeBuffer(ctx context.Context, mod api.Module, stack []uint64) {
	ptr := h.Decode(ctx, mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	stack[0] = api.EncodeU32(ptr)
}

func (h *Host) freeImage(ctx context.Context, mod api.Module, stack []uint64) {
	h.FreeImage(ctx, mod, api.DecodeU32(stack[0]))
}

func (h *Host) freeError(ctx context.Context, mod api.Module, stack []uint64) {
	h.FreeError(ctx, mod, api.DecodeU32(stack[0]))
}

// heaps are the views of one guest's memory used by a call. record,
// samples and text share the base heap and differ only in ledger kind.
type heaps struct {
	mem     guestMemory
	record  transfer.Heap[uint32]
	samples transfer.Heap[uint32]
	text    transfer.Heap[uint32]
}

func (h *Host) heaps(ctx context.Context, mod api.Module) (*heaps, error) {
	mem := wrapMemory(mod.Memory())
	if mem == nil {
		return nil, errors.NotInitialized(errors.PhaseHost, "guest memory")
	}
	hp := &heaps{mem: mem}

	alloc := wrapAllocator(ctx, mod.ExportedFunction("cabi_realloc"))
	if alloc == nil {
		return hp, errors.NotInitialized(errors.PhaseHost, "cabi_realloc")
	}
	base := &guestHeap{mem: mem, alloc: alloc}

	var addr func(uint32) uint64
	if h.ledger != nil {
		addr = h.addr(mod)
	}
	hp.record = transfer.Tracked[uint32](base, h.ledger, ledger.KindRecord, addr)
	hp.samples = transfer.Tracked[uint32](base, h.ledger, ledger.KindSamples, addr)
	hp.text = transfer.Tracked[uint32](base, h.ledger, ledger.KindText, addr)
	return hp, nil
}

// addr keys ledger entries by guest instance as well as address, so one
// ledger can account for many guests. The tag of a guest lives until
// Forget.
func (h *Host) addr(mod api.Module) func(uint32) uint64 {
	v, ok := h.tags.Load(mod)
	if !ok {
		v, _ = h.tags.LoadOrStore(mod, h.nextTag.Add(1))
	}
	tag := v.(uint64)
	return func(p uint32) uint64 { return tag<<32 | uint64(p) }
}

// Forget drops the ledger tag of mod. Call it once the guest is closed;
// a later call from the same module gets a fresh tag. It returns how many
// of the guest's allocations were still live, which are left in the ledger.
func (h *Host) Forget(mod api.Module) int {
	v, ok := h.tags.LoadAndDelete(mod)
	if !ok || h.ledger == nil {
		return 0
	}
	tag := v.(uint64)
	live := 0
	h.ledger.Each(func(e ledger.Entry) bool {
		if e.Addr>>32 == tag {
			live++
		}
		return true
	})
	if live > 0 {
		Logger().Warn("guest forgotten with live allocations",
			zap.String("module", mod.Name()), zap.Int("live", live))
	}
	return live
}

// Decode implements decode_buffer. It returns the guest address of a new
// RawImage, or 0 on failure. On failure a NUL-terminated diagnostic is
// allocated in guest memory and its address stored at errOut; on success
// 0 is stored there. errOut 0 means the guest wants no diagnostic.
//
// A guest without memory or cabi_realloc gets 0 and no diagnostic.
func (h *Host) Decode(ctx context.Context, mod api.Module, buf, length, errOut uint32) uint32 {
	hp, err := h.heaps(ctx, mod)
	if err != nil {
		Logger().Warn("guest cannot receive results",
			zap.String("module", mod.Name()),
			zap.Error(err))
		if hp != nil && errOut != 0 {
			_ = hp.mem.WriteU32(errOut, 0)
		}
		return 0
	}

	var ptr uint32
	err = boundary.Guard(func() error {
		var err error
		ptr, err = h.decode(hp, buf, length)
		return err
	})
	if err != nil {
		h.writeError(hp, errOut, err)
		return 0
	}
	if errOut != 0 {
		if err := hp.mem.WriteU32(errOut, 0); err != nil {
			Logger().Debug("error_out not writable", zap.Uint32("error_out", errOut), zap.Error(err))
		}
	}
	return ptr
}

func (h *Host) decode(hp *heaps, buf, length uint32) (uint32, error) {
	var input []byte
	if buf != 0 && length != 0 {
		var err error
		// The view stays valid: decoding completes before the first guest allocation.
		input, err = hp.mem.Read(buf, length)
		if err != nil {
			return 0, errors.Wrap(errors.PhaseInput, errors.KindInvalidInput, err, "input buffer outside guest memory")
		}
	}

	img, err := boundary.Decode(input, h.decodeOpts...)
	if err != nil {
		return 0, err
	}

	l := Layout()
	return boundary.Publish[uint32](img, hp.samples, func(allocs *transfer.Allocations[uint32], d transfer.Descriptor[uint32]) (uint32, error) {
		if d.Len > math.MaxUint32 {
			return 0, errors.Overflow(errors.PhaseTransfer, []string{"data_len"}, d.Len, "u32")
		}
		ptr, err := allocs.AllocOn(hp.record, uint64(l.Size), l.Align)
		if err != nil {
			return 0, err
		}
		b := make([]byte, l.Size)
		encodeImage(b, l, &img.Record, d)
		return ptr, hp.mem.Write(ptr, b)
	})
}

func (h *Host) writeError(hp *heaps, errOut uint32, cause error) {
	if errOut == 0 {
		return
	}
	ptr, err := putText(hp, cause.Error())
	if err != nil {
		Logger().Warn("diagnostic not delivered", zap.NamedError("cause", cause), zap.Error(err))
		ptr = 0
	}
	if err := hp.mem.WriteU32(errOut, ptr); err != nil {
		Logger().Warn("error_out not writable", zap.Uint32("error_out", errOut), zap.Error(err))
		if ptr != 0 {
			_ = hp.text.Free(ptr, uint64(textSize(hp, ptr)), 1)
		}
	}
}

// putText copies s into a fresh NUL-terminated guest buffer. s is cut at
// an embedded NUL.
func putText(hp *heaps, s string) (uint32, error) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	size := uint64(len(s) + 1)

	var ptr uint32
	err := boundary.Guard(func() error {
		var err error
		ptr, err = hp.text.Alloc(size, 1)
		if err != nil {
			return err
		}
		b, err := hp.text.Bytes(ptr, size)
		if err != nil {
			_ = hp.text.Free(ptr, size, 1)
			ptr = 0
			return err
		}
		copy(b, s)
		b[len(s)] = 0
		return nil
	})
	return ptr, err
}

// textSize returns the size of the NUL-terminated buffer at ptr including
// the terminator, or 0 if no terminator is found.
func textSize(hp *heaps, ptr uint32) uint32 {
	size := hp.mem.Size()
	if ptr >= size {
		return 0
	}
	b, err := hp.mem.Read(ptr, size-ptr)
	if err != nil {
		return 0
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return 0
	}
	return uint32(i) + 1
}

// FreeImage implements free_image. ptr must come from Decode on the same
// guest; 0 is a no-op. The data_type tag is read first and decides the
// sample buffer size. An unknown tag leaks the samples but still frees the
// struct.
func (h *Host) FreeImage(ctx context.Context, mod api.Module, ptr uint32) {
	if ptr == 0 {
		return
	}
	hp, err := h.heaps(ctx, mod)
	if err != nil {
		Logger().Warn("free_image: guest not usable", zap.Error(err))
		return
	}

	err = boundary.Guard(func() error {
		l := Layout()
		b, err := hp.mem.Read(ptr, l.Size)
		if err != nil {
			return err
		}
		g := decodeImage(b, l)
		if err := transfer.Reclaim(hp.samples, g.Data); err != nil {
			Logger().Warn("free_image: sample buffer not reclaimed",
				zap.Uint32("image", ptr),
				zap.Error(err))
		}
		return hp.record.Free(ptr, uint64(l.Size), l.Align)
	})
	if err != nil {
		Logger().Warn("free_image failed", zap.Uint32("image", ptr), zap.Error(err))
	}
}

// FreeError implements free_error. ptr must be a diagnostic stored by
// Decode; 0 is a no-op.
func (h *Host) FreeError(ctx context.Context, mod api.Module, ptr uint32) {
	if ptr == 0 {
		return
	}
	hp, err := h.heaps(ctx, mod)
	if err != nil {
		Logger().Warn("free_error: guest not usable", zap.Error(err))
		return
	}

	err = boundary.Guard(func() error {
		n := textSize(hp, ptr)
		if n == 0 {
			return errors.InvalidData(errors.PhaseReclaim, []string{"error"}, "diagnostic is not NUL-terminated")
		}
		return hp.text.Free(ptr, uint64(n), 1)
	})
	if err != nil {
		Logger().Warn("free_error failed", zap.Uint32("error", ptr), zap.Error(err))
	}
}
