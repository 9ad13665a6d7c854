package wasmhost

import (
	"github.com/wippyai/rawbridge/boundary"
	"github.com/wippyai/rawbridge/ledger"
)

// DefaultModuleName is the import module guests link against.
const DefaultModuleName = "rawbridge"

// Option configures a Host.
type Option func(*Host)

// WithModuleName changes the import module name.
func WithModuleName(name string) Option {
	return func(h *Host) {
		if name != "" {
			h.moduleName = name
		}
	}
}

// WithLedger records every guest allocation the host makes in l and
// releases it when the guest frees the result. Entries are keyed by a
// per-guest tag that the Host keeps until Forget is called for the guest.
func WithLedger(l *ledger.Ledger) Option {
	return func(h *Host) {
		h.ledger = l
	}
}

// WithDecodeOptions passes opts to every boundary.Decode call.
func WithDecodeOptions(opts ...boundary.Option) Option {
	return func(h *Host) {
		h.decodeOpts = append(h.decodeOpts, opts...)
	}
}
