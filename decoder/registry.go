package decoder

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrUnknownFormat is returned by Get when no registered format matches the input.
	ErrUnknownFormat = errors.New("unrecognized raw format")
	// ErrNoMetadata is returned by RawMetadata for containers that carry none.
	ErrNoMetadata = errors.New("format carries no metadata")
)

// Decoder decodes one recognized source. Implementations must not retain
// the source after a call returns.
type Decoder interface {
	// Format returns the short name of the detected format.
	Format() string
	// RawImage decodes the primary image.
	RawImage(src *Source, params Params) (*RawImage, error)
	// RawMetadata reads camera metadata. It is independent of RawImage.
	RawMetadata(src *Source, params Params) (*Metadata, error)
}

// Format registers a raw container with the auto-detection registry.
type Format struct {
	Name string
	// Match inspects the leading bytes of the input.
	Match func(sig []byte) bool
	// Open parses enough of the source to return a Decoder for it.
	Open func(src *Source) (Decoder, error)
}

// Registry holds formats in detection order.
type Registry struct {
	formats []Format
	mu      sync.RWMutex
}

// NewRegistry creates a registry with the given formats.
func NewRegistry(formats ...Format) *Registry {
	return &Registry{formats: append([]Format(nil), formats...)}
}

// Register appends a format. Formats are tried in registration order.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = append(r.formats, f)
}

// Formats returns the registered format names.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.formats))
	for i, f := range r.formats {
		names[i] = f.Name
	}
	return names
}

// Get returns a decoder for the first format whose signature matches.
func (r *Registry) Get(src *Source) (Decoder, error) {
	r.mu.RLock()
	formats := r.formats
	r.mu.RUnlock()

	sig := src.Signature()
	for _, f := range formats {
		if f.Match == nil || !f.Match(sig) {
			continue
		}
		return f.Open(src)
	}
	names := r.Formats()
	if len(names) == 0 {
		return nil, ErrUnknownFormat
	}
	return nil, fmt.Errorf("%w (tried %s)", ErrUnknownFormat, strings.Join(names, ", "))
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the registry of built-in formats.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(DNGFormat(), CFAFormat())
	})
	return defaultRegistry
}
