package boundary

import (
	"github.com/wippyai/rawbridge/decoder"
)

// Option configures a decode.
type Option func(*config)

type config struct {
	registry   *decoder.Registry
	params     decoder.Params
	illuminant decoder.Illuminant
}

func newConfig(opts []Option) config {
	cfg := config{
		registry:   decoder.Default(),
		illuminant: decoder.D65,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithRegistry sets the formats used for auto-detection.
func WithRegistry(r *decoder.Registry) Option {
	return func(c *config) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithParams sets the decoder parameters.
func WithParams(p decoder.Params) Option {
	return func(c *config) {
		c.params = p
	}
}

// WithIlluminant selects the reference illuminant of the color matrix.
// The default is D65.
func WithIlluminant(i decoder.Illuminant) Option {
	return func(c *config) {
		c.illuminant = i
	}
}
