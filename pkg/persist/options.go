package persist

import (
	"log/slog"

	"github.com/vango-dev/localstate/pkg/codec"
)

// Option configures a Binding.
type Option func(*config)

type config struct {
	sync     bool
	codec    codec.Codec
	logger   *slog.Logger
	registry *Registry
	observer Observer
}

// Sync enables adopting changes announced by the store, such as writes
// from other tabs. Disabled by default.
func Sync() Option {
	return func(c *config) {
		c.sync = true
	}
}

// WithSync sets cross-tab sync explicitly.
func WithSync(enabled bool) Option {
	return func(c *config) {
		c.sync = enabled
	}
}

// WithCodec sets the serialization format. Default: codec.JSON.
func WithCodec(cd codec.Codec) Option {
	return func(c *config) {
		c.codec = cd
	}
}

// WithLogger sets the logger for storage warnings. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithRegistry sets the key registry, overriding any registry provided on
// the scope.
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithObserver reports every store operation to o.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

func applyOptions(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.codec == nil {
		c.codec = codec.JSON
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	return c
}
