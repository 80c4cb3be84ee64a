// Package vconfig loads the module-wide tunables spec.md leaves as fixed
// constants (buffer sizes, backlog, reaper delay, queue depths) from a
// github.com/spf13/viper source, following the teacher's own
// config/components pattern of "SetDefault, then UnmarshalKey into a plain
// Options struct" rather than reading raw viper getters scattered through
// the codebase.
package vconfig

import (
	"time"

	"github.com/spf13/viper"

	"github.com/sabouaram/vsock/errcode"
)

// Key is the top-level viper key this package's config is nested under,
// mirroring the teacher's convention of one key per component.
const Key = "vsock"

// Options holds every tunable a Family needs at construction time. Zero
// values are filled in by Default() before binding to viper, so a caller
// that never touches configuration still gets the same bounds
// vsocket.InitDefaultBounds hardcodes.
type Options struct {
	BufferMinSize uint64        `mapstructure:"bufferMinSize"`
	BufferSize    uint64        `mapstructure:"bufferSize"`
	BufferMaxSize uint64        `mapstructure:"bufferMaxSize"`
	Backlog       uint32        `mapstructure:"backlog"`
	ReaperDelay   time.Duration `mapstructure:"reaperDelay"`
	WorkQueueDepth int          `mapstructure:"workQueueDepth"`
}

// Default returns the same bounds the rest of the module falls back to
// when no configuration is loaded at all.
func Default() Options {
	return Options{
		BufferMinSize:  128,
		BufferSize:     256 * 1024,
		BufferMaxSize:  256 * 1024 * 1024,
		Backlog:        128,
		ReaperDelay:    time.Second,
		WorkQueueDepth: 256,
	}
}

// Validate enforces invariant 5 (min <= default <= max) on the loaded
// configuration, the same rule vsocket.SetBufferSize/Min/Max enforce at
// runtime, so a bad config file fails at load time.
func (o Options) Validate() error {
	if o.BufferMinSize > o.BufferSize || o.BufferSize > o.BufferMaxSize {
		return errcode.EInval.Unix()
	}
	if o.Backlog == 0 {
		return errcode.EInval.Unix()
	}
	return nil
}

// Load reads Key out of v, falling back to Default() for any field left
// unset, and validates the result.
func Load(v *viper.Viper) (Options, error) {
	def := Default()

	v.SetDefault(Key+".bufferMinSize", def.BufferMinSize)
	v.SetDefault(Key+".bufferSize", def.BufferSize)
	v.SetDefault(Key+".bufferMaxSize", def.BufferMaxSize)
	v.SetDefault(Key+".backlog", def.Backlog)
	v.SetDefault(Key+".reaperDelay", def.ReaperDelay)
	v.SetDefault(Key+".workQueueDepth", def.WorkQueueDepth)

	var opt Options
	if err := v.UnmarshalKey(Key, &opt); err != nil {
		return Options{}, errcode.Wrap(err, "vconfig: unmarshal")
	}
	if err := opt.Validate(); err != nil {
		return Options{}, err
	}
	return opt, nil
}
