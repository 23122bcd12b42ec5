package host

import (
	"fmt"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/pan"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
)

// Config holds the settings of one System.
type Config struct {
	SampleRate int
	// BlockSize is the largest block Process accepts.
	BlockSize  int
	MixerMode  bus.SpeakerMode
	OutputMode bus.SpeakerMode

	// MemoryBudget caps outstanding bytes per memory category across the
	// system. Categories without an entry are unbounded.
	MemoryBudget map[abi.MemoryType]int64

	Logger *debug.Logger
	// LogQueue bounds the messages plugins may have in flight before Log
	// starts dropping.
	LogQueue int

	// RolloffCurve backs pan.RolloffCustom.
	RolloffCurve pan.Curve

	// Metering measures input and output levels of every instance.
	Metering bool

	// FFTSizes are planned when an instance is created so the first
	// transform of those sizes does not allocate on the processing thread.
	FFTSizes []int
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns settings for a stereo 48 kHz system.
func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		BlockSize:  1024,
		MixerMode:  bus.SpeakerModeStereo,
		OutputMode: bus.SpeakerModeStereo,
		LogQueue:   256,
	}
}

// WithSampleRate sets the mixer sample rate.
func WithSampleRate(rate int) Option {
	return func(c *Config) {
		if rate > 0 {
			c.SampleRate = rate
		}
	}
}

// WithBlockSize sets the largest processing block.
func WithBlockSize(frames int) Option {
	return func(c *Config) {
		if frames > 0 {
			c.BlockSize = frames
		}
	}
}

// WithSpeakerModes sets the mixer and output layouts.
func WithSpeakerModes(mixer, output bus.SpeakerMode) Option {
	return func(c *Config) {
		c.MixerMode = mixer
		c.OutputMode = output
	}
}

// WithMemoryBudget caps outstanding allocations of one category.
func WithMemoryBudget(kind abi.MemoryType, bytes int64) Option {
	return func(c *Config) {
		if c.MemoryBudget == nil {
			c.MemoryBudget = make(map[abi.MemoryType]int64)
		}
		c.MemoryBudget[kind] = bytes
	}
}

// WithLogger sets where host and plugin messages go.
func WithLogger(l *debug.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithLogQueue sets the plugin log queue length.
func WithLogQueue(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.LogQueue = n
		}
	}
}

// WithCustomRolloff sets the curve used by the custom rolloff model.
func WithCustomRolloff(curve pan.Curve) Option {
	return func(c *Config) {
		c.RolloffCurve = append(pan.Curve(nil), curve...)
	}
}

// WithMetering turns level metering on for every instance.
func WithMetering(on bool) Option {
	return func(c *Config) {
		c.Metering = on
	}
}

// WithFFTSizes pre-plans transforms of the given sizes.
func WithFFTSizes(sizes ...int) Option {
	return func(c *Config) {
		c.FFTSizes = append(c.FFTSizes, sizes...)
	}
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate %d: %w", c.SampleRate, abi.ErrInvalidParam)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block size %d: %w", c.BlockSize, abi.ErrInvalidParam)
	}
	if !c.MixerMode.Fixed() {
		return fmt.Errorf("mixer speaker mode %s has no layout: %w", c.MixerMode, abi.ErrInvalidParam)
	}
	if !c.OutputMode.Fixed() {
		return fmt.Errorf("output speaker mode %s has no layout: %w", c.OutputMode, abi.ErrInvalidParam)
	}
	for kind, bytes := range c.MemoryBudget {
		if bytes < 0 {
			return fmt.Errorf("%s budget %d: %w", kind, bytes, abi.ErrInvalidParam)
		}
	}
	if len(c.RolloffCurve) > 0 {
		if err := c.RolloffCurve.Validate(); err != nil {
			return err
		}
	}
	for _, n := range c.FFTSizes {
		if err := checkFFTSize(n); err != nil {
			return err
		}
	}
	return nil
}

func applyOptions(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = debug.Default()
	}
	return cfg
}
