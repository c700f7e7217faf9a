// Package config provides configuration loading and validation for the
// steering pipeline.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"penwheel/internal/steering"
	"penwheel/internal/wheel"
)

// Source selects the input source variant.
type Source string

// Sink selects the output sink variant.
type Sink string

const (
	SourceDummy  Source = "dummy"
	SourceNet    Source = "net"
	SourceEvdev  Source = "evdev"
	SourceWintab Source = "wintab"

	SinkDummy  Sink = "dummy"
	SinkUInput Sink = "uinput"
	SinkViGEm  Sink = "vigem"
)

// Config is the full application configuration. It is immutable for the
// lifetime of a session; reconfiguration builds a new value, validates
// it and swaps it in whole.
type Config struct {
	// LogLevel is the zerolog level name (trace/debug/info/warn/error).
	LogLevel string `mapstructure:"logLevel"`

	// UpdateFrequency is the physics tick rate in Hz.
	UpdateFrequency int `mapstructure:"updateFrequency"`

	// SinkFrequency is the sink output rate in Hz, for devices that
	// want fewer writes than physics ticks. Zero means sinks run at
	// the physics tick rate.
	SinkFrequency int `mapstructure:"sinkFrequency"`

	// Source selects the input source variant.
	Source Source `mapstructure:"source"`

	// Sink selects the output sink variant.
	Sink Sink `mapstructure:"sink"`

	// NetAddr is the UDP listen address for the net source.
	NetAddr string `mapstructure:"netAddr"`

	// PreferredTablet matches an evdev device by name, if set.
	PreferredTablet string `mapstructure:"preferredTablet"`

	// Wheel holds the physics model coefficients.
	Wheel wheel.Params `mapstructure:"wheel"`

	// Steering holds the pen-to-angle mapping parameters.
	Steering SteeringConfig `mapstructure:"steering"`

	// Device describes the virtual controller presented to the OS.
	Device DeviceConfig `mapstructure:"device"`

	// API configures the read-only observer endpoint.
	API APIConfig `mapstructure:"api"`
}

// SteeringConfig holds the pen-to-angle mapping parameters.
type SteeringConfig struct {
	// HornRadius is the circular horn deadzone radius (normalized).
	HornRadius float64 `mapstructure:"hornRadius"`

	// PressureThreshold is the minimum pressure counted as contact.
	PressureThreshold uint32 `mapstructure:"pressureThreshold"`

	// BaseRadius is the distance under which angular deltas are scaled
	// down.
	BaseRadius float64 `mapstructure:"baseRadius"`

	// Area maps the usable surface rectangle; identity by default.
	Area AreaConfig `mapstructure:"area"`
}

// AreaConfig is the serializable form of steering.Mapping.
type AreaConfig struct {
	MinInX  float32 `mapstructure:"minInX"`
	MinInY  float32 `mapstructure:"minInY"`
	MaxInX  float32 `mapstructure:"maxInX"`
	MaxInY  float32 `mapstructure:"maxInY"`
	MinOutX float32 `mapstructure:"minOutX"`
	MinOutY float32 `mapstructure:"minOutY"`
	MaxOutX float32 `mapstructure:"maxOutX"`
	MaxOutY float32 `mapstructure:"maxOutY"`

	// Orientation rotates the surface in 90 degree steps (0-3).
	Orientation int `mapstructure:"orientation"`

	InvertX bool `mapstructure:"invertX"`
	InvertY bool `mapstructure:"invertY"`
}

// DeviceConfig describes the virtual controller device.
type DeviceConfig struct {
	// Name is the device name presented to the OS.
	Name string `mapstructure:"name"`

	// Vendor, Product and Version form the USB identity. The defaults
	// imitate a Logitech G29 so games recognize the device as a wheel.
	Vendor  uint16 `mapstructure:"vendor"`
	Product uint16 `mapstructure:"product"`
	Version uint16 `mapstructure:"version"`

	// Resolution is the absolute axis extent either side of center.
	Resolution uint32 `mapstructure:"resolution"`
}

// APIConfig configures the observer HTTP/WebSocket server.
type APIConfig struct {
	// Enabled starts the observer server when true.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP listen port.
	Port int `mapstructure:"port"`
}

// ErrInvalid wraps all configuration validation failures.
var ErrInvalid = errors.New("config: invalid")

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		UpdateFrequency: 125,
		Source:          SourceDummy,
		Sink:            SinkDummy,
		NetAddr:         "127.0.0.1:16027",
		Wheel:           wheel.DefaultParams(),
		Steering: SteeringConfig{
			HornRadius:        0.3,
			PressureThreshold: 10,
			BaseRadius:        0.6,
			Area: AreaConfig{
				MinInX: -1, MinInY: -1, MaxInX: 1, MaxInY: 1,
				MinOutX: -1, MinOutY: -1, MaxOutX: 1, MaxOutY: 1,
			},
		},
		Device: DeviceConfig{
			Name:       "G29 Driving Force Racing Wheel [PS3]",
			Vendor:     0x046D,
			Product:    0xC24F,
			Version:    0x0003,
			Resolution: 32768,
		},
		API: APIConfig{
			Enabled: false,
			Port:    8980,
		},
	}
}

// Load reads configuration from an optional JSON file on top of the
// defaults and validates the result. An empty path loads pure defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("updateFrequency", d.UpdateFrequency)
	v.SetDefault("sinkFrequency", d.SinkFrequency)
	v.SetDefault("source", string(d.Source))
	v.SetDefault("sink", string(d.Sink))
	v.SetDefault("netAddr", d.NetAddr)
	v.SetDefault("preferredTablet", "")

	v.SetDefault("wheel.rangeDegrees", d.Wheel.RangeDegrees)
	v.SetDefault("wheel.inertia", d.Wheel.Inertia)
	v.SetDefault("wheel.friction", d.Wheel.Friction)
	v.SetDefault("wheel.frictionCap", d.Wheel.FrictionCap)
	v.SetDefault("wheel.centerStiffness", d.Wheel.CenterStiffness)
	v.SetDefault("wheel.centerDamping", d.Wheel.CenterDamping)
	v.SetDefault("wheel.targetStiffness", d.Wheel.TargetStiffness)
	v.SetDefault("wheel.targetDamping", d.Wheel.TargetDamping)
	v.SetDefault("wheel.maxTorque", d.Wheel.MaxTorque)

	v.SetDefault("steering.hornRadius", d.Steering.HornRadius)
	v.SetDefault("steering.pressureThreshold", d.Steering.PressureThreshold)
	v.SetDefault("steering.baseRadius", d.Steering.BaseRadius)
	v.SetDefault("steering.area.minInX", d.Steering.Area.MinInX)
	v.SetDefault("steering.area.minInY", d.Steering.Area.MinInY)
	v.SetDefault("steering.area.maxInX", d.Steering.Area.MaxInX)
	v.SetDefault("steering.area.maxInY", d.Steering.Area.MaxInY)
	v.SetDefault("steering.area.minOutX", d.Steering.Area.MinOutX)
	v.SetDefault("steering.area.minOutY", d.Steering.Area.MinOutY)
	v.SetDefault("steering.area.maxOutX", d.Steering.Area.MaxOutX)
	v.SetDefault("steering.area.maxOutY", d.Steering.Area.MaxOutY)
	v.SetDefault("steering.area.orientation", 0)
	v.SetDefault("steering.area.invertX", false)
	v.SetDefault("steering.area.invertY", false)

	v.SetDefault("device.name", d.Device.Name)
	v.SetDefault("device.vendor", d.Device.Vendor)
	v.SetDefault("device.product", d.Device.Product)
	v.SetDefault("device.version", d.Device.Version)
	v.SetDefault("device.resolution", d.Device.Resolution)

	v.SetDefault("api.enabled", d.API.Enabled)
	v.SetDefault("api.port", d.API.Port)
}

// Validate fails fast on configuration that would break the pipeline.
// Nothing is ever silently substituted.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceDummy, SourceNet, SourceEvdev, SourceWintab:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalid, c.Source)
	}

	switch c.Sink {
	case SinkDummy, SinkUInput, SinkViGEm:
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrInvalid, c.Sink)
	}

	if c.UpdateFrequency <= 0 {
		return fmt.Errorf("%w: update frequency must be positive, got %d", ErrInvalid, c.UpdateFrequency)
	}

	if c.SinkFrequency < 0 {
		return fmt.Errorf("%w: sink frequency must not be negative, got %d", ErrInvalid, c.SinkFrequency)
	}

	if c.Source == SourceNet && strings.TrimSpace(c.NetAddr) == "" {
		return fmt.Errorf("%w: net source requires a listen address", ErrInvalid)
	}

	if err := c.Wheel.Validate(); err != nil {
		return err
	}

	if c.Steering.HornRadius < 0 {
		return fmt.Errorf("%w: horn radius must not be negative", ErrInvalid)
	}
	if c.Steering.BaseRadius < 0 {
		return fmt.Errorf("%w: base radius must not be negative", ErrInvalid)
	}
	if c.Steering.Area.Orientation < 0 || c.Steering.Area.Orientation > 3 {
		return fmt.Errorf("%w: orientation must be 0-3, got %d", ErrInvalid, c.Steering.Area.Orientation)
	}

	if c.Device.Resolution == 0 || c.Device.Resolution > 65535 {
		return fmt.Errorf("%w: device resolution must be 1-65535, got %d", ErrInvalid, c.Device.Resolution)
	}

	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("%w: api port must be 1-65535, got %d", ErrInvalid, c.API.Port)
	}

	return nil
}

// MapperParams converts the steering section into mapper parameters.
func (c *Config) MapperParams() steering.Params {
	a := c.Steering.Area
	return steering.Params{
		RangeDegrees:      c.Wheel.RangeDegrees,
		HornRadius:        c.Steering.HornRadius,
		PressureThreshold: c.Steering.PressureThreshold,
		BaseRadius:        c.Steering.BaseRadius,
		Mapping: steering.Mapping{
			MinInX: a.MinInX, MinInY: a.MinInY,
			MaxInX: a.MaxInX, MaxInY: a.MaxInY,
			MinOutX: a.MinOutX, MinOutY: a.MinOutY,
			MaxOutX: a.MaxOutX, MaxOutY: a.MaxOutY,
			Orientation: steering.Orientation(a.Orientation),
			InvertX:     a.InvertX,
			InvertY:     a.InvertY,
		},
	}
}
