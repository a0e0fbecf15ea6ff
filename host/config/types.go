package config

import "time"

const (
	DefaultSampleInterval = 10 * time.Millisecond
	DefaultClockFreq      = 1000000
	DefaultBaud           = 250000
	DefaultReadTimeout    = 100 * time.Millisecond
)

// SerialConfig selects the port the firmware is attached to
type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud" validate:"gte=0"`
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`
}

// EncoderConfig describes one encoder object on the firmware
type EncoderConfig struct {
	Name    string `yaml:"name" validate:"required"`
	OID     int    `yaml:"oid" validate:"gte=0,lte=255"`
	Counter int    `yaml:"counter" validate:"gte=0,lt=8"`
	// Counter modulus; 0 uses the firmware's registered period
	Period         uint32        `yaml:"period"`
	SampleInterval time.Duration `yaml:"sample_interval" validate:"gte=0"`
	ClockFreq      uint32        `yaml:"clock_freq"`
}

// RestTicks converts the sample interval to firmware clock ticks
func (e EncoderConfig) RestTicks() uint32 {
	return uint32(uint64(e.SampleInterval) * uint64(e.ClockFreq) / uint64(time.Second))
}

// Config is the root of the host tool's YAML file
type Config struct {
	Serial   SerialConfig    `yaml:"serial"`
	Encoders []EncoderConfig `yaml:"encoders" validate:"dive"`
}

// Encoder finds an encoder by name
func (c *Config) Encoder(name string) (EncoderConfig, bool) {
	for _, e := range c.Encoders {
		if e.Name == name {
			return e, true
		}
	}
	return EncoderConfig{}, false
}
