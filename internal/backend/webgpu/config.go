package webgpu

// DefaultLeakySlope matches the CPU backend default.
const DefaultLeakySlope = 0.01

// Config holds backend tuning.
type Config struct {
	// LeakySlope is the negative-side slope of LeakySReLU.
	LeakySlope float32
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{LeakySlope: DefaultLeakySlope}
}

func (c Config) withDefaults() Config {
	if c.LeakySlope == 0 {
		c.LeakySlope = DefaultLeakySlope
	}
	return c
}
