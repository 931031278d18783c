package bootloader

// Config holds the session configuration.
type Config struct {
	// ProgressCallback is called during flashing to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Restart resets the MCU into the new firmware at the end of Program
	Restart bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Restart: true,
	}
}

// Option is a functional option for configuring the Session.
type Option func(*Config)

// WithProgressCallback sets a callback function to track flashing progress.
//
// Example:
//
//	s := bootloader.New(device,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the session operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRestart controls whether Program resets the MCU after a successful
// write. Default is true.
func WithRestart(restart bool) Option {
	return func(c *Config) {
		c.Restart = restart
	}
}
