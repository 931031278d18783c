package usb

import (
	"time"

	"github.com/moffa90/go-ch55x/protocol"
)

// Config holds the channel configuration.
type Config struct {
	// VendorID and ProductID select the device to open
	VendorID  uint16
	ProductID uint16

	// Timeout bounds every single bulk transfer
	Timeout time.Duration
}

func defaultConfig() Config {
	return Config{
		VendorID:  protocol.VendorID,
		ProductID: protocol.ProductID,
		Timeout:   protocol.TransferTimeout,
	}
}

// Option is a functional option for configuring the Channel.
type Option func(*Config)

// WithTimeout sets the per-transfer timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithVIDPID overrides the USB vendor and product IDs.
func WithVIDPID(vid, pid uint16) Option {
	return func(c *Config) {
		c.VendorID = vid
		c.ProductID = pid
	}
}
