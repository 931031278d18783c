package usb

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/gousb"

	"github.com/moffa90/go-ch55x/protocol"
)

// ErrNoDevice is returned by Open when no bootloader is attached.
var ErrNoDevice = errors.New("no device found")

// Channel owns the USB handle of a CH55x bootloader. Each Write is one bulk
// OUT transfer and each Read one bulk IN transfer, both bounded by the
// configured timeout.
//
// Channel implements io.ReadWriteCloser and is not safe for concurrent use.
type Channel struct {
	config Config

	ctx  *gousb.Context
	dev  *gousb.Device
	done func() // releases the claimed interface

	out *gousb.OutEndpoint
	in  *gousb.InEndpoint
}

// Open binds to the first device matching the configured VID/PID and claims
// its default interface. The caller must Close the channel on every path.
//
// Example:
//
//	ch, err := usb.Open()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
func Open(opts ...Option) (*Channel, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Channel{config: cfg}
	c.ctx = gousb.NewContext()

	var err error
	c.dev, err = c.ctx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if c.dev == nil && err == nil {
		c.Close()
		return nil, fmt.Errorf("%w (VID:0x%04X PID:0x%04X)", ErrNoDevice, cfg.VendorID, cfg.ProductID)
	}
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening device: %w", err)
	}
	glog.V(1).Infof("opened USB device %04x:%04x", cfg.VendorID, cfg.ProductID)

	if err := c.dev.SetAutoDetach(true); err != nil {
		// Not supported on every platform.
		glog.V(1).Infof("auto-detach unavailable: %v", err)
	}

	// The bootloader exposes a single interface, #0 alt #0.
	intf, done, err := c.dev.DefaultInterface()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("claiming interface: %w", err)
	}
	c.done = done

	c.out, err = intf.OutEndpoint(endpointNumber(protocol.EndpointOut))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening OUT endpoint 0x%02X: %w", protocol.EndpointOut, err)
	}

	c.in, err = intf.InEndpoint(endpointNumber(protocol.EndpointIn))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening IN endpoint 0x%02X: %w", protocol.EndpointIn, err)
	}

	return c, nil
}

// Close releases the interface, the device handle and the libusb context.
// It is safe to call more than once.
func (c *Channel) Close() error {
	glog.V(1).Infof("closing USB device")
	if c.done != nil {
		c.done()
		c.done = nil
	}
	c.out, c.in = nil, nil

	var err error
	if c.dev != nil {
		err = c.dev.Close()
		c.dev = nil
	}
	if c.ctx != nil {
		if cerr := c.ctx.Close(); cerr != nil && err == nil {
			err = cerr
		}
		c.ctx = nil
	}
	return err
}

// Write performs one bulk OUT transfer of p.
func (c *Channel) Write(p []byte) (int, error) {
	if c.out == nil {
		return 0, errors.New("usb channel is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	n, err := c.out.WriteContext(ctx, p)
	if glog.V(2) {
		glog.Infof("[usb-bulk OUT]: wrote %d/%d bytes:\n%s", n, len(p), hex.Dump(p))
	}
	return n, err
}

// Read performs one bulk IN transfer of up to len(p) bytes.
func (c *Channel) Read(p []byte) (int, error) {
	if c.in == nil {
		return 0, errors.New("usb channel is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	n, err := c.in.ReadContext(ctx, p)
	if glog.V(2) {
		glog.Infof("[usb-bulk IN]: read %d/%d bytes:\n%s", n, len(p), hex.Dump(p[:n]))
	}
	return n, err
}

// endpointNumber strips the direction bit from an endpoint address.
func endpointNumber(addr int) int {
	return addr & 0x0F
}
