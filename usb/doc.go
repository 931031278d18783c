// Package usb provides the bulk transport to a CH55x ISP bootloader using
// libusb through github.com/google/gousb.
//
// The channel binds to VID 0x4348 / PID 0x55E0, claims interface 0 and
// exchanges data on endpoints 0x02 (OUT) and 0x82 (IN), with a 2000 ms
// timeout on every transfer. Transfers are traced with glog at -v=2.
package usb
