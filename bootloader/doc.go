// Package bootloader programs WCH CH55x microcontrollers through their
// factory USB ISP bootloader.
//
// # Overview
//
// A Session walks the bootloader through the flashing sequence:
//   - Detecting the chip and its flash size
//   - Reading the bootloader version and deriving the checksum key
//   - Exchanging the key in the variant the version requires
//   - Erasing, writing and verifying flash in 56-byte packets
//   - Ending programming and resetting into the new firmware
//
// # Basic Usage
//
//	ch, err := usb.Open()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//
//	img, err := firmware.Load("firmware.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s := bootloader.New(ch)
//	if err := s.Program(context.Background(), img.Data); err != nil {
//	    log.Fatal(err)
//	}
//
// # Step by Step
//
// Each phase is also available on its own. Calling one out of order returns
// a StateError without touching the device:
//
//	info, err := s.Identify(ctx)
//	// ...
//	err = s.Erase(ctx)
//	err = s.Write(ctx, bytes.NewReader(img.Data))
//	err = s.Verify(ctx, bytes.NewReader(img.Data))
//	err = s.End(ctx)
//	err = s.Restart(ctx)
//
// # Error Handling
//
// The package provides structured error types:
//   - TransportError: a USB transfer failed or moved fewer bytes than expected
//   - ChipNotFoundError: the chip ID is not in the catalog
//   - protocol.UnsupportedVersionError: the bootloader version is unknown
//   - protocol.ProtocolError: key exchange, erase or end was not acknowledged
//   - StateError: an operation was called out of sequence
//   - ImageTooLargeError: the image does not fit the chip flash
//
// Unacknowledged write and verify packets are reported through Logger.Warn
// and do not fail the run.
//
// # Hardware Independence
//
// Session only needs an io.ReadWriter where one Write is one bulk OUT
// transfer and one Read is one bulk IN transfer. Package usb provides the
// real device; internal/simulator provides a fake for tests.
package bootloader
