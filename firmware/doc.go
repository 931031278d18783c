// Package firmware loads CH55x firmware images.
//
// # Formats
//
// Raw binary files are used as-is: byte 0 of the file is written to flash
// address 0.
//
// Intel HEX files (as produced by SDCC as .ihx, or packed to .hex) are
// flattened into a binary image starting at address 0:
//
//	:03000000020006F5
//	  03   = data length
//	  0000 = load address (big-endian)
//	  00   = record type (data)
//	  020006 = data
//	  F5   = checksum (2's complement of the byte sum)
//
// Supported record types are 00 (data), 01 (end of file), 02 and 04
// (extended segment/linear address); 03 and 05 (start address) are ignored.
// Ranges not covered by any data record are filled with 0xFF.
//
// # Usage
//
//	img, err := firmware.Load("blink.ihx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%s image, %d bytes\n", img.Format, img.Size())
//
// # Error Handling
//
// Load wraps every failure in a FileError carrying the path, so callers can
// tell a bad firmware file apart from device errors:
//
//	var fe *firmware.FileError
//	if errors.As(err, &fe) {
//	    fmt.Println("check", fe.Path)
//	}
package firmware
