// Package protocol implements the WCH CH55x USB ISP bootloader protocol.
//
// This package provides functions to build command packets, parse reply
// packets and obfuscate firmware payloads for bootloader versions V2.30,
// V2.31 and V2.40.
//
// # Protocol Overview
//
// Every exchange is one bulk OUT transfer to endpoint 0x02 followed by one
// bulk IN transfer from endpoint 0x82. Commands carry no framing or
// checksum; the first byte is the opcode:
//
//	0xA1 detect        21 bytes  -> 6 byte reply, chip ID at offset 4
//	0xA7 read config    5 bytes  -> 30 byte reply, version at 19..21
//	0xA3 send key   48/56 bytes  -> 6 byte reply, status at offset 3
//	0xA4 erase          4 bytes  -> 6 byte reply, status at offset 3
//	0xA5 write         64 bytes  -> 6 byte reply, status at offset 4
//	0xA6 verify        64 bytes  -> 6 byte reply, status at offset 4
//	0xA2 end/reset      4 bytes  -> 6 byte reply (end) or none (reset)
//
// # Session Key
//
// The checksum key is the low byte of the sum of config reply bytes 22..25.
// V2.30 bootloaders expect it repeated in the key command and use it only on
// every eighth payload byte; newer bootloaders take an empty key command and
// mask every payload byte:
//
//	key := protocol.ChecksumKey(reply[22:26])
//	variant, err := protocol.VariantForVersion("V2.40")
//	enc := protocol.Encode(chunk, key, chipID, variant)
//	cmd := protocol.BuildWriteCmd(addr, enc)
//
// # Error Handling
//
// Nonzero acknowledgements are reported as ProtocolError:
//
//	if err := protocol.CheckStatus("erase", reply, protocol.AckStatusOffset); err != nil {
//	    // err.Error() returns: "erase failed: bootloader status 0x01"
//	}
//
// Unknown bootloader versions produce UnsupportedVersionError.
package protocol
