package protocol

import (
	"encoding/binary"
	"fmt"
)

// Every builder returns a newly allocated slice, so callers may keep or
// modify a command without affecting later ones.

// DetectCmd constructs the chip identification command.
//
// Command structure (21 bytes):
//
//	[0xA1][0x12][0x00][0x52][0x11]["MCU ISP & WCH.CN"]
func DetectCmd() []byte {
	cmd := make([]byte, 0, 5+len(detectMagic))
	cmd = append(cmd, CmdDetect, 0x12, 0x00, 0x52, 0x11)
	cmd = append(cmd, detectMagic...)
	return cmd
}

// ReadConfigCmd constructs the read configuration command.
//
// Command structure (5 bytes):
//
//	[0xA7][0x02][0x00][0x1F][0x00]
func ReadConfigCmd() []byte {
	return []byte{CmdReadConfig, 0x02, 0x00, 0x1F, 0x00}
}

// BuildKeyCmd constructs the key exchange command for the given variant.
//
// Old (V2.30), 48 bytes:
//
//	[0xA3][0x30][0x00][KEY x 45]
//
// New (V2.31, V2.40), 56 bytes:
//
//	[0xA3][0x38][0x00][0x00 x 53]
func BuildKeyCmd(v Variant, key byte) ([]byte, error) {
	switch v {
	case VariantOld:
		cmd := make([]byte, KeyCmdSizeOld)
		cmd[0] = CmdSendKey
		cmd[1] = KeyCmdSizeOld
		for i := 3; i < len(cmd); i++ {
			cmd[i] = key
		}
		return cmd, nil
	case VariantNew:
		cmd := make([]byte, KeyCmdSizeNew)
		cmd[0] = CmdSendKey
		cmd[1] = KeyCmdSizeNew
		return cmd, nil
	default:
		return nil, fmt.Errorf("invalid protocol variant %d", int(v))
	}
}

// EraseCmd constructs the flash erase command.
//
//	[0xA4][0x01][0x00][0x08]
func EraseCmd() []byte {
	return []byte{CmdErase, 0x01, 0x00, 0x08}
}

// EndCmd constructs the command that finishes programming.
//
//	[0xA2][0x01][0x00][0x00]
func EndCmd() []byte {
	return []byte{CmdEnd, 0x01, 0x00, 0x00}
}

// ResetCmd constructs the command that restarts the MCU into the application.
// The bootloader does not answer it.
//
//	[0xA2][0x01][0x00][0x01]
func ResetCmd() []byte {
	return []byte{CmdEnd, 0x01, 0x00, 0x01}
}

// BuildWriteCmd constructs a write command carrying an already encoded payload.
func BuildWriteCmd(addr uint16, payload [ChunkSize]byte) []byte {
	return buildDataCmd(CmdWrite, addr, payload)
}

// BuildVerifyCmd constructs a verify command carrying an already encoded payload.
func BuildVerifyCmd(addr uint16, payload [ChunkSize]byte) []byte {
	return buildDataCmd(CmdVerify, addr, payload)
}

// buildDataCmd lays out a 64-byte write/verify command.
//
// Command structure:
//
//	[OP][LEN][0x00][ADDR_L][ADDR_H][0x00][0x00][0x38][PAYLOAD(56)]
//
// LEN is (56+5)&0xFF.
func buildDataCmd(op byte, addr uint16, payload [ChunkSize]byte) []byte {
	cmd := make([]byte, DataCmdSize)
	cmd[0] = op
	cmd[1] = byte((ChunkSize + 5) & 0xFF)
	binary.LittleEndian.PutUint16(cmd[3:5], addr)
	cmd[7] = dataMarker
	copy(cmd[DataHeaderSize:], payload[:])
	return cmd
}
