package protocol

import "time"

// USB identity of a CH55x chip running its ISP bootloader.
const (
	// VendorID is the WCH vendor ID (0x4348)
	VendorID = 0x4348

	// ProductID is the ISP bootloader product ID (0x55E0)
	ProductID = 0x55E0

	// EndpointOut is the bulk OUT endpoint address commands are written to
	EndpointOut = 0x02

	// EndpointIn is the bulk IN endpoint address replies are read from
	EndpointIn = 0x82

	// TransferTimeout bounds every single bulk transfer
	TransferTimeout = 2000 * time.Millisecond
)

// Command opcodes (first byte of every command).
const (
	// CmdDetect identifies the chip
	CmdDetect = 0xA1

	// CmdEnd finishes programming (argument 0x00) or resets the MCU (argument 0x01)
	CmdEnd = 0xA2

	// CmdSendKey sends the session key derived from the configuration reply
	CmdSendKey = 0xA3

	// CmdErase erases the code flash
	CmdErase = 0xA4

	// CmdWrite programs one 56-byte packet
	CmdWrite = 0xA5

	// CmdVerify compares one 56-byte packet against flash
	CmdVerify = 0xA6

	// CmdReadConfig reads the bootloader configuration block
	CmdReadConfig = 0xA7
)

// StatusSuccess is the only acknowledgement value that means success.
const StatusSuccess = 0x00

// Reply lengths per command.
const (
	// DetectReplyLen is the reply size for the detect command
	DetectReplyLen = 6

	// ConfigReplyLen is the reply size for the read config command
	ConfigReplyLen = 30

	// StatusReplyLen is the reply size for key, erase, write, verify and end commands
	StatusReplyLen = 6
)

// Reply byte offsets.
const (
	// DetectChipIDOffset locates the chip ID in the detect reply
	DetectChipIDOffset = 4

	// ConfigVersionOffset locates the three version bytes (major, minor, patch)
	ConfigVersionOffset = 19

	// ConfigKeyOffset locates the four bytes summed into the checksum key
	ConfigKeyOffset = 22

	// AckStatusOffset is the status byte for key exchange and erase
	AckStatusOffset = 3

	// DataStatusOffset is the status byte for write, verify and end
	DataStatusOffset = 4
)

// Data packet layout.
const (
	// ChunkSize is the number of firmware bytes carried per write/verify packet
	ChunkSize = 56

	// DataHeaderSize is the number of header bytes in front of the payload
	DataHeaderSize = 8

	// DataCmdSize is the total size of a write/verify command
	DataCmdSize = DataHeaderSize + ChunkSize

	// dataMarker is the fixed byte at offset 7 of a data command
	dataMarker = 56
)

// Key exchange command sizes.
const (
	// KeyCmdSizeOld is the key command size for V2.30 bootloaders
	KeyCmdSizeOld = 48

	// KeyCmdSizeNew is the key command size for V2.31 and V2.40 bootloaders
	KeyCmdSizeNew = 56
)

// Supported bootloader versions.
const (
	VersionV230 = "V2.30"
	VersionV231 = "V2.31"
	VersionV240 = "V2.40"
)

// detectMagic follows the detect header.
const detectMagic = "MCU ISP & WCH.CN"
