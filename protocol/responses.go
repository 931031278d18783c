package protocol

import "fmt"

// ParseDetectResponse returns the chip ID from a detect reply.
//
// Reply format (6 bytes), chip ID at offset 4:
//
//	[?][?][?][?][CHIP_ID][?]
func ParseDetectResponse(reply []byte) (byte, error) {
	if len(reply) != DetectReplyLen {
		return 0, fmt.Errorf("invalid detect reply length: got %d bytes, expected %d", len(reply), DetectReplyLen)
	}
	return reply[DetectChipIDOffset], nil
}

// ParseConfigResponse extracts the bootloader version and checksum key from
// a read config reply.
//
// Reply format (30 bytes):
//
//	[0..18][MAJOR(19)][MINOR(20)][PATCH(21)][K0(22)][K1(23)][K2(24)][K3(25)][26..29]
func ParseConfigResponse(reply []byte) (*ConfigInfo, error) {
	if len(reply) != ConfigReplyLen {
		return nil, fmt.Errorf("invalid config reply length: got %d bytes, expected %d", len(reply), ConfigReplyLen)
	}

	v := reply[ConfigVersionOffset : ConfigVersionOffset+3]
	return &ConfigInfo{
		Version:     fmt.Sprintf("V%d.%d%d", v[0], v[1], v[2]),
		ChecksumKey: ChecksumKey(reply[ConfigKeyOffset : ConfigKeyOffset+4]),
	}, nil
}

// ChecksumKey returns the low byte of the sum of the given bytes.
func ChecksumKey(b []byte) byte {
	var sum int
	for _, c := range b {
		sum += int(c)
	}
	return byte(sum & 0xFF)
}

// VariantForVersion maps a bootloader version string to a protocol variant.
func VariantForVersion(version string) (Variant, error) {
	switch version {
	case VersionV230:
		return VariantOld, nil
	case VersionV231, VersionV240:
		return VariantNew, nil
	default:
		return 0, &UnsupportedVersionError{Version: version}
	}
}

// CheckStatus returns a ProtocolError when the status byte at offset is nonzero.
func CheckStatus(operation string, reply []byte, offset int) error {
	if offset >= len(reply) {
		return fmt.Errorf("%s: reply too short for status at offset %d (got %d bytes)", operation, offset, len(reply))
	}
	if reply[offset] != StatusSuccess {
		return &ProtocolError{Operation: operation, StatusCode: reply[offset]}
	}
	return nil
}
