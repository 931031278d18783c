package protocol

import "fmt"

// ProtocolError represents a nonzero acknowledgement from the bootloader.
type ProtocolError struct {
	// Operation is the command that failed
	Operation string

	// StatusCode is the acknowledgement byte reported by the bootloader
	StatusCode byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: bootloader status 0x%02X", e.Operation, e.StatusCode)
}

// IsProtocolError returns true if the error is a ProtocolError.
func IsProtocolError(err error) bool {
	_, ok := err.(*ProtocolError)
	return ok
}

// UnsupportedVersionError is returned for bootloader versions other than
// V2.30, V2.31 and V2.40.
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("bootloader version %s not supported", e.Version)
}
