package bootloader

import (
	"fmt"
)

// TransportError indicates a failed or short USB transfer. It is always fatal.
type TransportError struct {
	// Operation is the command being exchanged
	Operation string

	// Direction is "write" or "read"
	Direction string

	// Want and Got are the requested and transferred byte counts
	Want int
	Got  int

	// Err is the underlying transfer error, if any
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s failed after %d of %d bytes: %v",
			e.Operation, e.Direction, e.Got, e.Want, e.Err)
	}
	return fmt.Sprintf("%s: short %s: transferred %d of %d bytes",
		e.Operation, e.Direction, e.Got, e.Want)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ChipNotFoundError indicates that the detect reply named an unsupported chip.
type ChipNotFoundError struct {
	ID byte
}

func (e *ChipNotFoundError) Error() string {
	return fmt.Sprintf("chip not found: unknown chip ID 0x%02X", e.ID)
}

// StateError indicates that an operation was issued before its preconditions
// held. It is a sequencing bug in the caller, not a device condition.
type StateError struct {
	Operation string
	State     State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Operation, e.State)
}

// ImageTooLargeError indicates that the firmware does not fit the chip flash.
type ImageTooLargeError struct {
	Chip      string
	Size      int
	FlashSize int
}

func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("firmware is %d bytes, %s has %d bytes of flash",
		e.Size, e.Chip, e.FlashSize)
}
