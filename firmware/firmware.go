package firmware

import "fmt"

// Format is the on-disk encoding of a firmware file.
type Format int

const (
	// FormatBinary is a raw image loaded at address 0
	FormatBinary Format = iota

	// FormatIntelHex is an Intel HEX file (SDCC .ihx/.hex output)
	FormatIntelHex
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatIntelHex:
		return "intel-hex"
	default:
		return "unknown"
	}
}

// Image is a flat firmware image ready to be written from address 0.
type Image struct {
	// Path is the file the image was loaded from (empty for readers)
	Path string

	// Format is the encoding the image was decoded from
	Format Format

	// Data is the flat image
	Data []byte
}

// Size returns the image length in bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// FileError indicates that a firmware file could not be opened, read or decoded.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("firmware file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
