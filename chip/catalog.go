package chip

import "fmt"

// Descriptor identifies one member of the CH55x family.
type Descriptor struct {
	// Name is the part name, e.g. "CH552"
	Name string

	// FlashSize is the code flash size in bytes
	FlashSize uint16

	// ID is the chip ID byte reported by the bootloader detect command
	ID byte
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (id 0x%02X, %d bytes flash)", d.Name, d.ID, d.FlashSize)
}

var catalog = [...]Descriptor{
	{Name: "CH551", FlashSize: 10240, ID: 0x51},
	{Name: "CH552", FlashSize: 16384, ID: 0x52},
	{Name: "CH553", FlashSize: 10240, ID: 0x53},
	{Name: "CH554", FlashSize: 14336, ID: 0x54},
	{Name: "CH559", FlashSize: 61440, ID: 0x59},
}

// Lookup returns the first descriptor whose ID equals id.
func Lookup(id byte) (Descriptor, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// All returns a copy of the supported chip table.
func All() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog[:])
	return out
}
