// Package chip holds the static table of CH55x microcontrollers supported by
// the ISP bootloader.
//
//	d, ok := chip.Lookup(0x52)
//	if !ok {
//	    log.Fatal("chip not found")
//	}
//	fmt.Println(d.Name, d.FlashSize) // CH552 16384
package chip
