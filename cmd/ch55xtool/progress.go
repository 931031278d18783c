package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/moffa90/go-ch55x/bootloader"
)

// reporter prints one line per flashing phase and, when enabled, a byte
// progress bar for the write and verify passes.
type reporter struct {
	out    io.Writer
	barOut io.Writer
	binary string
	bars   bool

	phase string
	bar   *progressbar.ProgressBar
}

func newReporter(out, barOut io.Writer, binary string, bars bool) *reporter {
	return &reporter{out: out, barOut: barOut, binary: binary, bars: bars}
}

// update is the bootloader.ProgressCallback.
func (r *reporter) update(p bootloader.Progress) {
	if p.Phase != r.phase {
		r.finish()
		r.phase = p.Phase
		if msg := phaseMessage(p.Phase, r.binary); msg != "" {
			fmt.Fprintln(r.out, msg)
		}
		if r.bars && (p.Phase == bootloader.PhaseWriting || p.Phase == bootloader.PhaseVerifying) && p.TotalBytes > 0 {
			r.bar = progressbar.NewOptions(p.TotalBytes,
				progressbar.OptionSetWriter(r.barOut),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription(p.Phase),
				progressbar.OptionShowBytes(true),
			)
		}
	}

	if r.bar != nil {
		r.bar.Set(p.Bytes)
	}
}

// finish closes the current progress bar, if any.
func (r *reporter) finish() {
	if r.bar == nil {
		return
	}
	r.bar.Finish()
	fmt.Fprintln(r.barOut)
	r.bar = nil
}

func phaseMessage(phase, binary string) string {
	switch phase {
	case bootloader.PhaseErasing:
		return "Erase chip"
	case bootloader.PhaseWriting:
		return "Try to write " + binary
	case bootloader.PhaseVerifying:
		return "Verify data"
	case bootloader.PhaseRestarting:
		return "Reset MCU"
	case bootloader.PhaseComplete:
		return "Done"
	default:
		return ""
	}
}
