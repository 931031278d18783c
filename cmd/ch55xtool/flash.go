package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/moffa90/go-ch55x/bootloader"
	"github.com/moffa90/go-ch55x/firmware"
	"github.com/moffa90/go-ch55x/usb"
)

// flash runs one identify or flashing session. The firmware file is loaded
// before the device is opened so a bad file never touches the chip.
func flash(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	release, err := acquirePidfile(opts.pidfile)
	if err != nil {
		return err
	}
	defer release()

	var img *firmware.Image
	if opts.binary != "" {
		img, err = firmware.Load(opts.binary)
		if err != nil {
			return err
		}
	}

	ch, err := usb.Open(usb.WithTimeout(opts.timeout))
	if err != nil {
		return err
	}
	defer ch.Close()

	rep := newReporter(stdout, stderr, opts.binary, !opts.noProgress && isTerminal(stderr))
	s := bootloader.New(ch,
		bootloader.WithLogger(glogLogger{}),
		bootloader.WithProgressCallback(rep.update),
		bootloader.WithRestart(!opts.dontRestart),
	)

	info, err := s.Identify(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Found %s, version %s; flash size %d\n",
		info.Chip.Name, info.Version, info.Chip.FlashSize)

	if img == nil {
		return nil
	}

	err = s.Program(ctx, img.Data)
	rep.finish()
	return err
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
