package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-ch55x/protocol"
)

const defaultPidfile = "/tmp/ch55xtool.pid"

// options holds the command line flags.
type options struct {
	pidfile     string
	binary      string
	dontRestart bool
	noProgress  bool
	timeout     time.Duration
}

// usageError marks errors caused by a bad command line.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "ch55xtool",
		Short: "Flash WCH CH55x microcontrollers over the USB ISP bootloader",
		Long: `Detects a CH551/CH552/CH553/CH554/CH559 in ISP mode and reports its
bootloader version. With --binary the flash is erased, written, verified and
the MCU restarted into the new firmware.

Files ending in .hex or .ihx are read as Intel HEX, anything else as a raw
binary image.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{fmt.Errorf("%d extra arguments: %s", len(args), strings.Join(args, " "))}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flash(cmd.Context(), opts, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.pidfile, "pidfile", "p", defaultPidfile, "pidfile name")
	f.StringVarP(&opts.binary, "binary", "b", "", "firmware file to flash (raw binary or Intel HEX)")
	f.BoolVarP(&opts.dontRestart, "dont-restart", "R", false, "don't restart the MCU after writing")
	f.BoolVar(&opts.noProgress, "no-progress", false, "disable progress bars")
	f.DurationVar(&opts.timeout, "timeout", protocol.TransferTimeout, "timeout of a single USB transfer")

	// glog registers its flags on the standard flag set.
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	return cmd
}
