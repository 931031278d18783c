// Command ch55xtool flashes WCH CH55x microcontrollers through their USB ISP
// bootloader.
//
// Usage:
//
//	ch55xtool                      # identify the attached chip
//	ch55xtool -b firmware.bin      # erase, write, verify, reset
//	ch55xtool -b firmware.ihx -R   # same, leave the MCU in the bootloader
//
// glog flags (--v, --logtostderr, ...) are accepted as well; --v=2 dumps
// every USB transfer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit status:
// 0 on success, 1 on failure and 2 on usage errors.
func run(args []string, stdout, stderr io.Writer) int {
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	signal.Ignore(unix.SIGHUP, unix.SIGTSTP)

	setLogDefaults()

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "ch55xtool: %v\n", err)

		var ue *usageError
		if errors.As(err, &ue) {
			fmt.Fprint(stderr, cmd.UsageString())
			return 2
		}
		return 1
	}

	return 0
}

// setLogDefaults sends glog output, packet warnings included, to stderr.
// Explicit --logtostderr or --stderrthreshold flags are parsed later and win.
func setLogDefaults() {
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Warningf("cannot default logtostderr: %v", err)
	}
}
