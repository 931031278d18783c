package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// runningError reports another live instance holding the pidfile.
type runningError struct {
	pid int
}

func (e *runningError) Error() string {
	return fmt.Sprintf("another copy of this process found, pid=%d", e.pid)
}

// acquirePidfile refuses to run while the pidfile names a live process,
// otherwise writes our pid to it. The returned func removes the file.
func acquirePidfile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	if b, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
		if err == nil && pid > 0 && pid != os.Getpid() && processAlive(pid) {
			return nil, &runningError{pid: pid}
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("writing pidfile: %w", err)
	}

	return func() { os.Remove(path) }, nil
}

// processAlive probes pid with signal 0.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
