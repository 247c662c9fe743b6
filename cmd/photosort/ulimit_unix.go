//go:build linux || darwin

package main

import "golang.org/x/sys/unix"

const desiredOpenFiles = 4096

// raiseFileLimit lifts the soft RLIMIT_NOFILE so a full worker pool does not
// run out of descriptors.
func raiseFileLimit() error {
	var rLimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rLimit); err != nil {
		return err
	}
	desired := uint64(desiredOpenFiles)
	if desired > rLimit.Max {
		desired = rLimit.Max
	}
	if rLimit.Cur >= desired {
		return nil
	}
	rLimit.Cur = desired
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &rLimit)
}
