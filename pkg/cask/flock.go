package cask

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// createFlockFile creates a file lock for the database directory.
// A lockfile left behind by a crashed process doesn't block startup since
// the lock itself dies with the process.
func createFlockFile(flockFile string) (*os.File, error) {
	flockF, err := os.OpenFile(flockFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("cannot create lock file %q: %w", flockFile, err)
	}
	if err := unix.Flock(int(flockF.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		flockF.Close()
		return nil, fmt.Errorf("cannot acquire lock on file %q: %w", flockFile, ErrLocked)
	}
	return flockF, nil
}

// releaseFlockFile unlocks and closes the lock file. The file itself is left
// in place: removing it would let one process lock the unlinked inode while
// another creates and locks a new file at the same path.
func releaseFlockFile(flockF *os.File) error {
	if err := unix.Flock(int(flockF.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("cannot unlock lock on file %q: %w", flockF.Name(), err)
	}
	// Close any open fd.
	if err := flockF.Close(); err != nil {
		return fmt.Errorf("cannot close fd on file %q: %w", flockF.Name(), err)
	}
	return nil
}
