//go:build unix

package flake

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// lockFile blocks until f holds an exclusive flock. The lock belongs to the
// open file description, so two opens of one path contend even in-process.
func lockFile(f *os.File) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			return errors.WithStack(err)
		}
	}
}

func unlockFile(f *os.File) error {
	return errors.WithStack(unix.Flock(int(f.Fd()), unix.LOCK_UN))
}
