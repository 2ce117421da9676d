//go:build !unix

package flake

import (
	"os"

	"github.com/pkg/errors"
)

func lockFile(*os.File) error {
	return errors.WithStack(ErrUnsupported)
}

func unlockFile(*os.File) error {
	return errors.WithStack(ErrUnsupported)
}
