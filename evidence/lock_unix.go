//go:build unix

package evidence

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// tryExclusiveOpen opens path for reading and takes a non-blocking
// exclusive flock, releasing both before returning.
func tryExclusiveOpen(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	return unix.Flock(fd, unix.LOCK_UN)
}
