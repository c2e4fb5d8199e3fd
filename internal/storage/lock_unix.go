//go:build unix

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryLock takes an exclusive lock without blocking. A file already locked by
// another writer fails with EWOULDBLOCK.
func tryLock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
