//go:build linux || darwin

package secmem

import "golang.org/x/sys/unix"

func lockMemory(b []byte) error {
	if 0 == len(b) {
		return nil
	}
	return unix.Mlock(b)
}

func unlockMemory(b []byte) error {
	if 0 == len(b) {
		return nil
	}
	return unix.Munlock(b)
}
