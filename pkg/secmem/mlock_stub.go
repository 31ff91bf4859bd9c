//go:build !linux && !darwin

package secmem

// Platforms without mlock still get zeroize-on-release.

func lockMemory(b []byte) error {
	return newError("memory locking not supported on this platform")
}

func unlockMemory(b []byte) error {
	return nil
}
