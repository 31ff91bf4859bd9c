// Package secmem provides byte buffers for confidential material:
// passphrases, decrypted plaintext, exported private keys. A Buffer is
// wiped on release, pinned out of swap where the platform allows it,
// and renders opaquely through fmt and slog.
package secmem

import (
	"log/slog"
	"runtime"
)

// Buffer owns a byte slice holding confidential material. The zero
// value is an empty, usable Buffer. A Buffer is exclusively owned by
// the call that allocated it until handed to the ultimate caller; every
// exit path must end in Wipe.
type Buffer struct {
	data   []byte
	locked bool
}

// New returns a Buffer with n zero bytes of confidential storage.
func New(n int) *Buffer {
	buf := &Buffer{data: make([]byte, n)}
	buf.locked = nil == lockMemory(buf.data)
	return buf
}

// NewFrom returns a Buffer owning a confidential copy of b.
// b itself is wiped: the caller's slice must not be reused.
func NewFrom(b []byte) *Buffer {
	buf := New(len(b))
	copy(buf.data, b)
	Zeroize(b)
	return buf
}

// Bytes exposes the confidential storage. The slice aliases the Buffer
// and becomes all-zero once Wipe runs.
func (self *Buffer) Bytes() []byte {
	return self.data
}

// Len returns the number of confidential bytes held.
func (self *Buffer) Len() int {
	return len(self.data)
}

// Append grows the Buffer with chunk. Storage that has to be
// reallocated is wiped before release.
func (self *Buffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	if len(self.data)+len(chunk) <= cap(self.data) {
		self.data = append(self.data, chunk...)
		return
	}

	next := make([]byte, len(self.data), (len(self.data)+len(chunk))*2)
	locked := nil == lockMemory(next[:cap(next)])
	copy(next, self.data)
	next = append(next, chunk...)

	self.release()
	self.data = next
	self.locked = locked
}

// String returns the contents as a string, stopping at the first NUL.
// Used for passphrase results, which travel NUL-terminated.
func (self *Buffer) String() string {
	for i, c := range self.data {
		if 0 == c {
			return string(self.data[:i])
		}
	}
	return string(self.data)
}

// Reset wipes the contents and truncates the Buffer to zero length,
// keeping the storage for reuse.
func (self *Buffer) Reset() {
	Zeroize(self.data[:cap(self.data)])
	self.data = self.data[:0]
}

// Wipe zeroizes and releases the confidential storage. Wipe is
// idempotent and must run on every exit path, error paths included.
func (self *Buffer) Wipe() {
	self.release()
	self.data = nil
	self.locked = false
}

func (self *Buffer) release() {
	if nil == self.data {
		return
	}
	whole := self.data[:cap(self.data)]
	Zeroize(whole)
	if self.locked {
		unlockMemory(whole)
	}
}

// LogValue keeps Buffer contents out of log output.
func (self *Buffer) LogValue() slog.Value {
	return slog.StringValue("secmem.Buffer(confidential)")
}

// Zeroize overwrites b with zero bytes. The KeepAlive call prevents the
// compiler from discarding a store to memory that is never read again.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
