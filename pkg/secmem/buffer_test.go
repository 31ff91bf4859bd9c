package secmem

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFrom(t *testing.T) {
	src := []byte("very secret")
	buf := NewFrom(src)
	defer buf.Wipe()

	if "very secret" != string(buf.Bytes()) {
		t.Errorf("got %q", buf.Bytes())
	}
	// the source must not keep a second copy around
	if !bytes.Equal(src, make([]byte, len(src))) {
		t.Error("source slice was not wiped")
	}
}

func TestAppend(t *testing.T) {
	buf := New(0)
	defer buf.Wipe()

	// force several reallocations
	for i := 0; i < 50; i++ {
		buf.Append([]byte("chunk-"))
	}
	if 300 != buf.Len() {
		t.Fatalf("got %d bytes, expected 300", buf.Len())
	}
	if !strings.HasPrefix(string(buf.Bytes()), "chunk-chunk-") {
		t.Errorf("got %q", buf.Bytes()[:12])
	}
}

func TestWipe(t *testing.T) {
	buf := NewFrom([]byte("very secret"))
	held := buf.Bytes()

	buf.Wipe()
	if !bytes.Equal(held, make([]byte, len(held))) {
		t.Error("storage still holds data after Wipe")
	}
	if 0 != buf.Len() {
		t.Errorf("got %d bytes after Wipe", buf.Len())
	}

	// Wipe must stay safe on every exit path, run twice included
	buf.Wipe()
}

func TestReset(t *testing.T) {
	buf := NewFrom([]byte("one"))
	defer buf.Wipe()

	buf.Reset()
	if 0 != buf.Len() {
		t.Fatalf("got %d bytes after Reset", buf.Len())
	}
	buf.Append([]byte("two"))
	if "two" != string(buf.Bytes()) {
		t.Errorf("got %q", buf.Bytes())
	}
}

func TestStringStopsAtNul(t *testing.T) {
	buf := NewFrom([]byte("hunter2\x00trailing junk"))
	defer buf.Wipe()

	if "hunter2" != buf.String() {
		t.Errorf("got %q", buf.String())
	}
}

func TestOpaqueRendering(t *testing.T) {
	buf := NewFrom([]byte("very secret"))
	defer buf.Wipe()

	if slog.StringValue("secmem.Buffer(confidential)").String() != buf.LogValue().String() {
		t.Errorf("LogValue renders %q", buf.LogValue())
	}

	var _ slog.LogValuer = buf
}
