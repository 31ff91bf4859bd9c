// Package assuan implements the client side of the line-oriented
// protocol spoken with the key agent: one command per line, replies
// made of status lines, streamed data, mid-transaction inquiries and a
// final OK/ERR verdict.
//
// The package owns framing and the reply cycle only. What the commands
// mean, and how inquiries are answered, belongs to the caller supplying
// the per-transaction handlers.
package assuan

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"code.keywarden.org/golang/internal/observability"
)

// Conn is one logical channel to the peer. A Conn supports a single
// outstanding transaction: the protocol has no request identifiers, so
// interleaved use requires external serialization.
type Conn struct {
	pipe io.ReadWriteCloser
	rd   *bufio.Reader
	log  *slog.Logger

	// confidential marks a region whose data lines must not reach the
	// log, whatever the level.
	confidential bool
}

// NewConn wraps an established pipe to the peer. The peer's greeting is
// not consumed; callers run Greeting once before the first transaction.
// A nil log disables protocol tracing.
func NewConn(pipe io.ReadWriteCloser, log *slog.Logger) *Conn {
	if nil == log {
		log = observability.NoopLogger()
	}
	return &Conn{
		pipe: pipe,
		rd:   bufio.NewReaderSize(pipe, MaxLineLen+2),
		log:  log,
	}
}

// SetLogger replaces the Conn logger, typically to attach a
// per-transaction trace id. A nil log disables protocol tracing.
func (self *Conn) SetLogger(log *slog.Logger) {
	if nil == log {
		log = observability.NoopLogger()
	}
	self.log = log
}

// Greeting consumes the peer's initial OK line. It errors if the peer
// opens with anything else.
func (self *Conn) Greeting() error {
	for {
		line, err := self.readLine()
		if nil != err {
			return err
		}
		switch {
		case strings.HasPrefix(line, "#"):
			continue
		case "OK" == line || strings.HasPrefix(line, "OK "):
			return nil
		case strings.HasPrefix(line, "ERR "):
			return self.parseErr(line)
		default:
			return newFlagError(ProtocolError, "unexpected greeting %q", line)
		}
	}
}

// Close tears the channel down.
func (self *Conn) Close() error {
	return wrapError(self.pipe.Close(), "failed closing pipe")
}

// BeginConfidential opens a region whose data lines are kept out of the
// log. Regions do not nest.
func (self *Conn) BeginConfidential() {
	self.confidential = true
}

// EndConfidential closes the confidential region.
func (self *Conn) EndConfidential() {
	self.confidential = false
}

// SendData transmits b as a sequence of D lines, escaping '%', CR and
// LF and splitting so no line exceeds MaxLineLen. Used from inquiry
// handlers; the transaction engine terminates the block itself.
func (self *Conn) SendData(b []byte) error {
	for len(b) > 0 {
		// take the largest prefix whose escaped form fits on one line
		n := len(b)
		for n > 1 && escapedLen(b[:n]) > MaxLineLen-2 {
			n--
		}
		line := make([]byte, 0, MaxLineLen)
		line = append(line, 'D', ' ')
		line = escapeData(line, b[:n])
		err := self.writeRaw(line)
		if nil != err {
			return err
		}
		b = b[n:]
	}
	return nil
}

// WriteLine sends one protocol line. Lines over MaxLineLen or holding
// line breaks are rejected before any I/O.
func (self *Conn) WriteLine(line string) error {
	if len(line) > MaxLineLen {
		return newFlagError(LineTooLongError, "line of %d bytes exceeds %d", len(line), MaxLineLen)
	}
	if strings.ContainsAny(line, "\r\n") {
		return newError("line contains a line break")
	}
	return self.writeRaw([]byte(line))
}

func (self *Conn) writeRaw(line []byte) error {
	if len(line) > MaxLineLen {
		return newFlagError(LineTooLongError, "line of %d bytes exceeds %d", len(line), MaxLineLen)
	}
	if self.confidential {
		self.log.Debug("-> [confidential]")
	} else {
		self.log.Debug("-> " + string(line))
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err := self.pipe.Write(buf)
	return wrapError(err, "failed writing line")
}

// readLine returns the next peer line, LF (and a preceding CR) removed.
func (self *Conn) readLine() (string, error) {
	line, err := self.rd.ReadString('\n')
	if nil != err {
		return "", wrapError(err, "failed reading line")
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) > MaxLineLen {
		return "", newFlagError(ProtocolError, "peer line exceeds %d bytes", MaxLineLen)
	}
	if self.confidential {
		self.log.Debug("<- [confidential]")
	} else {
		self.log.Debug("<- " + line)
	}
	return line, nil
}
