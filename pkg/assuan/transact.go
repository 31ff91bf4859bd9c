package assuan

import (
	"context"
	"strconv"
	"strings"
)

// DataSink receives the streamed payload of a transaction. A nil chunk
// marks an end-of-record boundary (the peer's END line); sinks that
// accumulate multi-record streams reset on it.
type DataSink interface {
	HandleData(chunk []byte) error
}

// DataSinkFunc is an adapter that allows using ordinary functions as DataSink.
type DataSinkFunc func(chunk []byte) error

func (self DataSinkFunc) HandleData(chunk []byte) error {
	return self(chunk)
}

// InquiryHandler answers a mid-transaction request from the peer. The
// handler may push a reply through conn.SendData (bracketed with
// BeginConfidential/EndConfidential when the payload is secret) and
// return nil; the engine then closes the block. Returning an error
// cancels the whole transaction.
type InquiryHandler interface {
	HandleInquiry(conn *Conn, keyword, rest string) error
}

// InquiryFunc is an adapter that allows using ordinary functions as InquiryHandler.
type InquiryFunc func(conn *Conn, keyword, rest string) error

func (self InquiryFunc) HandleInquiry(conn *Conn, keyword, rest string) error {
	return self(conn, keyword, rest)
}

// StatusHandler consumes out-of-band status lines. Returning an error
// aborts the transaction, which is how user cancellation propagates.
type StatusHandler interface {
	HandleStatus(keyword, rest string) error
}

// StatusFunc is an adapter that allows using ordinary functions as StatusHandler.
type StatusFunc func(keyword, rest string) error

func (self StatusFunc) HandleStatus(keyword, rest string) error {
	return self(keyword, rest)
}

// Transact issues one command and drives the reply cycle to its final
// verdict: data lines stream into sink, inquiries route to inq, status
// lines to status. Any nil handler ignores its lines, except inquiries,
// which are answered with an empty continuation so that unknown
// requests never abort a transaction.
//
// Callbacks fire in wire order. On any failure, data already delivered
// to sink must be discarded by the caller.
func (self *Conn) Transact(ctx context.Context, command string, sink DataSink, inq InquiryHandler, status StatusHandler) error {
	err := self.WriteLine(command)
	if nil != err {
		return err
	}

	for {
		if err = ctx.Err(); nil != err {
			return wrapError(err, "transaction interrupted")
		}

		line, err := self.readLine()
		if nil != err {
			return err
		}

		switch {
		case strings.HasPrefix(line, "#"):
			// comment line, skip

		case "OK" == line || strings.HasPrefix(line, "OK "):
			return nil

		case strings.HasPrefix(line, "ERR "):
			return self.parseErr(line)

		case strings.HasPrefix(line, "D "):
			if nil == sink {
				continue
			}
			chunk, err := unescapeData(line[2:])
			if nil != err {
				return err
			}
			err = sink.HandleData(chunk)
			if nil != err {
				return err
			}

		case "END" == line:
			if nil == sink {
				continue
			}
			err = sink.HandleData(nil)
			if nil != err {
				return err
			}

		case strings.HasPrefix(line, "S "):
			if nil == status {
				continue
			}
			keyword, rest := SplitLine(line[2:])
			err = status.HandleStatus(keyword, rest)
			if nil != err {
				return err
			}

		case strings.HasPrefix(line, "INQUIRE "):
			keyword, rest := SplitLine(line[8:])
			err = self.answerInquiry(inq, keyword, rest)
			if nil != err {
				return err
			}

		default:
			return newFlagError(ProtocolError, "unexpected peer line %q", line)
		}
	}
}

// answerInquiry routes one inquiry to inq and terminates the reply
// block: END after a successful handler, CAN after a failing one. With
// no handler the inquiry is acknowledged as a no-op.
func (self *Conn) answerInquiry(inq InquiryHandler, keyword, rest string) error {
	if nil == inq {
		self.log.Debug("no handler for inquiry, sending empty continuation", "keyword", keyword)
		return self.WriteLine("END")
	}

	saved := self.confidential
	err := inq.HandleInquiry(self, keyword, rest)
	self.confidential = saved // handlers must not leak their region past the inquiry
	if nil != err {
		werr := self.WriteLine("CAN")
		if nil != werr {
			return werr
		}
		return err
	}
	return self.WriteLine("END")
}

// parseErr decodes an "ERR <code> [text]" verdict.
func (self *Conn) parseErr(line string) error {
	rest := strings.TrimPrefix(line, "ERR ")
	codestr, text := SplitLine(rest)
	code, err := strconv.Atoi(codestr)
	if nil != err {
		return newFlagError(ProtocolError, "unparseable error code in %q", line)
	}
	return wrapError(PeerError{Code: code, Text: text}, "failed transaction")
}
